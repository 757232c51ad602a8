//go:build !(linux || darwin)

package backend

func mappedFactory() factory {
	return nil
}
