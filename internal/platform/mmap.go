package platform

// Mapping is a read-only view of a file's contents.
type Mapping struct {
	data  []byte
	close func([]byte) error
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Len returns the mapped length.
func (m *Mapping) Len() int {
	return len(m.data)
}

// Close releases the mapping. It is safe to call more than once.
func (m *Mapping) Close() error {
	data := m.data
	m.data = nil
	if data == nil || m.close == nil {
		return nil
	}
	return m.close(data)
}
