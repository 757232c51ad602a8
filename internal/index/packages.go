package index

import (
	"path"
	"slices"
	"strings"

	"github.com/meigma/ikv/internal/ziptype"
)

const (
	classSuffix  = ".class"
	packageHTML  = "package.html"
	manifestPath = "META-INF/MANIFEST.MF"
)

// PackageBuilder derives the class and resource package sets and the set of
// directories implied by the files written to an archive.
//
// Directories are tracked by name. Walking up from a file's parent stops at
// the first directory already seen, since its ancestors were registered when
// it was.
type PackageBuilder struct {
	mode             ziptype.DirMode
	dirs             map[string]struct{}
	classPackages    map[uint64]struct{}
	resourcePackages map[uint64]struct{}
}

// NewPackageBuilder creates a builder for the given directory mode. Class
// files only contribute directories in ziptype.DirAll.
func NewPackageBuilder(mode ziptype.DirMode) *PackageBuilder {
	return &PackageBuilder{
		mode:             mode,
		dirs:             make(map[string]struct{}),
		classPackages:    make(map[uint64]struct{}),
		resourcePackages: make(map[uint64]struct{}),
	}
}

// Mode returns the directory mode.
func (p *PackageBuilder) Mode() ziptype.DirMode {
	return p.mode
}

// AddFile records a written file.
func (p *PackageBuilder) AddFile(name string) {
	if name == manifestPath || path.Base(name) == packageHTML {
		return
	}
	dir := ""
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		dir = name[:i]
	}
	if strings.HasSuffix(name, classSuffix) {
		p.classPackages[PackageHash(dir)] = struct{}{}
		if p.mode == ziptype.DirAll {
			p.addDirs(dir)
		}
		return
	}
	p.resourcePackages[PackageHash(dir)] = struct{}{}
	p.addDirs(dir)
}

// AddDir records an explicitly written directory and its ancestors.
func (p *PackageBuilder) AddDir(name string) {
	p.addDirs(strings.TrimSuffix(name, "/"))
}

func (p *PackageBuilder) addDirs(dir string) {
	for dir != "" {
		if _, ok := p.dirs[dir]; ok {
			return
		}
		p.dirs[dir] = struct{}{}
		p.resourcePackages[PackageHash(dir)] = struct{}{}
		i := strings.LastIndexByte(dir, '/')
		if i < 0 {
			return
		}
		dir = dir[:i]
	}
}

// Dirs returns the registered directories in sorted order, without
// trailing slashes.
func (p *PackageBuilder) Dirs() []string {
	out := make([]string, 0, len(p.dirs))
	for d := range p.dirs {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// ApplyTo copies the package sets into b. The root package is added to the
// resource set whenever that set is non-empty.
func (p *PackageBuilder) ApplyTo(b *Builder) {
	for h := range p.classPackages {
		b.AddClassPackage(h)
	}
	if len(p.resourcePackages) == 0 {
		return
	}
	for h := range p.resourcePackages {
		b.AddResourcePackage(h)
	}
	b.AddResourcePackage(RootPackageHash)
}
