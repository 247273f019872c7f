package core

// Descriptor is the validated, immutable identity of a discovered module. It
// is created by the loader and owned by the manager for the lifetime of the
// instance built from it.
type Descriptor struct {
	manifest Manifest
	path     string
}

// NewDescriptor builds a descriptor from a validated manifest. The capability
// slice is copied so later mutation of m cannot leak in.
func NewDescriptor(m Manifest, path string) *Descriptor {
	m.Capabilities = append([]string(nil), m.Capabilities...)
	return &Descriptor{manifest: m, path: path}
}

// Name is unique within a runtime instance.
func (d *Descriptor) Name() string        { return d.manifest.Name }
func (d *Descriptor) Version() string     { return d.manifest.Version }
func (d *Descriptor) Description() string { return d.manifest.Description }
func (d *Descriptor) DisplayName() string { return d.manifest.Title() }
func (d *Descriptor) Entry() string       { return d.manifest.EntryPoint() }

// NeedsSandbox reports whether the instance passes through ATTACHING.
func (d *Descriptor) NeedsSandbox() bool { return d.manifest.Sandbox }

// Path is the module directory the manifest was read from; empty for
// descriptors built in code.
func (d *Descriptor) Path() string { return d.path }

// Capabilities returns a copy of the accepted capability kinds.
func (d *Descriptor) Capabilities() []string {
	return append([]string(nil), d.manifest.Capabilities...)
}

// Accepts reports whether a capability of the given kind may be attached.
func (d *Descriptor) Accepts(kind string) bool { return d.manifest.Accepts(kind) }

// Manifest returns a copy of the underlying manifest.
func (d *Descriptor) Manifest() Manifest {
	m := d.manifest
	m.Capabilities = d.Capabilities()
	return m
}
