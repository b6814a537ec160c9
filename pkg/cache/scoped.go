package cache

// ScopedKeyer wraps a Keyer with a prefix so that several projects can share
// one Redis instance without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "project:alps:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ExportKey generates a prefixed export key.
func (k *ScopedKeyer) ExportKey(docHash string, opts ExportKeyOpts) string {
	return k.prefix + k.inner.ExportKey(docHash, opts)
}

// TopologyKey generates a prefixed topology key.
func (k *ScopedKeyer) TopologyKey(docHash, format string) string {
	return k.prefix + k.inner.TopologyKey(docHash, format)
}
