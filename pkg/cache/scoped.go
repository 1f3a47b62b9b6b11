package cache

// ScopedKeyer wraps a Keyer with a prefix so that several runs or servers
// can share one backend without colliding.
//
//	k := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "serve:")
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

// TreesKey generates a prefixed key for parsed tree runs.
func (k *ScopedKeyer) TreesKey(sourceHash string, opts TreesKeyOpts) string {
	return k.prefix + k.inner.TreesKey(sourceHash, opts)
}

// LayoutKey generates a prefixed key for layout caching.
func (k *ScopedKeyer) LayoutKey(runHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(runHash, opts)
}

// ArtifactKey generates a prefixed key for rendered frames.
func (k *ScopedKeyer) ArtifactKey(runHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(runHash, opts)
}
