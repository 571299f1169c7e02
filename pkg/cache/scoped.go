package cache

// ScopedKeyer prefixes every key of an inner Keyer. The CLI scopes keys by
// build version so a new release never serves graphs rendered by an old one.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) GraphKey(manifestHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(manifestHash, opts)
}

func (k *ScopedKeyer) HistoryKey(manifestHash, rangeSpec string) string {
	return k.prefix + k.inner.HistoryKey(manifestHash, rangeSpec)
}
