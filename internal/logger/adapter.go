package logger

// Adapter satisfies the small Logger interface the socks5 package expects
// (Debugf/Infof/Warnf), routing every call through the package-level
// singleton. The core package never imports this package directly — the
// host wires an Adapter in at construction — which keeps the protocol core
// free of a concrete logging dependency.
type Adapter struct{}

func (Adapter) Debugf(format string, args ...any) { Debugf(format, args...) }
func (Adapter) Infof(format string, args ...any)  { Infof(format, args...) }
func (Adapter) Warnf(format string, args ...any)  { Warnf(format, args...) }
