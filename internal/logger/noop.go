package logger

// Noop is a logger that discards everything. Used in tests.
type Noop struct{}

// NewNoop creates a no-op logger.
func NewNoop() Interface { return &Noop{} }

func (n *Noop) Debug(string, ...any) {}
func (n *Noop) Info(string, ...any)  {}
func (n *Noop) Warn(string, ...any)  {}
func (n *Noop) Error(string, ...any) {}
func (n *Noop) Fatal(string, ...any) {}

// With returns the same no-op logger.
func (n *Noop) With(...any) Interface { return n }
