package catalog

// Logger is the structured logger the catalog components report through.
// Arguments are slog-style alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger drops everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Progress receives a notification after each file is processed.
type Progress interface {
	FileDone(path string, bytes int64)
	Finish()
}

// NopProgress ignores progress notifications.
type NopProgress struct{}

func (NopProgress) FileDone(string, int64) {}
func (NopProgress) Finish()                {}
