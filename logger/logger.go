package logger

// Logger is the structured logging interface used by the resolver.
// keyvals alternate key and value.
type Logger interface {
	Error(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates the correlation ID of an explain call. It must be
// safe for concurrent use.
type TraceIDFunc func() string

type nullLogger struct{}

// NewNullLogger returns a Logger that drops every record.
func NewNullLogger() Logger { return nullLogger{} }

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}
