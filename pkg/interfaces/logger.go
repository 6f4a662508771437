package interfaces

import "context"

// Logger is the leveled logger the status runtime writes to. Arguments are
// alternating key/value pairs. go-logger's glog.Logger satisfies it.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// LoggerProvider returns the logger for a module name such as
// "statusfor.evaluator".
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// FieldsLogger is implemented by loggers that can bind structured fields.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}
