package logger

import "PastryDHT/internal/domain"

// Field is one structured key:value pair attached to a log entry.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal logging interface the internal packages depend
// on. Concrete implementations live outside this package; components
// default to NopLogger unless one is injected.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F is a helper for creating a Field concisely.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode serializes a domain.Node into a readable structured field.
func FNode(key string, n domain.Node) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"id":   uint32(n.ID),
			"addr": n.Addr(),
		},
	}
}

// FResource serializes a domain.Resource into a structured field.
func FResource(key string, r domain.Resource) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"key":     r.RawKey,
			"keyHash": uint32(r.Key),
			"value":   r.Value,
		},
	}
}

// ----------------------------------------------------------------
// NopLogger is a Logger implementation that does nothing.
type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
