package logger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SLogLogger writes through a slog.Logger.
type SLogLogger struct {
	l *slog.Logger
}

// NewSLogLogger wraps l; a nil l uses slog.Default. keyvals are attached to
// every record, e.g. "component", "permit".
func NewSLogLogger(l *slog.Logger, keyvals ...any) *SLogLogger {
	if l == nil {
		l = slog.Default()
	}
	if bound := attrs(keyvals); len(bound) > 0 {
		args := make([]any, len(bound))
		for i, a := range bound {
			args[i] = a
		}
		l = l.With(args...)
	}
	return &SLogLogger{l: l}
}

func (s *SLogLogger) Debug(msg string, keyvals ...any) { s.log(slog.LevelDebug, msg, keyvals) }
func (s *SLogLogger) Info(msg string, keyvals ...any)  { s.log(slog.LevelInfo, msg, keyvals) }
func (s *SLogLogger) Warn(msg string, keyvals ...any)  { s.log(slog.LevelWarn, msg, keyvals) }
func (s *SLogLogger) Error(msg string, keyvals ...any) { s.log(slog.LevelError, msg, keyvals) }

func (s *SLogLogger) log(level slog.Level, msg string, keyvals []any) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.LogAttrs(ctx, level, msg, attrs(keyvals)...)
}

// attrs pairs keyvals; a trailing key without value is dropped
func attrs(keyvals []any) []slog.Attr {
	out := make([]slog.Attr, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		switch v := keyvals[i+1].(type) {
		case string:
			out = append(out, slog.String(key, v))
		case bool:
			out = append(out, slog.Bool(key, v))
		case int:
			out = append(out, slog.Int(key, v))
		case time.Duration:
			out = append(out, slog.Duration(key, v))
		case error:
			out = append(out, slog.String(key, v.Error()))
		default:
			out = append(out, slog.Any(key, v))
		}
	}
	return out
}
