package logger

import (
	"fmt"
	"time"

	phlog "github.com/oarkflow/log"
)

// PhusluLogger writes through the package-level oarkflow/log logger.
type PhusluLogger struct{}

func NewPhusluLogger() *PhusluLogger { return &PhusluLogger{} }

func (p *PhusluLogger) Debug(msg string, keyvals ...any) { withFields(phlog.Debug(), keyvals).Msg(msg) }
func (p *PhusluLogger) Info(msg string, keyvals ...any)  { withFields(phlog.Info(), keyvals).Msg(msg) }
func (p *PhusluLogger) Warn(msg string, keyvals ...any)  { withFields(phlog.Warn(), keyvals).Msg(msg) }
func (p *PhusluLogger) Error(msg string, keyvals ...any) { withFields(phlog.Error(), keyvals).Msg(msg) }

func withFields(e *phlog.Entry, keyvals []any) *phlog.Entry {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		switch v := keyvals[i+1].(type) {
		case string:
			e = e.Str(key, v)
		case bool:
			e = e.Bool(key, v)
		case int:
			e = e.Int(key, v)
		case time.Duration:
			e = e.Str(key, v.String())
		case error:
			e = e.Str(key, v.Error())
		default:
			e = e.Any(key, v)
		}
	}
	return e
}
