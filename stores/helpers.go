package stores

import (
	"fmt"
	"time"

	"github.com/oarkflow/date"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

// scanTime converts a raw time column; drivers return time.Time, string or
// []byte depending on the column affinity. Unparseable values are zero.
func scanTime(raw any) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// scanOptionalTime is scanTime for nullable columns: NULL is the zero time
// and a value that does not parse is an error.
func scanOptionalTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		return parseFlexibleTime(v)
	case []byte:
		return parseFlexibleTime(string(v))
	}
	return time.Time{}, fmt.Errorf("unsupported time value %T", raw)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestamps are stored as RFC 3339 text so every driver reads them back
func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func sqlNullTimeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}
