package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestSLogLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSLogLogger(slog.New(slog.NewJSONHandler(&buf, nil)), "component", "permit")
	l.Warn("decision cache read failed", "error", errors.New("timeout"), "allowed", false, "elapsed", time.Second, "dangling")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["msg"] != "decision cache read failed" || rec["level"] != "WARN" {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec["component"] != "permit" || rec["error"] != "timeout" || rec["allowed"] != false {
		t.Fatalf("fields not rendered: %v", rec)
	}
	if _, ok := rec["dangling"]; ok {
		t.Fatalf("unpaired key must be dropped")
	}
}

func TestSLogLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSLogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	l.Debug("permission decision", "user", "u1")
	if buf.Len() != 0 {
		t.Fatalf("debug record written below level: %s", buf.String())
	}
}

func TestNullLogger(t *testing.T) {
	var l Logger = NewNullLogger()
	l.Error("ignored", "k", "v")
}
