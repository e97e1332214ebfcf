package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func newJSONLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, "test-svc", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.Service() != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.Service())
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "invalid-level")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("invalid level should fall back to info, got %q", buf.String())
	}
	l.Info("shown")
	if buf.Len() == 0 {
		t.Error("expected info line after falling back to info level")
	}
}

func TestInfoWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "debug")
	l.Info("check registered", Fields("check", "db", "attempt", 2))

	m := decodeLine(t, &buf)
	if m["message"] != "check registered" {
		t.Errorf("unexpected message %v", m["message"])
	}
	if m["check"] != "db" {
		t.Errorf("expected check=db, got %v", m["check"])
	}
	if m["service"] != "test-svc" {
		t.Errorf("expected service=test-svc, got %v", m["service"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info").WithComponent("health")
	l.Warn("degraded")

	m := decodeLine(t, &buf)
	if m[FieldComponent] != "health" {
		t.Errorf("expected component=health, got %v", m[FieldComponent])
	}
	if m["level"] != "warn" {
		t.Errorf("expected warn level, got %v", m["level"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf, "info").WithError(errors.New("boom")).Error("failed")

	m := decodeLine(t, &buf)
	if m["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", m["error"])
	}
}

func TestWithFieldsPreservesService(t *testing.T) {
	l := NewDefault("svc").WithFields(map[string]interface{}{"k": "v"})
	if l.Service() != "svc" {
		t.Errorf("service should be preserved, got %q", l.Service())
	}
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.WithContext(ctx).Info("traced")
	m := decodeLine(t, &buf)
	if m[FieldTraceID] != traceID.String() {
		t.Errorf("expected trace id, got %v", m[FieldTraceID])
	}

	if l.WithContext(context.Background()) != l {
		t.Error("expected same logger when the context carries no span")
	}
}

func TestNopDiscards(t *testing.T) {
	l := NewNop()
	l.Error("nothing should happen", Fields("k", "v"))
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	custom := NewNop()
	SetGlobalLogger(custom)
	if GetGlobalLogger() != custom {
		t.Error("expected custom global logger")
	}
	if OrGlobal(nil) != custom {
		t.Error("expected OrGlobal(nil) to return the global logger")
	}
	other := NewDefault("x")
	if OrGlobal(other) != other {
		t.Error("expected OrGlobal to keep a non-nil logger")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp default true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "debug", Format: "json"}, false},
		{"bad level", Config{Level: "loud", Format: "json"}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFieldsHelpers(t *testing.T) {
	f := Fields("a", 1, "b")
	if len(f) != 1 || f["a"] != 1 {
		t.Errorf("unexpected fields %v", f)
	}
	ef := ErrorFields("beacon", errors.New("x"))
	if ef[FieldComponent] != "beacon" || ef[FieldError] != "x" {
		t.Errorf("unexpected error fields %v", ef)
	}
	df := DurationFields("tick", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("unexpected duration fields %v", df)
	}
}
