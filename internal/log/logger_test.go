package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentLedger, Handler: slog.NewTextHandler(&buf, nil)})
	l.Info("recorded", FieldAmountCents, 1200)

	out := buf.String()
	if !strings.Contains(out, "component=ledger") {
		t.Fatalf("expected component field, got %q", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("component field should appear once, got %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentNotify).Info("x")
	if !strings.Contains(buf.String(), "component=notify") || strings.Contains(buf.String(), "component=ledger") {
		t.Fatalf("WithComponent should replace component, got %q", buf.String())
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewTextHandler(&buf, nil)})
	l.LogError(context.Background(), "commit failed", errors.New("boom"), OpCommit, NewFields().WithAccount("a1"))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=boom", "operation=commit", "account_id=a1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
