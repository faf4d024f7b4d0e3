package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Component: ComponentApp, Format: FormatJSON, Output: buf})
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	return entry
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelWarn)

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}

	l.Warn("shown", "k", "v")
	entry := lastEntry(t, &buf)
	if entry["msg"] != "shown" || entry["k"] != "v" || entry[FieldComponent] != ComponentApp {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestWithComponentReplaces(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo).With(FieldRequestID, "req-9").WithComponent(ComponentHTTP)

	l.Info("inside")

	line := buf.String()
	if n := strings.Count(line, `"component"`); n != 1 {
		t.Fatalf("component appears %d times: %s", n, line)
	}
	entry := lastEntry(t, &buf)
	if entry[FieldComponent] != ComponentHTTP || entry[FieldRequestID] != "req-9" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if l.Component() != ComponentHTTP {
		t.Fatalf("Component() = %q", l.Component())
	}
}

func TestWithUser(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo)

	if l.WithUser("", "admin") != l {
		t.Fatal("anonymous user should not add attributes")
	}
	l.WithUser("alice", "admin").Info("hi")
	entry := lastEntry(t, &buf)
	if entry[FieldUser] != "alice" || entry[FieldRole] != "admin" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatText, "text": FormatText, "JSON": FormatJSON, " json ": FormatJSON}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestTextFormatToOutput(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: slog.LevelInfo, Component: ComponentWorker, Output: &buf}).Info("tick")
	if out := buf.String(); !strings.Contains(out, "component=worker") || !strings.Contains(out, "msg=tick") {
		t.Fatalf("unexpected text output: %s", out)
	}
}

func TestResolutionAccepted(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo)

	l.ResolutionAccepted(context.Background(), Resolution{
		User: "alice", DailySaleID: 42, Type: "safedrops", Rows: 2, TotalCents: 12550, Reference: "ref-1",
	})

	entry := lastEntry(t, &buf)
	if entry[FieldDailySaleID] != float64(42) || entry[FieldResolution] != "safedrops" {
		t.Fatalf("missing resolution fields: %v", entry)
	}
	if entry[FieldTotalCents] != float64(12550) || entry[FieldRows] != float64(2) {
		t.Fatalf("missing totals: %v", entry)
	}
	if entry[FieldUser] != "alice" || entry[FieldReference] != "ref-1" || entry[FieldOperation] != OpResolve {
		t.Fatalf("missing identity: %v", entry)
	}
}

func TestResolutionRejectedIsWarn(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo)

	l.ResolutionRejected(context.Background(), Resolution{User: "bob", DailySaleID: 7, Type: "cash_in_hand"}, errors.New("not balanced"))

	entry := lastEntry(t, &buf)
	if entry["level"] != "WARN" || entry[FieldError] != "not balanced" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestHTTPCompletedLevels(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{302, "INFO"},
		{404, "WARN"},
		{502, "ERROR"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		l := newBufferLogger(&buf, slog.LevelInfo)
		r := httptest.NewRequest("GET", "/pending?page=2", nil)

		l.HTTPStarted(context.Background(), r, "192.0.2.1")
		if buf.Len() != 0 {
			t.Fatalf("request start should log at debug: %s", buf.String())
		}
		l.HTTPCompleted(context.Background(), r, tc.status, 0, "192.0.2.1")

		entry := lastEntry(t, &buf)
		if entry["level"] != tc.level || entry[FieldStatusCode] != float64(tc.status) {
			t.Errorf("status %d: unexpected entry %v", tc.status, entry)
		}
		if entry[FieldSuccess] != (tc.status < 400) {
			t.Errorf("status %d: success = %v", tc.status, entry[FieldSuccess])
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo).With(FieldRequestID, "req-1")

	ctx := IntoContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("logger not stored on context")
	}
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Logger == nil {
		t.Fatal("expected fallback logger")
	}
	if l.Component() != "" {
		t.Fatalf("fallback should carry no component, got %q", l.Component())
	}
}

func TestErrAttr(t *testing.T) {
	if a := Err(nil); a.Value.String() != "" {
		t.Fatalf("nil error attr = %q", a.Value.String())
	}
	if a := Err(errors.New("disk full")); a.Key != FieldError || a.Value.String() != "disk full" {
		t.Fatalf("unexpected attr %v", a)
	}
}
