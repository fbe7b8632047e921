package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.With("component", "session").WithGroup("req").Warn("http.request", "status", 404, "path", "/me", "note", "two words")

	line := buf.String()
	for _, want := range []string{
		"[WARN]",
		"http.request",
		"component=session",
		"req.status=404",
		"req.path=/me",
		`req.note="two words"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("colorless handler emitted ANSI codes: %q", line)
	}
}

func TestPrettyHandler_LevelFilterAndColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, true))

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %q", buf.String())
	}

	log.Error("boom", "status", 503)
	if !strings.Contains(buf.String(), ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("expected red level tag in %q", buf.String())
	}
	if !strings.Contains(buf.String(), ansiRed+"503"+ansiReset) {
		t.Fatalf("expected red status in %q", buf.String())
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":        `""`,
		"plain":   "plain",
		"a b":     `"a b"`,
		"k=v":     `"k=v"`,
		`say "x"`: `"say \"x\""`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", in, got, want)
		}
	}
}
