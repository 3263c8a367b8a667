package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNopHandler_Enabled(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{LevelTrace, slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) != Nop() {
		t.Error("OrNop(nil) did not return the nop logger")
	}
	l := slog.Default()
	if OrNop(l) != l {
		t.Error("OrNop(l) did not return l")
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))
	Trace(l, "segment", "offset", 174)
	out := buf.String()
	if !strings.Contains(out, "segment") || !strings.Contains(out, "offset=174") {
		t.Errorf("trace output = %q", out)
	}

	buf.Reset()
	l = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	Trace(l, "hidden")
	if buf.Len() != 0 {
		t.Errorf("trace below handler level was written: %q", buf.String())
	}
}
