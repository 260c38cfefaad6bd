package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "pull page", "model", "todo")
	log.Info(ctx, "sweep done", "records", 3)
	log.Warn(ctx, "push retry", "id", "t1")
	log.Error(ctx, "corrupt table", "table", "todo__sync")

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"DEBUG", `msg="pull page"`, "model=todo"},
		{"INFO", `msg="sweep done"`, "records=3"},
		{"WARN", `msg="push retry"`, "id=t1"},
		{"ERROR", `msg="corrupt table"`, "table=todo__sync"},
	}

	for _, tc := range tests {
		if !strings.Contains(out, "level="+tc.level) {
			t.Fatalf("expected level=%s in output:\n%s", tc.level, out)
		}
		if !strings.Contains(out, tc.msg) {
			t.Fatalf("expected %s in output:\n%s", tc.msg, out)
		}
		if !strings.Contains(out, tc.attr) {
			t.Fatalf("expected attribute %s in output:\n%s", tc.attr, out)
		}
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "syncer", "model", "client").Info(context.Background(), "idle", "pending", 0)

	out := buf.String()
	for _, s := range []string{"level=INFO", "msg=idle", "module=syncer", "model=client", "pending=0"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output, got:\n%s", s, out)
		}
	}
}

func TestNop_DiscardsEverything(t *testing.T) {
	log := Nop()
	ctx := context.TODO()
	log.Error(ctx, "ignored")
	log.With("k", "v").Info(ctx, "ignored")
}
