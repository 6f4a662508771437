package console_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/internal/logging/console"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
)

func TestConsoleLogger_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 3, 14, 15, 9, 26, 535897000, time.UTC)

	minLevel := console.LevelDebug
	provider := console.NewProvider(console.Options{
		Writer:   &buf,
		TimeFunc: func() time.Time { return now },
		MinLevel: &minLevel,
	})

	fielded, ok := provider.GetLogger("statusfor.evaluator").(interfaces.FieldsLogger)
	if !ok {
		t.Fatal("expected console logger to bind fields")
	}
	logger := fielded.WithFields(map[string]any{"module": "statusfor.evaluator"})
	ctx := logging.ContextWithFields(context.Background(), map[string]any{
		"correlation_id": "req-1234",
	})
	logger = logger.WithContext(ctx)

	entityID := uuid.MustParse("8a51a9b1-2d30-4b2c-8ecd-2c0b87dfa999")
	logger.Info("status.activated",
		"entity_id", entityID,
		"archived_at", time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC),
	)

	got := strings.TrimSpace(buf.String())
	want := "time=2024-03-14T15:09:26.535Z level=INFO msg=status.activated logger=statusfor.evaluator module=statusfor.evaluator correlation_id=req-1234 entity_id=8a51a9b1-2d30-4b2c-8ecd-2c0b87dfa999 archived_at=2024-03-15T08:00:00.000Z"
	if got != want {
		t.Fatalf("unexpected log entry\nwant: %s\ngot:  %s", want, got)
	}
}

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	minLevel := console.LevelInfo
	provider := console.NewProvider(console.Options{
		Writer:   &buf,
		TimeFunc: time.Now,
		MinLevel: &minLevel,
	})

	logger := provider.GetLogger("statusfor.test")
	logger.Debug("ignored.debug", "status", "archived")
	logger.Info("included.info", "status", "archived")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected single log line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "included.info") {
		t.Fatalf("expected info log to be written, got %s", lines[0])
	}
	if strings.Contains(lines[0], "ignored.debug") {
		t.Fatalf("unexpected debug log present: %s", lines[0])
	}
}

func TestConsoleLogger_NamesTraceAndFatal(t *testing.T) {
	var buf bytes.Buffer
	minLevel := console.LevelTrace
	provider := console.NewProvider(console.Options{Writer: &buf, MinLevel: &minLevel})

	logger := provider.GetLogger("statusfor.test")
	logger.Trace("status.lookup")
	logger.Fatal("status.broken")

	out := buf.String()
	if !strings.Contains(out, "level=TRACE msg=status.lookup") || !strings.Contains(out, "level=FATAL msg=status.broken") {
		t.Fatalf("unexpected level names:\n%s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]console.Level{
		"trace":   console.LevelTrace,
		" DEBUG ": console.LevelDebug,
		"info":    console.LevelInfo,
		"warning": console.LevelWarn,
		"error":   console.LevelError,
		"fatal":   console.LevelFatal,
	}
	for name, want := range cases {
		got, ok := console.ParseLevel(name)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", name, got, ok, want)
		}
	}
	if _, ok := console.ParseLevel("loud"); ok {
		t.Fatal("expected unknown level to be rejected")
	}
}
