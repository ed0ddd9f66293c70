package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewStdoutProviderWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewStdoutProvider(&buf)
	if err != nil {
		t.Fatalf("NewStdoutProvider: %v", err)
	}

	var hook StageHook
	_, end := hook.Start(context.Background(), 0, false)
	end()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if !strings.Contains(buf.String(), "pipeline.resolve_users") {
		t.Errorf("expected exported span name in output, got:\n%s", buf.String())
	}
}

func TestStageHookCachedStillProducesSpan(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewStdoutProvider(&buf)
	if err != nil {
		t.Fatalf("NewStdoutProvider: %v", err)
	}

	var hook StageHook
	_, end := hook.Start(context.Background(), 7, true)
	end()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if !strings.Contains(buf.String(), "pipeline.rank") {
		t.Errorf("expected a span for stage 7, got:\n%s", buf.String())
	}
}
