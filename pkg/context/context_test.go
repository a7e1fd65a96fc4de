package context_test

import (
	"context"
	"strings"
	"testing"
	"time"

	pcontext "github.com/lambGirl/umi-tools/pkg/context"
)

func TestSessionID(t *testing.T) {
	ctx := context.Background()
	if got := pcontext.GetSessionID(ctx); got != "unknown-session" {
		t.Errorf("expected unknown-session, got %s", got)
	}

	ctx = pcontext.WithSessionID(ctx, "")
	if id := pcontext.GetSessionID(ctx); !strings.HasPrefix(id, "build_") {
		t.Errorf("expected generated session id, got %s", id)
	}

	ctx = pcontext.WithSessionID(context.Background(), "fixed")
	if id := pcontext.GetSessionID(ctx); id != "fixed" {
		t.Errorf("expected fixed, got %s", id)
	}
}

func TestNewSession(t *testing.T) {
	ctx := pcontext.NewSession(context.Background(), "build")

	if op := pcontext.GetOperation(ctx); op != "build" {
		t.Errorf("expected build operation, got %s", op)
	}
	if _, ok := pcontext.GetStartTime(ctx); !ok {
		t.Error("expected start time to be recorded")
	}

	// A nested session keeps the parent's ID
	nested := pcontext.NewSession(ctx, "watch")
	if pcontext.GetSessionID(nested) != pcontext.GetSessionID(ctx) {
		t.Error("expected nested session to keep the session id")
	}
}

func TestTracingFields(t *testing.T) {
	ctx := pcontext.WithStartTime(context.Background(), time.Now().Add(-time.Second))
	ctx = pcontext.WithPackage(ctx, "core")

	fields := pcontext.TracingFields(ctx)
	if fields["package"] != "core" {
		t.Errorf("expected package field, got %v", fields["package"])
	}
	if ms, ok := fields["duration_ms"].(int64); !ok || ms < 1000 {
		t.Errorf("expected duration_ms >= 1000, got %v", fields["duration_ms"])
	}

	bare := pcontext.TracingFields(context.Background())
	if _, ok := bare["package"]; ok {
		t.Error("did not expect package field without a package")
	}
	if _, ok := bare["duration_ms"]; ok {
		t.Error("did not expect duration without a start time")
	}
}
