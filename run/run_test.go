package run_test

import (
	"testing"

	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/run"
)

func TestLifecycle(t *testing.T) {
	r := run.New(id.NewRouteID(), map[string]any{"id": 1}, "corr-1", "")

	if r.Status != run.StatusRunning || r.Attempts != 0 || r.FinishedAt != nil {
		t.Fatalf("new run = %+v", r)
	}
	if r.ID.Prefix() != id.PrefixRun {
		t.Errorf("prefix = %q", r.ID.Prefix())
	}

	r.Succeed(201, map[string]any{"ok": true}, 2)

	if r.Status != run.StatusSucceeded || !r.Status.Terminal() {
		t.Errorf("status = %s", r.Status)
	}
	if r.Attempts != 2 || r.ResponseStatus != 201 || r.FinishedAt == nil {
		t.Errorf("run = %+v", r)
	}
	if r.DurationMs < 0 {
		t.Errorf("DurationMs = %d", r.DurationMs)
	}
}

func TestAttemptsNeverDecrease(t *testing.T) {
	r := run.New(id.NewRouteID(), nil, "c", "")
	r.Attempts = 3

	r.Fail("HTTP 500", 0)

	if r.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", r.Attempts)
	}
	if r.Status != run.StatusFailed || r.Error != "HTTP 500" {
		t.Errorf("run = %+v", r)
	}
}
