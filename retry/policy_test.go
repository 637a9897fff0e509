package retry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/conduit/retry"
)

func TestBackoffSeconds(t *testing.T) {
	p := retry.Policy{MaxAttempts: 5, BaseDelaySec: 0.25, MaxDelaySec: 2.0}
	want := []float64{0.25, 0.5, 1.0, 2.0, 2.0}

	for i, w := range want {
		if got := retry.BackoffSeconds(p, i+1); got != w {
			t.Errorf("attempt %d: backoff = %v, want %v", i+1, got, w)
		}
	}

	if got := p.Backoff(2); got != 500*time.Millisecond {
		t.Errorf("Backoff(2) = %v, want 500ms", got)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		if got := retry.ShouldRetry(tt.status); got != tt.want {
			t.Errorf("ShouldRetry(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := retry.Policy{MaxAttempts: 0, BaseDelaySec: -1, MaxDelaySec: 0}.Normalize()
	want := retry.Policy{MaxAttempts: 1, BaseDelaySec: 0.01, MaxDelaySec: 0.01}
	if got != want {
		t.Fatalf("Normalize() = %+v, want %+v", got, want)
	}

	if d := retry.DefaultPolicy(); d.Normalize() != d {
		t.Fatalf("default policy changed by Normalize: %+v", d.Normalize())
	}
}

func TestDecide(t *testing.T) {
	errConn := errors.New("connection refused")

	tests := []struct {
		name    string
		status  int
		err     error
		attempt int
		want    retry.Decision
	}{
		{"200 → Delivered", 200, nil, 1, retry.Delivered},
		{"302 → Delivered", 302, nil, 1, retry.Delivered},
		{"404 → Exhausted", 404, nil, 1, retry.Exhausted},
		{"429 → Retry", 429, nil, 1, retry.Retry},
		{"500 → Retry", 500, nil, 2, retry.Retry},
		{"500 on last attempt → Exhausted", 500, nil, 3, retry.Exhausted},
		{"transport error → Retry", 0, errConn, 1, retry.Retry},
		{"transport error on last attempt → Exhausted", 0, errConn, 3, retry.Exhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.Decide(tt.status, tt.err, tt.attempt, 3); got != tt.want {
				t.Fatalf("Decide = %v, want %v", got, tt.want)
			}
		})
	}
}
