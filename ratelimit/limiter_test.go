package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		name      string
		perSecond int
		calls     int
		want      int
	}{
		{name: "unlimited", perSecond: 0, calls: 50, want: 50},
		{name: "negative is unlimited", perSecond: -3, calls: 5, want: 5},
		{name: "burst of two", perSecond: 2, calls: 3, want: 2},
		{name: "burst of five", perSecond: 5, calls: 8, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			got := 0
			for range tt.calls {
				if l.Allow("crm", tt.perSecond) {
					got++
				}
			}
			if got != tt.want {
				t.Errorf("allowed %d of %d calls, want %d", got, tt.calls, tt.want)
			}
		})
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("crm", 1) {
		t.Fatal("crm: first call denied")
	}
	if l.Allow("crm", 1) {
		t.Fatal("crm: second call allowed")
	}
	if !l.Allow("erp", 1) {
		t.Error("erp should have its own bucket")
	}
}

func TestBucketRefills(t *testing.T) {
	l := New()
	for range 10 {
		l.Allow("crm", 10)
	}
	if l.Allow("crm", 10) {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(200 * time.Millisecond)

	if !l.Allow("crm", 10) {
		t.Error("bucket should have refilled")
	}
}

func TestRateChangeRetunesBucket(t *testing.T) {
	l := New()
	l.Allow("crm", 1)

	b := l.bucket("crm", 4)
	if b.Burst() != 4 {
		t.Errorf("burst = %d, want 4", b.Burst())
	}
	if float64(b.Limit()) != 4 {
		t.Errorf("limit = %v, want 4", b.Limit())
	}
}

func TestWait(t *testing.T) {
	t.Run("deadline shorter than refill", func(t *testing.T) {
		l := New()
		l.Allow("crm", 1)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if err := l.Wait(ctx, "crm", 1); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("blocks until refill", func(t *testing.T) {
		l := New()
		for range 20 {
			l.Allow("crm", 20)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		start := time.Now()
		if err := l.Wait(ctx, "crm", 20); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("returned after %v without waiting", elapsed)
		}
	})

	t.Run("unlimited ignores cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := New().Wait(ctx, "crm", 0); err != nil {
			t.Errorf("Wait: %v", err)
		}
	})
}

func TestReset(t *testing.T) {
	l := New()
	l.Allow("crm", 1)
	l.Reset("crm")

	if !l.Allow("crm", 1) {
		t.Error("reset bucket should start full")
	}
}

func TestAllowConcurrent(t *testing.T) {
	l := New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("crm", 100) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed < 100 || allowed > 110 {
		t.Errorf("allowed %d calls, want about 100", allowed)
	}
}
