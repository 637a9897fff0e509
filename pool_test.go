package conduit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/conduit"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := conduit.NewPool(2, discardLogger())

	var (
		running, peak atomic.Int32
		done          atomic.Int32
	)
	for range 6 {
		err := p.Submit(func(context.Context) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			done.Add(1)
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := p.Stop(ctx()); err != nil {
		t.Fatal(err)
	}
	if done.Load() != 6 {
		t.Errorf("completed = %d, want 6", done.Load())
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}

	if err := p.Submit(func(context.Context) {}); !errors.Is(err, conduit.ErrPoolStopped) {
		t.Errorf("Submit after Stop err = %v", err)
	}
}

func TestPoolStopTimeoutCancelsJobs(t *testing.T) {
	p := conduit.NewPool(1, discardLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	cancelled := make(chan struct{})
	if err := p.Submit(func(ctx context.Context) {
		wg.Done()
		<-ctx.Done()
		close(cancelled)
	}); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	stopCtx, cancel := context.WithTimeout(ctx(), 20*time.Millisecond)
	defer cancel()

	if err := p.Stop(stopCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop err = %v, want DeadlineExceeded", err)
	}
	select {
	case <-cancelled:
	default:
		t.Fatal("job context was not cancelled")
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	p := conduit.NewPool(1, discardLogger())

	if err := p.Submit(func(context.Context) { panic("boom") }); err != nil {
		t.Fatal(err)
	}

	var ran atomic.Bool
	if err := p.Submit(func(context.Context) { ran.Store(true) }); err != nil {
		t.Fatal(err)
	}

	if err := p.Stop(ctx()); err != nil {
		t.Fatal(err)
	}
	if !ran.Load() {
		t.Error("job after a panic did not run")
	}
}

func TestPoolStartRebindsContext(t *testing.T) {
	p := conduit.NewPool(1, discardLogger())

	parent, cancel := context.WithCancel(ctx())
	p.Start(parent)
	cancel()

	got := make(chan error, 1)
	if err := p.Submit(func(ctx context.Context) { got <- ctx.Err() }); err != nil {
		t.Fatal(err)
	}
	if err := <-got; !errors.Is(err, context.Canceled) {
		t.Errorf("job ctx err = %v, want Canceled", err)
	}
	_ = p.Stop(ctx())
}
