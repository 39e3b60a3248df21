package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func drainCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitAndDrain(t *testing.T) {
	p := New(2, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		if !p.Submit(func() { count.Add(1) }) {
			t.Fatalf("submit %d rejected", i)
		}
	}

	p.Shutdown(drainCtx(t))

	if got := count.Load(); got != 5 {
		t.Fatalf("expected 5 tasks run, got %d", got)
	}
}

func TestSubmitAfterShutdownRejected(t *testing.T) {
	p := New(1, 1)
	p.Shutdown(drainCtx(t))

	if p.Submit(func() {}) {
		t.Fatal("expected submit after shutdown to be rejected")
	}
}

func TestQueueFullRejectsSubmit(t *testing.T) {
	p := New(1, 1)
	blocker := make(chan struct{})
	p.Submit(func() { <-blocker })

	time.Sleep(10 * time.Millisecond) // let the worker pick up the first task
	p.Submit(func() {})               // fills the queue (size 1)

	if p.Submit(func() {}) {
		t.Fatal("expected submit to a full queue to be rejected")
	}

	close(blocker)
	p.Shutdown(drainCtx(t))
}

func TestDrainAloneStopsAccepting(t *testing.T) {
	p := New(1, 10)
	p.Submit(func() {})

	p.Drain(drainCtx(t))

	if p.Submit(func() {}) {
		t.Fatal("expected submit after drain to be rejected")
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	p := New(1, 10)
	p.Submit(func() {})

	poolCtx := p.Context()
	if poolCtx.Err() != nil {
		t.Fatal("pool context cancelled before shutdown")
	}

	p.Shutdown(drainCtx(t))

	if poolCtx.Err() == nil {
		t.Fatal("pool context still live after shutdown")
	}
}

func TestDrainRespectsDeadline(t *testing.T) {
	p := New(1, 10)
	blocker := make(chan struct{})
	p.Submit(func() { <-blocker })

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Shutdown(ctx)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("expected drain to give up after ~100ms, took %v", elapsed)
	}

	close(blocker)
}

func TestSingleWorkerDrainFinishesQueue(t *testing.T) {
	p := New(1, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		p.Submit(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		})
	}

	p.Shutdown(drainCtx(t))

	if got := count.Load(); got != 5 {
		t.Fatalf("expected all queued tasks to finish, got %d", got)
	}
}

func TestWorkersOverlap(t *testing.T) {
	p := New(2, 4)
	gate := make(chan struct{})
	arrived := make(chan struct{}, 2)

	task := func() {
		arrived <- struct{}{}
		<-gate
	}
	p.Submit(task)
	p.Submit(task)

	for i := 0; i < 2; i++ {
		select {
		case <-arrived:
		case <-time.After(2 * time.Second):
			t.Fatal("expected both workers running at once")
		}
	}

	close(gate)
	p.Shutdown(drainCtx(t))
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	p := New(1, 10)
	var count atomic.Int32

	p.Submit(func() { panic("installer exploded") })
	p.Submit(func() { count.Add(1) })

	p.Shutdown(drainCtx(t))

	if got := count.Load(); got != 1 {
		t.Fatalf("expected task after panic to run, got %d", got)
	}
}
