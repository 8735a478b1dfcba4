package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"coldcall_crm/metrics"
)

func TestQueueProcessesJobs(t *testing.T) {
	m := metrics.New()
	q := New(4, 2, time.Second, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	var ran int32
	done := make(chan struct{})
	ok := q.Enqueue(Job{
		ID:     "j1",
		Source: "test",
		Work: func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
		OnFinish: func(err error) {
			if err != nil {
				t.Errorf("unexpected err: %v", err)
			}
			close(done)
		},
	})
	if !ok {
		t.Fatal("enqueue failed")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("work not executed")
	}
	if m.Snapshot().ProcessedJobs != 1 {
		t.Fatalf("processed = %d", m.Snapshot().ProcessedJobs)
	}
}

func TestQueueCountsFailures(t *testing.T) {
	m := metrics.New()
	q := New(4, 1, time.Second, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	done := make(chan struct{})
	q.Enqueue(Job{
		ID:       "fail",
		Source:   "test",
		Work:     func(context.Context) error { return errors.New("boom") },
		OnFinish: func(error) { close(done) },
	})
	<-done

	deadline := time.After(2 * time.Second)
	for m.Snapshot().FailedJobs != 1 {
		select {
		case <-deadline:
			t.Fatalf("failed jobs = %d", m.Snapshot().FailedJobs)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := New(1, 1, time.Second, nil)
	if q.Enqueue(Job{ID: "early", Work: func(context.Context) error { return nil }}) {
		t.Fatal("enqueue should fail before Start")
	}
	if q.Healthy() {
		t.Fatal("queue should not report healthy before Start")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	q := New(1, 1, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	block := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue(Job{ID: "blocker", Work: func(context.Context) error {
		close(started)
		<-block
		return nil
	}})
	<-started
	// fill the buffer while the worker is held
	if !q.Enqueue(Job{ID: "buffered", Work: func(context.Context) error { return nil }}) {
		t.Fatal("buffered job should fit once the worker holds the blocker")
	}

	enqueued, droppedFull := q.EnqueueWithRetry(ctx, Job{ID: "extra", Work: func(context.Context) error { return nil }}, 100*time.Millisecond, 20*time.Millisecond)
	if enqueued || !droppedFull {
		t.Fatalf("expected a full-queue drop, got enqueued=%v dropped=%v", enqueued, droppedFull)
	}
	close(block)
}

func TestEnqueueAfterStopIsRefused(t *testing.T) {
	q := New(2, 1, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	q.Stop(stopCtx)

	if q.Enqueue(Job{ID: "late", Work: func(context.Context) error { return nil }}) {
		t.Fatal("enqueue must fail once the queue is stopped")
	}
	if q.Healthy() {
		t.Fatal("a stopped queue should not report healthy")
	}
}

func TestStopDrainsWorkers(t *testing.T) {
	q := New(4, 2, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	done := make(chan struct{})
	q.Enqueue(Job{ID: "last", Work: func(context.Context) error { return nil }, OnFinish: func(error) { close(done) }})
	<-done

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	q.Stop(stopCtx)

	if got := q.Stats(); got.Processed != 1 {
		t.Fatalf("processed = %d", got.Processed)
	}
}
