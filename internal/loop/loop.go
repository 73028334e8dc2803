// Package loop provides the single-goroutine event loop each zone runs on.
// All engine state is mutated from inside the loop, so timers, decode
// results and playback events are funnelled into it with Post.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending callback armed with AfterFunc.
type Timer interface {
	// Stop cancels the callback. After Stop returns on the loop goroutine
	// the callback never runs, even if it was already queued.
	Stop() bool
}

// Scheduler is the cooperative runtime the engine and prober run on.
// Post may be called from any goroutine; AfterFunc and Now are meant to be
// called from the loop itself.
type Scheduler interface {
	Post(fn func())
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

const queueSize = 256

// Loop is the production Scheduler: one goroutine drains a queue of
// callbacks in order.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// New creates a loop. Nothing runs until Run is called.
func New() *Loop {
	return &Loop{
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Post queues fn to run on the loop. Calls after the loop has stopped are
// dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
	case l.queue <- fn:
	}
}

// Call runs fn on the loop and waits for it to finish, or for ctx to end.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		fn()
		close(finished)
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time { return time.Now() }

type loopTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (lt *loopTimer) Stop() bool {
	already := lt.stopped.Swap(true)
	lt.t.Stop()
	return !already
}

// AfterFunc arms fn to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return lt
}

// Run drains the queue until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}
