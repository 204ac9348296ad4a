// Package loop provides the mutation context of a node: a single consumer
// that runs every task touching cache state one at a time, and a bounded
// pool of workers for blocking I/O.
//
// Tasks are posted with Post and run either by Run on a dedicated goroutine
// or by Tick on the caller's goroutine (tick-driven hosts and tests). Only
// one of the two may drive a given Loop. Workers are started with Go and
// hand results back with Post, so business logic never observes a cache
// entry being mutated concurrently.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Loop is the mutation context plus its worker pool.
type Loop struct {
	log  zerolog.Logger
	tick time.Duration
	sem  *semaphore.Weighted

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	workers sync.WaitGroup

	executing atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for recovered task panics.
func WithLogger(l zerolog.Logger) Option { return func(lp *Loop) { lp.log = l } }

// WithTick makes Run also drain on a fixed interval, mimicking a host that
// processes work once per tick instead of as soon as it is posted.
func WithTick(d time.Duration) Option { return func(lp *Loop) { lp.tick = d } }

// New returns a Loop with at most workers concurrent Go tasks. queue sizes
// the initial task buffer; the buffer grows as needed so Post never blocks.
func New(workers, queue int, opts ...Option) *Loop {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 64
	}
	l := &Loop{
		log:   log.With().Str("component", "loop").Logger(),
		sem:   semaphore.NewWeighted(int64(workers)),
		queue: make([]func(), 0, queue),
		wake:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Post enqueues fn onto the mutation context. It never blocks and is safe
// from any goroutine, including a task already running on the loop.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs fn on a worker once a slot is free. The call returns immediately.
func (l *Loop) Go(fn func()) {
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		if err := l.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer l.sem.Release(1)
		fn()
	}()
}

// Wait blocks until every worker started with Go has returned.
func (l *Loop) Wait() { l.workers.Wait() }

// Executing reports whether a task is currently running on the mutation
// context.
func (l *Loop) Executing() bool { return l.executing.Load() }

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Tick runs every task queued at the time of the call, plus any they post,
// on the caller's goroutine. It returns the number of tasks run.
func (l *Loop) Tick() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			l.run(fn)
			n++
		}
	}
}

// Run drives the loop until ctx is done, then drains what is left.
func (l *Loop) Run(ctx context.Context) error {
	var tc <-chan time.Time
	if l.tick > 0 {
		t := time.NewTicker(l.tick)
		defer t.Stop()
		tc = t.C
	}
	for {
		select {
		case <-ctx.Done():
			l.Tick()
			return nil
		case <-tc:
			l.Tick()
		case <-l.wake:
			if tc == nil {
				l.Tick()
			}
		}
	}
}

// Call posts fn and waits until it has run on the mutation context or ctx
// is done. It must not be called from a task running on the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run(fn func()) {
	l.executing.Store(true)
	defer l.executing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	fn()
}
