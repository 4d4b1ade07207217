package reviews

import (
	"context"
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between upstream dispatches.
const DefaultMinInterval = 100 * time.Millisecond

type limiterJob struct {
	run  func()
	done chan struct{}
}

// Limiter serializes upstream calls with a minimum inter-call spacing. A
// single worker drains a FIFO queue, so calls run in submission order and
// nothing is dropped. The queue is unbounded; call volume is a handful per
// page load in practice.
type Limiter struct {
	interval time.Duration

	mu     sync.Mutex
	queue  []limiterJob
	wake   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewLimiter starts the worker. Pass 0 for the default spacing.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	l := &Limiter{
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
	l.wg.Add(1)
	go l.worker()
	return l
}

// Do queues fn and blocks until it has run or ctx is cancelled. A
// cancelled wait does not remove the job; it still runs in order, and fn
// is expected to honor its own context.
func (l *Limiter) Do(ctx context.Context, fn func()) error {
	job := limiterJob{run: fn, done: make(chan struct{})}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return context.Canceled
	}
	l.queue = append(l.queue, job)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after the queue drains.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.wg.Wait()
}

func (l *Limiter) worker() {
	defer l.wg.Done()

	var lastDispatch time.Time
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			if l.closed {
				l.mu.Unlock()
				return
			}
			l.mu.Unlock()
			<-l.wake
			continue
		}
		job := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		if wait := l.interval - time.Since(lastDispatch); wait > 0 && !lastDispatch.IsZero() {
			time.Sleep(wait)
		}
		lastDispatch = time.Now()

		job.run()
		close(job.done)
	}
}
