// Package task runs preemptible background work where only the most recent
// input may publish a result.
package task

import (
	"context"
	"sync"
	"time"
)

// Latest runs at most one job at a time. Starting a new job cancels the
// previous one, and a superseded job's result is dropped even if it finishes.
// OnResult is called from the job goroutine and must not call Go or Stop.
type Latest[T any] struct {
	Delay    time.Duration
	OnResult func(T)

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// Go schedules fn to run after Delay, preempting any pending or running job
func (l *Latest[T]) Go(ctx context.Context, fn func(context.Context) T) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer cancel()

		if l.Delay > 0 {
			timer := time.NewTimer(l.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		result := fn(ctx)

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.stopped || gen != l.gen || ctx.Err() != nil {
			return
		}
		if l.OnResult != nil {
			l.OnResult(result)
		}
	}()
}

// Cancel drops the current job without stopping the runner
func (l *Latest[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Stop cancels the current job and refuses new ones
func (l *Latest[T]) Stop() {
	l.mu.Lock()
	l.stopped = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()
}

// Wait blocks until every started job goroutine has returned
func (l *Latest[T]) Wait() {
	l.wg.Wait()
}
