// Package poller keeps cosmetic snapshots (balances, pool reserves, order
// book, rates) fresh. Fetch failures are logged and replaced by placeholder
// data; they never reach the user.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stellar-swap/pkg/metrics"
)

// Info describes the current snapshot
type Info struct {
	Placeholder bool      `json:"placeholder"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Poller fetches a snapshot every Interval and on Trigger, replacing the
// previous one wholesale. A zero Interval polls only on Trigger.
type Poller[T any] struct {
	Name        string
	Interval    time.Duration
	Fetch       func(ctx context.Context) (T, error)
	Empty       func(T) bool
	Placeholder func() T
	OnUpdate    func(snapshot T, placeholder bool)
	Log         zerolog.Logger

	mu       sync.RWMutex
	snapshot T
	info     Info
	gen      uint64
	cancel   context.CancelFunc
	trigger  chan struct{}
	initOnce sync.Once
}

func (p *Poller[T]) init() {
	p.initOnce.Do(func() {
		p.trigger = make(chan struct{}, 1)
		if p.Placeholder != nil {
			p.snapshot = p.Placeholder()
			p.info = Info{Placeholder: true}
		}
	})
}

// Snapshot returns the current snapshot
func (p *Poller[T]) Snapshot() (T, Info) {
	p.init()
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot, p.info
}

// Trigger requests an immediate refresh. A fetch already in flight is
// cancelled and its result discarded.
func (p *Poller[T]) Trigger() {
	p.init()
	p.mu.Lock()
	p.gen++
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done. The first fetch happens immediately.
func (p *Poller[T]) Run(ctx context.Context) {
	p.init()
	var tick <-chan time.Time
	if p.Interval > 0 {
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-p.trigger:
		}
		p.Refresh(ctx)
	}
}

// Refresh fetches once and applies the result unless a Trigger superseded it
func (p *Poller[T]) Refresh(ctx context.Context) (T, Info) {
	p.init()
	p.mu.Lock()
	gen := p.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	snapshot, err := p.Fetch(fetchCtx)
	placeholder := false
	switch {
	case err != nil:
		if ctx.Err() == nil && fetchCtx.Err() == nil {
			p.Log.Warn().Err(err).Str("poller", p.Name).Msg("fetch failed, using placeholder")
			metrics.PollFailures.WithLabelValues(p.Name).Inc()
		}
		placeholder = true
	case p.Empty != nil && p.Empty(snapshot):
		p.Log.Debug().Str("poller", p.Name).Msg("empty result, using placeholder")
		metrics.PollFailures.WithLabelValues(p.Name).Inc()
		placeholder = true
	}
	if placeholder {
		if p.Placeholder != nil {
			snapshot = p.Placeholder()
		} else {
			var zero T
			snapshot = zero
		}
	}

	p.mu.Lock()
	if gen != p.gen || ctx.Err() != nil {
		current, info := p.snapshot, p.info
		p.mu.Unlock()
		return current, info
	}
	p.snapshot = snapshot
	p.info = Info{Placeholder: placeholder, UpdatedAt: time.Now()}
	info := p.info
	p.mu.Unlock()

	if p.OnUpdate != nil {
		p.OnUpdate(snapshot, placeholder)
	}
	return snapshot, info
}

// TriggerOn calls Trigger for every value received on changes until ctx is
// done or changes is closed
func TriggerOn[V any](ctx context.Context, changes <-chan V, trigger func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			trigger()
		}
	}
}
