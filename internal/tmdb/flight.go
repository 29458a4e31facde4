package tmdb

import (
	"context"
	"sync"
)

// flight is the shared context of one coalesced request. It is canceled
// only when every caller waiting on it has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// flightContexts tracks the waiters of in-flight keys.
type flightContexts struct {
	mu      sync.Mutex
	flights map[string]*flight
}

// join registers ctx as a waiter on key. The flight context keeps the
// values of the first caller's ctx but none of its cancellation.
func (f *flightContexts) join(ctx context.Context, key string) *flight {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flights == nil {
		f.flights = make(map[string]*flight)
	}
	fl, ok := f.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: fctx, cancel: cancel}
		f.flights[key] = fl
	}
	fl.waiters++
	return fl
}

// leave drops one waiter. The last one out cancels the flight.
func (f *flightContexts) leave(key string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if f.flights[key] == fl {
		delete(f.flights, key)
	}
}

func (f *flightContexts) waiters(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fl, ok := f.flights[key]; ok {
		return fl.waiters
	}
	return 0
}
