// Package gate holds a value that becomes available asynchronously.
//
// A Gate starts Opening and moves exactly once to Ready (with a value) or to
// Failed (with the open error). Callers that ask for the value while the gate
// is Opening wait for the transition instead of failing; once Failed, every
// waiter and every later caller gets ErrFailed immediately.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrFailed is wrapped by errors returned from a failed gate.
var ErrFailed = errors.New("gate: open failed")

// ErrOpening is returned by TryGet while the gate has not settled.
var ErrOpening = errors.New("gate: still opening")

// State of a Gate.
type State int

const (
	Opening State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gate is a one-shot future for a value of type T.
type Gate[T any] struct {
	mu    sync.Mutex
	state State
	val   T
	err   error
	done  chan struct{}
}

// New returns a gate in the Opening state.
func New[T any]() *Gate[T] {
	return &Gate[T]{done: make(chan struct{})}
}

// Open runs open in its own goroutine and settles the gate with its result.
func (g *Gate[T]) Open(ctx context.Context, open func(context.Context) (T, error)) {
	go func() {
		v, err := open(ctx)
		if err != nil {
			g.Reject(err)
			return
		}
		g.Resolve(v)
	}()
}

// Resolve moves the gate to Ready. It reports false if the gate had already settled.
func (g *Gate[T]) Resolve(v T) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Opening {
		return false
	}
	g.state, g.val = Ready, v
	close(g.done)
	return true
}

// Reject moves the gate to Failed. It reports false if the gate had already settled.
func (g *Gate[T]) Reject(err error) bool {
	if err == nil {
		err = errors.New("unknown error")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Opening {
		return false
	}
	g.state, g.err = Failed, fmt.Errorf("%w: %w", ErrFailed, err)
	close(g.done)
	return true
}

// State returns the current state.
func (g *Gate[T]) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Done is closed when the gate settles.
func (g *Gate[T]) Done() <-chan struct{} { return g.done }

// TryGet returns the value without waiting.
func (g *Gate[T]) TryGet() (T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case Ready:
		return g.val, nil
	case Failed:
		var zero T
		return zero, g.err
	default:
		var zero T
		return zero, ErrOpening
	}
}

// Wait blocks until the gate settles or ctx is done.
func (g *Gate[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-g.done:
		return g.TryGet()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
