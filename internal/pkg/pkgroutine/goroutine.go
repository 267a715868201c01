package pkgroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 10

// ErrPanicked marks the error recorded for a task that panicked.
var ErrPanicked = errors.New("goroutine panicked")

// Manager runs named background tasks with a concurrency limit and keeps
// their errors until Wait.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	wg      sync.WaitGroup
	sema    chan struct{}
	running int
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = DefaultMaxGoroutine
	}

	return &Manager{
		sema: make(chan struct{}, maxGoroutine),
	}
}

// Go runs f in its own goroutine when a slot is free and reports whether it
// did. It never waits for capacity: a full manager, or a ctx that is already
// done, returns false and f never runs. Errors and panics are recorded under
// name.
func (g *Manager) Go(ctx context.Context, name string, f func(ctx context.Context) error) bool {
	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "goroutine canceled before start", "task", name, "because", err)
		return false
	}

	select {
	case g.sema <- struct{}{}:
	default:
		return false
	}

	g.spawn(ctx, name, f)
	return true
}

// spawn runs f holding a slot already taken from sema.
func (g *Manager) spawn(ctx context.Context, name string, f func(ctx context.Context) error) {
	g.mu.Lock()
	g.running++
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			<-g.sema

			if rvr := recover(); rvr != nil {
				slog.ErrorContext(ctx, "panic occurred in goroutine", "task", name, "because", rvr, "stack", string(debug.Stack()))
				g.record(fmt.Errorf("%s: %w: %v", name, ErrPanicked, rvr))
			}

			g.mu.Lock()
			g.running--
			g.mu.Unlock()
		}()

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "goroutine canceled", "task", name, "because", err)
			return
		}

		if err := f(ctx); err != nil {
			g.record(fmt.Errorf("%s: %w", name, err))
		}
	}()
}

// Running reports how many tasks have started and not yet returned.
func (g *Manager) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.running
}

// Wait blocks until all scheduled goroutines finish and returns the recorded
// errors joined together.
func (g *Manager) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}

func (g *Manager) record(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}
