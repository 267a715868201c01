package event

import (
	"context"
	"errors"
	"sync"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
	ErrBusFull   = errors.New("event bus is full")
)

// Bus queues ingested-file events for the consumer in memory. Events are
// advisory: a full queue rejects new ones instead of holding up the caller.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	ch     chan entity.IngestedEvent
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}

	return &Bus{
		ch: make(chan entity.IngestedEvent, buffer),
	}
}

// Publish enqueues event without waiting. It fails with ErrBusFull when the
// queue is at capacity and with ctx.Err once ctx is done.
func (b *Bus) Publish(ctx context.Context, event entity.IngestedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.ch <- event:
		return nil
	default:
		return ErrBusFull
	}
}

func (b *Bus) Subscribe() <-chan entity.IngestedEvent {
	return b.ch
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.ch)
}
