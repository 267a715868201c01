package event

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
)

// ErrUnrecoverable marks handler errors that no retry can fix.
var ErrUnrecoverable = errors.New("unrecoverable ingested file event")

type Handler interface {
	Handle(ctx context.Context, event entity.IngestedEvent) error
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
}

// IngestConsumer hands ingested-file events to a handler with bounded,
// exponentially spaced retries.
type IngestConsumer struct {
	bus         *Bus
	handler     Handler
	workers     int
	maxRetries  int
	baseBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestConsumer(bus *Bus, handler Handler, cfg ConsumerConfig) *IngestConsumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	return &IngestConsumer{
		bus:         bus,
		handler:     handler,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}
}

// Start launches the workers. Handlers and retry waits run under a context
// derived from ctx; canceling ctx abandons pending retries.
func (c *IngestConsumer) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Stop closes the bus and waits for queued events to drain. When ctx ends
// first, in-flight handlers and retry waits are canceled and ctx.Err is
// returned.
func (c *IngestConsumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}
	if c.cancel == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		return ctx.Err()
	}
}

func (c *IngestConsumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.processEvent(event)
	}
}

func (c *IngestConsumer) processEvent(event entity.IngestedEvent) {
	if c.handler == nil {
		return
	}

	ctx := c.ctx
	backoff := c.baseBackoff
	for attempt := 1; ; attempt++ {
		err := c.handler.Handle(ctx, event)
		if err == nil {
			return
		}

		if errors.Is(err, ErrUnrecoverable) || attempt > c.maxRetries {
			slog.ErrorContext(ctx, "failed to handle ingested file",
				"event_id", event.EventID, "ingest_id", event.File.ID, "attempts", attempt, "error", err)
			return
		}

		if !sleepBackoff(ctx, backoff) {
			slog.WarnContext(ctx, "retry of ingested file abandoned",
				"event_id", event.EventID, "ingest_id", event.File.ID, "attempts", attempt, "because", ctx.Err())
			return
		}
		backoff *= 2
	}
}

// sleepBackoff reports false when ctx ends before d elapses.
func sleepBackoff(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// StoredFileCheck confirms the announced file is on disk at the size that was
// written, then records it as awaiting processing. A same-name upload that
// replaced the file mid-check shows up as a size mismatch and is retried.
type StoredFileCheck struct{}

func (StoredFileCheck) Handle(ctx context.Context, event entity.IngestedEvent) error {
	if event.File.Path == "" {
		return fmt.Errorf("%w: event %q has no file path", ErrUnrecoverable, event.EventID)
	}

	info, err := os.Stat(event.File.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrUnrecoverable, event.File.Path, err)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", event.File.Path, err)
	}
	if info.Size() != event.File.Size {
		return fmt.Errorf("%s holds %d bytes, %d announced", event.File.Path, info.Size(), event.File.Size)
	}

	slog.InfoContext(ctx, "ingested file awaiting processing",
		"event_id", event.EventID,
		"ingest_id", event.File.ID,
		"file", event.File.Name,
		"bytes", event.File.Size,
	)
	return nil
}
