package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
	"github.com/shandysiswandi/godataset/internal/dataset/store"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgerror"
	"github.com/shandysiswandi/godataset/internal/pkg/pkguid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/shandysiswandi/godataset/internal/dataset/usecase"

type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (entity.StoredFile, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.IngestedEvent) error
}

// Runner starts background work without waiting for capacity. Go reports
// false when f was not started.
type Runner interface {
	Go(ctx context.Context, name string, f func(ctx context.Context) error) bool
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Store         Store
	Events        EventPublisher
	Runner        Runner
	Clock         Clock
	IngestID      pkguid.NumberID
	EventID       pkguid.StringID
	ResultFileURL string
	RootCtx       context.Context
	Tracer        trace.TracerProvider
}

type Usecase struct {
	store     Store
	events    EventPublisher
	runner    Runner
	clock     Clock
	ingestID  pkguid.NumberID
	eventID   pkguid.StringID
	resultURL string
	rootCtx   context.Context
	tracer    trace.Tracer
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	tp := dep.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	resultURL := dep.ResultFileURL
	if resultURL == "" {
		resultURL = entity.DefaultResultFileURL
	}

	return &Usecase{
		store:     dep.Store,
		events:    dep.Events,
		runner:    dep.Runner,
		clock:     clock,
		ingestID:  dep.IngestID,
		eventID:   dep.EventID,
		resultURL: resultURL,
		rootCtx:   root,
		tracer:    tp.Tracer(tracerName),
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Ingest writes the uploaded bytes unmodified and acknowledges them with the
// placeholder result link. The acknowledgment never depends on the content.
func (u *Usecase) Ingest(ctx context.Context, in IngestInput, r io.Reader) (entity.IngestResult, error) {
	if u.store == nil {
		return entity.IngestResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	ctx, span := u.tracer.Start(ctx, "dataset.Ingest",
		trace.WithAttributes(attribute.String("dataset.file_name", in.FileName)))
	defer span.End()

	var id int64
	if u.ingestID != nil {
		id = u.ingestID.Generate()
	}

	slog.InfoContext(ctx, "receiving upload", "ingest_id", id, "file", in.FileName, "status", entity.IngestStatusReceiving)

	file, err := u.store.Save(ctx, in.FileName, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		slog.ErrorContext(ctx, "failed to write upload",
			"ingest_id", id, "file", in.FileName, "status", entity.IngestStatusFailed, "error", err)
		return entity.IngestResult{}, mapStoreErr(err)
	}

	file.ID = id
	file.ReceivedAt = u.clock.Now().Unix()
	span.SetAttributes(attribute.Int64("dataset.bytes", file.Size))

	slog.InfoContext(ctx, "upload written",
		"ingest_id", id, "file", file.Name, "path", file.Path, "bytes", file.Size, "status", entity.IngestStatusWritten)

	u.announce(ctx, file)

	return entity.IngestResult{
		Message:       ingestMessage,
		ResultFileURL: u.resultURL,
	}, nil
}

// announce hands the stored file to the event bus without holding up the
// response. The event is dropped when no background slot is free.
func (u *Usecase) announce(ctx context.Context, file entity.StoredFile) {
	if u.events == nil || u.runner == nil {
		return
	}

	event := entity.IngestedEvent{File: file}
	if u.eventID != nil {
		event.EventID = u.eventID.Generate()
	}

	started := u.runner.Go(u.rootCtx, "announce "+file.Name, func(ctx context.Context) error {
		if err := u.events.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish ingested event", "ingest_id", file.ID, "event_id", event.EventID, "error", err)
			return err
		}
		return nil
	})
	if !started {
		slog.WarnContext(ctx, "ingested event dropped, no background slot free", "ingest_id", file.ID, "event_id", event.EventID)
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrTooLarge) {
		return pkgerror.NewTooLarge(err)
	}
	if errors.Is(err, context.Canceled) {
		return pkgerror.NewCanceled(err)
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
