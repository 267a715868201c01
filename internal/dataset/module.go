package dataset

import (
	"context"
	"time"

	"github.com/shandysiswandi/godataset/internal/dataset/event"
	"github.com/shandysiswandi/godataset/internal/dataset/inbound"
	"github.com/shandysiswandi/godataset/internal/dataset/store"
	"github.com/shandysiswandi/godataset/internal/dataset/usecase"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/godataset/internal/pkg/pkguid"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultUploadDir    = "uploads"
	defaultRetryBackoff = 200 * time.Millisecond
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	UUID      pkguid.StringID
	Snowflake pkguid.NumberID
	Tracer    trace.TracerProvider

	// EventHandler receives ingested-file events. Defaults to event.StoredFileCheck.
	EventHandler event.Handler
}

func New(dep Dependency) (func(context.Context) error, error) {
	dir := dep.Config.GetString("modules.dataset.upload_dir")
	if dir == "" {
		dir = defaultUploadDir
	}

	disk, err := store.NewDiskStore(dir, dep.Config.GetInt("modules.dataset.max_upload_bytes"))
	if err != nil {
		return nil, err
	}

	if dep.UUID == nil {
		dep.UUID = pkguid.NewUUID()
	}
	if dep.Snowflake == nil {
		sf, err := pkguid.NewSnowflake()
		if err != nil {
			return nil, err
		}
		dep.Snowflake = sf
	}

	if dep.Context == nil {
		dep.Context = context.Background()
	}
	if dep.EventHandler == nil {
		dep.EventHandler = event.StoredFileCheck{}
	}

	backoff := dep.Config.GetDuration("modules.dataset.retry_backoff")
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	bus := event.NewBus(int(dep.Config.GetInt("modules.dataset.event_buffer")))
	consumer := event.NewIngestConsumer(bus, dep.EventHandler, event.ConsumerConfig{
		Workers:     int(dep.Config.GetInt("modules.dataset.workers")),
		MaxRetries:  int(dep.Config.GetInt("modules.dataset.max_retries")),
		BaseBackoff: backoff,
	})
	consumer.Start(dep.Context)

	uc := usecase.New(usecase.Dependency{
		Store:         disk,
		Events:        bus,
		Runner:        dep.Goroutine,
		IngestID:      dep.Snowflake,
		EventID:       dep.UUID,
		ResultFileURL: dep.Config.GetString("modules.dataset.result_file_url"),
		RootCtx:       dep.Context,
		Tracer:        dep.Tracer,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return consumer.Stop, nil
}
