package app

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/godataset/internal/pkg/pkglog"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/godataset/internal/pkg/pkguid"
	"go.opentelemetry.io/otel/trace"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	configPath string
	config     pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	snowflake pkguid.NumberID
	goroutine *pkgroutine.Manager
	registry  *prometheus.Registry
	tracer    trace.TracerProvider

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	//
	closerFn map[string]func(context.Context) error
}

// New builds the application from the config file at configPath. An empty
// path selects /config/config.yaml, or ./config/config.yaml when LOCAL=true.
func New(configPath string) *App {
	pkglog.InitLogging()

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:        ctx,
		cancel:     cancel,
		configPath: configPath,
		closerFn:   map[string]func(context.Context) error{},
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}

// Handler returns the root HTTP handler, CORS included.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}
