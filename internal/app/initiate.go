package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/godataset/internal/pkg/pkglog"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgtrace"
	"github.com/shandysiswandi/godataset/internal/pkg/pkguid"
)

var defaults = map[string]any{
	"tz":                               "UTC",
	"log.level":                        "info",
	"snowflake.node":                   -1,
	"server.address.http":              ":3000",
	"server.public_dir":                "",
	"server.metrics":                   true,
	"server.cors.allowed_origins":      "*",
	"tracing.enabled":                  false,
	"tracing.exporter":                 "stdout",
	"modules.dataset.enabled":          true,
	"modules.dataset.upload_dir":       "uploads",
	"modules.dataset.result_file_url":  "/example-result.xlsx",
	"modules.dataset.max_upload_bytes": 0,
	"modules.dataset.event_buffer":     512,
	"modules.dataset.workers":          4,
	"modules.dataset.max_retries":      3,
	"modules.dataset.retry_backoff":    "200ms",
}

func (a *App) initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	path := a.configPath
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := pkgconfig.NewViper(path, pkgconfig.WithDefaults(defaults))
	if err != nil {
		slog.Error("failed to init config", "path", path, "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	pkglog.SetLevel(cfg.GetString("log.level"))

	a.config = cfg
}

func (a *App) initLibraries() {
	a.goroutine = pkgroutine.NewManager(100)
	a.uuid = pkguid.NewUUID()

	var opts []pkguid.SnowflakeOption
	if node := a.config.GetInt("snowflake.node"); node >= 0 {
		opts = append(opts, pkguid.WithNode(node))
	}

	snowflake, err := pkguid.NewSnowflake(opts...)
	if err != nil {
		slog.Error("failed to init snowflake", "error", err)
		os.Exit(1)
	}
	a.snowflake = snowflake

	if a.config.GetBool("tracing.enabled") {
		tp, err := pkgtrace.NewProvider(pkgtrace.Config{
			ServiceName: pkglog.ServiceName,
			Exporter:    a.config.GetString("tracing.exporter"),
		})
		if err != nil {
			slog.Error("failed to init tracing", "error", err)
			os.Exit(1)
		}
		pkgtrace.Install(tp)

		a.tracer = tp
		a.closerFn["Tracing"] = tp.Shutdown
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func (a *App) initHTTPServer() {
	a.router = pkgrouter.NewRouter(a.uuid)
	a.router.Use(pkgrouter.MiddlewareMetrics(a.registry))
	if a.tracer != nil {
		a.router.Use(pkgrouter.MiddlewareTracing(a.tracer))
	}

	if a.config.GetBool("server.metrics") {
		a.router.Handle(http.MethodGet, "/metrics", pkgrouter.MetricsHandler(a.registry))
	}

	if dir := a.config.GetString("server.public_dir"); dir != "" {
		a.router.Static(http.Dir(dir))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("server.cors.allowed_origins"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{pkgrouter.HeaderCorrelationID},
		AllowCredentials: true,
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

//nolint:unparam // is always nil
func (a *App) initClosers() {
	a.closerFn["HTTP Server"] = func(ctx context.Context) error {
		return a.httpServer.Shutdown(ctx)
	}
	a.closerFn["Config"] = func(context.Context) error {
		return a.config.Close()
	}
}
