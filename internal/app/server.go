package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

// closeOrder lists closers that must run before the rest, in order.
// The dataset consumer drains events before spans are flushed and config
// watching stops.
var closeOrder = []string{"Dataset", "Tracing", "Config"}

func (a *App) Start() <-chan struct{} {
	terminateChan := make(chan struct{})

	listener, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		slog.Error("failed to listen http server", "address", a.httpServer.Addr, "error", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("http server listening", "address", listener.Addr().String())

		if err := a.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to serve http server", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

		sig := <-sigint
		slog.Info("termination signal received", "signal", sig.String())

		if a.cancel != nil {
			a.cancel()
		}

		terminateChan <- struct{}{}
		close(terminateChan)
	}()

	return terminateChan
}

func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}

	slog.InfoContext(ctx, "waiting for all goroutine to finish")
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "error from goroutines executions", "error", err)
	}
	slog.InfoContext(ctx, "all goroutines have finished")

	for _, name := range closerNames(a.closerFn) {
		if err := a.closerFn[name](ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", name, "error", err)
		}
	}

	slog.InfoContext(ctx, "application gracefully shutdown")
}

// closerNames returns the closers to run after the HTTP server stopped:
// closeOrder first, then the rest by name.
func closerNames(closers map[string]func(context.Context) error) []string {
	names := make([]string, 0, len(closers))
	seen := map[string]bool{"HTTP Server": true}

	for _, name := range closeOrder {
		if _, ok := closers[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range closers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(names, rest...)
}
