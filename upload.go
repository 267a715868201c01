package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shandysiswandi/godataset/internal/dataset/entity"
	"github.com/shandysiswandi/godataset/internal/dataset/outbound"
	"github.com/shandysiswandi/godataset/internal/dataset/widget"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/godataset/internal/pkg/pkglog"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgtrace"
	"github.com/shandysiswandi/godataset/internal/pkg/pkguid"
	"github.com/spf13/cobra"
)

var uploadDefaults = map[string]any{
	"client.endpoint":     "http://localhost:3000/api/processcsvfile",
	"widget.settle_delay": "0s",
	"tracing.enabled":     false,
	"tracing.exporter":    "stdout",
}

func uploadCmd() *cobra.Command {
	var download bool

	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV file to a running server",
		Long: `Upload a CSV file to the ingest endpoint and show progress.

The endpoint and settle delay come from CLIENT_ENDPOINT and
WIDGET_SETTLE_DELAY unless overridden by flags. TRACING_ENABLED=true
writes the upload span to stderr and sends its trace context to the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}

			cfg := pkgconfig.NewViperDefaults(uploadDefaults)
			defer func() { _ = cfg.Close() }()

			endpoint := cfg.GetString("client.endpoint")
			if cmd.Flags().Changed("endpoint") {
				endpoint, _ = cmd.Flags().GetString("endpoint")
			}
			settle := cfg.GetDuration("widget.settle_delay")
			if cmd.Flags().Changed("settle-delay") {
				settle, _ = cmd.Flags().GetDuration("settle-delay")
			}

			var clientOpts []outbound.ClientOption
			if cfg.GetBool("tracing.enabled") {
				tp, err := pkgtrace.NewProvider(pkgtrace.Config{
					ServiceName: pkglog.ServiceName + "-upload",
					Exporter:    cfg.GetString("tracing.exporter"),
					Writer:      cmd.ErrOrStderr(),
				})
				if err != nil {
					return err
				}
				pkgtrace.Install(tp)
				defer func() { _ = tp.Shutdown(context.Background()) }()

				clientOpts = append(clientOpts, outbound.WithTracerProvider(tp))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = pkglog.SetCorrelationID(ctx, pkguid.NewUUID().Generate())

			return runUpload(ctx, cmd.ErrOrStderr(), args[0], uploadOptions{
				uploader: outbound.NewHTTPClient(endpoint, nil, clientOpts...),
				settle:   settle,
				download: download,
			})
		},
	}

	cmd.Flags().String("endpoint", "", "Ingest endpoint URL, overrides CLIENT_ENDPOINT")
	cmd.Flags().Duration("settle-delay", 0, "Extra wait before reporting success")
	cmd.Flags().BoolVar(&download, "download", false, "Request the result download after processing")

	return cmd
}

type uploadOptions struct {
	uploader widget.Uploader
	settle   time.Duration
	download bool
}

func runUpload(ctx context.Context, out io.Writer, path string, opts uploadOptions) error {
	file, err := entity.NewUploadFromFile(path)
	if err != nil {
		return err
	}

	term := newTerminal(out)
	w := widget.New(widget.Dependency{
		Uploader:    opts.uploader,
		Notifier:    term,
		Observer:    term.render,
		SettleDelay: opts.settle,
	})

	if !w.Select(file) {
		return errors.New(w.State().Error)
	}

	if err := w.Submit(ctx); err != nil {
		return err
	}

	st := w.State()
	fmt.Fprintf(out, "result: %s\n", st.ResultFileURL)

	if opts.download {
		w.Download()
	}
	return nil
}

// terminal renders widget state and notifications as plain text lines.
type terminal struct {
	mu   sync.Mutex
	out  io.Writer
	last int
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out, last: -1}
}

func (t *terminal) render(s widget.State) {
	pct := -1
	switch s.Phase() {
	case widget.PhaseSubmitting:
		pct = s.Progress
	case widget.PhaseCompleted:
		pct = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if pct < 0 || pct == t.last {
		return
	}
	t.last = pct

	const width = 30
	filled := pct * width / 100
	fmt.Fprintf(t.out, "[%s%s] %3d%%\n", strings.Repeat("#", filled), strings.Repeat(".", width-filled), pct)
}

func (t *terminal) Notify(n entity.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "%s: %s - %s\n", strings.ToLower(string(n.Kind)), n.Title, n.Description)
}
