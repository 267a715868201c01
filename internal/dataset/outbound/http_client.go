package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
	"github.com/shandysiswandi/godataset/internal/pkg/pkglog"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgrouter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "github.com/shandysiswandi/godataset/internal/dataset/outbound"
	maxResponseBody = 1 << 20
)

// StatusError is returned when the ingest endpoint answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ingest endpoint returned status %d", e.Code)
	}
	return fmt.Sprintf("ingest endpoint returned status %d: %s", e.Code, e.Message)
}

type ingestResponse struct {
	Message       string `json:"message"`
	ResultFileURL string `json:"resultFileUrl"`
	Error         string `json:"error"`
}

// HTTPClient posts uploads to the ingest endpoint as multipart/form-data.
type HTTPClient struct {
	endpoint string
	http     *http.Client
	tracer   trace.Tracer
}

type ClientOption func(*HTTPClient)

// WithTracerProvider sets where client spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *HTTPClient) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewHTTPClient returns a client for endpoint. A nil hc uses a client without
// an overall timeout, since uploads may be arbitrarily large.
func NewHTTPClient(endpoint string, hc *http.Client, opts ...ClientOption) *HTTPClient {
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 5 * time.Minute,
			},
		}
	}

	c := &HTTPClient{
		endpoint: endpoint,
		http:     hc,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessCSVFile streams up as the "file" field and reports bytes sent on
// progress. Sends on progress never block and stop before the call returns.
// progress may be nil.
func (c *HTTPClient) ProcessCSVFile(ctx context.Context, up entity.Upload, progress chan<- entity.Progress) (entity.IngestResult, error) {
	ctx, span := c.tracer.Start(ctx, "dataset.client.ProcessCSVFile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dataset.file_name", up.Name),
			attribute.Int64("dataset.bytes", up.Size),
		))
	defer span.End()

	result, err := c.post(ctx, up, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
	}
	return result, err
}

func (c *HTTPClient) post(ctx context.Context, up entity.Upload, progress chan<- entity.Progress) (entity.IngestResult, error) {
	content, err := up.Open()
	if err != nil {
		return entity.IngestResult{}, fmt.Errorf("open upload: %w", err)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		_ = content.Close()
		return entity.IngestResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if cid := pkglog.GetCorrelationID(ctx); cid != "" {
		req.Header.Set(pkgrouter.HeaderCorrelationID, cid)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	written := make(chan error, 1)
	go func() {
		defer func() { _ = content.Close() }()
		err := writeForm(form, up, &progressReader{r: content, total: up.Size, ch: progress})
		_ = pw.CloseWithError(err)
		written <- err
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		<-written
		return entity.IngestResult{}, fmt.Errorf("post upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	// the server may answer before consuming the whole body
	_ = pr.Close()
	<-written

	if readErr != nil {
		return entity.IngestResult{}, fmt.Errorf("read response: %w", readErr)
	}

	var body ingestResponse
	decodeErr := json.Unmarshal(raw, &body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return entity.IngestResult{}, &StatusError{Code: resp.StatusCode, Message: body.Error}
	}
	if decodeErr != nil {
		return entity.IngestResult{}, fmt.Errorf("decode response: %w", decodeErr)
	}

	return entity.IngestResult{
		Message:       body.Message,
		ResultFileURL: body.ResultFileURL,
	}, nil
}

func writeForm(form *multipart.Writer, up entity.Upload, content io.Reader) error {
	part, err := form.CreateFormFile("file", up.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return form.Close()
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	ch    chan<- entity.Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report()
	}
	return n, err
}

func (p *progressReader) report() {
	if p.ch == nil {
		return
	}
	select {
	case p.ch <- entity.Progress{Sent: p.sent, Total: p.total}:
	default:
	}
}

// IsStatus reports whether err came from a non-2xx response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
