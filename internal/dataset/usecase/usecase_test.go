package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
	"github.com/shandysiswandi/godataset/internal/dataset/store"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type testStore struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newTestStore() *testStore {
	return &testStore{files: make(map[string][]byte)}
}

func (s *testStore) Save(ctx context.Context, name string, r io.Reader) (entity.StoredFile, error) {
	if s.err != nil {
		return entity.StoredFile{}, s.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return entity.StoredFile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = b
	return entity.StoredFile{Name: name, Path: "uploads/" + name, Size: int64(len(b))}, nil
}

type testPublisher struct {
	mu     sync.Mutex
	events []entity.IngestedEvent
	err    error
}

func (p *testPublisher) Publish(ctx context.Context, event entity.IngestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// syncRunner runs tasks inline so assertions need no waiting.
type syncRunner struct {
	errs []error
}

func (r *syncRunner) Go(ctx context.Context, _ string, f func(ctx context.Context) error) bool {
	if err := f(ctx); err != nil {
		r.errs = append(r.errs, err)
	}
	return true
}

// fullRunner has no free slot.
type fullRunner struct{}

func (fullRunner) Go(context.Context, string, func(ctx context.Context) error) bool {
	return false
}

type testStringID struct {
	mu sync.Mutex
	n  int
}

func (t *testStringID) Generate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("evt-%d", t.n)
}

type testNumberID struct {
	n int64
}

func (t *testNumberID) Generate() int64 {
	t.n++
	return t.n
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

func newTestUsecase(st Store, pub EventPublisher, runner Runner) *Usecase {
	return New(Dependency{
		Store:    st,
		Events:   pub,
		Runner:   runner,
		Clock:    fixedClock{now: time.Unix(123, 0)},
		IngestID: &testNumberID{},
		EventID:  &testStringID{},
		RootCtx:  context.Background(),
	})
}

func TestIngestWritesAndAnnounces(t *testing.T) {
	st := newTestStore()
	pub := &testPublisher{}
	runner := &syncRunner{}
	uc := newTestUsecase(st, pub, runner)

	result, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if result.Message != "File processed successfully" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if result.ResultFileURL != entity.DefaultResultFileURL {
		t.Fatalf("unexpected result url: %q", result.ResultFileURL)
	}
	if got := string(st.files["data.csv"]); got != "a,b\n1,2\n" {
		t.Fatalf("unexpected stored content: %q", got)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.EventID != "evt-1" || ev.File.ID != 1 || ev.File.ReceivedAt != 123 || ev.File.Size != 8 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestIngestResultIndependentOfContent(t *testing.T) {
	uc := newTestUsecase(newTestStore(), nil, nil)

	inputs := map[string]string{
		"empty.csv":  "",
		"small.csv":  "x",
		"large.csv":  strings.Repeat("col1,col2,col3\n", 10000),
		"binary.csv": "\x00\x01\x02\xff",
		"notes.txt":  "not even a csv",
	}

	for name, content := range inputs {
		result, err := uc.Ingest(context.Background(), IngestInput{FileName: name}, strings.NewReader(content))
		if err != nil {
			t.Fatalf("%s: ingest: %v", name, err)
		}
		if result.ResultFileURL != "/example-result.xlsx" {
			t.Fatalf("%s: unexpected result url %q", name, result.ResultFileURL)
		}
	}
}

func TestIngestCustomResultURL(t *testing.T) {
	uc := New(Dependency{Store: newTestStore(), ResultFileURL: "/static/result.xlsx"})

	result, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.ResultFileURL != "/static/result.xlsx" {
		t.Fatalf("unexpected result url: %q", result.ResultFileURL)
	}
}

func TestIngestStoreFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"disk", errors.New("no space left on device"), http.StatusInternalServerError},
		{"too large", fmt.Errorf("save: %w", store.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{"invalid name", store.ErrInvalidName, http.StatusInternalServerError},
		{"client gone", context.Canceled, pkgerror.StatusClientClosedRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newTestStore()
			st.err = tc.err
			pub := &testPublisher{}
			uc := newTestUsecase(st, pub, &syncRunner{})

			_, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("x"))

			var perr *pkgerror.Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected pkgerror.Error, got %T (%v)", err, err)
			}
			if perr.StatusCode() != tc.status {
				t.Fatalf("unexpected status: %d", perr.StatusCode())
			}
			if len(pub.events) != 0 {
				t.Fatalf("expected no events on failure, got %d", len(pub.events))
			}
		})
	}
}

func TestIngestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &testPublisher{err: errors.New("bus closed")}
	runner := &syncRunner{}
	uc := newTestUsecase(newTestStore(), pub, runner)

	if _, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("x")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(runner.errs) != 1 {
		t.Fatalf("expected publish error to reach the runner, got %v", runner.errs)
	}
}

func TestIngestMissingStore(t *testing.T) {
	uc := New(Dependency{})

	_, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("x"))

	var perr *pkgerror.Error
	if !errors.As(err, &perr) || perr.Type() != pkgerror.TypeServer {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestIngestNeverWaitsForBackgroundSlot(t *testing.T) {
	pub := &testPublisher{}
	uc := newTestUsecase(newTestStore(), pub, fullRunner{})

	done := make(chan error, 1)
	go func() {
		_, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("x"))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ingest blocked on a full runner")
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected the event to be dropped, got %d", len(pub.events))
	}
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestIngestRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var storeSpan trace.SpanContext
	st := newTestStore()
	uc := New(Dependency{
		Store:  spanStore{Store: st, seen: &storeSpan},
		Tracer: tp,
	})

	if _, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("a,b\n")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "dataset.Ingest" {
		t.Fatalf("span name = %q", span.Name())
	}
	if !storeSpan.IsValid() || storeSpan.SpanID() != span.SpanContext().SpanID() {
		t.Fatalf("store did not run inside the ingest span")
	}

	attrs := spanAttrs(span)
	if got := attrs["dataset.file_name"].AsString(); got != "data.csv" {
		t.Fatalf("dataset.file_name = %q", got)
	}
	if got := attrs["dataset.bytes"].AsInt64(); got != 4 {
		t.Fatalf("dataset.bytes = %d", got)
	}
}

func TestIngestSpanRecordsStoreFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	st := newTestStore()
	st.err = errors.New("disk full")
	uc := New(Dependency{Store: st, Tracer: tp})

	if _, err := uc.Ingest(context.Background(), IngestInput{FileName: "data.csv"}, strings.NewReader("x")); err == nil {
		t.Fatal("expected error")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("status = %v", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected the error to be recorded as a span event")
	}
}

// spanStore notes the span active when Save runs.
type spanStore struct {
	Store
	seen *trace.SpanContext
}

func (s spanStore) Save(ctx context.Context, name string, r io.Reader) (entity.StoredFile, error) {
	*s.seen = trace.SpanContextFromContext(ctx)
	return s.Store.Save(ctx, name, r)
}
