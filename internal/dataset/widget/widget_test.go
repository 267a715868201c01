package widget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	steps  []entity.Progress
	result entity.IngestResult
	err    error
	block  bool

	mu    sync.Mutex
	calls int
	names []string
}

func (f *fakeUploader) ProcessCSVFile(ctx context.Context, up entity.Upload, progress chan<- entity.Progress) (entity.IngestResult, error) {
	f.mu.Lock()
	f.calls++
	f.names = append(f.names, up.Name)
	f.mu.Unlock()

	for _, p := range f.steps {
		progress <- p
	}

	if f.block {
		<-ctx.Done()
		return entity.IngestResult{}, ctx.Err()
	}
	return f.result, f.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []entity.Notification
}

func (r *recordingNotifier) Notify(n entity.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Notification(nil), r.sent...)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) observe(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func okResult() entity.IngestResult {
	return entity.IngestResult{
		Message:       "File processed successfully",
		ResultFileURL: entity.DefaultResultFileURL,
	}
}

func csvUpload() entity.Upload {
	return entity.NewUpload("data.csv", []byte("a,b\n1,2\n"))
}

func TestSelectRejectsNonCSVNames(t *testing.T) {
	names := []string{"data.CSV", "data.csv.txt", "data.xlsx", "csv", "data", ".csvx"}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			w := New(Dependency{Uploader: &fakeUploader{}})

			require.True(t, w.Select(csvUpload()))
			assert.False(t, w.Select(entity.NewUpload(name, []byte("x"))))

			st := w.State()
			assert.Nil(t, st.File)
			assert.Equal(t, MsgInvalidExtension, st.Error)
			assert.False(t, st.CanSubmit())
			assert.ErrorIs(t, w.Submit(context.Background()), ErrNotSubmittable)
		})
	}
}

func TestSelectAcceptsCSV(t *testing.T) {
	w := New(Dependency{Uploader: &fakeUploader{}})

	w.Select(entity.NewUpload("bad.txt", nil))
	require.Equal(t, MsgInvalidExtension, w.State().Error)

	assert.True(t, w.Drop(entity.NewUpload(".csv", nil), entity.NewUpload("second.txt", nil)))

	st := w.State()
	require.NotNil(t, st.File)
	assert.Equal(t, ".csv", st.File.Name)
	assert.Empty(t, st.Error)
	assert.True(t, st.CanSubmit())
	assert.Equal(t, PhaseSelected, st.Phase())
}

func TestSelectWithoutFilesIsNoop(t *testing.T) {
	log := &stateLog{}
	w := New(Dependency{Uploader: &fakeUploader{}, Observer: log.observe})

	assert.False(t, w.Select())
	assert.False(t, w.Drop())
	assert.Empty(t, log.all())
	assert.Equal(t, PhaseEmpty, w.State().Phase())
}

func TestSubmitSuccess(t *testing.T) {
	up := &fakeUploader{
		steps:  []entity.Progress{{Sent: 10, Total: 100}, {Sent: 60, Total: 100}, {Sent: 100, Total: 100}},
		result: okResult(),
	}
	notes := &recordingNotifier{}
	log := &stateLog{}
	w := New(Dependency{Uploader: up, Notifier: notes, Observer: log.observe})

	w.Select(csvUpload())
	require.NoError(t, w.Submit(context.Background()))

	st := w.State()
	assert.Equal(t, 100, st.Progress)
	assert.True(t, st.Processed)
	assert.Equal(t, entity.DefaultResultFileURL, st.ResultFileURL)
	assert.Empty(t, st.Error)
	assert.False(t, st.Submitting)
	assert.Equal(t, PhaseCompleted, st.Phase())
	assert.True(t, st.ShowsResult())

	require.Len(t, notes.all(), 1)
	assert.Equal(t, entity.Notification{
		Kind:        entity.NotificationSuccess,
		Title:       "Processing complete",
		Description: "Your file has been processed successfully!",
	}, notes.all()[0])

	last := -1
	for _, s := range log.all() {
		if s.Submitting {
			assert.LessOrEqual(t, s.Progress, ProgressCap)
			assert.GreaterOrEqual(t, s.Progress, last)
			last = s.Progress
		}
	}
	assert.Equal(t, ProgressCap, last)
}

func TestSubmitFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("connection refused")}
	notes := &recordingNotifier{}
	w := New(Dependency{Uploader: up, Notifier: notes})

	w.Select(csvUpload())
	err := w.Submit(context.Background())
	require.Error(t, err)

	st := w.State()
	assert.Equal(t, MsgProcessingFailed, st.Error)
	assert.False(t, st.Processed)
	assert.Empty(t, st.ResultFileURL)
	assert.False(t, st.Submitting)
	assert.True(t, st.CanSubmit())
	assert.Equal(t, PhaseFailed, st.Phase())

	require.Len(t, notes.all(), 1)
	assert.Equal(t, entity.NotificationError, notes.all()[0].Kind)
	assert.Equal(t, "Error", notes.all()[0].Title)
	assert.Equal(t, "Failed to process your file. Please try again.", notes.all()[0].Description)
}

func TestSubmitRetryAfterFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("boom")}
	notes := &recordingNotifier{}
	w := New(Dependency{Uploader: up, Notifier: notes})

	w.Select(csvUpload())
	require.Error(t, w.Submit(context.Background()))

	up.err = nil
	up.result = okResult()
	require.NoError(t, w.Submit(context.Background()))

	st := w.State()
	assert.Empty(t, st.Error)
	assert.True(t, st.Processed)
	assert.Len(t, notes.all(), 2)
	assert.Equal(t, []string{"data.csv", "data.csv"}, up.names)
}

func TestSubmitWithoutFile(t *testing.T) {
	up := &fakeUploader{}
	w := New(Dependency{Uploader: up})

	assert.ErrorIs(t, w.Submit(context.Background()), ErrNotSubmittable)
	assert.Zero(t, up.calls)
}

func TestSubmitWhileSubmittingIsRejected(t *testing.T) {
	up := &fakeUploader{block: true}
	w := New(Dependency{Uploader: up})
	w.Select(csvUpload())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Submit(ctx) }()

	require.Eventually(t, func() bool { return w.State().Submitting }, time.Second, time.Millisecond)
	assert.False(t, w.State().CanSubmit())
	assert.ErrorIs(t, w.Submit(context.Background()), ErrNotSubmittable)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, MsgProcessingFailed, w.State().Error)
}

func TestSubmitWaitsSettleDelay(t *testing.T) {
	delay := 40 * time.Millisecond
	w := New(Dependency{Uploader: &fakeUploader{result: okResult()}, SettleDelay: delay})
	w.Select(csvUpload())

	start := time.Now()
	require.NoError(t, w.Submit(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), delay)
	assert.True(t, w.State().Processed)
}

func TestSubmitEmptyResultURLFallsBack(t *testing.T) {
	w := New(Dependency{Uploader: &fakeUploader{result: entity.IngestResult{Message: "ok"}}})
	w.Select(csvUpload())

	require.NoError(t, w.Submit(context.Background()))
	assert.Equal(t, entity.DefaultResultFileURL, w.State().ResultFileURL)
}

func TestResetClearsEverything(t *testing.T) {
	w := New(Dependency{Uploader: &fakeUploader{result: okResult()}})
	w.Select(csvUpload())
	require.NoError(t, w.Submit(context.Background()))

	w.Reset()

	st := w.State()
	assert.Equal(t, State{}, st)
	assert.False(t, st.CanSubmit())
	assert.Equal(t, PhaseEmpty, st.Phase())
	assert.False(t, w.Download())

	w.Select(entity.NewUpload("bad.txt", nil))
	w.Reset()
	assert.Equal(t, State{}, w.State())
}

func TestResetAbandonsInFlightSubmission(t *testing.T) {
	up := &fakeUploader{block: true, steps: []entity.Progress{{Sent: 5, Total: 10}}}
	notes := &recordingNotifier{}
	w := New(Dependency{Uploader: up, Notifier: notes})
	w.Select(csvUpload())

	done := make(chan error, 1)
	go func() { done <- w.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return w.State().Submitting }, time.Second, time.Millisecond)
	w.Reset()

	assert.ErrorIs(t, <-done, ErrAbandoned)
	assert.Equal(t, State{}, w.State())
	assert.Empty(t, notes.all())
}

func TestDownload(t *testing.T) {
	notes := &recordingNotifier{}
	w := New(Dependency{Uploader: &fakeUploader{result: okResult()}, Notifier: notes})

	assert.False(t, w.Download())
	assert.Empty(t, notes.all())

	w.Select(csvUpload())
	require.NoError(t, w.Submit(context.Background()))
	assert.True(t, w.Download())

	sent := notes.all()
	require.Len(t, sent, 2)
	assert.Equal(t, entity.Notification{
		Kind:        entity.NotificationInfo,
		Title:       "Downloading",
		Description: "Your Excel file is being downloaded",
	}, sent[1])
}

func TestSelectAfterCompletionClearsResult(t *testing.T) {
	w := New(Dependency{Uploader: &fakeUploader{result: okResult()}})
	w.Select(csvUpload())
	require.NoError(t, w.Submit(context.Background()))

	w.Select(entity.NewUpload("next.csv", []byte("x")))

	st := w.State()
	assert.False(t, st.Processed)
	assert.Empty(t, st.ResultFileURL)
	assert.Equal(t, "next.csv", st.File.Name)
}

func TestObserverSeesSubmittingThenTerminal(t *testing.T) {
	log := &stateLog{}
	w := New(Dependency{Uploader: &fakeUploader{result: okResult()}, Observer: log.observe})
	w.Select(csvUpload())
	require.NoError(t, w.Submit(context.Background()))

	var phases []Phase
	for _, s := range log.all() {
		phases = append(phases, s.Phase())
	}
	assert.Equal(t, []Phase{PhaseSelected, PhaseSubmitting, PhaseCompleted}, phases)
}

func TestObserverMayReadStateDuringConcurrentSelect(t *testing.T) {
	steps := make([]entity.Progress, 0, 94)
	for i := 1; i <= 94; i++ {
		steps = append(steps, entity.Progress{Sent: int64(i), Total: 100})
	}

	var w *Widget
	var reads int
	var readsMu sync.Mutex
	w = New(Dependency{
		Uploader: &fakeUploader{steps: steps, result: okResult()},
		Observer: func(State) {
			_ = w.State()
			readsMu.Lock()
			reads++
			readsMu.Unlock()
		},
	})
	w.Select(csvUpload())

	stop := make(chan struct{})
	selecting := make(chan struct{})
	go func() {
		defer close(selecting)
		for {
			select {
			case <-stop:
				return
			default:
				w.Select(entity.NewUpload("other.txt", nil))
			}
		}
	}()

	done := make(chan error, 1)
	go func() { done <- w.Submit(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return")
	}
	close(stop)
	<-selecting

	readsMu.Lock()
	defer readsMu.Unlock()
	assert.Positive(t, reads)
}
