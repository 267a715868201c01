package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
)

const (
	MsgInvalidExtension = "Please upload a CSV file"
	MsgProcessingFailed = "An error occurred during file processing"

	// ProgressCap is the highest percentage shown before the server answers.
	ProgressCap = 95

	progressBuffer = 32
)

var (
	ErrNotSubmittable = errors.New("widget: no file selected or submission in progress")
	ErrAbandoned      = errors.New("widget: submission abandoned by reset")
)

type Uploader interface {
	ProcessCSVFile(ctx context.Context, up entity.Upload, progress chan<- entity.Progress) (entity.IngestResult, error)
}

type Notifier interface {
	Notify(n entity.Notification)
}

// Observer receives a snapshot after every state change, in order, with no
// widget lock held. It may read State but must not call methods that change
// the widget: those wait for their own snapshot to be delivered.
type Observer func(State)

type Dependency struct {
	Uploader    Uploader
	Notifier    Notifier
	Observer    Observer
	SettleDelay time.Duration
}

// Widget drives a single file upload: selection, validation, submission,
// progress and reset. It is safe for concurrent use.
type Widget struct {
	uploader Uploader
	notifier Notifier
	observer Observer
	settle   time.Duration

	mu         sync.Mutex
	delivered  *sync.Cond
	pending    []State
	queued     uint64
	sent       uint64
	delivering bool
	file       *entity.Upload
	submitting bool
	progress   int
	processed  bool
	resultURL  string
	errMsg     string
	generation uint64
	cancel     context.CancelFunc
}

func New(dep Dependency) *Widget {
	notifier := dep.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}

	w := &Widget{
		uploader: dep.Uploader,
		notifier: notifier,
		observer: dep.Observer,
		settle:   dep.SettleDelay,
	}
	w.delivered = sync.NewCond(&w.mu)
	return w
}

func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.snapshot()
}

// Select takes the first of files from a picker. It reports whether a file
// was accepted.
func (w *Widget) Select(files ...entity.Upload) bool {
	return w.choose(files)
}

// Drop takes the first of files dropped onto the drop zone.
func (w *Widget) Drop(files ...entity.Upload) bool {
	return w.choose(files)
}

func (w *Widget) choose(files []entity.Upload) bool {
	if len(files) == 0 {
		return false
	}
	file := files[0]

	w.mu.Lock()
	if !strings.HasSuffix(file.Name, ".csv") {
		w.errMsg = MsgInvalidExtension
		w.file = nil
		w.commit()
		return false
	}

	w.file = &file
	w.errMsg = ""
	w.resultURL = ""
	w.processed = false
	w.commit()
	return true
}

// Submit uploads the selected file and blocks until the submission settles,
// is canceled through ctx, or is abandoned by Reset.
func (w *Widget) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.file == nil || w.submitting || w.uploader == nil {
		w.mu.Unlock()
		return ErrNotSubmittable
	}

	file := *w.file
	w.generation++
	gen := w.generation

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.cancel = cancel

	w.errMsg = ""
	w.submitting = true
	w.progress = 0
	w.commit()

	events := make(chan entity.Progress, progressBuffer)
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		for p := range events {
			w.advance(gen, p)
		}
	}()

	result, err := w.uploader.ProcessCSVFile(ctx, file, events)
	close(events)
	<-pumped

	if err == nil {
		err = w.wait(ctx)
	}

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		return ErrAbandoned
	}
	w.cancel = nil
	w.submitting = false

	if err != nil {
		w.errMsg = MsgProcessingFailed
		w.commit()
		w.notifier.Notify(entity.Notification{
			Kind:        entity.NotificationError,
			Title:       "Error",
			Description: "Failed to process your file. Please try again.",
		})
		return err
	}

	resultURL := result.ResultFileURL
	if resultURL == "" {
		resultURL = entity.DefaultResultFileURL
	}
	w.progress = 100
	w.resultURL = resultURL
	w.processed = true
	w.commit()
	w.notifier.Notify(entity.Notification{
		Kind:        entity.NotificationSuccess,
		Title:       "Processing complete",
		Description: "Your file has been processed successfully!",
	})
	return nil
}

// Reset clears the widget back to empty and abandons any submission in flight.
func (w *Widget) Reset() {
	w.mu.Lock()
	w.generation++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	w.file = nil
	w.submitting = false
	w.progress = 0
	w.processed = false
	w.resultURL = ""
	w.errMsg = ""
	w.commit()
}

// Download announces the result download. Nothing is fetched.
func (w *Widget) Download() bool {
	w.mu.Lock()
	ready := w.processed && w.resultURL != ""
	w.mu.Unlock()

	if !ready {
		return false
	}

	w.notifier.Notify(entity.Notification{
		Kind:        entity.NotificationInfo,
		Title:       "Downloading",
		Description: "Your Excel file is being downloaded",
	})
	return true
}

func (w *Widget) advance(gen uint64, p entity.Progress) {
	pct := p.Percent()
	if pct > ProgressCap {
		pct = ProgressCap
	}

	w.mu.Lock()
	if gen != w.generation || !w.submitting || pct <= w.progress {
		w.mu.Unlock()
		return
	}
	w.progress = pct
	w.commit()
}

func (w *Widget) wait(ctx context.Context) error {
	if w.settle <= 0 {
		return nil
	}

	timer := time.NewTimer(w.settle)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commit must be called with mu held and releases it once the observer has
// seen the new snapshot. Snapshots are numbered in the order the changes were
// made; whichever caller holds the delivery turn sends queued snapshots up to
// its own, then hands the turn on. The observer runs without mu.
func (w *Widget) commit() {
	if w.observer == nil {
		w.mu.Unlock()
		return
	}

	w.pending = append(w.pending, w.snapshot())
	w.queued++
	mine := w.queued

	for w.sent < mine {
		if w.delivering {
			w.delivered.Wait()
			continue
		}

		w.delivering = true
		for w.sent < mine {
			st := w.pending[0]
			w.pending = w.pending[1:]

			w.mu.Unlock()
			w.observer(st)
			w.mu.Lock()

			w.sent++
		}
		w.delivering = false
		w.delivered.Broadcast()
	}

	if len(w.pending) == 0 {
		w.pending = nil
	}
	w.mu.Unlock()
}

func (w *Widget) snapshot() State {
	st := State{
		Submitting:    w.submitting,
		Progress:      w.progress,
		Processed:     w.processed,
		ResultFileURL: w.resultURL,
		Error:         w.errMsg,
	}
	if w.file != nil {
		file := *w.file
		st.File = &file
	}
	return st
}

type discardNotifier struct{}

func (discardNotifier) Notify(entity.Notification) {}
