package widget

import "github.com/shandysiswandi/godataset/internal/dataset/entity"

type Phase string

const (
	PhaseEmpty      Phase = "EMPTY"
	PhaseSelected   Phase = "SELECTED"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseFailed     Phase = "FAILED"
)

// State is a point-in-time copy of the widget.
type State struct {
	File          *entity.Upload
	Submitting    bool
	Progress      int
	Processed     bool
	ResultFileURL string
	Error         string
}

func (s State) CanSubmit() bool {
	return s.File != nil && !s.Submitting
}

// ShowsResult reports whether the completion panel is visible.
func (s State) ShowsResult() bool {
	return s.Processed && s.ResultFileURL != ""
}

func (s State) Phase() Phase {
	switch {
	case s.Submitting:
		return PhaseSubmitting
	case s.ShowsResult():
		return PhaseCompleted
	case s.Error != "":
		return PhaseFailed
	case s.File != nil:
		return PhaseSelected
	default:
		return PhaseEmpty
	}
}
