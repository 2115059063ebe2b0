package journal

import (
	"time"

	"github.com/google/uuid"

	"agmerge/internal/fileutil"
	"agmerge/internal/transform"
)

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusDiagnosed means the run completed but recorded errors.
	StatusDiagnosed Status = "diagnosed"
	StatusFailed    Status = "failed"
)

// Run is one recorded invocation.
type Run struct {
	ID           string
	Command      string
	GraphID      string
	InputPath    string
	InputDigest  string
	EditedPath   string
	EditedDigest string
	OutputPath   string
	OutputDigest string
	Status       Status
	Changes      int
	Errors       int
	Warnings     int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewRun starts a run of command with a fresh id.
func NewRun(command string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Command:   command,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Input records the file the run read and transformed.
func (r *Run) Input(path string, data []byte) {
	r.InputPath = path
	r.InputDigest = digest(data)
}

// Edited records the edited copy a merge folded in.
func (r *Run) Edited(path string, data []byte) {
	r.EditedPath = path
	r.EditedDigest = digest(data)
}

// Output records the file the run wrote.
func (r *Run) Output(path string, data []byte) {
	r.OutputPath = path
	r.OutputDigest = digest(data)
}

// Finish stamps the outcome from a transform result and error.
func (r *Run) Finish(result transform.Result, err error) {
	r.FinishedAt = time.Now().UTC()
	r.Changes = len(result.Changes)
	r.Errors = len(result.Diagnostics.Errors)
	r.Warnings = len(result.Diagnostics.Warnings)
	switch {
	case err != nil:
		r.Status = StatusFailed
		r.ErrorMessage = err.Error()
	case r.Errors > 0:
		r.Status = StatusDiagnosed
		r.ErrorMessage = result.Diagnostics.Err().Error()
	default:
		r.Status = StatusSucceeded
	}
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func digest(data []byte) string {
	if data == nil {
		return ""
	}
	return fileutil.Digest(data)
}
