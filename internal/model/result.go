package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/ytget/velora/internal/failure"
)

// Outcome is the terminal state of a job-run
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// JobResult is the terminal report of one job-run. Artifacts is set on
// success, Err on failure or cancellation.
type JobResult struct {
	JobID      string
	RunID      string
	URL        string
	Title      string
	Item       int
	Outcome    Outcome
	Artifacts  []string
	Err        *failure.Error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed returns the wall time of the run
func (r JobResult) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Artifact returns the primary artifact path, or "" when there is none
func (r JobResult) Artifact() string {
	if len(r.Artifacts) == 0 {
		return ""
	}
	return r.Artifacts[0]
}

// DisplayTitle returns title, file name, or URL in order of preference
func (r JobResult) DisplayTitle() string {
	if r.Title != "" && !strings.HasPrefix(r.Title, "http") {
		return r.Title
	}
	if p := r.Artifact(); p != "" {
		name := filepath.Base(p)
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return r.URL
}

// PlaylistBatchResult aggregates one result per expanded playlist item, in
// playlist order.
type PlaylistBatchResult struct {
	URL       string
	Title     string
	Items     []JobResult
	Succeeded int
	Failed    int
	Cancelled int
}

// Tally recomputes the outcome counts from Items
func (b *PlaylistBatchResult) Tally() {
	b.Succeeded, b.Failed, b.Cancelled = 0, 0, 0
	for _, it := range b.Items {
		switch it.Outcome {
		case OutcomeSuccess:
			b.Succeeded++
		case OutcomeFailed:
			b.Failed++
		case OutcomeCancelled:
			b.Cancelled++
		}
	}
}

// Progress returns the share of succeeded items as a percentage
func (b PlaylistBatchResult) Progress() float64 {
	if len(b.Items) == 0 {
		return 0
	}
	return float64(b.Succeeded) / float64(len(b.Items)) * 100
}

// HasErrors reports whether any item failed
func (b PlaylistBatchResult) HasErrors() bool {
	return b.Failed > 0
}
