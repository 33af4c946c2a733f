package progress

import (
	"github.com/ytget/velora/internal/model"
)

// Tracker stamps job identity on events and keeps percent non-decreasing
// within each phase of one job-run. A download made of several streams
// (video+audio) is reported as one continuous 0..100 range.
//
// A Tracker is not safe for concurrent use; each job-run owns one.
type Tracker struct {
	jobID   string
	item    int
	last    map[model.Phase]float64
	streams int
	stream  int
	dests   int
}

// NewTracker creates a tracker for one job-run
func NewTracker(jobID string, item int) *Tracker {
	return &Tracker{jobID: jobID, item: item, last: make(map[model.Phase]float64), streams: 1}
}

// SetStreams declares how many streams the download phase fetches
func (t *Tracker) SetStreams(n int) {
	if n < 1 {
		n = 1
	}
	t.streams = n
	t.stream = 0
	t.dests = 0
}

// BeginStream is called for every download destination. Each call after
// the first moves to the next stream.
func (t *Tracker) BeginStream() {
	t.dests++
	if t.dests > 1 && t.stream < t.streams-1 {
		t.stream++
	}
}

// Stamp fills identity, scales multi-stream download percent and enforces
// monotonicity. Events without a percentage inherit the last known value.
func (t *Tracker) Stamp(ev model.ProgressEvent) model.ProgressEvent {
	ev.JobID = t.jobID
	ev.Item = t.item

	if ev.Phase == model.PhaseDownloading && t.streams > 1 && ev.HasPercent() {
		ev.Percent = (float64(t.stream)*100 + ev.Percent) / float64(t.streams)
	}

	last, seen := t.last[ev.Phase]
	switch {
	case !ev.HasPercent():
		if seen {
			ev.Percent = last
		}
	case seen && ev.Percent < last:
		ev.Percent = last
	}
	if ev.HasPercent() {
		t.last[ev.Phase] = ev.Percent
	}
	return ev
}

// Last returns the highest percent reported for phase, or PercentUnknown
func (t *Tracker) Last(phase model.Phase) float64 {
	if p, ok := t.last[phase]; ok {
		return p
	}
	return model.PercentUnknown
}
