package model

import (
	"fmt"
	"time"
)

// Phase names a step of a job-run in progress events
type Phase string

const (
	PhaseResolving       Phase = "resolving"
	PhaseDownloading     Phase = "downloading"
	PhaseMerging         Phase = "merging"
	PhaseConverting      Phase = "converting"
	PhaseTrimming        Phase = "trimming"
	PhaseResizing        Phase = "resizing"
	PhaseExtractingAudio Phase = "extracting-audio"
	PhaseThumbnailing    Phase = "thumbnailing"
)

// PercentUnknown marks an event that carries no percentage
const PercentUnknown = -1

// ProgressEvent is one transient progress report of a job-run
type ProgressEvent struct {
	JobID      string
	Item       int // playlist index, 0 for single jobs
	Phase      Phase
	Percent    float64       // 0..100, PercentUnknown if absent
	Rate       float64       // bytes per second, 0 if unknown
	ETA        time.Duration // negative if unknown
	TotalBytes int64
	Message    string
}

// HasPercent reports whether the event carries a percentage
func (e ProgressEvent) HasPercent() bool {
	return e.Percent >= 0
}

// ETAString returns ETA formatted as hh:mm:ss or mm:ss, or "—" if unknown
func (e ProgressEvent) ETAString() string {
	if e.ETA <= 0 {
		return "—"
	}
	total := int(e.ETA.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
