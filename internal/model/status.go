package model

// Status represents the lifecycle state of a running job handle
type Status string

const (
	// StatusPending means the job is created but not started
	StatusPending Status = "Pending"

	// StatusResolving means metadata is being probed
	StatusResolving Status = "Resolving"

	// StatusDownloading means the fetch is in progress
	StatusDownloading Status = "Downloading"

	// StatusProcessing means post-processing stages are running
	StatusProcessing Status = "Processing"

	// StatusCancelling means cancellation was requested and the job is stopping
	StatusCancelling Status = "Cancelling"

	// StatusSucceeded means the job finished with artifacts on disk
	StatusSucceeded Status = "Succeeded"

	// StatusFailed means the job finished with a classified failure
	StatusFailed Status = "Failed"

	// StatusCancelled means the job was cancelled and cleaned up
	StatusCancelled Status = "Cancelled"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsActive returns true if the job is doing work
func (s Status) IsActive() bool {
	switch s {
	case StatusResolving, StatusDownloading, StatusProcessing, StatusCancelling:
		return true
	}
	return false
}

// IsFinished returns true if the job reached a terminal state
func (s Status) IsFinished() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// StatusForOutcome maps a terminal outcome to its status
func StatusForOutcome(o Outcome) Status {
	switch o {
	case OutcomeSuccess:
		return StatusSucceeded
	case OutcomeCancelled:
		return StatusCancelled
	}
	return StatusFailed
}
