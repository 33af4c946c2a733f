package engine

import (
	"context"
	"sync"

	"github.com/ytget/velora/internal/model"
)

// DefaultEventBuffer is the capacity of a started job's event channel
const DefaultEventBuffer = 64

// Job is the handle of a job-run started in the background. The consumer
// must drain Events; the channel is closed before the result is published.
type Job struct {
	desc   model.JobDescriptor
	events chan model.ProgressEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status model.Status
	result model.JobResult
}

// Start runs desc in a new goroutine and returns its handle
func (e *Engine) Start(ctx context.Context, desc model.JobDescriptor) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		desc:   desc,
		events: make(chan model.ProgressEvent, DefaultEventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
		status: model.StatusPending,
	}
	go func() {
		defer cancel()
		res := e.run(ctx, desc, j.events, j.setStatus)
		close(j.events)

		j.mu.Lock()
		j.result = res
		j.status = model.StatusForOutcome(res.Outcome)
		j.mu.Unlock()
		close(j.done)
	}()
	return j
}

// Descriptor returns the descriptor the job runs
func (j *Job) Descriptor() model.JobDescriptor { return j.desc }

// Events returns the progress stream of the job
func (j *Job) Events() <-chan model.ProgressEvent { return j.events }

// Done is closed once the result is available
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel requests cancellation. The running tool is interrupted, partial
// files are removed and the job ends as cancelled. Cancelling a finished
// job has no effect.
func (j *Job) Cancel() {
	j.mu.Lock()
	if !j.status.IsFinished() {
		j.status = model.StatusCancelling
	}
	j.mu.Unlock()
	j.cancel()
}

// Wait blocks until the job finishes and returns its result
func (j *Job) Wait() model.JobResult {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Status returns the current lifecycle state
func (j *Job) Status() model.Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(s model.Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == model.StatusCancelling || j.status.IsFinished() {
		return
	}
	j.status = s
}
