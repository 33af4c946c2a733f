package batch

import (
	"context"

	"github.com/ytget/velora/internal/engine"
	"github.com/ytget/velora/internal/model"
)

// Batch is the handle of a playlist run started in the background
type Batch struct {
	events chan model.ProgressEvent
	stop   context.CancelFunc
	abort  context.CancelFunc
	done   chan struct{}

	result model.PlaylistBatchResult
	err    error
}

// Start runs the playlist of desc in a new goroutine
func (b *Batcher) Start(ctx context.Context, desc model.JobDescriptor) *Batch {
	sched, stop := context.WithCancel(ctx)
	items, abort := context.WithCancel(context.WithoutCancel(ctx))
	h := &Batch{
		events: make(chan model.ProgressEvent, engine.DefaultEventBuffer),
		stop:   stop,
		abort:  abort,
		done:   make(chan struct{}),
	}
	go func() {
		defer abort()
		defer stop()
		h.result, h.err = b.run(sched, items, desc, h.events)
		close(h.events)
		close(h.done)
	}()
	return h
}

// Events returns the progress stream of all items; events carry the item index
func (h *Batch) Events() <-chan model.ProgressEvent { return h.events }

// Done is closed once the result is available
func (h *Batch) Done() <-chan struct{} { return h.done }

// Stop ends scheduling; running items finish normally
func (h *Batch) Stop() { h.stop() }

// Abort ends scheduling and cancels running items
func (h *Batch) Abort() {
	h.stop()
	h.abort()
}

// Wait blocks until every item reached a terminal state
func (h *Batch) Wait() (model.PlaylistBatchResult, error) {
	<-h.done
	return h.result, h.err
}
