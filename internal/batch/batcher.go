package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
)

// DefaultMaxParallel is the number of items processed at once
const DefaultMaxParallel = 2

// Expander lists the entries of a playlist URL
type Expander interface {
	Expand(ctx context.Context, url string) (model.MediaMetadata, error)
}

// JobRunner runs one item to a terminal result
type JobRunner interface {
	Run(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) model.JobResult
}

// RunFunc adapts a function to JobRunner
type RunFunc func(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) model.JobResult

// Run implements JobRunner
func (f RunFunc) Run(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) model.JobResult {
	return f(ctx, desc, events)
}

// Batcher runs playlists
type Batcher struct {
	expander    Expander
	runner      JobRunner
	maxParallel int
	logger      *slog.Logger
}

// Option configures a Batcher
type Option func(*Batcher)

// WithMaxParallel bounds how many items run at once; values below 1 mean 1
func WithMaxParallel(n int) Option {
	return func(b *Batcher) { b.maxParallel = max(n, 1) }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Batcher) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a batcher
func New(expander Expander, runner JobRunner, opts ...Option) *Batcher {
	b := &Batcher{
		expander:    expander,
		runner:      runner,
		maxParallel: DefaultMaxParallel,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// MaxParallel returns the concurrency limit
func (b *Batcher) MaxParallel() int { return b.maxParallel }

// Run expands desc and runs every item. Cancelling ctx stops scheduling:
// items already running finish on their own and the rest are recorded as
// cancelled. The error is non-nil only when the playlist cannot be expanded.
func (b *Batcher) Run(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) (model.PlaylistBatchResult, error) {
	return b.run(ctx, context.WithoutCancel(ctx), desc, events)
}

// run schedules under sched and runs items under items
func (b *Batcher) run(sched, items context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) (model.PlaylistBatchResult, error) {
	log := b.logger.With("playlist", desc.ShortID())
	res := model.PlaylistBatchResult{URL: desc.URL()}

	md, err := b.expander.Expand(sched, desc.URL())
	if err != nil {
		log.Warn("playlist expansion failed", "url", desc.URL(), "error", err)
		return res, err
	}
	return b.schedule(sched, items, desc, md, events), nil
}

// RunExpanded runs the entries of an already expanded playlist with the
// same cancellation semantics as Run.
func (b *Batcher) RunExpanded(ctx context.Context, desc model.JobDescriptor, md model.MediaMetadata, events chan<- model.ProgressEvent) model.PlaylistBatchResult {
	return b.schedule(ctx, context.WithoutCancel(ctx), desc, md, events)
}

func (b *Batcher) schedule(sched, items context.Context, desc model.JobDescriptor, md model.MediaMetadata, events chan<- model.ProgressEvent) model.PlaylistBatchResult {
	log := b.logger.With("playlist", desc.ShortID())
	res := model.PlaylistBatchResult{URL: desc.URL(), Title: md.Title}
	res.Items = make([]model.JobResult, len(md.Entries))
	log.Info("playlist expanded", "title", md.Title, "items", len(md.Entries), "parallel", b.maxParallel)

	start := time.Now()
	sem := semaphore.NewWeighted(int64(b.maxParallel))
	var wg sync.WaitGroup
	for i, entry := range md.Entries {
		index := entry.Index
		if index < 1 {
			index = i + 1
		}
		itemDesc, err := desc.ForItem(entry.URL, index)
		if err != nil {
			res.Items[i] = itemFailure(entry, index, failure.Wrap(err, failure.KindResolve, failure.CauseMalformedURL,
				"invalid playlist entry").InStage(failure.StageExpansion))
			continue
		}

		if sched.Err() != nil || sem.Acquire(sched, 1) != nil {
			res.Items[i] = notScheduled(itemDesc, entry)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			r := b.runner.Run(items, itemDesc, events)
			if r.Title == "" {
				r.Title = entry.Title
			}
			res.Items[i] = r
			log.Debug("item finished", "item", index, "outcome", r.Outcome)
		}()
	}
	wg.Wait()

	res.Tally()
	log.Info("playlist finished",
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"cancelled", res.Cancelled,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res
}

func notScheduled(desc model.JobDescriptor, entry model.PlaylistEntry) model.JobResult {
	now := time.Now()
	return model.JobResult{
		JobID:      desc.ID(),
		URL:        desc.URL(),
		Title:      entry.Title,
		Item:       desc.Index(),
		Outcome:    model.OutcomeCancelled,
		Err:        failure.Cancelled(failure.StageExpansion),
		StartedAt:  now,
		FinishedAt: now,
	}
}

func itemFailure(entry model.PlaylistEntry, index int, err *failure.Error) model.JobResult {
	now := time.Now()
	return model.JobResult{
		URL:        entry.URL,
		Title:      entry.Title,
		Item:       index,
		Outcome:    model.OutcomeFailed,
		Err:        err,
		StartedAt:  now,
		FinishedAt: now,
	}
}
