// Package app is the entry point surrounding layers call: it decides whether
// a URL is a single item or a playlist and dispatches to the engine or the
// batcher, then optionally publishes the artifacts.
package app

import (
	"context"
	"log/slog"

	"github.com/ytget/velora/internal/batch"
	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/publish"
)

// Prober fetches metadata with playlist expansion
type Prober interface {
	Probe(ctx context.Context, url string, playlistAware bool) (model.MediaMetadata, error)
}

// Report is the outcome of one acquisition; exactly one of Single and Batch is set
type Report struct {
	Single *model.JobResult
	Batch  *model.PlaylistBatchResult
	// Published lists the uploaded locations of successful artifacts
	Published []string
	// PublishErr joins upload failures; they never change job outcomes
	PublishErr error
}

// Results returns every job result of the report in order
func (r Report) Results() []model.JobResult {
	switch {
	case r.Single != nil:
		return []model.JobResult{*r.Single}
	case r.Batch != nil:
		return r.Batch.Items
	}
	return nil
}

// Acquirer dispatches acquisitions
type Acquirer struct {
	prober    Prober
	runner    batch.JobRunner
	batcher   *batch.Batcher
	native    batch.Expander
	publisher publish.Publisher
	logger    *slog.Logger
}

// Option configures an Acquirer
type Option func(*Acquirer)

// WithNativePlaylist expands YouTube list= URLs with e instead of the resolver
func WithNativePlaylist(e batch.Expander) Option {
	return func(a *Acquirer) { a.native = e }
}

// WithPublisher uploads the artifacts of successful jobs
func WithPublisher(p publish.Publisher) Option {
	return func(a *Acquirer) { a.publisher = p }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an acquirer. runner executes single items and batcher the
// items of playlists.
func New(prober Prober, runner batch.JobRunner, batcher *batch.Batcher, opts ...Option) *Acquirer {
	a := &Acquirer{
		prober:  prober,
		runner:  runner,
		batcher: batcher,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Acquire runs desc to completion. The error is non-nil only when a playlist
// URL cannot be expanded; item and job failures are reported in the results.
// A failed probe of any other URL is left to the runner, which probes again
// and reports a classified result under its retry policy.
func (a *Acquirer) Acquire(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) (Report, error) {
	md, err := a.expand(ctx, desc)
	if err != nil {
		if platform.IsPlaylistURL(desc.URL()) {
			return Report{}, err
		}
		a.logger.Debug("probe failed, running as single item", "url", desc.URL(), "error", err)
	}

	var report Report
	if err == nil && md.IsPlaylist {
		res := a.batcher.RunExpanded(ctx, desc, md, events)
		report.Batch = &res
	} else {
		res := a.runner.Run(ctx, desc, events)
		report.Single = &res
	}

	if a.publisher != nil {
		a.publish(ctx, &report)
	}
	return report, nil
}

// expand probes desc playlist-aware. A YouTube list= URL uses the native
// expander when configured.
func (a *Acquirer) expand(ctx context.Context, desc model.JobDescriptor) (model.MediaMetadata, error) {
	if a.native != nil && platform.IsPlaylistURL(desc.URL()) {
		md, err := a.native.Expand(ctx, desc.URL())
		if err == nil {
			md.IsPlaylist = true
			return md, nil
		}
		a.logger.Warn("native playlist expansion failed, using resolver", "url", desc.URL(), "error", err)
	}
	return a.prober.Probe(ctx, desc.URL(), true)
}

func (a *Acquirer) publish(ctx context.Context, report *Report) {
	var paths []string
	for _, r := range report.Results() {
		if r.Outcome == model.OutcomeSuccess {
			paths = append(paths, r.Artifacts...)
		}
	}
	if len(paths) == 0 {
		return
	}
	report.Published, report.PublishErr = publish.PublishAll(ctx, a.publisher, paths)
	if report.PublishErr != nil {
		a.logger.Warn("publishing failed", "error", report.PublishErr)
	}
}
