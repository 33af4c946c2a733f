package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/velora/internal/download"
	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/metrics"
	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/pipeline"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/progress"
	"github.com/ytget/velora/internal/selector"
)

// Prober fetches metadata of a single item
type Prober interface {
	Probe(ctx context.Context, url string, playlistAware bool) (model.MediaMetadata, error)
}

// Engine runs job descriptors end to end. It holds no per-job state and is
// safe for concurrent use.
type Engine struct {
	prober     Prober
	fetcher    download.Fetcher
	transcoder pipeline.Transcoder
	inspector  pipeline.Inspector
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithInspector sets the prober used when metadata lacks a duration
func WithInspector(i pipeline.Inspector) Option {
	return func(e *Engine) { e.inspector = i }
}

// WithMetrics sets the metrics recorder
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine from its collaborators
func New(prober Prober, fetcher download.Fetcher, transcoder pipeline.Transcoder, opts ...Option) *Engine {
	e := &Engine{
		prober:     prober,
		fetcher:    fetcher,
		transcoder: transcoder,
		metrics:    metrics.Nop{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes one job-run of desc and blocks until it reaches a terminal
// state. Progress events are sent on events, which may be nil; a send is
// abandoned once ctx is done. Run does not close events.
func (e *Engine) Run(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) model.JobResult {
	return e.run(ctx, desc, events, nil)
}

func (e *Engine) run(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent, setStatus func(model.Status)) model.JobResult {
	if setStatus == nil {
		setStatus = func(model.Status) {}
	}
	runID := newRunID()
	r := &jobRun{
		Engine:    e,
		ctx:       ctx,
		desc:      desc,
		events:    events,
		setStatus: setStatus,
		tracker:   progress.NewTracker(desc.ID(), desc.Index()),
		log:       e.logger.With("job", desc.ShortID(), "run", runID[:8], "item", desc.Index()),
		result: model.JobResult{
			JobID:     desc.ID(),
			RunID:     runID,
			URL:       desc.URL(),
			Item:      desc.Index(),
			StartedAt: time.Now(),
		},
	}

	kind := string(desc.Kind())
	e.metrics.JobStarted(kind)
	res := r.execute()
	res.FinishedAt = time.Now()
	e.metrics.JobFinished(kind, string(res.Outcome), res.Elapsed())
	if res.Err != nil {
		e.metrics.Failure(string(res.Err.Kind), string(res.Err.Cause))
	}
	return res
}

// jobRun is the state of one execution
type jobRun struct {
	*Engine
	ctx       context.Context
	desc      model.JobDescriptor
	events    chan<- model.ProgressEvent
	setStatus func(model.Status)
	tracker   *progress.Tracker
	log       *slog.Logger
	stem      string
	result    model.JobResult
}

func (r *jobRun) execute() model.JobResult {
	if r.desc.IsZero() {
		return r.fail(failure.New(failure.KindResolve, failure.CauseMalformedURL, "empty job descriptor").
			InStage(failure.StageResolve))
	}
	r.log.Info("job started", "url", r.desc.URL(), "kind", r.desc.Kind(), "quality", r.desc.Quality())

	// resolve
	r.setStatus(model.StatusResolving)
	r.emit(model.ProgressEvent{Phase: model.PhaseResolving, Percent: 0, ETA: -1, Message: r.desc.URL()})
	start := time.Now()
	md, err := r.prober.Probe(r.ctx, r.desc.URL(), false)
	r.metrics.StageObserved(failure.StageResolve, time.Since(start))
	if err != nil {
		return r.fail(err)
	}
	r.result.Title = md.Title
	r.emit(model.ProgressEvent{Phase: model.PhaseResolving, Percent: 100, ETA: 0, Message: md.Title})

	// select
	sel, err := selector.Select(md.Formats, r.desc.Kind(), r.desc.Quality(), r.desc.IncludeAudio())
	if err != nil {
		return r.fail(err)
	}
	r.log.Debug("format selected", "format", sel.FormatSpec(), "extract", sel.NeedsExtraction)

	// validate against the resolver's view before fetching anything
	post := r.desc.Post()
	src := pipeline.Source{
		Duration: md.Duration,
		HasVideo: sel.Format.HasVideo(),
		HasAudio: sel.Format.HasAudio() || sel.Audio != nil,
		Width:    sel.Format.Width,
		Height:   sel.Format.Height,
	}
	if err := pipeline.Validate(post, src); err != nil {
		return r.fail(err)
	}

	// download
	r.stem = r.desc.Stem(md.Title)
	r.setStatus(model.StatusDownloading)
	start = time.Now()
	dl, err := r.fetcher.Fetch(r.ctx, download.Request{
		URL:            r.desc.URL(),
		FormatSpec:     sel.FormatSpec(),
		OutputDir:      r.desc.OutputDir(),
		Stem:           r.stem,
		MergeContainer: mergeContainer(r.desc),
		Streams:        sel.Streams(),
	}, r.tracker, r.send)
	r.metrics.StageObserved(failure.StageDownload, time.Since(start))
	if err != nil {
		return r.fail(err)
	}
	src.Path = dl.Path

	if !src.HasDuration() && r.inspector != nil && (post.Requested() || r.desc.Kind() == model.KindAudio) {
		if info, err := r.inspector.Inspect(r.ctx, dl.Path); err != nil {
			r.log.Warn("inspection failed", "path", dl.Path, "error", err)
		} else {
			src = info.Source()
			if err := pipeline.Validate(post, src); err != nil {
				return r.fail(err)
			}
		}
	}

	// post-process
	plan := pipeline.BuildPlan(src, post, r.desc.Kind(), sel.NeedsExtraction, r.stem)
	if !plan.Empty() {
		r.setStatus(model.StatusProcessing)
	}
	start = time.Now()
	out, err := r.transcoder.Run(r.ctx, plan, r.emit)
	r.metrics.StageObserved(failure.StagePipeline, time.Since(start))
	if err != nil {
		return r.fail(err)
	}

	r.result.Outcome = model.OutcomeSuccess
	r.result.Artifacts = out.Artifacts
	size := platform.FileSize(out.Main())
	r.metrics.ArtifactWritten(string(r.desc.Kind()), size)
	r.log.Info("job succeeded", "artifact", out.Main(), "stages", plan.StageNames(), "elapsed", time.Since(r.result.StartedAt).Round(time.Millisecond))
	return r.result
}

// fail classifies err, removes every file of the run and returns the result
func (r *jobRun) fail(err error) model.JobResult {
	fe, ok := failure.As(err)
	if !ok {
		fe = failure.Wrap(err, failure.KindDownload, failure.CauseUnknown, "unexpected error")
	}
	if r.ctx.Err() != nil && fe.Kind != failure.KindCancelled && fe.Kind != failure.KindTimeout {
		fe = failure.Wrap(r.ctx.Err(), failure.KindCancelled, failure.CauseNone, "cancelled").InStage(fe.Stage)
	}

	if r.stem != "" {
		if err := platform.RemoveByStem(r.desc.OutputDir(), r.stem); err != nil {
			r.log.Warn("cleanup failed", "error", err)
		}
	}

	r.result.Err = fe
	r.result.Artifacts = nil
	if fe.Kind == failure.KindCancelled {
		r.result.Outcome = model.OutcomeCancelled
		r.log.Info("job cancelled", "stage", fe.Stage)
	} else {
		r.result.Outcome = model.OutcomeFailed
		r.log.Warn("job failed", "stage", fe.Stage, "kind", fe.Kind, "cause", fe.Cause, "retryable", fe.Retryable, "error", fe)
	}
	return r.result
}

// emit stamps ev with the run's tracker and sends it
func (r *jobRun) emit(ev model.ProgressEvent) {
	r.send(r.tracker.Stamp(ev))
}

// send delivers a stamped event; the send is dropped once the context is done
func (r *jobRun) send(ev model.ProgressEvent) {
	if r.events == nil || r.ctx.Err() != nil {
		return
	}
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// mergeContainer is the container separate streams are merged into
func mergeContainer(desc model.JobDescriptor) string {
	if desc.Kind() != model.KindVideo {
		return ""
	}
	return desc.Post().Container
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
