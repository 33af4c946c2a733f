package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/progress"
)

// DefaultStageTimeout bounds one transcoder invocation
const DefaultStageTimeout = 30 * time.Minute

// Output lists the artifacts a plan retained, main artifact first
type Output struct {
	Artifacts []string
}

// Main returns the primary artifact
func (o Output) Main() string {
	if len(o.Artifacts) == 0 {
		return ""
	}
	return o.Artifacts[0]
}

// Pipeline executes plans with ffmpeg
type Pipeline struct {
	runner       platform.Runner
	binary       string
	stageTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithBinary sets the ffmpeg executable
func WithBinary(path string) Option {
	return func(p *Pipeline) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithStageTimeout sets the per-stage timeout; zero disables it
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline on top of runner
func New(runner platform.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		runner:       runner,
		binary:       platform.FFmpegBinary,
		stageTimeout: DefaultStageTimeout,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Binary returns the ffmpeg executable in use
func (p *Pipeline) Binary() string { return p.binary }

// Run executes the stages of plan in order. The first failing stage aborts
// the plan and the outputs of all stages are removed; the source is left
// to the caller. On success the retained files are renamed to their final
// names and every other file of the stem is removed.
func (p *Pipeline) Run(ctx context.Context, plan Plan, emit func(model.ProgressEvent)) (Output, error) {
	log := p.logger.With("stem", plan.Stem)

	for _, st := range plan.Stages {
		if ctx.Err() != nil {
			p.removeOutputs(plan, log)
			return Output{}, failure.Cancelled(string(st.Name))
		}
		start := time.Now()
		if err := p.runStage(ctx, st, emit); err != nil {
			p.removeOutputs(plan, log)
			log.Warn("stage failed", "stage", st.Name, "error", err)
			return Output{}, err
		}
		log.Debug("stage finished", "stage", st.Name, "output", st.Output, "elapsed", time.Since(start).Round(time.Millisecond))
	}

	out := Output{Artifacts: make([]string, 0, len(plan.Retain))}
	for _, r := range plan.Retain {
		if r.From != r.To {
			if err := os.Rename(r.From, r.To); err != nil {
				p.removeOutputs(plan, log)
				return Output{}, failure.FromFileError(failure.KindTranscode, failure.StagePipeline, err)
			}
		}
		out.Artifacts = append(out.Artifacts, r.To)
	}
	if err := platform.RemoveExcept(plan.Dir, plan.Stem, out.Artifacts...); err != nil {
		log.Warn("failed to remove superseded files", "error", err)
	}
	return out, nil
}

func (p *Pipeline) runStage(ctx context.Context, st Stage, emit func(model.ProgressEvent)) error {
	stageCtx := ctx
	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	send := func(ev model.ProgressEvent) {
		if emit != nil && ctx.Err() == nil {
			emit(ev)
		}
	}
	send(model.ProgressEvent{Phase: st.Phase(), Percent: 0, ETA: -1, Message: string(st.Name)})

	parser := &progress.TranscodeParser{Phase: st.Phase(), Duration: st.Duration}
	res, err := p.runner.Run(stageCtx, platform.Command{
		Name: p.binary,
		Args: st.CommandArgs(),
	}, func(l platform.Line) {
		if l.Stream != platform.Stdout {
			return
		}
		if ev, ok := parser.ParseLine(l.Text); ok {
			send(ev)
		}
	})
	if err != nil {
		return failure.FromRunError(failure.KindTranscode, string(st.Name), err, false)
	}
	if res.ExitCode != 0 {
		return failure.ClassifyTranscode(string(st.Name), res.ExitCode, res.Stderr)
	}
	if platform.FileSize(st.Output) <= 0 {
		return failure.New(failure.KindTranscode, failure.CauseUnknown,
			"transcoder produced no output").InStage(string(st.Name))
	}
	return nil
}

func (p *Pipeline) removeOutputs(plan Plan, log *slog.Logger) {
	for _, st := range plan.Stages {
		if err := os.Remove(st.Output); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove stage output", "path", st.Output, "error", err)
		}
	}
}
