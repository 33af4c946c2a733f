package download

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/progress"
)

// DefaultTimeout bounds one fetch
const DefaultTimeout = 2 * time.Hour

// Request describes one fetch of a single item
type Request struct {
	URL        string
	FormatSpec string
	OutputDir  string
	// Stem names every file written for the job-run
	Stem string
	// MergeContainer is passed when the format spec pairs separate streams
	MergeContainer string
	// Streams is the number of separate streams the spec fetches
	Streams int
}

// Result is the outcome of a successful fetch
type Result struct {
	Path string
	Size int64
}

// Executor runs the resolver in fetch mode
type Executor struct {
	runner  platform.Runner
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithBinary sets the resolver executable
func WithBinary(path string) Option {
	return func(e *Executor) {
		if path != "" {
			e.binary = path
		}
	}
}

// WithTimeout sets the fetch timeout; zero disables it
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates a new download executor
func NewExecutor(runner platform.Runner, opts ...Option) *Executor {
	e := &Executor{
		runner:  runner,
		binary:  platform.ResolverBinary,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// BuildArgs returns the resolver arguments for req. The stem is escaped so
// that the output template treats it literally.
func BuildArgs(req Request) []string {
	tmpl := filepath.Join(req.OutputDir, strings.ReplaceAll(req.Stem, "%", "%%")+".%(ext)s")
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"--no-mtime",
		"-f", req.FormatSpec,
		"-o", tmpl,
	}
	if req.MergeContainer != "" && strings.Contains(req.FormatSpec, "+") {
		args = append(args, "--merge-output-format", req.MergeContainer)
	}
	return append(args, "--", req.URL)
}

// Fetch downloads req into its output directory and reports progress through
// emit. Events are stamped by tracker, which may be shared with later
// phases of the same job-run. On failure or cancellation every file carrying
// the request stem is removed.
func (e *Executor) Fetch(ctx context.Context, req Request, tracker *progress.Tracker, emit func(model.ProgressEvent)) (Result, error) {
	if tracker == nil {
		tracker = progress.NewTracker("", 0)
	}
	tracker.SetStreams(req.Streams)

	if err := platform.CreateDirectoryIfNotExists(req.OutputDir); err != nil {
		return Result{}, failure.FromFileError(failure.KindDownload, failure.StageDownload, err)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	log := e.logger.With("url", req.URL, "format", req.FormatSpec, "stem", req.Stem)
	log.Info("download started")
	start := time.Now()

	var announced string
	res, err := e.runner.Run(runCtx, platform.Command{
		Name: e.binary,
		Args: BuildArgs(req),
	}, func(l platform.Line) {
		if l.Stream != platform.Stdout {
			return
		}
		if path, final, ok := progress.ParseDestination(l.Text); ok {
			if !final {
				tracker.BeginStream()
			}
			announced = path
		}
		if ev, ok := progress.ParseLine(l.Text); ok && emit != nil && runCtx.Err() == nil {
			emit(tracker.Stamp(ev))
		}
	})

	if err != nil {
		e.cleanup(req, log)
		fe := failure.FromRunError(failure.KindDownload, failure.StageDownload, err, true)
		log.Warn("download aborted", "kind", fe.Kind, "error", err)
		return Result{}, fe
	}
	if res.ExitCode != 0 {
		e.cleanup(req, log)
		fe := failure.ClassifyDownload(res.ExitCode, res.Stderr)
		log.Warn("download failed", "exit_code", res.ExitCode, "cause", fe.Cause)
		return Result{}, fe
	}

	path, err := artifactPath(req, announced)
	if err != nil {
		e.cleanup(req, log)
		return Result{}, failure.Wrap(err, failure.KindDownload, failure.CauseUnknown,
			"resolver reported success but no file was written").InStage(failure.StageDownload)
	}

	size := platform.FileSize(path)
	log.Info("download finished",
		"path", path,
		"size", humanize.Bytes(uint64(max(size, 0))),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return Result{Path: path, Size: size}, nil
}

// artifactPath prefers the file the resolver announced last and falls back
// to scanning the output directory for the stem.
func artifactPath(req Request, announced string) (string, error) {
	if announced != "" {
		if info, err := os.Stat(announced); err == nil && !info.IsDir() && !platform.IsWorkFile(announced) {
			return announced, nil
		}
	}
	return platform.FindDownloadedFile(req.OutputDir, req.Stem)
}

func (e *Executor) cleanup(req Request, log *slog.Logger) {
	if err := platform.RemoveByStem(req.OutputDir, req.Stem); err != nil {
		log.Warn("failed to remove partial files", "error", err)
	}
}
