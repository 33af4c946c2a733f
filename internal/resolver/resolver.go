package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/platform"
)

// DefaultTimeout bounds one metadata probe
const DefaultTimeout = 60 * time.Second

// Resolver runs metadata-only resolver invocations
type Resolver struct {
	runner  platform.Runner
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithBinary sets the resolver executable
func WithBinary(path string) Option {
	return func(r *Resolver) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithTimeout sets the probe timeout; zero disables it
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver adapter on top of runner
func New(runner platform.Runner, opts ...Option) *Resolver {
	r := &Resolver{
		runner:  runner,
		binary:  platform.ResolverBinary,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Binary returns the resolver executable in use
func (r *Resolver) Binary() string {
	return r.binary
}

// BuildProbeArgs returns the arguments of a metadata-only invocation
func BuildProbeArgs(url string, playlistAware bool) []string {
	args := []string{"--dump-single-json", "--no-warnings", "--no-download"}
	if playlistAware {
		args = append(args, "--flat-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	return append(args, "--", url)
}

// Probe fetches metadata for url without downloading. With playlistAware a
// playlist URL yields its flat entry list; otherwise only the single item is
// probed. Missing fields are left zero.
func (r *Resolver) Probe(ctx context.Context, url string, playlistAware bool) (model.MediaMetadata, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	var out strings.Builder
	res, err := r.runner.Run(ctx, platform.Command{
		Name: r.binary,
		Args: BuildProbeArgs(url, playlistAware),
	}, func(l platform.Line) {
		if l.Stream == platform.Stdout {
			out.WriteString(l.Text)
		}
	})
	log := r.logger.With("url", url, "playlist_aware", playlistAware)
	if err != nil {
		fe := failure.FromRunError(failure.KindResolve, failure.StageResolve, err, true)
		log.Warn("metadata probe aborted", "kind", fe.Kind, "error", err)
		return model.MediaMetadata{}, fe
	}
	if res.ExitCode != 0 {
		fe := failure.ClassifyResolve(res.ExitCode, res.Stderr)
		log.Warn("metadata probe failed", "exit_code", res.ExitCode, "cause", fe.Cause)
		return model.MediaMetadata{}, fe
	}

	md, err := ParseMetadata([]byte(out.String()), url)
	if err != nil {
		return model.MediaMetadata{}, failure.Wrap(err, failure.KindResolve, failure.CauseUnknown,
			"unreadable resolver output").InStage(failure.StageResolve)
	}
	log.Debug("metadata probed",
		"title", md.Title,
		"formats", len(md.Formats),
		"entries", len(md.Entries),
		"elapsed", time.Since(start))
	return md, nil
}

// ListFormats returns the formats offered for a single item
func (r *Resolver) ListFormats(ctx context.Context, url string) ([]model.FormatCandidate, error) {
	md, err := r.Probe(ctx, url, false)
	if err != nil {
		return nil, err
	}
	return md.Formats, nil
}

// Expand returns the ordered entries of a playlist. A URL that resolves to a
// single item yields one entry pointing at itself.
func (r *Resolver) Expand(ctx context.Context, url string) (model.MediaMetadata, error) {
	md, err := r.Probe(ctx, url, true)
	if err != nil {
		return model.MediaMetadata{}, err
	}
	if !md.IsPlaylist {
		md.Entries = []model.PlaylistEntry{{
			Index:    1,
			ID:       md.ID,
			URL:      url,
			Title:    md.Title,
			Duration: md.Duration,
		}}
	}
	return md, nil
}
