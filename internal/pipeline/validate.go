package pipeline

import (
	"strconv"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
)

// Resize limits
const (
	MaxDimension = 8192
	MaxScale     = 4.0
)

// DefaultThumbnailAt is the thumbnail position when none is requested
const DefaultThumbnailAt = 1.0

// Source is the raw artifact a plan starts from
type Source struct {
	Path     string
	Duration float64 // seconds, 0 if unknown
	HasVideo bool
	HasAudio bool
	Width    int
	Height   int
}

// HasDuration reports whether the source length is known
func (s Source) HasDuration() bool { return s.Duration > 0 }

// effectiveDuration is the length the stages after trim observe
func effectiveDuration(post model.PostProcess, src Source) float64 {
	if post.Trim.IsSet() {
		return post.Trim.Duration()
	}
	return src.Duration
}

// thumbnailAt resolves the thumbnail position against the effective duration
func thumbnailAt(post model.PostProcess, src Source) float64 {
	if post.ThumbnailAt != 0 {
		return post.ThumbnailAt
	}
	if d := effectiveDuration(post, src); d > 0 && d < 2*DefaultThumbnailAt {
		return d / 2
	}
	return DefaultThumbnailAt
}

// Validate checks the requested post-processing against src and returns an
// InvalidRangeError before any transcoder is started. Bounds that depend on
// an unknown duration are not checked.
func Validate(post model.PostProcess, src Source) error {
	if t := post.Trim; t.IsSet() {
		switch {
		case t.Start < 0:
			return failure.InvalidRange("trim start %ss is negative", secs(t.Start))
		case t.Start >= t.End:
			return failure.InvalidRange("trim start %ss must be before end %ss", secs(t.Start), secs(t.End))
		case src.HasDuration() && t.End > src.Duration:
			return failure.InvalidRange("trim end %ss exceeds source duration %ss", secs(t.End), secs(src.Duration))
		}
	}

	if r := post.Resize; r.IsSet() {
		if !src.HasVideo {
			return failure.InvalidRange("resize requested but the source has no video stream")
		}
		switch {
		case r.Scale != 0 && (r.Width != 0 || r.Height != 0):
			return failure.InvalidRange("resize takes either dimensions or a scale factor, not both")
		case r.Scale != 0 && (r.Scale <= 0 || r.Scale > MaxScale):
			return failure.InvalidRange("resize scale %s is outside (0, %s]", secs(r.Scale), secs(MaxScale))
		case r.Width < 0 || r.Height < 0:
			return failure.InvalidRange("resize dimensions %s must be positive", r)
		case r.Width > MaxDimension || r.Height > MaxDimension:
			return failure.InvalidRange("resize dimensions %s exceed %dpx", r, MaxDimension)
		}
	}

	if post.Thumbnail {
		if !src.HasVideo {
			return failure.InvalidRange("thumbnail requested but the source has no video stream")
		}
		at := thumbnailAt(post, src)
		if at < 0 {
			return failure.InvalidRange("thumbnail position %ss is negative", secs(at))
		}
		if d := effectiveDuration(post, src); d > 0 && at >= d {
			return failure.InvalidRange("thumbnail position %ss is beyond the media length %ss", secs(at), secs(d))
		}
	}
	return nil
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
