package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the top-level failure category of a job-run.
type Kind string

const (
	KindResolve          Kind = "resolve"
	KindNoMatchingFormat Kind = "no_matching_format"
	KindDownload         Kind = "download"
	KindInvalidRange     Kind = "invalid_range"
	KindTranscode        Kind = "transcode"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
)

// Cause refines a Kind with what actually went wrong.
type Cause string

const (
	CauseNone             Cause = ""
	CauseNetwork          Cause = "network"
	CauseUnsupportedURL   Cause = "unsupported_url"
	CauseMalformedURL     Cause = "malformed_url"
	CausePrivate          Cause = "private"
	CauseRegionRestricted Cause = "region_restricted"
	CauseNotFound         Cause = "not_found"
	CauseDiskFull         Cause = "disk_full"
	CausePermission       Cause = "permission"
	CauseToolMissing      Cause = "tool_missing"
	CauseToolCrash        Cause = "tool_crash"
	CauseNoStream         Cause = "no_stream"
	CauseInvalidInput     Cause = "invalid_input"
	CauseUnsupportedCodec Cause = "unsupported_codec"
	CauseUnknown          Cause = "unknown"
)

// Stage names used in Error.Stage.
const (
	StageResolve   = "resolve"
	StageSelect    = "select"
	StageValidate  = "validate"
	StageDownload  = "download"
	StagePipeline  = "postprocess"
	StageInspect   = "inspect"
	StageExpansion = "expand"
)

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrResolve          = errors.New("resolve error")
	ErrNoMatchingFormat = errors.New("no matching format")
	ErrDownload         = errors.New("download error")
	ErrInvalidRange     = errors.New("invalid range")
	ErrTranscode        = errors.New("transcode error")
	ErrTimeout          = errors.New("timeout")
	ErrCancelled        = errors.New("cancelled")
)

var sentinels = map[Kind]error{
	KindResolve:          ErrResolve,
	KindNoMatchingFormat: ErrNoMatchingFormat,
	KindDownload:         ErrDownload,
	KindInvalidRange:     ErrInvalidRange,
	KindTranscode:        ErrTranscode,
	KindTimeout:          ErrTimeout,
	KindCancelled:        ErrCancelled,
}

// stderrTailLimit bounds how much diagnostic output an Error keeps.
const stderrTailLimit = 2048

// Error is a classified job-run failure.
type Error struct {
	Kind      Kind
	Cause     Cause
	Stage     string
	Message   string
	ExitCode  int
	Stderr    string
	Retryable bool
	Err       error
}

// New returns an Error of the given kind and cause with a formatted message.
// The retry recommendation defaults to true only for network causes.
func New(kind Kind, cause Cause, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Cause:     cause,
		Message:   fmt.Sprintf(format, args...),
		Retryable: cause == CauseNetwork,
	}
}

// Wrap is New with an underlying error attached.
func Wrap(err error, kind Kind, cause Cause, format string, args ...any) *Error {
	e := New(kind, cause, format, args...)
	e.Err = err
	return e
}

// InStage sets the stage and returns e for chaining.
func (e *Error) InStage(stage string) *Error {
	e.Stage = stage
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(e.Stage)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit status %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && target == s
}

// UserActionable reports whether the user can fix the failure themselves
// (URL, connection, disk space, parameters) as opposed to an internal tool
// failure of the resolver or transcoder.
func (e *Error) UserActionable() bool {
	switch e.Kind {
	case KindInvalidRange, KindNoMatchingFormat, KindCancelled:
		return true
	}
	switch e.Cause {
	case CauseToolMissing, CauseToolCrash, CauseUnsupportedCodec, CauseUnknown, CauseNone:
		return false
	}
	return true
}

// Hint returns short actionable guidance for the failure.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindCancelled:
		return "the job was cancelled"
	case KindInvalidRange:
		return "adjust the trim, resize or thumbnail parameters to fit the source"
	case KindNoMatchingFormat:
		return "choose a different quality or media kind"
	case KindTimeout:
		if e.Retryable {
			return "the operation timed out; check your connection and retry"
		}
		return "the transcoder stalled; try different post-processing options"
	}
	if h, ok := causeHints[e.Cause]; ok {
		return h
	}
	return "the external tool failed; see the diagnostic output"
}

var causeHints = map[Cause]string{
	CauseNetwork:          "check your internet connection and try again",
	CauseUnsupportedURL:   "this site or URL is not supported; check the URL",
	CauseMalformedURL:     "the URL is invalid; check it and try again",
	CausePrivate:          "the media is private or unavailable; try a different URL",
	CauseRegionRestricted: "the media is not available in your region",
	CauseNotFound:         "the media was not found; check the URL",
	CauseDiskFull:         "free disk space in the output directory",
	CausePermission:       "check write permissions of the output directory",
	CauseToolMissing:      "install yt-dlp and ffmpeg or configure their paths",
	CauseToolCrash:        "the external tool crashed; update it and retry",
	CauseNoStream:         "the source has no stream suitable for this operation",
	CauseInvalidInput:     "the downloaded file is damaged; retry the download",
	CauseUnsupportedCodec: "the requested codec is not available in this ffmpeg build",
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err carries a retry recommendation.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTailLimit {
		return s
	}
	return s[len(s)-stderrTailLimit:]
}
