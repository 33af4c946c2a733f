package failure

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"regexp"
	"syscall"
)

// Pre-compiled patterns over resolver and transcoder stderr. Rule lists are
// evaluated in order; the first match decides the cause.
var (
	reDiskFull = regexp.MustCompile(
		`(?i)No space left on device|ENOSPC|Disk quota exceeded`)

	rePermission = regexp.MustCompile(
		`(?i)Permission denied|EACCES|Read-only file system|Operation not permitted`)

	reMalformedURL = regexp.MustCompile(
		`(?i)is not a valid URL|Invalid URL|unknown url type|No such host is known|URL could not be parsed`)

	reUnsupportedURL = regexp.MustCompile(
		`(?i)Unsupported URL|No suitable extractor|does not match any extractor`)

	rePrivate = regexp.MustCompile(
		`(?i)Private video|This video is private|Video unavailable|members-only|` +
			`Sign in to confirm your age|has been removed|account associated with this video has been terminated|` +
			`This video is no longer available|HTTP Error 403|login required|requires authentication`)

	reRegion = regexp.MustCompile(
		`(?i)not available in your country|geo.?restrict|blocked it in your country|` +
			`not made this video available in your country|not available from your location`)

	reNotFound = regexp.MustCompile(
		`(?i)HTTP Error 404|\b404\b|not found|does not exist`)

	reNetwork = regexp.MustCompile(
		`(?i)Unable to download (webpage|API page|JSON metadata|video data)|urlopen error|` +
			`timed out|Connection (reset|refused|aborted)|Temporary failure in name resolution|` +
			`Name or service not known|Network is unreachable|No route to host|HTTP Error 5\d\d|` +
			`HTTP Error 429|IncompleteRead|Remote end closed connection|SSL: |` +
			`giving up after \d+ retries|Got error:`)

	reNoStream = regexp.MustCompile(
		`(?i)does not contain any stream|matches no streams|Output file .* does not contain|` +
			`Stream specifier .* matches no streams|no audio stream|no video stream`)

	reInvalidInput = regexp.MustCompile(
		`(?i)Invalid data found when processing input|moov atom not found|` +
			`could not find codec parameters|End of file|Invalid argument`)

	reUnsupportedCodec = regexp.MustCompile(
		`(?i)Unknown encoder|Encoder .* not found|Could not find tag for codec|` +
			`codec not currently supported in container|Unsupported codec`)
)

type rule struct {
	re    *regexp.Regexp
	cause Cause
}

var resolverRules = []rule{
	{reDiskFull, CauseDiskFull},
	{reMalformedURL, CauseMalformedURL},
	{reUnsupportedURL, CauseUnsupportedURL},
	{reRegion, CauseRegionRestricted},
	{rePrivate, CausePrivate},
	{reNotFound, CauseNotFound},
	{reNetwork, CauseNetwork},
	{rePermission, CausePermission},
}

var transcoderRules = []rule{
	{reDiskFull, CauseDiskFull},
	{rePermission, CausePermission},
	{reUnsupportedCodec, CauseUnsupportedCodec},
	{reNoStream, CauseNoStream},
	{reInvalidInput, CauseInvalidInput},
}

var causeMessages = map[Cause]string{
	CauseNetwork:          "network failure",
	CauseUnsupportedURL:   "unsupported URL",
	CauseMalformedURL:     "malformed URL",
	CausePrivate:          "media is private or unavailable",
	CauseRegionRestricted: "media is region-restricted",
	CauseNotFound:         "media not found",
	CauseDiskFull:         "disk full",
	CausePermission:       "permission denied",
	CauseToolMissing:      "external tool not found",
	CauseToolCrash:        "external tool crashed",
	CauseNoStream:         "no matching stream in input",
	CauseInvalidInput:     "invalid input file",
	CauseUnsupportedCodec: "unsupported codec",
}

func match(stderr string, rules []rule) Cause {
	for _, r := range rules {
		if r.re.MatchString(stderr) {
			return r.cause
		}
	}
	return CauseUnknown
}

// crashed reports whether an exit code indicates termination by a signal.
func crashed(exitCode int) bool {
	return exitCode < 0 || exitCode > 128
}

func classify(kind Kind, stage, fallback string, exitCode int, stderr string, rules []rule) *Error {
	cause := match(stderr, rules)
	if cause == CauseUnknown && crashed(exitCode) {
		cause = CauseToolCrash
	}
	msg, ok := causeMessages[cause]
	if !ok {
		msg = fallback
	}
	e := New(kind, cause, "%s", msg)
	e.Stage = stage
	e.ExitCode = exitCode
	e.Stderr = tail(stderr)
	return e
}

// ClassifyResolve maps a failed metadata probe into a ResolveError.
func ClassifyResolve(exitCode int, stderr string) *Error {
	return classify(KindResolve, StageResolve, "metadata probe failed", exitCode, stderr, resolverRules)
}

// ClassifyDownload maps a failed fetch into a DownloadError.
func ClassifyDownload(exitCode int, stderr string) *Error {
	return classify(KindDownload, StageDownload, "download failed", exitCode, stderr, resolverRules)
}

// ClassifyTranscode maps a failed transcoder stage into a TranscodeError.
// Transcoder failures are never retryable.
func ClassifyTranscode(stage string, exitCode int, stderr string) *Error {
	e := classify(KindTranscode, stage, "transcoder failed", exitCode, stderr, transcoderRules)
	e.Retryable = false
	return e
}

// FromRunError classifies an error returned while starting or waiting for an
// external process (as opposed to a non-zero exit). A missing file here is
// the executable itself. kind is used for start
// failures; networkBound decides whether a timeout is retryable.
func FromRunError(kind Kind, stage string, err error, networkBound bool) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		e := Wrap(err, KindCancelled, CauseNone, "cancelled")
		e.Stage = stage
		return e
	case errors.Is(err, context.DeadlineExceeded):
		cause := CauseNone
		if networkBound {
			cause = CauseNetwork
		}
		e := Wrap(err, KindTimeout, cause, "timed out")
		e.Stage = stage
		e.Retryable = networkBound
		return e
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return Wrap(err, kind, CauseToolMissing, "%s", causeMessages[CauseToolMissing]).InStage(stage)
	case errors.Is(err, syscall.ENOSPC):
		return Wrap(err, kind, CauseDiskFull, "%s", causeMessages[CauseDiskFull]).InStage(stage)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(err, kind, CausePermission, "%s", causeMessages[CausePermission]).InStage(stage)
	}
	return Wrap(err, kind, CauseUnknown, "%s failed", stage).InStage(stage)
}

// FromFileError classifies a file system error outside any external
// process, such as creating the output directory or renaming an artifact.
func FromFileError(kind Kind, stage string, err error) *Error {
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return Wrap(err, kind, CauseDiskFull, "%s", causeMessages[CauseDiskFull]).InStage(stage)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(err, kind, CausePermission, "%s", causeMessages[CausePermission]).InStage(stage)
	}
	return Wrap(err, kind, CauseUnknown, "%s failed", stage).InStage(stage)
}

// Cancelled returns a CancelledError for stage.
func Cancelled(stage string) *Error {
	return Wrap(context.Canceled, KindCancelled, CauseNone, "cancelled").InStage(stage)
}

// InvalidRange returns an InvalidRangeError with a formatted message.
func InvalidRange(format string, args ...any) *Error {
	return New(KindInvalidRange, CauseNone, format, args...).InStage(StageValidate)
}

// NoMatchingFormat returns a NoMatchingFormatError with a formatted message.
func NoMatchingFormat(format string, args ...any) *Error {
	return New(KindNoMatchingFormat, CauseNone, format, args...).InStage(StageSelect)
}
