package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ytget/velora/internal/model"
)

var (
	rePercent = regexp.MustCompile(
		`^\[download\]\s+([0-9.]+)%\s+of\s+~?\s*(\S+)(?:\s+in\s+(\S+))?(?:\s+at\s+(\S+(?:\s+speed)?))?(?:\s+ETA\s+(\S+))?`)
	reDestination = regexp.MustCompile(`^\[download\]\s+Destination:\s+(.+)$`)
	reAlready     = regexp.MustCompile(`^\[download\]\s+(.+?)\s+has already been downloaded`)
	reMerger      = regexp.MustCompile(`^\[Merger\]\s+Merging formats into\s+"(.+)"$`)
	rePostDest    = regexp.MustCompile(`^\[(ExtractAudio|VideoRemuxer|VideoConvertor)\].*Destination:\s+(.+)$`)
	rePost        = regexp.MustCompile(`^\[(ExtractAudio|VideoRemuxer|VideoConvertor|FixupM3u8|FixupM4a|Metadata)\]\s*(.*)$`)
	reExtractor   = regexp.MustCompile(`^\[([a-z][a-z0-9:_-]*)\]\s+(.+)$`)
)

var postPhases = map[string]model.Phase{
	"ExtractAudio":   model.PhaseExtractingAudio,
	"VideoRemuxer":   model.PhaseConverting,
	"VideoConvertor": model.PhaseConverting,
	"FixupM3u8":      model.PhaseMerging,
	"FixupM4a":       model.PhaseMerging,
	"Metadata":       model.PhaseMerging,
}

// ParseLine decodes one resolver output line into at most one event. It
// holds no state; job identity is stamped later by a Tracker.
func ParseLine(line string) (model.ProgressEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '[' {
		return model.ProgressEvent{}, false
	}

	if m := rePercent.FindStringSubmatch(line); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return model.ProgressEvent{}, false
		}
		ev := model.ProgressEvent{
			Phase:      model.PhaseDownloading,
			Percent:    clampPercent(pct),
			TotalBytes: parseSize(m[2]),
			Rate:       parseRate(m[4]),
			ETA:        parseClock(m[5]),
		}
		if m[3] != "" {
			ev.ETA = 0
		}
		return ev, true
	}
	if m := reDestination.FindStringSubmatch(line); m != nil {
		return model.ProgressEvent{Phase: model.PhaseDownloading, Percent: model.PercentUnknown, ETA: -1,
			Message: "destination " + m[1]}, true
	}
	if m := reAlready.FindStringSubmatch(line); m != nil {
		return model.ProgressEvent{Phase: model.PhaseDownloading, Percent: 100,
			Message: "already downloaded " + m[1]}, true
	}
	if m := reMerger.FindStringSubmatch(line); m != nil {
		return model.ProgressEvent{Phase: model.PhaseMerging, Percent: model.PercentUnknown, ETA: -1,
			Message: "merging into " + m[1]}, true
	}
	if m := rePost.FindStringSubmatch(line); m != nil {
		return model.ProgressEvent{Phase: postPhases[m[1]], Percent: model.PercentUnknown, ETA: -1,
			Message: m[2]}, true
	}
	if strings.HasPrefix(line, "[download]") {
		return model.ProgressEvent{}, false
	}
	if m := reExtractor.FindStringSubmatch(line); m != nil {
		return model.ProgressEvent{Phase: model.PhaseResolving, Percent: model.PercentUnknown, ETA: -1,
			Message: m[2]}, true
	}
	return model.ProgressEvent{}, false
}

// ParseDestination returns the file a resolver line announces as written:
// download destinations, already downloaded files, merge targets and
// post-processor outputs. final is true for merge and post-processor targets.
func ParseDestination(line string) (path string, final bool, ok bool) {
	line = strings.TrimSpace(line)
	if m := reDestination.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), false, true
	}
	if m := reAlready.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), false, true
	}
	if m := reMerger.FindStringSubmatch(line); m != nil {
		return m[1], true, true
	}
	if m := rePostDest.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[2]), true, true
	}
	return "", false, false
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// parseSize reads resolver sizes such as 10.50MiB; unknown sizes yield 0.
func parseSize(s string) int64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "~")
	if s == "" || strings.HasPrefix(s, "Unknown") {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}

func parseRate(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/s")
	if s == "" || strings.HasPrefix(s, "Unknown") {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return float64(n)
}

// parseClock reads [hh:]mm:ss; anything else is unknown (-1).
func parseClock(s string) time.Duration {
	if s == "" || s == "Unknown" {
		return -1
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return -1
	}
	total := 0
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return -1
		}
		total = total*60 + v
	}
	return time.Duration(total) * time.Second
}
