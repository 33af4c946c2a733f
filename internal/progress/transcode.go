package progress

import (
	"strconv"
	"strings"
	"time"

	"github.com/ytget/velora/internal/model"
)

// Percent reported while a transcode is running never reaches 100 before
// the transcoder confirms the end.
const maxRunningPercent = 99.9

// TranscodeParser decodes ffmpeg "-progress" key=value output for one
// stage. Duration is the expected output length in seconds; 0 means unknown.
type TranscodeParser struct {
	Phase    model.Phase
	Duration float64

	outTime float64
	size    int64
	speed   float64
}

// ParseLine consumes one key=value line and returns an event at the end of
// every progress block.
func (p *TranscodeParser) ParseLine(line string) (model.ProgressEvent, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return model.ProgressEvent{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds as well in every ffmpeg release
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.outTime = float64(us) / 1e6
		}
	case "total_size":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.size = n
		}
	case "speed":
		if s, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			p.speed = s
		}
	case "progress":
		return p.event(value == "end"), true
	}
	return model.ProgressEvent{}, false
}

func (p *TranscodeParser) event(end bool) model.ProgressEvent {
	ev := model.ProgressEvent{
		Phase:      p.Phase,
		Percent:    model.PercentUnknown,
		ETA:        -1,
		TotalBytes: p.size,
	}
	switch {
	case end:
		ev.Percent = 100
		ev.ETA = 0
	case p.Duration > 0:
		ev.Percent = min(p.outTime/p.Duration*100, maxRunningPercent)
		if p.speed > 0 {
			remaining := (p.Duration - p.outTime) / p.speed
			if remaining > 0 {
				ev.ETA = time.Duration(remaining * float64(time.Second))
			}
		}
	}
	return ev
}
