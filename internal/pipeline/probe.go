package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/platform"
)

// DefaultProbeTimeout bounds one ffprobe call
const DefaultProbeTimeout = 30 * time.Second

// MediaInfo describes a local media file
type MediaInfo struct {
	Path       string
	Container  string
	Duration   float64 // seconds, 0 if unknown
	Size       int64
	BitRate    int64
	VideoCodec string
	Width      int
	Height     int
	FrameRate  string
	AudioCodec string
	Channels   int
	SampleRate int
}

// HasVideo reports whether a non-cover video stream is present
func (m MediaInfo) HasVideo() bool { return m.VideoCodec != "" }

// HasAudio reports whether an audio stream is present
func (m MediaInfo) HasAudio() bool { return m.AudioCodec != "" }

// Source converts the probe result into pipeline input
func (m MediaInfo) Source() Source {
	return Source{
		Path:     m.Path,
		Duration: m.Duration,
		HasVideo: m.HasVideo(),
		HasAudio: m.HasAudio(),
		Width:    m.Width,
		Height:   m.Height,
	}
}

// Prober runs ffprobe
type Prober struct {
	runner  platform.Runner
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a prober; an empty binary means ffprobe from PATH
func NewProber(runner platform.Runner, binary string, logger *slog.Logger) *Prober {
	if binary == "" {
		binary = platform.FFprobeBinary
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Prober{runner: runner, binary: binary, timeout: DefaultProbeTimeout, logger: logger}
}

// Binary returns the ffprobe executable in use
func (p *Prober) Binary() string { return p.binary }

// Inspect runs a single ffprobe JSON call against path
func (p *Prober) Inspect(ctx context.Context, path string) (MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var out strings.Builder
	res, err := p.runner.Run(ctx, platform.Command{
		Name: p.binary,
		Args: []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", "--", path},
	}, func(l platform.Line) {
		if l.Stream == platform.Stdout {
			out.WriteString(l.Text)
		}
	})
	if err != nil {
		return MediaInfo{}, failure.FromRunError(failure.KindTranscode, failure.StageInspect, err, false)
	}
	if res.ExitCode != 0 {
		return MediaInfo{}, failure.ClassifyTranscode(failure.StageInspect, res.ExitCode, res.Stderr)
	}

	info, err := ParseProbe([]byte(out.String()))
	if err != nil {
		return MediaInfo{}, failure.Wrap(err, failure.KindTranscode, failure.CauseInvalidInput,
			"unreadable probe output").InStage(failure.StageInspect)
	}
	if info.Path == "" {
		info.Path = path
	}
	p.logger.Debug("media inspected", "path", path, "duration", info.Duration, "video", info.VideoCodec, "audio", info.AudioCodec)
	return info, nil
}

// ParseProbe converts raw ffprobe JSON output into a MediaInfo.
// Exported for testing without a real ffprobe binary.
func ParseProbe(data []byte) (MediaInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return MediaInfo{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	info := MediaInfo{
		Path:     raw.Format.Filename,
		Duration: parseFloat(raw.Format.Duration),
		Size:     parseInt64(raw.Format.Size),
		BitRate:  parseInt64(raw.Format.BitRate),
	}
	if ext := strings.TrimPrefix(filepath.Ext(info.Path), "."); ext != "" {
		info.Container = strings.ToLower(ext)
	} else if name, _, _ := strings.Cut(raw.Format.FormatName, ","); name != "" {
		info.Container = name
	}

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if s.Disposition["attached_pic"] == 1 || info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = s.AvgFrameRate
			if d := parseFloat(s.Duration); info.Duration == 0 && d > 0 {
				info.Duration = d
			}
		case "audio":
			if info.AudioCodec != "" {
				continue
			}
			info.AudioCodec = s.CodecName
			info.Channels = s.Channels
			info.SampleRate = int(parseInt64(s.SampleRate))
			if d := parseFloat(s.Duration); info.Duration == 0 && d > 0 {
				info.Duration = d
			}
		}
	}
	return info, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	Channels     int            `json:"channels"`
	SampleRate   string         `json:"sample_rate"`
	Duration     string         `json:"duration"`
	Disposition  map[string]int `json:"disposition"`
}

// ffprobe returns numbers as strings

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
