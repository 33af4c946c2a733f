package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the requested kind of artifact
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ParseKind parses "video" or "audio"
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindVideo:
		return KindVideo, nil
	case KindAudio:
		return KindAudio, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// QualityMode selects how a format is chosen within the kind filter
type QualityMode string

const (
	QualityBest     QualityMode = "best"
	QualityWorst    QualityMode = "worst"
	QualityExplicit QualityMode = "explicit"
)

// QualitySpec is a quality request. For explicit requests Value is the maximum
// height in pixels for video and the maximum bitrate in kbps for audio.
type QualitySpec struct {
	Mode  QualityMode
	Value int
}

// BestQuality is the default quality request
var BestQuality = QualitySpec{Mode: QualityBest}

// ParseQuality accepts best, worst, 720p, 720 and 192k
func ParseQuality(s string) (QualitySpec, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "best":
		return BestQuality, nil
	case "worst":
		return QualitySpec{Mode: QualityWorst}, nil
	}
	n, err := strconv.Atoi(strings.TrimRight(v, "pk"))
	if err != nil || n <= 0 {
		return QualitySpec{}, fmt.Errorf("invalid quality %q", s)
	}
	return QualitySpec{Mode: QualityExplicit, Value: n}, nil
}

func (q QualitySpec) String() string {
	if q.Mode == QualityExplicit {
		return fmt.Sprintf("<=%d", q.Value)
	}
	if q.Mode == "" {
		return string(QualityBest)
	}
	return string(q.Mode)
}

func (q QualitySpec) valid() bool {
	switch q.Mode {
	case QualityBest, QualityWorst:
		return true
	case QualityExplicit:
		return q.Value > 0
	}
	return false
}

// TrimRange is a [Start, End) range in seconds. The zero value means no trim.
type TrimRange struct {
	Start float64
	End   float64
}

// IsSet reports whether a trim was requested
func (t TrimRange) IsSet() bool {
	return t != TrimRange{}
}

// Duration returns End - Start
func (t TrimRange) Duration() float64 {
	return t.End - t.Start
}

// ParseTrim parses "START-END" where each side is seconds or [hh:]mm:ss.
func ParseTrim(s string) (TrimRange, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return TrimRange{}, fmt.Errorf("invalid trim range %q: expected START-END", s)
	}
	a, err := ParseTimestamp(start)
	if err != nil {
		return TrimRange{}, err
	}
	b, err := ParseTimestamp(end)
	if err != nil {
		return TrimRange{}, err
	}
	return TrimRange{Start: a, End: b}, nil
}

// ParseTimestamp parses seconds ("90", "90.5") or clock notation ("1:30", "01:01:30.5").
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// ResizeTarget is either explicit dimensions or a scale factor. A zero
// dimension keeps the aspect ratio. The zero value means no resize.
type ResizeTarget struct {
	Width  int
	Height int
	Scale  float64
}

// IsSet reports whether a resize was requested
func (r ResizeTarget) IsSet() bool {
	return r != ResizeTarget{}
}

func (r ResizeTarget) String() string {
	if r.Scale != 0 {
		return strconv.FormatFloat(r.Scale, 'g', -1, 64) + "x"
	}
	w, h := "", ""
	if r.Width > 0 {
		w = strconv.Itoa(r.Width)
	}
	if r.Height > 0 {
		h = strconv.Itoa(r.Height)
	}
	return w + "x" + h
}

// ParseResize accepts 1280x720, 1280x, x720, 0.5 and 50%.
func ParseResize(s string) (ResizeTarget, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return ResizeTarget{}, fmt.Errorf("empty resize target")
	}
	if w, h, ok := strings.Cut(v, "x"); ok {
		var r ResizeTarget
		var err error
		if w != "" {
			if r.Width, err = strconv.Atoi(w); err != nil {
				return ResizeTarget{}, fmt.Errorf("invalid resize width %q", w)
			}
		}
		if h != "" {
			if r.Height, err = strconv.Atoi(h); err != nil {
				return ResizeTarget{}, fmt.Errorf("invalid resize height %q", h)
			}
		}
		if r.Width == 0 && r.Height == 0 {
			return ResizeTarget{}, fmt.Errorf("invalid resize target %q", s)
		}
		return r, nil
	}
	div := 1.0
	if strings.HasSuffix(v, "%") {
		v = strings.TrimSuffix(v, "%")
		div = 100
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f == 0 {
		return ResizeTarget{}, fmt.Errorf("invalid resize target %q", s)
	}
	return ResizeTarget{Scale: f / div}, nil
}

// Encode quality presets for re-encoding conversions
const (
	EncodeLow    = "low"
	EncodeMedium = "medium"
	EncodeHigh   = "high"
	EncodeUltra  = "ultra"
)

// Default post-processing values
const (
	DefaultAudioFormat  = "mp3"
	DefaultAudioBitrate = "192k"
)

// PostProcess lists the requested post-processing. Zero fields are not requested.
type PostProcess struct {
	// Container is the target container; conversion runs when the
	// downloaded artifact has a different extension or VideoCodec is set.
	Container     string
	VideoCodec    string // "" copies streams; h264 or h265 re-encodes
	EncodeQuality string
	Trim          TrimRange
	Resize        ResizeTarget
	ExtractAudio  bool
	AudioFormat   string
	AudioBitrate  string
	Thumbnail     bool
	ThumbnailAt   float64 // seconds; 0 picks a default
}

// Requested reports whether any stage would run for a video artifact
func (p PostProcess) Requested() bool {
	return p.Container != "" || p.VideoCodec != "" || p.Trim.IsSet() ||
		p.Resize.IsSet() || p.ExtractAudio || p.Thumbnail
}

// Options is the full configuration of one acquisition. It is supplied by the
// caller; the engine reads no implicit defaults.
type Options struct {
	Kind         Kind
	Quality      QualitySpec
	IncludeAudio bool
	OutputDir    string
	Post         PostProcess
}

// Validate checks option consistency that does not depend on the source
func (o Options) Validate() error {
	if o.Kind != KindVideo && o.Kind != KindAudio {
		return fmt.Errorf("invalid kind %q", o.Kind)
	}
	if !o.Quality.valid() {
		return fmt.Errorf("invalid quality %+v", o.Quality)
	}
	if strings.TrimSpace(o.OutputDir) == "" {
		return fmt.Errorf("output directory is required")
	}
	switch o.Post.VideoCodec {
	case "", "h264", "h265":
	default:
		return fmt.Errorf("unsupported video codec %q", o.Post.VideoCodec)
	}
	switch o.Post.AudioFormat {
	case "", "mp3", "m4a", "aac", "opus", "ogg", "flac", "wav":
	default:
		return fmt.Errorf("unsupported audio format %q", o.Post.AudioFormat)
	}
	switch o.Post.EncodeQuality {
	case "", EncodeLow, EncodeMedium, EncodeHigh, EncodeUltra:
	default:
		return fmt.Errorf("unknown encode quality %q", o.Post.EncodeQuality)
	}
	return nil
}

func (o Options) fingerprint() string {
	return fmt.Sprintf("%s|%s|%t|%s|%+v", o.Kind, o.Quality, o.IncludeAudio, o.OutputDir, o.Post)
}
