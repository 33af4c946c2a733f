package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ytget/velora/internal/model"
)

// StageName identifies a post-processing stage
type StageName string

// Stages in execution order
const (
	StageConvert      StageName = "convert"
	StageTrim         StageName = "trim"
	StageResize       StageName = "resize"
	StageExtractAudio StageName = "extract-audio"
	StageThumbnail    StageName = "thumbnail"
)

var stagePhases = map[StageName]model.Phase{
	StageConvert:      model.PhaseConverting,
	StageTrim:         model.PhaseTrimming,
	StageResize:       model.PhaseResizing,
	StageExtractAudio: model.PhaseExtractingAudio,
	StageThumbnail:    model.PhaseThumbnailing,
}

// FFmpeg settings for re-encoding
const (
	// Audio settings used when a conversion re-encodes
	EncodeAudioCodec   = "aac"
	EncodeAudioBitrate = "128k"

	// Container flags
	FastStartFlag = "+faststart"

	ThumbnailExt = "jpg"
)

// commonArgs precede every stage; progress goes to stdout as key=value lines
var commonArgs = []string{
	"-hide_banner", "-nostdin", "-y",
	"-loglevel", "error",
	"-progress", "pipe:1",
	"-nostats",
}

type encodeSetting struct {
	crf    string
	preset string
}

var videoEncoders = map[string]string{
	"h264": "libx264",
	"h265": "libx265",
}

var encodeQuality = map[string]map[string]encodeSetting{
	"libx264": {
		model.EncodeLow:    {"28", "fast"},
		model.EncodeMedium: {"23", "medium"},
		model.EncodeHigh:   {"18", "slow"},
		model.EncodeUltra:  {"15", "veryslow"},
	},
	"libx265": {
		model.EncodeLow:    {"32", "fast"},
		model.EncodeMedium: {"28", "medium"},
		model.EncodeHigh:   {"23", "slow"},
		model.EncodeUltra:  {"18", "veryslow"},
	},
}

var audioCodecs = map[string]string{
	"mp3":  "libmp3lame",
	"m4a":  "aac",
	"aac":  "aac",
	"opus": "libopus",
	"ogg":  "libvorbis",
	"flac": "flac",
	"wav":  "pcm_s16le",
}

var losslessAudio = map[string]bool{"flac": true, "wav": true}

var fastStartContainers = map[string]bool{"mp4": true, "m4v": true, "mov": true, "m4a": true}

// Stage is one transcoder invocation
type Stage struct {
	Name   StageName
	Input  string
	Output string
	// Args follow the common preamble
	Args []string
	// Duration is the expected output length in seconds, 0 if unknown
	Duration float64
}

// Phase returns the progress phase of the stage
func (s Stage) Phase() model.Phase { return stagePhases[s.Name] }

// CommandArgs returns the complete ffmpeg argument list
func (s Stage) CommandArgs() []string {
	args := make([]string, 0, len(commonArgs)+len(s.Args))
	args = append(args, commonArgs...)
	return append(args, s.Args...)
}

// Rename moves a retained file to its final name
type Rename struct {
	From string
	To   string
}

// Plan is the ordered list of stages for one artifact
type Plan struct {
	Dir    string
	Stem   string
	Source string
	Stages []Stage
	// Retain lists the files kept on success, main artifact first
	Retain []Rename
}

// Empty reports whether no stage runs
func (p Plan) Empty() bool { return len(p.Stages) == 0 }

// StageNames returns the stage names in order
func (p Plan) StageNames() []StageName {
	names := make([]StageName, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	return names
}

// BuildPlan derives the stages needed to turn src into the requested
// artifacts. For audio jobs the audio extraction produces the main artifact
// and runs whenever the download is not already in the requested format;
// forceAudio makes it run regardless, e.g. when a muxed format was
// downloaded. Validate must have accepted post for src.
func BuildPlan(src Source, post model.PostProcess, kind model.Kind, forceAudio bool, stem string) Plan {
	dir := filepath.Dir(src.Path)
	p := Plan{Dir: dir, Stem: stem, Source: src.Path}
	work := func(name StageName, ext string) string {
		return filepath.Join(dir, stem+"."+string(name)+"."+ext)
	}
	final := func(ext string) string {
		return filepath.Join(dir, stem+"."+ext)
	}

	current := src.Path
	ext := extension(src.Path)
	duration := src.Duration

	container := strings.ToLower(post.Container)
	if container == "" {
		container = ext
	}
	if kind == model.KindVideo && (container != ext || post.VideoCodec != "") {
		out := work(StageConvert, container)
		p.Stages = append(p.Stages, Stage{
			Name:     StageConvert,
			Input:    current,
			Output:   out,
			Args:     convertArgs(current, out, container, post),
			Duration: duration,
		})
		current, ext = out, container
	}

	if t := post.Trim; t.IsSet() {
		out := work(StageTrim, ext)
		p.Stages = append(p.Stages, Stage{
			Name:     StageTrim,
			Input:    current,
			Output:   out,
			Args:     trimArgs(current, out, t),
			Duration: t.Duration(),
		})
		current, duration = out, t.Duration()
	}

	if post.Resize.IsSet() {
		out := work(StageResize, ext)
		p.Stages = append(p.Stages, Stage{
			Name:     StageResize,
			Input:    current,
			Output:   out,
			Args:     resizeArgs(current, out, ext, post),
			Duration: duration,
		})
		current = out
	}

	main := Rename{From: current, To: final(ext)}
	var extras []Rename

	format := post.AudioFormat
	if format == "" {
		format = model.DefaultAudioFormat
	}
	audioJob := kind == model.KindAudio
	if post.ExtractAudio || (audioJob && (forceAudio || src.HasVideo || ext != format)) {
		out := work(StageExtractAudio, format)
		p.Stages = append(p.Stages, Stage{
			Name:     StageExtractAudio,
			Input:    current,
			Output:   out,
			Args:     extractAudioArgs(current, out, format, post.AudioBitrate),
			Duration: duration,
		})
		audio := Rename{From: out, To: final(format)}
		switch {
		case audioJob:
			main = audio
		case format == ext:
			// keep the work name so the video artifact is not overwritten
			extras = append(extras, Rename{From: out, To: out})
		default:
			extras = append(extras, audio)
		}
	}

	if post.Thumbnail {
		out := work(StageThumbnail, ThumbnailExt)
		p.Stages = append(p.Stages, Stage{
			Name:   StageThumbnail,
			Input:  current,
			Output: out,
			Args:   thumbnailArgs(current, out, thumbnailAt(post, src)),
		})
		extras = append(extras, Rename{From: out, To: final(ThumbnailExt)})
	}

	p.Retain = append([]Rename{main}, extras...)
	return p
}

func convertArgs(in, out, container string, post model.PostProcess) []string {
	args := []string{"-i", in}
	if enc, ok := videoEncoders[post.VideoCodec]; ok {
		q := encodeQuality[enc][qualityOrDefault(post.EncodeQuality)]
		bitrate := post.AudioBitrate
		if bitrate == "" {
			bitrate = EncodeAudioBitrate
		}
		args = append(args,
			"-c:v", enc,
			"-preset", q.preset,
			"-crf", q.crf,
			"-c:a", containerAudioCodec(container),
			"-b:a", bitrate,
		)
	} else {
		args = append(args, "-c", "copy")
	}
	if fastStartContainers[container] {
		args = append(args, "-movflags", FastStartFlag)
	}
	return append(args, out)
}

func trimArgs(in, out string, t model.TrimRange) []string {
	return []string{
		"-ss", secs(t.Start),
		"-i", in,
		"-t", secs(t.Duration()),
		"-c", "copy",
		out,
	}
}

func resizeArgs(in, out, container string, post model.PostProcess) []string {
	args := []string{"-i", in, "-vf", ScaleFilter(post.Resize)}
	enc, ok := videoEncoders[post.VideoCodec]
	switch {
	case ok:
	case container == "webm":
		args = append(args, "-c:v", "libvpx-vp9", "-crf", "32", "-b:v", "0")
		return append(args, "-c:a", "copy", out)
	default:
		enc = videoEncoders["h264"]
	}
	q := encodeQuality[enc][qualityOrDefault(post.EncodeQuality)]
	args = append(args, "-c:v", enc, "-preset", q.preset, "-crf", q.crf, "-c:a", "copy")
	if fastStartContainers[container] {
		args = append(args, "-movflags", FastStartFlag)
	}
	return append(args, out)
}

func extractAudioArgs(in, out, format, bitrate string) []string {
	args := []string{"-i", in, "-vn", "-c:a", audioCodecs[format]}
	if !losslessAudio[format] {
		if bitrate == "" {
			bitrate = model.DefaultAudioBitrate
		}
		args = append(args, "-b:a", bitrate)
	}
	return append(args, out)
}

func thumbnailArgs(in, out string, at float64) []string {
	return []string{
		"-ss", secs(at),
		"-i", in,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
}

// ScaleFilter returns the ffmpeg scale filter for r. A missing dimension
// keeps the aspect ratio; dimensions derived from a scale factor are even.
func ScaleFilter(r model.ResizeTarget) string {
	if r.Scale != 0 {
		s := secs(r.Scale)
		return "scale=trunc(iw*" + s + "/2)*2:trunc(ih*" + s + "/2)*2"
	}
	w, h := "-2", "-2"
	if r.Width > 0 {
		w = strconv.Itoa(r.Width)
	}
	if r.Height > 0 {
		h = strconv.Itoa(r.Height)
	}
	return "scale=" + w + ":" + h
}

func containerAudioCodec(container string) string {
	if container == "webm" {
		return "libopus"
	}
	return EncodeAudioCodec
}

func qualityOrDefault(q string) string {
	if q == "" {
		return model.EncodeMedium
	}
	return q
}

func extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
