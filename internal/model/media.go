package model

import (
	"fmt"
	"strings"
)

// MediaMetadata is the result of one resolver probe. Missing fields are zero
// values; Duration 0 means unknown.
type MediaMetadata struct {
	ID         string
	Title      string
	Uploader   string
	Extractor  string
	Platform   string
	WebpageURL string
	Duration   float64
	IsPlaylist bool
	Formats    []FormatCandidate
	Entries    []PlaylistEntry
}

// HasDuration reports whether the source duration is known
func (m MediaMetadata) HasDuration() bool {
	return m.Duration > 0
}

// PlaylistEntry is one item of an expanded playlist
type PlaylistEntry struct {
	Index    int // 1-based position in the playlist
	ID       string
	URL      string
	Title    string
	Duration float64
}

// FormatCandidate is one concrete format offered by the resolver
type FormatCandidate struct {
	ID           string
	Container    string
	VideoCodec   string
	AudioCodec   string
	Width        int
	Height       int
	FPS          float64
	Bitrate      float64 // total bitrate in kbps
	AudioBitrate float64 // audio bitrate in kbps
	Size         int64   // exact or approximate size in bytes, 0 if unknown
	Protocol     string
	Note         string
}

// HasVideo reports whether the format carries a video stream
func (f FormatCandidate) HasVideo() bool {
	switch f.VideoCodec {
	case "none":
		return false
	case "":
		return f.Height > 0 || f.AudioCodec == ""
	}
	return true
}

// HasAudio reports whether the format carries an audio stream. An unreported
// audio codec is assumed present.
func (f FormatCandidate) HasAudio() bool {
	return f.AudioCodec != "none"
}

// AudioOnly reports whether the format is audio without video
func (f FormatCandidate) AudioOnly() bool {
	return f.HasAudio() && !f.HasVideo()
}

// IsStoryboard reports whether the format is an image storyboard
func (f FormatCandidate) IsStoryboard() bool {
	return f.Container == "mhtml" || f.Protocol == "mhtml" || strings.HasPrefix(f.ID, "sb")
}

// Resolution renders the frame size or "audio only"
func (f FormatCandidate) Resolution() string {
	if !f.HasVideo() {
		return "audio only"
	}
	if f.Width > 0 && f.Height > 0 {
		return fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	return "unknown"
}
