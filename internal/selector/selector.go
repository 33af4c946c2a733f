// Package selector picks one concrete format from the resolver's candidate
// set for a requested kind and quality. Selection is deterministic: equal
// inputs always produce the same format identifier.
package selector

import (
	"cmp"
	"slices"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
)

// Selection is the outcome of a format choice
type Selection struct {
	Format model.FormatCandidate
	// Audio is the audio-only stream merged with a video-only Format
	Audio *model.FormatCandidate
	// NeedsExtraction is set when audio was requested but only muxed
	// formats exist; the audio track must be extracted after download
	NeedsExtraction bool
}

// FormatSpec returns the resolver format selector, e.g. "137+140"
func (s Selection) FormatSpec() string {
	if s.Audio != nil {
		return s.Format.ID + "+" + s.Audio.ID
	}
	return s.Format.ID
}

// Streams returns how many separate downloads the selection needs
func (s Selection) Streams() int {
	if s.Audio != nil {
		return 2
	}
	return 1
}

// Select filters formats by kind and picks one by quality. For video with
// includeAudio a video-only pick is paired with the best audio-only stream.
func Select(formats []model.FormatCandidate, kind model.Kind, q model.QualitySpec, includeAudio bool) (Selection, error) {
	if kind == model.KindAudio {
		return selectAudio(formats, q)
	}
	return selectVideo(formats, q, includeAudio)
}

func selectVideo(formats []model.FormatCandidate, q model.QualitySpec, includeAudio bool) (Selection, error) {
	videos := filter(formats, func(f model.FormatCandidate) bool { return f.HasVideo() })
	if len(videos) == 0 {
		return Selection{}, failure.NoMatchingFormat("no video formats available")
	}

	pick, ok := pickVideo(videos, q)
	if !ok {
		return Selection{}, failure.NoMatchingFormat("no video format at or below %dp", q.Value)
	}
	sel := Selection{Format: pick}
	if !includeAudio || pick.HasAudio() {
		return sel, nil
	}

	audios := filter(formats, func(f model.FormatCandidate) bool { return f.AudioOnly() })
	if len(audios) > 0 {
		best := slices.MaxFunc(audios, compareAudio)
		sel.Audio = &best
		return sel, nil
	}
	// no separate audio stream: prefer a muxed format within the same limit
	muxed := filter(videos, func(f model.FormatCandidate) bool { return f.HasAudio() })
	if m, ok := pickVideo(muxed, q); ok {
		sel.Format = m
	}
	return sel, nil
}

func pickVideo(videos []model.FormatCandidate, q model.QualitySpec) (model.FormatCandidate, bool) {
	switch q.Mode {
	case model.QualityWorst:
		if sized := filter(videos, func(f model.FormatCandidate) bool { return f.Height > 0 }); len(sized) > 0 {
			videos = sized
		}
		if len(videos) == 0 {
			return model.FormatCandidate{}, false
		}
		return slices.MinFunc(videos, compareVideoAscending), true
	case model.QualityExplicit:
		videos = filter(videos, func(f model.FormatCandidate) bool {
			return f.Height > 0 && f.Height <= q.Value
		})
	}
	if len(videos) == 0 {
		return model.FormatCandidate{}, false
	}
	return slices.MaxFunc(videos, compareVideo), true
}

func selectAudio(formats []model.FormatCandidate, q model.QualitySpec) (Selection, error) {
	candidates := filter(formats, func(f model.FormatCandidate) bool { return f.AudioOnly() })
	extract := false
	if len(candidates) == 0 {
		candidates = filter(formats, func(f model.FormatCandidate) bool { return f.HasVideo() && f.HasAudio() })
		extract = true
	}
	if len(candidates) == 0 {
		return Selection{}, failure.NoMatchingFormat("no format with an audio track")
	}

	var pick model.FormatCandidate
	switch q.Mode {
	case model.QualityWorst:
		pick = slices.MinFunc(candidates, compareAudioAscending)
	case model.QualityExplicit:
		limited := filter(candidates, func(f model.FormatCandidate) bool {
			return audioRate(f) <= float64(q.Value)
		})
		if len(limited) == 0 {
			return Selection{}, failure.NoMatchingFormat("no audio format at or below %dk", q.Value)
		}
		pick = slices.MaxFunc(limited, compareAudio)
	default:
		pick = slices.MaxFunc(candidates, compareAudio)
	}
	return Selection{Format: pick, NeedsExtraction: extract}, nil
}

func filter(formats []model.FormatCandidate, keep func(model.FormatCandidate) bool) []model.FormatCandidate {
	var out []model.FormatCandidate
	for _, f := range formats {
		if f.ID == "" || f.IsStoryboard() {
			continue
		}
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// audioRate is the audio bitrate in kbps, 0 when unknown
func audioRate(f model.FormatCandidate) float64 {
	if f.AudioBitrate > 0 {
		return f.AudioBitrate
	}
	if f.AudioOnly() {
		return f.Bitrate
	}
	return 0
}

// compareVideo orders by height then bitrate; on a full tie the lower ID
// ranks higher so that MaxFunc is deterministic.
func compareVideo(a, b model.FormatCandidate) int {
	if c := cmp.Compare(a.Height, b.Height); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Bitrate, b.Bitrate); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func compareVideoAscending(a, b model.FormatCandidate) int {
	if c := cmp.Compare(a.Height, b.Height); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Bitrate, b.Bitrate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareAudio(a, b model.FormatCandidate) int {
	if c := cmp.Compare(audioRate(a), audioRate(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Bitrate, b.Bitrate); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func compareAudioAscending(a, b model.FormatCandidate) int {
	if c := cmp.Compare(audioRate(a), audioRate(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Bitrate, b.Bitrate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
