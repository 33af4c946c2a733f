package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/platform"
)

// infoJSON is the subset of the resolver's single-JSON dump we read. Every
// field is optional.
type infoJSON struct {
	Type         string       `json:"_type"`
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Uploader     string       `json:"uploader"`
	Channel      string       `json:"channel"`
	Extractor    string       `json:"extractor"`
	ExtractorKey string       `json:"extractor_key"`
	WebpageURL   string       `json:"webpage_url"`
	Duration     *float64     `json:"duration"`
	Formats      []formatJSON `json:"formats"`
	Entries      []entryJSON  `json:"entries"`
}

type formatJSON struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Width          *int     `json:"width"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	TBR            *float64 `json:"tbr"`
	ABR            *float64 `json:"abr"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	Protocol       string   `json:"protocol"`
	FormatNote     string   `json:"format_note"`
}

type entryJSON struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	IEKey      string   `json:"ie_key"`
}

// ParseMetadata decodes a resolver JSON dump. sourceURL is used to name the
// platform and as the fallback webpage URL.
func ParseMetadata(data []byte, sourceURL string) (model.MediaMetadata, error) {
	var raw infoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.MediaMetadata{}, fmt.Errorf("decode resolver output: %w", err)
	}

	md := model.MediaMetadata{
		ID:         raw.ID,
		Title:      strings.TrimSpace(raw.Title),
		Uploader:   firstNonEmpty(raw.Uploader, raw.Channel),
		Extractor:  firstNonEmpty(raw.ExtractorKey, raw.Extractor),
		WebpageURL: firstNonEmpty(raw.WebpageURL, sourceURL),
		Duration:   deref(raw.Duration),
		IsPlaylist: raw.Type == "playlist" || raw.Type == "multi_video",
	}
	md.Platform = platform.ResolvePlatform(sourceURL, md.Extractor)

	for _, f := range raw.Formats {
		if f.FormatID == "" {
			continue
		}
		md.Formats = append(md.Formats, f.candidate())
	}
	for _, e := range raw.Entries {
		u := entryURL(e)
		if u == "" {
			continue
		}
		md.Entries = append(md.Entries, model.PlaylistEntry{
			Index:    len(md.Entries) + 1,
			ID:       e.ID,
			URL:      u,
			Title:    strings.TrimSpace(e.Title),
			Duration: deref(e.Duration),
		})
	}
	return md, nil
}

func (f formatJSON) candidate() model.FormatCandidate {
	size := deref(f.Filesize)
	if size == 0 {
		size = deref(f.FilesizeApprox)
	}
	return model.FormatCandidate{
		ID:           f.FormatID,
		Container:    f.Ext,
		VideoCodec:   f.VCodec,
		AudioCodec:   f.ACodec,
		Width:        deref(f.Width),
		Height:       deref(f.Height),
		FPS:          deref(f.FPS),
		Bitrate:      deref(f.TBR),
		AudioBitrate: deref(f.ABR),
		Size:         int64(size),
		Protocol:     f.Protocol,
		Note:         f.FormatNote,
	}
}

// entryURL resolves the watch URL of a flat playlist entry
func entryURL(e entryJSON) string {
	for _, u := range []string{e.URL, e.WebpageURL} {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			return u
		}
	}
	if e.ID != "" && strings.EqualFold(e.IEKey, "Youtube") {
		return platform.VideoURL(e.ID)
	}
	return ""
}

func deref[T int | float64](p *T) T {
	if p == nil {
		return 0
	}
	return *p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
