package platform

import (
	"context"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
)

// DefaultPlaylistTimeout bounds one native playlist expansion
const DefaultPlaylistTimeout = 60 * time.Second

// Playlist title constants
const (
	DefaultPlaylistName = "Unknown Playlist"
	MinPrefixLength     = 10
	PlaylistSuffix      = " Playlist"
)

// NativeItem is one playlist entry as returned by the native client
type NativeItem struct {
	VideoID string
	Title   string
}

// NativePlaylist expands YouTube list= URLs in-process without spawning the
// resolver.
type NativePlaylist struct {
	timeout time.Duration
	fetch   func(ctx context.Context, playlistID string) ([]NativeItem, error)
}

// NewNativePlaylist creates an expander backed by the ytdlp client
func NewNativePlaylist() *NativePlaylist {
	return &NativePlaylist{timeout: DefaultPlaylistTimeout, fetch: fetchPlaylistItems}
}

// SetTimeout sets the timeout for expansion
func (n *NativePlaylist) SetTimeout(timeout time.Duration) {
	n.timeout = timeout
}

// Expand returns playlist metadata with ordered entries. Formats are not
// populated; every item is probed again before its download.
func (n *NativePlaylist) Expand(ctx context.Context, rawURL string) (model.MediaMetadata, error) {
	playlistID := ExtractPlaylistID(rawURL)
	if playlistID == "" {
		return model.MediaMetadata{}, failure.New(failure.KindResolve, failure.CauseMalformedURL,
			"could not extract playlist ID from URL: %s", rawURL).InStage(failure.StageExpansion)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	items, err := n.fetch(ctx, playlistID)
	if err != nil {
		if ctx.Err() != nil {
			return model.MediaMetadata{}, failure.FromRunError(failure.KindResolve, failure.StageExpansion, ctx.Err(), true)
		}
		return model.MediaMetadata{}, failure.Wrap(err, failure.KindResolve, failure.CauseNetwork,
			"failed to get playlist items").InStage(failure.StageExpansion)
	}

	entries := make([]model.PlaylistEntry, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		entries = append(entries, model.PlaylistEntry{
			Index: len(entries) + 1,
			ID:    it.VideoID,
			URL:   VideoURL(it.VideoID),
			Title: it.Title,
		})
	}

	return model.MediaMetadata{
		ID:         playlistID,
		Title:      playlistTitle(entries),
		Extractor:  "youtube:tab",
		Platform:   "YouTube",
		WebpageURL: rawURL,
		IsPlaylist: true,
		Entries:    entries,
	}, nil
}

func fetchPlaylistItems(ctx context.Context, playlistID string) ([]NativeItem, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]NativeItem, 0, len(items))
	for _, it := range items {
		out = append(out, NativeItem{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}

// playlistTitle derives a title from the common prefix of the first two entries
func playlistTitle(entries []model.PlaylistEntry) string {
	if len(entries) == 0 {
		return DefaultPlaylistName
	}
	if len(entries) > 1 {
		prefix := commonPrefix(entries[0].Title, entries[1].Title)
		if len(prefix) > MinPrefixLength {
			return strings.TrimSpace(prefix) + PlaylistSuffix
		}
	}
	return entries[0].Title + PlaylistSuffix
}

func commonPrefix(s1, s2 string) string {
	n := min(len(s1), len(s2))
	for i := 0; i < n; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:n]
}
