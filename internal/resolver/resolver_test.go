package resolver

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/platform/platformtest"
)

const videoJSON = `{
  "id": "dQw4w9WgXcQ",
  "title": "  Never Gonna Give You Up ",
  "uploader": "Rick Astley",
  "extractor": "youtube",
  "extractor_key": "Youtube",
  "webpage_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
  "duration": 212.5,
  "formats": [
    {"format_id": "sb0", "ext": "mhtml", "vcodec": "none", "acodec": "none", "protocol": "mhtml"},
    {"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2", "abr": 129.5, "tbr": 129.5, "filesize": 3435000},
    {"format_id": "137", "ext": "mp4", "vcodec": "avc1.640028", "acodec": "none", "width": 1920, "height": 1080, "fps": 25, "tbr": 4400, "filesize_approx": 117000000},
    {"format_id": "18", "ext": "mp4", "vcodec": "avc1.42001E", "acodec": "mp4a.40.2", "width": 640, "height": 360, "tbr": 500, "format_note": "360p"},
    {"ext": "mp4"}
  ]
}`

const playlistJSON = `{
  "_type": "playlist",
  "id": "PL1",
  "title": "Mix",
  "extractor_key": "YoutubeTab",
  "entries": [
    {"id": "a1", "url": "https://www.youtube.com/watch?v=a1", "title": "One", "duration": 60},
    {"id": "b2", "url": "b2", "ie_key": "Youtube", "title": "Two"},
    {"id": "c3", "url": "c3", "ie_key": "Other"},
    {"id": "d4", "webpage_url": "https://vimeo.com/4", "title": "Four"}
  ]
}`

func TestBuildProbeArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"--dump-single-json", "--no-warnings", "--no-download", "--no-playlist", "--", "https://x.y/v"},
		BuildProbeArgs("https://x.y/v", false))
	assert.Equal(t,
		[]string{"--dump-single-json", "--no-warnings", "--no-download", "--flat-playlist", "--", "https://x.y/p"},
		BuildProbeArgs("https://x.y/p", true))
}

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata([]byte(videoJSON), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "Never Gonna Give You Up", md.Title)
	assert.Equal(t, "Rick Astley", md.Uploader)
	assert.Equal(t, "YouTube", md.Platform)
	assert.InDelta(t, 212.5, md.Duration, 1e-9)
	assert.False(t, md.IsPlaylist)
	require.Len(t, md.Formats, 4, "formats without an id are skipped")

	audio := md.Formats[1]
	assert.True(t, audio.AudioOnly())
	assert.Equal(t, int64(3435000), audio.Size)

	video := md.Formats[2]
	assert.Equal(t, 1080, video.Height)
	assert.Equal(t, int64(117000000), video.Size)
	assert.False(t, video.HasAudio())
}

func TestParseMetadata_PartialFields(t *testing.T) {
	md, err := ParseMetadata([]byte(`{"id":"x","duration":null}`), "https://example.org/v")
	require.NoError(t, err)
	assert.False(t, md.HasDuration())
	assert.Empty(t, md.Title)
	assert.Equal(t, "https://example.org/v", md.WebpageURL)
	assert.Equal(t, platform.UnknownPlatform, md.Platform)

	_, err = ParseMetadata([]byte(`not json`), "https://example.org/v")
	assert.Error(t, err)
}

func TestParseMetadata_PlaylistEntries(t *testing.T) {
	md, err := ParseMetadata([]byte(playlistJSON), "https://www.youtube.com/playlist?list=PL1")
	require.NoError(t, err)

	assert.True(t, md.IsPlaylist)
	require.Len(t, md.Entries, 3)
	assert.Equal(t, "https://www.youtube.com/watch?v=a1", md.Entries[0].URL)
	assert.Equal(t, "https://www.youtube.com/watch?v=b2", md.Entries[1].URL)
	assert.Equal(t, "https://vimeo.com/4", md.Entries[2].URL)
	assert.Equal(t, []int{1, 2, 3}, []int{md.Entries[0].Index, md.Entries[1].Index, md.Entries[2].Index})
}

func TestResolver_Probe(t *testing.T) {
	runner := (&platformtest.Runner{}).Push(platformtest.Script{
		Lines: append(platformtest.Out(videoJSON), platform.Line{Stream: platform.Stderr, Text: "noise"}),
	})
	r := New(runner, WithBinary("/opt/yt-dlp"))

	md, err := r.Probe(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", false)
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", md.ID)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/opt/yt-dlp", calls[0].Name)
	assert.Contains(t, calls[0].Args, "--no-playlist")
}

func TestResolver_ProbeFailures(t *testing.T) {
	tests := []struct {
		name      string
		script    platformtest.Script
		kind      failure.Kind
		cause     failure.Cause
		retryable bool
	}{
		{
			name:   "private video",
			script: platformtest.Script{ExitCode: 1, Stderr: "ERROR: [youtube] abc: Private video. Sign in if you've been granted access"},
			kind:   failure.KindResolve,
			cause:  failure.CausePrivate,
		},
		{
			name:   "unsupported url",
			script: platformtest.Script{ExitCode: 1, Stderr: "ERROR: Unsupported URL: https://example.org/"},
			kind:   failure.KindResolve,
			cause:  failure.CauseUnsupportedURL,
		},
		{
			name:      "network",
			script:    platformtest.Script{ExitCode: 1, Stderr: "ERROR: Unable to download webpage: <urlopen error [Errno -3] Temporary failure in name resolution>"},
			kind:      failure.KindResolve,
			cause:     failure.CauseNetwork,
			retryable: true,
		},
		{
			name:   "missing tool",
			script: platformtest.Script{Err: &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}},
			kind:   failure.KindResolve,
			cause:  failure.CauseToolMissing,
		},
		{
			name:   "garbage output",
			script: platformtest.Script{Lines: platformtest.Out("{not json")},
			kind:   failure.KindResolve,
			cause:  failure.CauseUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New((&platformtest.Runner{}).Push(tt.script))
			_, err := r.Probe(context.Background(), "https://www.youtube.com/watch?v=abc", false)
			require.Error(t, err)

			fe, ok := failure.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.cause, fe.Cause)
			assert.Equal(t, tt.retryable, fe.Retryable)
			assert.Equal(t, failure.StageResolve, fe.Stage)
		})
	}
}

func TestResolver_ProbeTimeoutIsRetryable(t *testing.T) {
	r := New((&platformtest.Runner{}).Push(platformtest.Script{Block: true}), WithTimeout(20*time.Millisecond))

	_, err := r.Probe(context.Background(), "https://www.youtube.com/watch?v=abc", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrTimeout))
	assert.True(t, failure.IsRetryable(err))
}

func TestResolver_ExpandSingleItem(t *testing.T) {
	r := New((&platformtest.Runner{}).Push(platformtest.Script{Lines: platformtest.Out(videoJSON)}))

	md, err := r.Expand(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Len(t, md.Entries, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", md.Entries[0].URL)
}

func TestResolver_ListFormats(t *testing.T) {
	r := New((&platformtest.Runner{}).Push(platformtest.Script{Lines: platformtest.Out(videoJSON)}))

	formats, err := r.ListFormats(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Len(t, formats, 4)
}
