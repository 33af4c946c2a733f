package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/velora/internal/model"
)

func TestParseLine_DownloadPercent(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		percent float64
		total   int64
		rate    float64
		eta     time.Duration
	}{
		{
			name:    "approximate size with eta",
			line:    "[download]  45.3% of ~ 10.00MiB at  1.00MiB/s ETA 00:07 (frag 3/10)",
			percent: 45.3,
			total:   10 * 1024 * 1024,
			rate:    1024 * 1024,
			eta:     7 * time.Second,
		},
		{
			name:    "hours eta",
			line:    "[download]   0.5% of 2.00GiB at 512.00KiB/s ETA 01:02:03",
			percent: 0.5,
			total:   2 * 1024 * 1024 * 1024,
			rate:    512 * 1024,
			eta:     time.Hour + 2*time.Minute + 3*time.Second,
		},
		{
			name:    "finished",
			line:    "[download] 100% of   10.00MiB in 00:00:05 at 2.00MiB/s",
			percent: 100,
			total:   10 * 1024 * 1024,
			rate:    2 * 1024 * 1024,
			eta:     0,
		},
		{
			name:    "unknown size and speed",
			line:    "[download]  12.0% of Unknown total size at Unknown speed ETA Unknown",
			percent: 12,
			eta:     -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ParseLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, model.PhaseDownloading, ev.Phase)
			assert.InDelta(t, tt.percent, ev.Percent, 1e-9)
			assert.Equal(t, tt.total, ev.TotalBytes)
			assert.InDelta(t, tt.rate, ev.Rate, 1e-9)
			assert.Equal(t, tt.eta, ev.ETA)
		})
	}
}

func TestParseLine_PhaseMarkers(t *testing.T) {
	tests := []struct {
		line  string
		phase model.Phase
	}{
		{"[youtube] dQw4w9WgXcQ: Downloading webpage", model.PhaseResolving},
		{"[info] dQw4w9WgXcQ: Downloading 1 format(s): 137+140", model.PhaseResolving},
		{"[download] Destination: /out/a-12345678.f137.mp4", model.PhaseDownloading},
		{`[Merger] Merging formats into "/out/a-12345678.mp4"`, model.PhaseMerging},
		{"[ExtractAudio] Destination: /out/a-12345678.mp3", model.PhaseExtractingAudio},
		{"[VideoRemuxer] Remuxing video from webm to mp4; Destination: /out/a.mp4", model.PhaseConverting},
	}
	for _, tt := range tests {
		ev, ok := ParseLine(tt.line)
		require.True(t, ok, tt.line)
		assert.Equal(t, tt.phase, ev.Phase, tt.line)
		assert.False(t, ev.HasPercent(), tt.line)
	}

	ev, ok := ParseLine("[download] /out/a-12345678.mp4 has already been downloaded")
	require.True(t, ok)
	assert.InDelta(t, 100.0, ev.Percent, 1e-9)
}

func TestParseLine_Unrecognised(t *testing.T) {
	for _, line := range []string{
		"",
		"WARNING: something odd",
		"Deleting original file /out/a.f137.mp4 (pass -k to keep)",
		"[download] Got error: HTTP Error 503",
		"[download] nonsense% of things",
	} {
		_, ok := ParseLine(line)
		assert.False(t, ok, line)
	}
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		line  string
		path  string
		final bool
		ok    bool
	}{
		{"[download] Destination: /out/a b.f137.mp4", "/out/a b.f137.mp4", false, true},
		{"[download] /out/a.mp4 has already been downloaded", "/out/a.mp4", false, true},
		{`[Merger] Merging formats into "/out/a.mkv"`, "/out/a.mkv", true, true},
		{"[ExtractAudio] Destination: /out/a.mp3", "/out/a.mp3", true, true},
		{"[download]  10.0% of 1.00MiB", "", false, false},
	}
	for _, tt := range tests {
		path, final, ok := ParseDestination(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.path, path, tt.line)
		assert.Equal(t, tt.final, final, tt.line)
	}
}
