package main

import (
	"bytes"
	"errors"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/velora/internal/config"
	"github.com/ytget/velora/internal/model"
)

func testSettings(t *testing.T, values map[string]string) *config.Settings {
	t.Helper()
	store := config.MapStore{config.KeyOutputDir: t.TempDir()}
	for k, v := range values {
		store[k] = v
	}
	return config.NewSettings(store)
}

func TestParseFlags_Defaults(t *testing.T) {
	settings := testSettings(t, nil)
	cli, err := parseFlags([]string{"https://example.com/v"}, settings, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/v"}, cli.URLs)
	assert.Equal(t, model.KindVideo, cli.Opts.Kind)
	assert.Equal(t, model.QualitySpec{Mode: model.QualityExplicit, Value: 1080}, cli.Opts.Quality)
	assert.True(t, cli.Opts.IncludeAudio)
	assert.Equal(t, "mp4", cli.Opts.Post.Container)
	assert.Equal(t, config.DefaultMaxParallel, cli.Parallel)
	assert.Equal(t, config.DefaultRetries, cli.Retries)
	assert.Equal(t, settings.GetOutputDirectory(), cli.Opts.OutputDir)
}

func TestParseFlags_Audio(t *testing.T) {
	cli, err := parseFlags([]string{"-a", "-q", "128k", "-audio-format", "OPUS", "u"}, testSettings(t, nil), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, model.KindAudio, cli.Opts.Kind)
	assert.Equal(t, 128, cli.Opts.Quality.Value)
	assert.Equal(t, "opus", cli.Opts.Post.AudioFormat)
}

func TestParseFlags_PostProcessing(t *testing.T) {
	out := t.TempDir()
	cli, err := parseFlags([]string{
		"-o", out,
		"-container", "mkv",
		"-codec", "h265",
		"-encode-quality", "high",
		"-trim", "1:00-2:30",
		"-resize", "50%",
		"-extract-audio",
		"-thumbnail-at", "0:05",
		"https://example.com/v",
	}, testSettings(t, nil), &bytes.Buffer{})
	require.NoError(t, err)

	post := cli.Opts.Post
	assert.Equal(t, out, cli.Opts.OutputDir)
	assert.Equal(t, "mkv", post.Container)
	assert.Equal(t, "h265", post.VideoCodec)
	assert.Equal(t, model.EncodeHigh, post.EncodeQuality)
	assert.Equal(t, model.TrimRange{Start: 60, End: 150}, post.Trim)
	assert.Equal(t, model.ResizeTarget{Scale: 0.5}, post.Resize)
	assert.True(t, post.ExtractAudio)
	assert.True(t, post.Thumbnail)
	assert.Equal(t, 5.0, post.ThumbnailAt)
}

func TestParseFlags_SettingsAreOverridden(t *testing.T) {
	settings := testSettings(t, map[string]string{
		config.KeyMaxParallel:    "4",
		config.KeyRetries:        "3",
		config.KeyIncludeAudio:   "false",
		config.KeyLogLevel:       "debug",
		config.KeyVideoQuality:   "720p",
		config.KeyMetricsAddr:    ":9100",
		config.KeyVideoContainer: "webm",
	})

	cli, err := parseFlags([]string{"u"}, settings, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 4, cli.Parallel)
	assert.Equal(t, 3, cli.Retries)
	assert.False(t, cli.Opts.IncludeAudio)
	assert.Equal(t, "debug", cli.LogLevel)
	assert.Equal(t, 720, cli.Opts.Quality.Value)
	assert.Equal(t, ":9100", cli.MetricsAddr)
	assert.Equal(t, "webm", cli.Opts.Post.Container)

	cli, err = parseFlags([]string{"-p", "1", "-retries", "0", "-q", "best", "-log-level", "warn", "u"}, settings, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, cli.Parallel)
	assert.Equal(t, 0, cli.Retries)
	assert.Equal(t, model.BestQuality, cli.Opts.Quality)
	assert.Equal(t, "warn", cli.LogLevel)
}

func TestParseFlags_ClampsParallel(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want int
	}{
		{"zero", "0", config.MinMaxParallel},
		{"negative", "-3", config.MinMaxParallel},
		{"within range", "5", 5},
		{"too many", "50", config.MaxMaxParallel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, err := parseFlags([]string{"-parallel=" + tt.arg, "u"}, testSettings(t, nil), &bytes.Buffer{})
			require.NoError(t, err)
			if cli.Parallel != tt.want {
				t.Errorf("expected %d, got %d", tt.want, cli.Parallel)
			}
		})
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no url", nil},
		{"unknown flag", []string{"-bogus", "u"}},
		{"bad quality", []string{"-q", "high", "u"}},
		{"bad trim", []string{"-trim", "10", "u"}},
		{"bad resize", []string{"-resize", "big", "u"}},
		{"bad thumbnail position", []string{"-thumbnail-at", "soon", "u"}},
		{"bad codec", []string{"-codec", "av1", "u"}},
		{"bad audio format", []string{"-a", "-audio-format", "wma", "u"}},
		{"bad encode quality", []string{"-encode-quality", "max", "u"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, testSettings(t, nil), &bytes.Buffer{})
			if err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}

func TestParseFlags_UtilityModes(t *testing.T) {
	cli, err := parseFlags([]string{"-version"}, testSettings(t, nil), &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, cli.Version)

	cli, err = parseFlags([]string{"-check"}, testSettings(t, nil), &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, cli.Check)
	assert.Empty(t, cli.URLs)

	var stderr bytes.Buffer
	_, err = parseFlags([]string{"-h"}, testSettings(t, nil), &stderr)
	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, stderr.String(), "Usage: velora")
	assert.Contains(t, stderr.String(), "-thumbnail-at")
}
