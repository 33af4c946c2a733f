package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/selector"
)

func TestNewSettings(t *testing.T) {
	store := MapStore{}
	settings := NewSettings(store)

	if _, ok := settings.store.(MapStore); !ok {
		t.Error("Settings store should be the provided store")
	}
	if _, ok := NewSettings(nil).store.(EnvStore); !ok {
		t.Error("A nil store should fall back to the environment")
	}
}

func TestOutputDirectory(t *testing.T) {
	settings := NewSettings(MapStore{})

	// Test default value
	dir := settings.GetOutputDirectory()
	if !strings.HasSuffix(dir, DefaultOutputSubdir) {
		t.Errorf("Expected default output directory to end with %s, got %s", DefaultOutputSubdir, dir)
	}

	// Test setting custom value
	customDir := "/custom/downloads"
	settings.SetOutputDirectory(customDir)
	if got := settings.GetOutputDirectory(); got != customDir {
		t.Errorf("Expected output directory %s, got %s", customDir, got)
	}

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	settings.SetOutputDirectory("~/media")
	assert.Equal(t, filepath.Join(home, "media"), settings.GetOutputDirectory())
}

func TestMaxParallelDownloads(t *testing.T) {
	settings := NewSettings(MapStore{})

	// Test default value
	if got := settings.GetMaxParallelDownloads(); got != DefaultMaxParallel {
		t.Errorf("Expected default max parallel %d, got %d", DefaultMaxParallel, got)
	}

	tests := []struct {
		set  int
		want int
	}{
		{5, 5},
		{0, 1},
		{-3, 1},
		{15, 10},
	}
	for _, tt := range tests {
		settings.SetMaxParallelDownloads(tt.set)
		if got := settings.GetMaxParallelDownloads(); got != tt.want {
			t.Errorf("Expected max parallel %d after setting %d, got %d", tt.want, tt.set, got)
		}
	}

	// Out of range values in the environment are clamped too
	settings = NewSettings(MapStore{KeyMaxParallel: "50"})
	assert.Equal(t, MaxMaxParallel, settings.GetMaxParallelDownloads())
}

func TestDefaults(t *testing.T) {
	settings := NewSettings(MapStore{})

	assert.Equal(t, DefaultVideoQuality, settings.GetVideoQuality())
	assert.Equal(t, DefaultAudioQuality, settings.GetAudioQuality())
	assert.Equal(t, "mp3", settings.GetAudioFormat())
	assert.Equal(t, "mp4", settings.GetVideoContainer())
	assert.True(t, settings.GetIncludeAudio())
	assert.Equal(t, 60*time.Second, settings.GetResolveTimeout())
	assert.Equal(t, 2*time.Hour, settings.GetDownloadTimeout())
	assert.Equal(t, 30*time.Minute, settings.GetTranscodeTimeout())
	assert.Equal(t, 5*time.Second, settings.GetKillGrace())
	assert.Equal(t, DefaultRetries, settings.GetRetries())
	assert.False(t, settings.GetNativePlaylist())
	assert.Equal(t, "info", settings.GetLogLevel())
	assert.Equal(t, "text", settings.GetLogFormat())
	assert.Empty(t, settings.GetMetricsAddr())
	assert.Empty(t, settings.GetResolverPath())

	_, enabled := settings.GetS3Config()
	assert.False(t, enabled)
	assert.NoError(t, settings.Validate())
}

func TestTypedReaders(t *testing.T) {
	settings := NewSettings(MapStore{
		KeyResolveTimeout:   "90",
		KeyDownloadTimeout:  "45m",
		KeyTranscodeTimeout: "garbage",
		KeyIncludeAudio:     "false",
		KeyNativePlaylist:   "1",
		KeyRetries:          "-2",
		KeyAudioFormat:      " FLAC ",
		KeyLogFormat:        "JSON",
	})

	assert.Equal(t, 90*time.Second, settings.GetResolveTimeout(), "plain numbers are seconds")
	assert.Equal(t, 45*time.Minute, settings.GetDownloadTimeout())
	assert.Equal(t, DefaultTranscodeTimeout, settings.GetTranscodeTimeout(), "unparsable values fall back to the default")
	assert.False(t, settings.GetIncludeAudio())
	assert.True(t, settings.GetNativePlaylist())
	assert.Equal(t, 0, settings.GetRetries())
	assert.Equal(t, "flac", settings.GetAudioFormat())
	assert.Equal(t, "json", settings.GetLogFormat())
}

func TestS3Config(t *testing.T) {
	settings := NewSettings(MapStore{
		KeyS3Bucket:   "media",
		KeyS3Prefix:   "velora",
		KeyS3Endpoint: "http://localhost:9000",
	})
	cfg, enabled := settings.GetS3Config()
	assert.True(t, enabled)
	assert.Equal(t, "media", cfg.Bucket)
	assert.Equal(t, "velora", cfg.Prefix)
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		store   MapStore
		wantErr string
	}{
		{"valid", MapStore{KeyVideoQuality: "720p", KeyAudioQuality: "best"}, ""},
		{"bad video quality", MapStore{KeyVideoQuality: "hd"}, KeyVideoQuality},
		{"bad audio format", MapStore{KeyAudioFormat: "wma"}, KeyAudioFormat},
		{"bad log format", MapStore{KeyLogFormat: "xml"}, KeyLogFormat},
		{"half s3 credentials", MapStore{KeyS3Bucket: "media", KeyS3AccessKeyID: "id"}, "s3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSettings(tt.store).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestJobOptions(t *testing.T) {
	dir := t.TempDir()
	settings := NewSettings(MapStore{KeyOutputDir: dir})

	video, err := settings.JobOptions(model.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, model.KindVideo, video.Kind)
	assert.Equal(t, model.QualitySpec{Mode: model.QualityExplicit, Value: 1080}, video.Quality)
	assert.Equal(t, "mp4", video.Post.Container)
	assert.True(t, video.IncludeAudio)
	assert.Equal(t, dir, video.OutputDir)

	audio, err := settings.JobOptions(model.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, model.BestQuality, audio.Quality, "the audio quality never limits selection")
	assert.Equal(t, "mp3", audio.Post.AudioFormat)
	assert.Equal(t, "192k", audio.Post.AudioBitrate)
	assert.Empty(t, audio.Post.Container)

	settings.SetAudioQuality("best")
	audio, err = settings.JobOptions(model.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, model.BestQuality, audio.Quality)
	assert.Empty(t, audio.Post.AudioBitrate)

	settings.SetAudioQuality("128")
	audio, err = settings.JobOptions(model.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, model.BestQuality, audio.Quality)
	assert.Equal(t, "128k", audio.Post.AudioBitrate)

	settings.SetVideoQuality("ultra")
	_, err = settings.JobOptions(model.KindVideo)
	assert.Error(t, err)
}

func TestJobOptions_AudioSelectsAboveTargetBitrate(t *testing.T) {
	settings := NewSettings(MapStore{KeyOutputDir: t.TempDir()})
	opts, err := settings.JobOptions(model.KindAudio)
	require.NoError(t, err)

	formats := []model.FormatCandidate{
		{ID: "hi", Container: "m4a", VideoCodec: "none", AudioCodec: "aac", AudioBitrate: 256},
		{ID: "muxed", Container: "mp4", VideoCodec: "avc1", AudioCodec: "aac", Height: 720, AudioBitrate: 256},
	}
	sel, err := selector.Select(formats, opts.Kind, opts.Quality, opts.IncludeAudio)
	require.NoError(t, err)
	if sel.Format.ID != "hi" {
		t.Errorf("expected format hi, got %s", sel.Format.ID)
	}
	assert.Equal(t, "192k", opts.Post.AudioBitrate)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write(".env", "VELORA_VIDEO_QUALITY=720p\nVELORA_AUDIO_FORMAT=m4a\nVELORA_LOG_LEVEL=warn\n")
	write(".env.staging", "VELORA_AUDIO_FORMAT=opus\n")
	write(".env.local", "VELORA_LOG_LEVEL=debug\n")

	for _, k := range []string{KeyVideoQuality, KeyAudioFormat, KeyLogLevel} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv(KeyEnvironment, "staging")

	require.NoError(t, LoadEnvFiles(dir))
	settings := NewSettings(EnvStore{})
	assert.Equal(t, "720p", settings.GetVideoQuality())
	assert.Equal(t, "opus", settings.GetAudioFormat(), ".env.<env> overrides .env")
	assert.Equal(t, "debug", settings.GetLogLevel(), ".env.local has the highest precedence")
}

func TestLoadEnvFiles_MissingFilesAreSkipped(t *testing.T) {
	assert.NoError(t, LoadEnvFiles(t.TempDir()))
}

func TestBitrate(t *testing.T) {
	tests := map[string]string{"192k": "192k", "320": "320k", "best": "", "worst": "", "0k": ""}
	for in, want := range tests {
		if got := bitrate(in); got != want {
			t.Errorf("expected bitrate %q for %q, got %q", want, in, got)
		}
	}
}
