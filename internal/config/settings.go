// Package config reads velora settings from the environment. Values come
// from defaults, then optional .env files, then VELORA_* variables; the CLI
// overrides them with flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/publish"
)

// Settings keys
const (
	KeyEnvironment      = "VELORA_ENV"
	KeyOutputDir        = "VELORA_OUTPUT_DIR"
	KeyMaxParallel      = "VELORA_MAX_PARALLEL"
	KeyVideoQuality     = "VELORA_VIDEO_QUALITY"
	KeyAudioQuality     = "VELORA_AUDIO_QUALITY"
	KeyAudioFormat      = "VELORA_AUDIO_FORMAT"
	KeyVideoContainer   = "VELORA_VIDEO_CONTAINER"
	KeyIncludeAudio     = "VELORA_INCLUDE_AUDIO"
	KeyResolveTimeout   = "VELORA_RESOLVE_TIMEOUT"
	KeyDownloadTimeout  = "VELORA_DOWNLOAD_TIMEOUT"
	KeyTranscodeTimeout = "VELORA_TRANSCODE_TIMEOUT"
	KeyKillGrace        = "VELORA_KILL_GRACE"
	KeyRetries          = "VELORA_RETRIES"
	KeyRetryBackoff     = "VELORA_RETRY_BACKOFF"
	KeyNativePlaylist   = "VELORA_NATIVE_PLAYLIST"
	KeyResolverPath     = "VELORA_YTDLP_PATH"
	KeyFFmpegPath       = "VELORA_FFMPEG_PATH"
	KeyFFprobePath      = "VELORA_FFPROBE_PATH"
	KeyLogLevel         = "VELORA_LOG_LEVEL"
	KeyLogFormat        = "VELORA_LOG_FORMAT"
	KeyLogFile          = "VELORA_LOG_FILE"
	KeyMetricsAddr      = "VELORA_METRICS_ADDR"
	KeyS3Bucket         = "VELORA_S3_BUCKET"
	KeyS3Prefix         = "VELORA_S3_PREFIX"
	KeyS3Region         = "VELORA_S3_REGION"
	KeyS3Endpoint       = "VELORA_S3_ENDPOINT"
	KeyS3AccessKeyID    = "VELORA_S3_ACCESS_KEY_ID"
	KeyS3SecretKey      = "VELORA_S3_SECRET_ACCESS_KEY"
)

// Default values
const (
	DefaultOutputSubdir     = "Velora"
	DefaultMaxParallel      = 2
	MinMaxParallel          = 1
	MaxMaxParallel          = 10
	DefaultVideoQuality     = "1080p"
	DefaultAudioQuality     = "192k"
	DefaultAudioFormat      = model.DefaultAudioFormat
	DefaultVideoContainer   = "mp4"
	DefaultIncludeAudio     = true
	DefaultResolveTimeout   = 60 * time.Second
	DefaultDownloadTimeout  = 2 * time.Hour
	DefaultTranscodeTimeout = 30 * time.Minute
	DefaultKillGrace        = platform.DefaultGracePeriod
	DefaultRetries          = 1
	DefaultRetryBackoff     = 2 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Store is the key/value source behind Settings
type Store interface {
	Lookup(key string) (string, bool)
	Set(key, value string)
}

// EnvStore reads and writes process environment variables
type EnvStore struct{}

func (EnvStore) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (EnvStore) Set(key, value string)            { _ = os.Setenv(key, value) }

// MapStore is an in-memory Store
type MapStore map[string]string

func (m MapStore) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapStore) Set(key, value string) { m[key] = value }

// Settings manages application configuration
type Settings struct {
	store Store
}

// NewSettings creates a settings manager over store
func NewSettings(store Store) *Settings {
	if store == nil {
		store = EnvStore{}
	}
	return &Settings{store: store}
}

func (s *Settings) str(key, def string) string {
	if v, ok := s.store.Lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (s *Settings) integer(key string, def int) int {
	if n, err := strconv.Atoi(s.str(key, "")); err == nil {
		return n
	}
	return def
}

func (s *Settings) boolean(key string, def bool) bool {
	if b, err := strconv.ParseBool(s.str(key, "")); err == nil {
		return b
	}
	return def
}

// duration accepts Go durations ("90s") and plain seconds ("90")
func (s *Settings) duration(key string, def time.Duration) time.Duration {
	v := s.str(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// GetOutputDirectory returns the configured output directory
func (s *Settings) GetOutputDirectory() string {
	if dir := s.str(KeyOutputDir, ""); dir != "" {
		return expandHome(dir)
	}
	downloads, err := platform.GetHomeDownloadsDir()
	if err != nil {
		downloads = filepath.Join(os.TempDir(), "downloads")
	}
	return filepath.Join(downloads, DefaultOutputSubdir)
}

// SetOutputDirectory sets the output directory
func (s *Settings) SetOutputDirectory(dir string) {
	s.store.Set(KeyOutputDir, dir)
}

// GetMaxParallelDownloads returns the playlist concurrency limit
func (s *Settings) GetMaxParallelDownloads() int {
	return clampParallel(s.integer(KeyMaxParallel, DefaultMaxParallel))
}

// SetMaxParallelDownloads sets the playlist concurrency limit
func (s *Settings) SetMaxParallelDownloads(count int) {
	s.store.Set(KeyMaxParallel, strconv.Itoa(clampParallel(count)))
}

// GetVideoQuality returns the video quality request, e.g. 1080p or best
func (s *Settings) GetVideoQuality() string { return s.str(KeyVideoQuality, DefaultVideoQuality) }

// SetVideoQuality sets the video quality request
func (s *Settings) SetVideoQuality(q string) { s.store.Set(KeyVideoQuality, q) }

// GetAudioQuality returns the target bitrate of audio output, e.g. 192k
func (s *Settings) GetAudioQuality() string { return s.str(KeyAudioQuality, DefaultAudioQuality) }

// SetAudioQuality sets the audio bitrate request
func (s *Settings) SetAudioQuality(q string) { s.store.Set(KeyAudioQuality, q) }

// GetAudioFormat returns the audio output format
func (s *Settings) GetAudioFormat() string {
	return strings.ToLower(s.str(KeyAudioFormat, DefaultAudioFormat))
}

// GetVideoContainer returns the container video artifacts are written in
func (s *Settings) GetVideoContainer() string {
	return strings.ToLower(s.str(KeyVideoContainer, DefaultVideoContainer))
}

// GetIncludeAudio reports whether video downloads pair a separate audio stream
func (s *Settings) GetIncludeAudio() bool { return s.boolean(KeyIncludeAudio, DefaultIncludeAudio) }

// GetResolveTimeout bounds one metadata probe
func (s *Settings) GetResolveTimeout() time.Duration {
	return s.duration(KeyResolveTimeout, DefaultResolveTimeout)
}

// GetDownloadTimeout bounds one download
func (s *Settings) GetDownloadTimeout() time.Duration {
	return s.duration(KeyDownloadTimeout, DefaultDownloadTimeout)
}

// GetTranscodeTimeout bounds one post-processing stage
func (s *Settings) GetTranscodeTimeout() time.Duration {
	return s.duration(KeyTranscodeTimeout, DefaultTranscodeTimeout)
}

// GetKillGrace returns how long a cancelled tool may take to exit before it is killed
func (s *Settings) GetKillGrace() time.Duration { return s.duration(KeyKillGrace, DefaultKillGrace) }

// GetRetries returns how many times a retryable failure is re-run
func (s *Settings) GetRetries() int { return max(s.integer(KeyRetries, DefaultRetries), 0) }

// GetRetryBackoff returns the delay before the first retry; later retries wait longer
func (s *Settings) GetRetryBackoff() time.Duration {
	return s.duration(KeyRetryBackoff, DefaultRetryBackoff)
}

// GetNativePlaylist reports whether YouTube playlists are expanded in-process
func (s *Settings) GetNativePlaylist() bool { return s.boolean(KeyNativePlaylist, false) }

// Tool paths; empty means discovery
func (s *Settings) GetResolverPath() string { return expandHome(s.str(KeyResolverPath, "")) }
func (s *Settings) GetFFmpegPath() string   { return expandHome(s.str(KeyFFmpegPath, "")) }
func (s *Settings) GetFFprobePath() string  { return expandHome(s.str(KeyFFprobePath, "")) }

// Logging; an empty file logs to stderr only
func (s *Settings) GetLogLevel() string  { return strings.ToLower(s.str(KeyLogLevel, DefaultLogLevel)) }
func (s *Settings) GetLogFormat() string { return strings.ToLower(s.str(KeyLogFormat, DefaultLogFormat)) }
func (s *Settings) GetLogFile() string   { return expandHome(s.str(KeyLogFile, "")) }

// GetMetricsAddr returns the listen address of the metrics endpoint; empty disables it
func (s *Settings) GetMetricsAddr() string { return s.str(KeyMetricsAddr, "") }

// GetS3Config returns the artifact upload settings. Publishing is enabled
// when the bucket is set.
func (s *Settings) GetS3Config() (publish.S3Config, bool) {
	cfg := publish.S3Config{
		Bucket:          s.str(KeyS3Bucket, ""),
		Prefix:          s.str(KeyS3Prefix, ""),
		Region:          s.str(KeyS3Region, ""),
		Endpoint:        s.str(KeyS3Endpoint, ""),
		AccessKeyID:     s.str(KeyS3AccessKeyID, ""),
		SecretAccessKey: s.str(KeyS3SecretKey, ""),
	}
	return cfg, cfg.Bucket != ""
}

// GetAudioFormatOptions returns the supported audio formats
func (s *Settings) GetAudioFormatOptions() []string {
	return []string{"mp3", "m4a", "aac", "opus", "ogg", "flac", "wav"}
}

// Validate checks that the settings can build job options
func (s *Settings) Validate() error {
	var errs []error
	if _, err := model.ParseQuality(s.GetVideoQuality()); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyVideoQuality, err))
	}
	if _, err := model.ParseQuality(s.GetAudioQuality()); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyAudioQuality, err))
	}
	if format := s.GetAudioFormat(); !contains(s.GetAudioFormatOptions(), format) {
		errs = append(errs, fmt.Errorf("%s: unsupported audio format %q", KeyAudioFormat, format))
	}
	switch f := s.GetLogFormat(); f {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s: unknown log format %q", KeyLogFormat, f))
	}
	if cfg, ok := s.GetS3Config(); ok {
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("s3: %w", err))
		}
	}
	return errors.Join(errs...)
}

// JobOptions builds the options of a job of kind from the settings. Audio
// jobs select the best source stream; the audio quality is only the output
// bitrate.
func (s *Settings) JobOptions(kind model.Kind) (model.Options, error) {
	opts := model.Options{
		Kind:         kind,
		IncludeAudio: s.GetIncludeAudio(),
		OutputDir:    s.GetOutputDirectory(),
	}
	var err error
	switch kind {
	case model.KindAudio:
		opts.Quality = model.BestQuality
		opts.Post.AudioFormat = s.GetAudioFormat()
		opts.Post.AudioBitrate = bitrate(s.GetAudioQuality())
	default:
		opts.Quality, err = model.ParseQuality(s.GetVideoQuality())
		opts.Post.Container = s.GetVideoContainer()
	}
	if err != nil {
		return model.Options{}, err
	}
	return opts, opts.Validate()
}

func clampParallel(n int) int {
	return min(max(n, MinMaxParallel), MaxMaxParallel)
}

// bitrate turns a quality request into an ffmpeg bitrate; best and worst
// leave the default
func bitrate(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	n, err := strconv.Atoi(strings.TrimSuffix(q, "k"))
	if err != nil || n <= 0 {
		return ""
	}
	return strconv.Itoa(n) + "k"
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
