package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ytget/velora/internal/config"
	"github.com/ytget/velora/internal/model"
)

// cliOptions is the parsed command line
type cliOptions struct {
	URLs []string
	Opts model.Options

	Parallel    int
	Retries     int
	Formats     bool
	Info        bool
	Check       bool
	Version     bool
	LogLevel    string
	LogFormat   string
	LogFile     string
	MetricsAddr string
}

// rawFlags holds flag values that need parsing after fs.Parse
type rawFlags struct {
	audio         bool
	noAudio       bool
	quality       string
	container     string
	codec         string
	encodeQuality string
	trim          string
	resize        string
	extractAudio  bool
	audioFormat   string
	bitrate       string
	thumbnail     bool
	thumbnailAt   string
	out           string
}

// parseFlags parses args on top of the settings. Flags override settings.
func parseFlags(args []string, settings *config.Settings, stderr io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("velora", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }

	var raw rawFlags
	cli := cliOptions{
		Parallel:    settings.GetMaxParallelDownloads(),
		Retries:     settings.GetRetries(),
		LogLevel:    settings.GetLogLevel(),
		LogFormat:   settings.GetLogFormat(),
		LogFile:     settings.GetLogFile(),
		MetricsAddr: settings.GetMetricsAddr(),
	}

	// job
	fs.BoolVar(&raw.audio, "audio", false, "Download audio only")
	fs.BoolVar(&raw.audio, "a", false, "Same as -audio")
	fs.BoolVar(&raw.noAudio, "no-audio", false, "Video without a separate audio stream")
	fs.StringVar(&raw.quality, "quality", "", "best | worst | 720p | 192k (default from settings)")
	fs.StringVar(&raw.quality, "q", "", "Same as -quality")
	fs.StringVar(&raw.out, "out", "", "Output directory")
	fs.StringVar(&raw.out, "o", "", "Same as -out")

	// post-processing
	fs.StringVar(&raw.container, "container", "", "Video container: mp4 | mkv | webm | mov")
	fs.StringVar(&raw.codec, "codec", "", "Re-encode video: h264 | h265")
	fs.StringVar(&raw.encodeQuality, "encode-quality", "", "Re-encode quality: low | medium | high | ultra")
	fs.StringVar(&raw.trim, "trim", "", "Keep a range, e.g. 1:00-2:30")
	fs.StringVar(&raw.resize, "resize", "", "Resize to WxH, Wx, xH, a factor like 0.5 or 50%")
	fs.BoolVar(&raw.extractAudio, "extract-audio", false, "Also write the audio track as a separate file")
	fs.StringVar(&raw.audioFormat, "audio-format", "", "Audio format: mp3 | m4a | aac | opus | ogg | flac | wav")
	fs.StringVar(&raw.bitrate, "bitrate", "", "Audio bitrate, e.g. 192k")
	fs.BoolVar(&raw.thumbnail, "thumbnail", false, "Write a JPEG thumbnail")
	fs.StringVar(&raw.thumbnailAt, "thumbnail-at", "", "Thumbnail position, e.g. 0:05")

	// behavior
	fs.IntVar(&cli.Parallel, "parallel", cli.Parallel, "Playlist items processed at once (1-10)")
	fs.IntVar(&cli.Parallel, "p", cli.Parallel, "Same as -parallel")
	fs.IntVar(&cli.Retries, "retries", cli.Retries, "Re-runs of a job after a retryable failure")

	// utility
	fs.BoolVar(&cli.Formats, "formats", false, "List available formats and exit")
	fs.BoolVar(&cli.Info, "info", false, "Print metadata and exit")
	fs.BoolVar(&cli.Check, "check", false, "Check external tools and exit")
	fs.BoolVar(&cli.Version, "version", false, "Print version and exit")
	fs.StringVar(&cli.LogLevel, "log-level", cli.LogLevel, "debug | info | warn | error")
	fs.StringVar(&cli.LogFormat, "log-format", cli.LogFormat, "text | json")
	fs.StringVar(&cli.LogFile, "log", cli.LogFile, "Append logs to file")
	fs.StringVar(&cli.MetricsAddr, "metrics-addr", cli.MetricsAddr, "Serve Prometheus metrics on this address, e.g. :9090")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	cli.URLs = fs.Args()
	if cli.Version || cli.Check {
		return cli, nil
	}
	if len(cli.URLs) == 0 {
		return cliOptions{}, errors.New("at least one URL is required")
	}

	kind := model.KindVideo
	if raw.audio {
		kind = model.KindAudio
	}
	opts, err := settings.JobOptions(kind)
	if err != nil {
		return cliOptions{}, err
	}
	if err := raw.apply(&opts); err != nil {
		return cliOptions{}, err
	}
	if err := opts.Validate(); err != nil {
		return cliOptions{}, err
	}
	cli.Opts = opts
	cli.Parallel = min(max(cli.Parallel, config.MinMaxParallel), config.MaxMaxParallel)
	cli.Retries = max(cli.Retries, 0)
	return cli, nil
}

func (r rawFlags) apply(opts *model.Options) error {
	var err error
	if r.noAudio {
		opts.IncludeAudio = false
	}
	if r.quality != "" {
		if opts.Quality, err = model.ParseQuality(r.quality); err != nil {
			return err
		}
	}
	if r.out != "" {
		opts.OutputDir = r.out
	}
	if r.container != "" {
		opts.Post.Container = strings.ToLower(r.container)
	}
	opts.Post.VideoCodec = strings.ToLower(r.codec)
	opts.Post.EncodeQuality = strings.ToLower(r.encodeQuality)
	if r.trim != "" {
		if opts.Post.Trim, err = model.ParseTrim(r.trim); err != nil {
			return fmt.Errorf("-trim: %w", err)
		}
	}
	if r.resize != "" {
		if opts.Post.Resize, err = model.ParseResize(r.resize); err != nil {
			return fmt.Errorf("-resize: %w", err)
		}
	}
	opts.Post.ExtractAudio = r.extractAudio
	if r.audioFormat != "" {
		opts.Post.AudioFormat = strings.ToLower(r.audioFormat)
	}
	if r.bitrate != "" {
		opts.Post.AudioBitrate = r.bitrate
	}
	opts.Post.Thumbnail = r.thumbnail
	if r.thumbnailAt != "" {
		if opts.Post.ThumbnailAt, err = model.ParseTimestamp(r.thumbnailAt); err != nil {
			return fmt.Errorf("-thumbnail-at: %w", err)
		}
		opts.Post.Thumbnail = true
	}
	return nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "velora v%s - download and post-process media\n\n", version)
	fmt.Fprintln(w, "Usage: velora [options] URL [URL...]")
	fmt.Fprintln(w, "\nOptions:")
	fs.PrintDefaults()
	fmt.Fprintln(w, "\nSettings are read from .env files and VELORA_* environment variables.")
}
