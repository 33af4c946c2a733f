// Command velora downloads media with yt-dlp and post-processes it with
// ffmpeg. Single items and playlists are supported; progress is printed as
// lines and the exit status reflects the job outcomes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ytget/velora/internal/app"
	"github.com/ytget/velora/internal/batch"
	"github.com/ytget/velora/internal/config"
	"github.com/ytget/velora/internal/download"
	"github.com/ytget/velora/internal/engine"
	"github.com/ytget/velora/internal/logging"
	"github.com/ytget/velora/internal/metrics"
	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/pipeline"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/publish"
	"github.com/ytget/velora/internal/resolver"
)

// version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

// Exit codes
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitAborted = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "velora: %v\n", err)
		return exitUsage
	}
	cli, err := parseFlags(args, settings, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "velora: %v\n", err)
		return exitUsage
	}
	if cli.Version {
		fmt.Fprintln(stdout, "velora v"+version)
		return exitOK
	}

	logger, err := logging.New(logging.Options{
		Level:  cli.LogLevel,
		Format: cli.LogFormat,
		File:   cli.LogFile,
		Writer: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "velora: %v\n", err)
		return exitUsage
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &platform.ExecRunner{GracePeriod: settings.GetKillGrace()}
	tools := discoverTools(settings)
	if cli.Check {
		if !runCheck(ctx, runner, tools, stdout) {
			return exitFailed
		}
		return exitOK
	}
	if tools.resolverErr != nil {
		fmt.Fprintf(stderr, "velora: %v (install yt-dlp or set %s)\n", tools.resolverErr, config.KeyResolverPath)
		return exitFailed
	}

	res := resolver.New(runner,
		resolver.WithBinary(tools.resolver),
		resolver.WithTimeout(settings.GetResolveTimeout()),
		resolver.WithLogger(logger.Logger))

	switch {
	case cli.Formats:
		return printFormats(ctx, res, cli.URLs, stdout, stderr)
	case cli.Info:
		return printInfo(ctx, res, cli.URLs, stdout, stderr)
	}

	rec, shutdown := startMetrics(cli.MetricsAddr, logger.Logger)
	defer shutdown()

	eng := engine.New(res,
		download.NewExecutor(runner,
			download.WithBinary(tools.resolver),
			download.WithTimeout(settings.GetDownloadTimeout()),
			download.WithLogger(logger.Logger)),
		pipeline.New(runner,
			pipeline.WithBinary(tools.ffmpeg),
			pipeline.WithStageTimeout(settings.GetTranscodeTimeout()),
			pipeline.WithLogger(logger.Logger)),
		engine.WithInspector(pipeline.NewProber(runner, tools.ffprobe, logger.Logger)),
		engine.WithMetrics(rec),
		engine.WithLogger(logger.Logger))

	policy := engine.RetryPolicy{Attempts: cli.Retries + 1, Backoff: settings.GetRetryBackoff()}
	jobs := batch.RunFunc(func(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) model.JobResult {
		return eng.RunWithRetry(ctx, desc, events, policy)
	})
	batcher := batch.New(res, jobs, batch.WithMaxParallel(cli.Parallel), batch.WithLogger(logger.Logger))

	acqOpts := []app.Option{app.WithLogger(logger.Logger)}
	if settings.GetNativePlaylist() {
		native := platform.NewNativePlaylist()
		native.SetTimeout(settings.GetResolveTimeout())
		acqOpts = append(acqOpts, app.WithNativePlaylist(native))
	}
	if s3cfg, ok := settings.GetS3Config(); ok {
		pub, err := publish.NewS3Publisher(ctx, s3cfg, logger.Logger)
		if err != nil {
			fmt.Fprintf(stderr, "velora: %v\n", err)
			return exitUsage
		}
		acqOpts = append(acqOpts, app.WithPublisher(pub))
	}
	acquirer := app.New(res, jobs, batcher, acqOpts...)

	if err := platform.CreateDirectoryIfNotExists(cli.Opts.OutputDir); err != nil {
		fmt.Fprintf(stderr, "velora: cannot create output directory: %v\n", err)
		return exitFailed
	}

	code := exitOK
	for _, u := range cli.URLs {
		desc, err := model.NewJobDescriptor(u, cli.Opts)
		if err != nil {
			fmt.Fprintf(stderr, "velora: %s: %v\n", u, err)
			code = exitFailed
			continue
		}

		events := make(chan model.ProgressEvent, engine.DefaultEventBuffer)
		rendered := make(chan struct{})
		go func() {
			defer close(rendered)
			renderProgress(events, stderr)
		}()
		report, err := acquirer.Acquire(ctx, desc, events)
		close(events)
		<-rendered

		if err != nil {
			fmt.Fprintf(stderr, "velora: %s: %s\n", u, describeError(err))
			code = exitFailed
			continue
		}
		if !printReport(report, stdout) {
			code = exitFailed
		}
		if ctx.Err() != nil {
			return exitAborted
		}
	}
	return code
}

// startMetrics serves /metrics on addr and returns the recorder. An empty
// addr disables metrics.
func startMetrics(addr string, logger *slog.Logger) (metrics.Recorder, func()) {
	if addr == "" {
		return metrics.Nop{}, func() {}
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheus("velora", reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return rec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
