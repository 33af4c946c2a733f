package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ytget/velora/internal/config"
	"github.com/ytget/velora/internal/platform"
)

// toolSet holds the discovered external executables
type toolSet struct {
	resolver    string
	resolverErr error
	ffmpeg      string
	ffmpegErr   error
	ffprobe     string
	ffprobeErr  error
}

// discoverTools resolves tool paths from settings, PATH and common install
// directories. A missing ffmpeg only fails jobs that need post-processing.
func discoverTools(settings *config.Settings) toolSet {
	var t toolSet
	t.resolver, t.resolverErr = platform.LookupExecutable(platform.ResolverBinary, settings.GetResolverPath())
	t.ffmpeg, t.ffmpegErr = platform.LookupExecutable(platform.FFmpegBinary, settings.GetFFmpegPath())
	t.ffprobe, t.ffprobeErr = platform.LookupExecutable(platform.FFprobeBinary, settings.GetFFprobePath())
	if t.ffmpegErr != nil {
		t.ffmpeg = platform.FFmpegBinary
	}
	if t.ffprobeErr != nil {
		t.ffprobe = platform.FFprobeBinary
	}
	return t
}

// runCheck prints the status of every tool and reports whether all are usable
func runCheck(ctx context.Context, runner platform.Runner, t toolSet, w io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	checks := []struct {
		name string
		path string
		err  error
		flag string
	}{
		{platform.ResolverBinary, t.resolver, t.resolverErr, "--version"},
		{platform.FFmpegBinary, t.ffmpeg, t.ffmpegErr, "-version"},
		{platform.FFprobeBinary, t.ffprobe, t.ffprobeErr, "-version"},
	}

	ok := true
	for _, c := range checks {
		if c.err != nil {
			fmt.Fprintf(w, "✗ %-8s not found\n", c.name)
			ok = false
			continue
		}
		v, err := platform.ToolVersion(ctx, runner, c.path, c.flag)
		if err != nil {
			fmt.Fprintf(w, "✗ %-8s %s: %v\n", c.name, c.path, err)
			ok = false
			continue
		}
		fmt.Fprintf(w, "✓ %-8s %s (%s)\n", c.name, c.path, v)
	}
	return ok
}
