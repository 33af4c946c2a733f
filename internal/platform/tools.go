package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// External tool names
const (
	ResolverBinary = "yt-dlp"
	FFmpegBinary   = "ffmpeg"
	FFprobeBinary  = "ffprobe"
)

// CommonToolDirs are searched after PATH
var CommonToolDirs = []string{"/usr/bin", "/usr/local/bin", "/opt/homebrew/bin"}

// LookupExecutable finds name via explicit candidates, PATH and the common
// install directories, in that order. The returned error wraps exec.ErrNotFound.
func LookupExecutable(name string, candidates ...string) (string, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	file := name
	if runtime.GOOS == "windows" && !strings.HasSuffix(file, ".exe") {
		file += ".exe"
	}
	for _, dir := range CommonToolDirs {
		p := dir + string(os.PathSeparator) + file
		if info, err := os.Stat(p); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

// ToolVersion runs binary with flag and returns the first output line
func ToolVersion(ctx context.Context, runner Runner, binary, flag string) (string, error) {
	var first string
	res, err := runner.Run(ctx, Command{Name: binary, Args: []string{flag}}, func(l Line) {
		if first == "" && l.Stream == Stdout {
			first = l.Text
		}
	})
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", binary, flag, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s %s: exit status %d", binary, flag, res.ExitCode)
	}
	return strings.TrimSpace(first), nil
}
