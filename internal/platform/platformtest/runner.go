// Package platformtest provides a scripted platform.Runner for tests.
package platformtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ytget/velora/internal/platform"
)

// Script is the canned behaviour of one invocation
type Script struct {
	Lines    []platform.Line
	ExitCode int
	Stderr   string
	Err      error // returned as a start failure

	// Do runs before any line is emitted, e.g. to create output files
	Do func(cmd platform.Command) error

	// Block waits for ctx to end after emitting Lines, simulating a
	// process that only stops when cancelled
	Block bool
}

// Runner replays scripts in order, or delegates every call to Func when set.
// It is safe for concurrent use.
type Runner struct {
	Func func(ctx context.Context, cmd platform.Command, onLine func(platform.Line)) (platform.RunResult, error)

	mu      sync.Mutex
	scripts []Script
	calls   []platform.Command
}

// Push queues scripts for the next invocations
func (r *Runner) Push(scripts ...Script) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = append(r.scripts, scripts...)
	return r
}

// Calls returns a copy of the recorded invocations
func (r *Runner) Calls() []platform.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Pending returns how many queued scripts were not consumed
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scripts)
}

// Run implements platform.Runner
func (r *Runner) Run(ctx context.Context, cmd platform.Command, onLine func(platform.Line)) (platform.RunResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	fn := r.Func
	var s Script
	var ok bool
	if fn == nil && len(r.scripts) > 0 {
		s, r.scripts, ok = r.scripts[0], r.scripts[1:], true
	}
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, cmd, onLine)
	}
	if !ok {
		return platform.RunResult{ExitCode: -1}, fmt.Errorf("platformtest: unexpected command %s %v", cmd.Name, cmd.Args)
	}
	return Play(ctx, s, cmd, onLine)
}

// Play executes one script against cmd
func Play(ctx context.Context, s Script, cmd platform.Command, onLine func(platform.Line)) (platform.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return platform.RunResult{ExitCode: -1}, err
	}
	if s.Err != nil {
		return platform.RunResult{ExitCode: -1}, s.Err
	}
	if s.Do != nil {
		if err := s.Do(cmd); err != nil {
			return platform.RunResult{ExitCode: -1}, err
		}
	}
	for _, l := range s.Lines {
		if err := ctx.Err(); err != nil {
			return platform.RunResult{ExitCode: -1}, err
		}
		if onLine != nil {
			onLine(l)
		}
	}
	if s.Block {
		<-ctx.Done()
		return platform.RunResult{ExitCode: -1, Stderr: s.Stderr}, ctx.Err()
	}
	return platform.RunResult{ExitCode: s.ExitCode, Stderr: s.Stderr}, nil
}

// Out builds stdout lines
func Out(lines ...string) []platform.Line {
	out := make([]platform.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, platform.Line{Stream: platform.Stdout, Text: l})
	}
	return out
}
