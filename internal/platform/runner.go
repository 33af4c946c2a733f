package platform

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"
)

// DefaultGracePeriod is how long a cancelled process may take to exit after
// the graceful signal before it is killed.
const DefaultGracePeriod = 5 * time.Second

// stderrKeep bounds the captured stderr kept for classification
const stderrKeep = 64 * 1024

// Stream identifies the output stream a line came from
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Command is one external process invocation
type Command struct {
	Name string
	Args []string
	Dir  string
}

// Line is one CR or LF terminated line of process output
type Line struct {
	Stream Stream
	Text   string
}

// RunResult describes how a process exited
type RunResult struct {
	ExitCode int
	Stderr   string // tail of standard error
}

// Runner starts external processes and streams their output line by line.
//
// Run blocks until the process exits. onLine is called sequentially in the
// order lines were produced. A non-zero exit is reported through
// RunResult.ExitCode with a nil error; the error is non-nil only when the
// process could not be started or ctx ended the run, in which case it wraps
// ctx.Err().
type Runner interface {
	Run(ctx context.Context, cmd Command, onLine func(Line)) (RunResult, error)
}

// ExecRunner runs commands with os/exec. On cancellation the process group
// receives a graceful interrupt and is killed after GracePeriod.
type ExecRunner struct {
	GracePeriod time.Duration
}

// NewExecRunner creates a runner with the default grace period
func NewExecRunner() *ExecRunner {
	return &ExecRunner{GracePeriod: DefaultGracePeriod}
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, c Command, onLine func(Line)) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{ExitCode: -1}, err
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	configureProcessGroup(cmd)
	cmd.Cancel = func() error { return interruptProcess(cmd) }
	cmd.WaitDelay = r.grace()

	var mu sync.Mutex
	tail := &tailBuffer{limit: stderrKeep}
	stdout := newLineWriter(&mu, func(s string) { emit(onLine, Line{Stream: Stdout, Text: s}) })
	stderr := newLineWriter(&mu, func(s string) {
		tail.add(s)
		emit(onLine, Line{Stream: Stderr, Text: s})
	})
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1}, err
	}
	waitErr := cmd.Wait()
	stdout.Flush()
	stderr.Flush()

	res := RunResult{ExitCode: exitCode(cmd, waitErr), Stderr: tail.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		killProcessGroup(cmd)
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, waitErr
	}
	return res, nil
}

func (r *ExecRunner) grace() time.Duration {
	if r.GracePeriod > 0 {
		return r.GracePeriod
	}
	return DefaultGracePeriod
}

func emit(onLine func(Line), l Line) {
	if onLine != nil {
		onLine(l)
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
