//go:build unix

package platform

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_StreamsLines(t *testing.T) {
	requireShell(t)
	r := NewExecRunner()

	var mu sync.Mutex
	var lines []Line
	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `printf 'one\rtwo\n'; echo oops >&2; exit 3`},
	}, func(l Line) {
		mu.Lock()
		lines = append(lines, l)
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops", res.Stderr)
	assert.Contains(t, lines, Line{Stream: Stdout, Text: "one"})
	assert.Contains(t, lines, Line{Stream: Stdout, Text: "two"})
	assert.Contains(t, lines, Line{Stream: Stderr, Text: "oops"})
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner()
	_, err := r.Run(context.Background(), Command{Name: "velora-definitely-missing-tool"}, nil)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestExecRunner_CancelInterruptsProcess(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{GracePeriod: 2 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, Command{
			Name: "sh",
			Args: []string{"-c", `echo ready; sleep 30`},
		}, func(l Line) {
			once.Do(func() { close(started) })
		})
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not start")
	}
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled process did not exit")
	}
}

func TestToolVersion(t *testing.T) {
	requireShell(t)
	v, err := ToolVersion(context.Background(), NewExecRunner(), "echo", "v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)
}
