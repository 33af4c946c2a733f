//go:build !unix

package platform

import (
	"os"
	"os/exec"
)

func configureProcessGroup(*exec.Cmd) {}

func interruptProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}

func killProcessGroup(*exec.Cmd) {}
