//go:build !unix

package devrun

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func signalGroup(cmd *exec.Cmd, sig os.Signal) error {
	return cmd.Process.Signal(sig)
}

func killGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
