//go:build unix

package devrun

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

const (
	roleEnv    = "DEVRUN_TEST_ROLE"
	pidFileEnv = "DEVRUN_TEST_PIDFILE"
)

// The test binary doubles as the supervised command. The "wrapper" role acts
// like `go run`: it starts a "server" child, ignores SIGINT and waits.
func TestMain(m *testing.M) {
	switch os.Getenv(roleEnv) {
	case "wrapper":
		runWrapper()
		return
	case "server":
		time.Sleep(time.Hour)
		return
	}
	os.Exit(m.Run())
}

func runWrapper() {
	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), roleEnv+"=server")
	if err := cmd.Start(); err != nil {
		os.Exit(3)
	}
	pidFile := os.Getenv(pidFileEnv)
	tmp := pidFile + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		os.Exit(3)
	}
	if err := os.Rename(tmp, pidFile); err != nil {
		os.Exit(3)
	}
	signal.Ignore(os.Interrupt)
	_ = cmd.Wait()
	os.Exit(1)
}

func processAlive(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return false
	}
	// An unreaped zombie still answers signal 0.
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) == 0 || fields[0] != "Z"
}

func TestCommandStarterStopsGrandchildren(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "server.pid")
	t.Setenv(roleEnv, "wrapper")
	t.Setenv(pidFileEnv, pidFile)

	cfg := Config{StopTimeout: 2 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- New(cfg, CommandStarter(os.Args[0])).Run(ctx) }()

	var serverPID int
	deadline := time.Now().Add(10 * time.Second)
	for serverPID == 0 {
		if data, err := os.ReadFile(pidFile); err == nil {
			serverPID, _ = strconv.Atoi(string(data))
		}
		if time.Now().After(deadline) {
			t.Fatal("server child never reported its pid")
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(func() { _ = syscall.Kill(serverPID, syscall.SIGKILL) })

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	deadline = time.Now().Add(5 * time.Second)
	for processAlive(serverPID) {
		if time.Now().After(deadline) {
			t.Fatalf("server child %d still running after the supervisor stopped", serverPID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
