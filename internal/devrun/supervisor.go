// Package devrun restarts a development command when it crashes.
package devrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrTooManyRestarts = errors.New("too many restarts")

// Process is a started child.
type Process interface {
	Wait() error
	Signal(sig os.Signal) error
	Kill() error
}

// Starter launches a fresh child process.
type Starter func(ctx context.Context) (Process, error)

type Config struct {
	RestartDelay time.Duration
	// MaxRestarts within RestartWindow before the supervisor gives up. Zero means no limit.
	MaxRestarts   int
	RestartWindow time.Duration
	// StopTimeout is how long a child gets to exit after SIGINT before it is killed.
	StopTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RestartDelay:  time.Second,
		MaxRestarts:   5,
		RestartWindow: time.Minute,
		StopTimeout:   10 * time.Second,
	}
}

type Supervisor struct {
	cfg   Config
	start Starter
	now   func() time.Time
}

func New(cfg Config, start Starter) *Supervisor {
	return &Supervisor{cfg: cfg, start: start, now: time.Now}
}

// Run starts the child and restarts it after every non-zero exit until ctx is
// cancelled, the child exits cleanly, or the restart budget is spent.
func (s *Supervisor) Run(ctx context.Context) error {
	var restarts []time.Time
	for {
		proc, err := s.start(ctx)
		if err != nil {
			return fmt.Errorf("start process: %w", err)
		}

		done := make(chan error, 1)
		go func() { done <- proc.Wait() }()

		select {
		case <-ctx.Done():
			return s.stop(proc, done)
		case err := <-done:
			if err == nil {
				log.Info().Msg("Process exited cleanly")
				return nil
			}
			log.Warn().Err(err).Msg("Process exited")
		}

		now := s.now()
		restarts = pruneBefore(restarts, now.Add(-s.cfg.RestartWindow))
		if s.cfg.MaxRestarts > 0 && len(restarts) >= s.cfg.MaxRestarts {
			return fmt.Errorf("%w: %d within %s", ErrTooManyRestarts, len(restarts), s.cfg.RestartWindow)
		}
		restarts = append(restarts, now)

		log.Info().Dur("delay", s.cfg.RestartDelay).Int("restart", len(restarts)).Msg("Restarting process")
		if s.cfg.RestartDelay > 0 {
			timer := time.NewTimer(s.cfg.RestartDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func (s *Supervisor) stop(proc Process, done <-chan error) error {
	log.Info().Msg("Stopping process")
	if err := proc.Signal(os.Interrupt); err != nil {
		log.Warn().Err(err).Msg("Failed to signal process")
	}

	var timeout <-chan time.Time
	if s.cfg.StopTimeout > 0 {
		timer := time.NewTimer(s.cfg.StopTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
		return nil
	case <-timeout:
	}

	log.Warn().Dur("timeout", s.cfg.StopTimeout).Msg("Process did not stop; killing")
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", err)
	}
	<-done
	return nil
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// CommandStarter runs name with args in its own process group, sharing this
// process's stdout and stderr. Signals reach the whole group, so children of
// wrappers like `go run` stop with it.
func CommandStarter(name string, args ...string) Starter {
	return func(_ context.Context) (Process, error) {
		cmd := exec.Command(name, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		setProcessGroup(cmd)
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		log.Info().Str("command", strings.Join(append([]string{name}, args...), " ")).Int("pid", cmd.Process.Pid).Msg("Process started")
		return &execProcess{cmd: cmd}, nil
	}
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error                { return p.cmd.Wait() }
func (p *execProcess) Signal(sig os.Signal) error { return signalGroup(p.cmd, sig) }
func (p *execProcess) Kill() error                { return killGroup(p.cmd) }
