// cmd/devrun/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/showcase/internal/devrun"
)

// Usage: devrun [flags] [-- command args...]. Defaults to `go run ./cmd/server`.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("component", "devrun").Logger()

	cfg := devrun.DefaultConfig()
	flag.DurationVar(&cfg.RestartDelay, "delay", cfg.RestartDelay, "Delay before restarting a crashed process")
	flag.IntVar(&cfg.MaxRestarts, "max-restarts", cfg.MaxRestarts, "Restarts allowed within -window (0 for unlimited)")
	flag.DurationVar(&cfg.RestartWindow, "window", cfg.RestartWindow, "Window for counting restarts")
	flag.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "Grace period after SIGINT before killing the process")
	flag.Parse()

	command := flag.Args()
	if len(command) == 0 {
		command = []string{"go", "run", "./cmd/server"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := devrun.New(cfg, devrun.CommandStarter(command[0], command[1:]...))
	if err := supervisor.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Supervisor stopped")
		stop()
		os.Exit(1)
	}
}
