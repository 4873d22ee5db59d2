// cmd/smoke/main.go
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/showcase/internal/smokeclient"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the running server")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := log.With().Str("base_url", *baseURL).Logger()
	themeID, err := smokeclient.New(*baseURL, nil, logger).Run(ctx)
	if err != nil {
		logger.Error().Err(err).Str("theme_id", themeID).Msg("Smoke test failed")
		cancel()
		os.Exit(1)
	}
	logger.Info().Str("theme_id", themeID).Msg("Smoke test passed")
}
