package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/s3-permanent-deletes/internal/tagger"
	"github.com/andresuchdata/s3-permanent-deletes/pkg/logger"
)

const (
	exitFailure   = 1
	exitBadInput  = 2
	exitNoMatches = 3
)

func newApp() *cli.App {
	return &cli.App{
		Name:   "purge",
		Usage:  "Tag S3 objects for lifecycle deletion and clean up what they leave behind",
		Flags:  globalFlags(),
		Before: loadConfig,
		Commands: []*cli.Command{
			tagCommand(),
			cleanDBCommand(),
			monitorCommand(),
			serveCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("purge failed")
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var exit cli.ExitCoder
	switch {
	case errors.As(err, &exit):
		return exit.ExitCode()
	case tagger.IsInputError(err):
		return exitBadInput
	case errors.Is(err, tagger.ErrNoMatches):
		return exitNoMatches
	default:
		return exitFailure
	}
}
