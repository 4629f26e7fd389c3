package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/s3-permanent-deletes/internal/api"
	"github.com/andresuchdata/s3-permanent-deletes/internal/cache"
	"github.com/andresuchdata/s3-permanent-deletes/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the latest lifecycle reports over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "Listen port", EnvVars: []string{"SERVER_PORT"}},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.String("port")
	}
	log := logger.Component("api")

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if !cfg.Cache.Enabled {
		log.Warn().Msg("CACHE_ENABLED is false, report endpoints will return 404")
	}
	reports, err := cache.NewReportCache(c.Context, cfg.Cache)
	if err != nil {
		return err
	}
	defer reports.Close()

	router := api.NewRouter(&api.Services{Reports: reports}, cfg.Server.AllowedOrigins, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-c.Context.Done():
	}

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info().Msg("Server exiting")
	return nil
}
