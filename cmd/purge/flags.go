package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/pkg/logger"
)

type configKey struct{}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Usage: "zerolog level (debug, info, warn, error)", EnvVars: []string{"LOG_LEVEL"}},
		&cli.BoolFlag{Name: "log-json", Usage: "Emit JSON logs instead of console output", EnvVars: []string{"LOG_JSON"}},
		&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "Target bucket", EnvVars: []string{"S3_BUCKET"}},
		&cli.StringFlag{Name: "profile", Usage: "AWS shared credentials profile", EnvVars: []string{"AWS_PROFILE"}},
		&cli.StringFlag{Name: "region", Usage: "AWS region", EnvVars: []string{"AWS_REGION"}},
		&cli.StringFlag{Name: "endpoint", Usage: "Custom S3 endpoint", EnvVars: []string{"AWS_ENDPOINT_URL"}},
		&cli.StringFlag{Name: "backend", Usage: "Storage backend: aws or minio", EnvVars: []string{"STORAGE_BACKEND"}},
		&cli.StringFlag{Name: "pushgateway", Usage: "Prometheus Pushgateway URL", EnvVars: []string{"METRICS_PUSHGATEWAY_URL"}},
	}
}

// loadConfig reads env/.env, applies flag overrides and configures logging.
func loadConfig(c *cli.Context) error {
	cfg := *config.Load()
	applyGlobalFlags(c, &cfg)

	logger.Configure(cfg.Log.Level, cfg.Log.JSON)

	c.Context = context.WithValue(c.Context, configKey{}, &cfg)
	return nil
}

func applyGlobalFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-json") {
		cfg.Log.JSON = c.Bool("log-json")
	}
	if c.IsSet("bucket") {
		cfg.Storage.Bucket = c.String("bucket")
	}
	if c.IsSet("profile") {
		cfg.AWS.Profile = c.String("profile")
	}
	if c.IsSet("region") {
		cfg.AWS.Region = c.String("region")
	}
	if c.IsSet("endpoint") {
		cfg.AWS.Endpoint = c.String("endpoint")
	}
	if c.IsSet("backend") {
		cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(c.String("backend")))
	}
	if c.IsSet("pushgateway") {
		cfg.Metrics.PushgatewayURL = c.String("pushgateway")
	}
}

func configFrom(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.Context.Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

func pushMetrics(ctx context.Context, cfg *config.Config, batch *metrics.Batch) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	log := logger.Component("metrics")
	if err := batch.Push(ctx, cfg.Metrics.PushgatewayURL); err != nil {
		log.Warn().Err(err).Msg("Failed to push metrics")
		return
	}
	log.Debug().Str("url", cfg.Metrics.PushgatewayURL).Msg("Metrics pushed")
}
