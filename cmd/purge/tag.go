package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
	"github.com/andresuchdata/s3-permanent-deletes/internal/drive"
	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
	"github.com/andresuchdata/s3-permanent-deletes/internal/tagger"
	"github.com/andresuchdata/s3-permanent-deletes/pkg/logger"
)

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "Tag every object matched by the input sheet for lifecycle deletion",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "CSV or XLSX file with location columns"},
			&cli.StringFlag{Name: "drive-file-id", Usage: "Google Drive file ID to download as input"},
			&cli.StringFlag{Name: "drive-path", Usage: "Google Drive path (Folder/Sub/file.xlsx) to download as input"},
			&cli.StringFlag{Name: "prefix-column", Usage: "Column holding the location prefix"},
			&cli.StringFlag{Name: "filename-column", Usage: "Column holding the filename stem"},
			&cli.StringFlag{Name: "namespace", Usage: "Namespace prepended to every prefix (empty for none)"},
			&cli.StringFlag{Name: "extension", Usage: "Object extension to match"},
			&cli.StringFlag{Name: "tag-key", Usage: "Tag key to add"},
			&cli.StringFlag{Name: "tag-value", Usage: "Tag value to add"},
			&cli.IntFlag{Name: "discovery-workers", Usage: "Concurrent listings"},
			&cli.IntFlag{Name: "tagging-workers", Usage: "Concurrent tag operations"},
			&cli.IntFlag{Name: "batch-size", Usage: "Progress reporting interval"},
			&cli.Float64Flag{Name: "rate-limit", Usage: "Remote calls per second, 0 for unlimited"},
			&cli.IntFlag{Name: "max-retries", Usage: "Retries for throttled calls"},
			&cli.DurationFlag{Name: "run-timeout", Usage: "Overall deadline, 0 for none"},
			&cli.DurationFlag{Name: "call-timeout", Usage: "Deadline for a single tag read or write"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Only discover and list matches"},
			&cli.StringFlag{Name: "outcomes-file", Usage: "Write per-key outcomes (or matched keys on dry run) as CSV"},
		},
		Action: runTag,
	}
}

func runTag(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	applyTagFlags(c, cfg)
	log := logger.Component("tagger")

	input := c.String("input")
	src := drive.Source{FileID: c.String("drive-file-id"), Path: c.String("drive-path")}
	if !src.IsZero() {
		if input, err = fetchInput(c, cfg, src); err != nil {
			return err
		}
	}
	if input == "" {
		return cli.Exit("an --input file or a Drive source is required", exitBadInput)
	}

	store, err := storage.New(c.Context, cfg.AWS, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	batch := metrics.NewBatch(cfg.Metrics.Job)
	opts := taggerOptions(cfg)
	opts.DryRun = c.Bool("dry-run")
	opts.OutcomesFile = c.String("outcomes-file")

	log.Info().
		Str("bucket", store.Bucket()).
		Str("tag", opts.Tag.Key+"="+opts.Tag.Value).
		Str("namespace", opts.Namespace).
		Bool("dry_run", opts.DryRun).
		Msg("Starting tag run")

	_, err = tagger.NewRunner(store, opts, batch, log).RunFile(c.Context, input)
	pushMetrics(c.Context, cfg, batch)
	return err
}

func applyTagFlags(c *cli.Context, cfg *config.Config) {
	t := &cfg.Tagger
	if c.IsSet("prefix-column") {
		t.PrefixColumn = c.String("prefix-column")
	}
	if c.IsSet("filename-column") {
		t.FilenameColumn = c.String("filename-column")
	}
	if c.IsSet("namespace") {
		t.Namespace = c.String("namespace")
	}
	if c.IsSet("extension") {
		t.Extension = c.String("extension")
	}
	if c.IsSet("tag-key") {
		t.TagKey = c.String("tag-key")
	}
	if c.IsSet("tag-value") {
		t.TagValue = c.String("tag-value")
	}
	if c.IsSet("discovery-workers") {
		t.DiscoveryWorkers = c.Int("discovery-workers")
	}
	if c.IsSet("tagging-workers") {
		t.TaggingWorkers = c.Int("tagging-workers")
	}
	if c.IsSet("batch-size") {
		t.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("run-timeout") {
		t.RunTimeout = c.Duration("run-timeout")
	}
	if c.IsSet("rate-limit") {
		cfg.Storage.RateLimit = c.Float64("rate-limit")
	}
	if c.IsSet("max-retries") {
		cfg.Storage.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("call-timeout") {
		cfg.Storage.CallTimeout = c.Duration("call-timeout")
	}
}

func taggerOptions(cfg *config.Config) tagger.Options {
	t := cfg.Tagger
	return tagger.Options{
		Tag:              storage.Tag{Key: t.TagKey, Value: t.TagValue},
		PrefixColumn:     t.PrefixColumn,
		FilenameColumn:   t.FilenameColumn,
		Namespace:        t.Namespace,
		Extension:        t.Extension,
		DiscoveryWorkers: t.DiscoveryWorkers,
		TaggingWorkers:   t.TaggingWorkers,
		BatchSize:        t.BatchSize,
		RunTimeout:       t.RunTimeout,
	}
}

func fetchInput(c *cli.Context, cfg *config.Config, src drive.Source) (string, error) {
	if cfg.Drive.CredentialsJSON == "" {
		return "", cli.Exit("GOOGLE_DRIVE_CREDENTIALS_JSON is required for Drive input", exitBadInput)
	}
	svc, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
	if err != nil {
		return "", err
	}
	path, err := svc.Fetch(c.Context, src, cfg.Drive.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("failed to fetch input from drive: %w", err)
	}
	log := logger.Component("drive")
	log.Info().Str("file", path).Msg("Input downloaded")
	return path, nil
}
