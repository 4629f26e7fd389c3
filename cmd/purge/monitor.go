package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/s3-permanent-deletes/internal/cache"
	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/monitor"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
	"github.com/andresuchdata/s3-permanent-deletes/pkg/logger"
)

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Report objects scheduled for lifecycle deletion and recent deletions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prefix", Usage: "Only scan keys under this prefix"},
			&cli.IntFlag{Name: "retention-days", Usage: "Days between tagging and expiry in the lifecycle rule"},
			&cli.IntFlag{Name: "lookback-hours", Usage: "CloudTrail window for recent deletions"},
			&cli.IntFlag{Name: "workers", Usage: "Concurrent tag reads"},
			&cli.StringFlag{Name: "sns-topic-arn", Usage: "SNS topic for the alarm and alerts"},
			&cli.IntFlag{Name: "alert-threshold", Usage: "Objects due today above which an alert is sent"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Report file (default lifecycle_report_<timestamp>.json)"},
			&cli.StringFlag{Name: "output-dir", Usage: "Directory for the default report file"},
			&cli.BoolFlag{Name: "skip-trail", Usage: "Do not query CloudTrail"},
		},
		Action: runMonitor,
	}
}

func applyMonitorFlags(c *cli.Context, cfg *config.Config) {
	m := &cfg.Monitor
	if c.IsSet("prefix") {
		m.Prefix = c.String("prefix")
	}
	if c.IsSet("retention-days") {
		m.RetentionDays = c.Int("retention-days")
	}
	if c.IsSet("lookback-hours") {
		m.LookbackHours = c.Int("lookback-hours")
	}
	if c.IsSet("workers") {
		m.Workers = c.Int("workers")
	}
	if c.IsSet("sns-topic-arn") {
		m.SNSTopicARN = c.String("sns-topic-arn")
	}
	if c.IsSet("alert-threshold") {
		m.AlertThreshold = c.Int("alert-threshold")
	}
	if c.IsSet("output") {
		m.OutputFile = c.String("output")
	}
	if m.OutputFile == "" && c.IsSet("output-dir") {
		m.OutputFile = filepath.Join(c.String("output-dir"), monitor.DefaultReportName(time.Now()))
	}
}

func runMonitor(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	applyMonitorFlags(c, cfg)
	log := logger.Component("monitor")

	store, err := storage.New(c.Context, cfg.AWS, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	reports, err := cache.NewReportCache(c.Context, cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("Report cache unavailable, continuing without it")
		reports = cache.NewNoopReportCache()
	}
	defer reports.Close()

	batch := metrics.NewBatch(cfg.Metrics.Job)
	deps := monitor.Deps{Cache: reports, Metrics: batch}

	// The audit trail, alarms and alerts only exist on AWS.
	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "aws" || cfg.Storage.Backend == "s3" {
		awsCfg, err := storage.LoadAWSConfig(c.Context, cfg.AWS)
		if err != nil {
			return err
		}
		if !c.Bool("skip-trail") {
			deps.Trail = cloudtrail.NewFromConfig(awsCfg)
		}
		deps.CloudWatch = cloudwatch.NewFromConfig(awsCfg)
		deps.SNS = sns.NewFromConfig(awsCfg)
	}

	m := cfg.Monitor
	opts := monitor.Options{
		Prefix:         m.Prefix,
		Tag:            storage.Tag{Key: cfg.Tagger.TagKey, Value: cfg.Tagger.TagValue},
		RetentionDays:  m.RetentionDays,
		LookbackHours:  m.LookbackHours,
		Workers:        m.Workers,
		OutputFile:     m.OutputFile,
		SNSTopicARN:    m.SNSTopicARN,
		AlertThreshold: m.AlertThreshold,
	}

	report, err := monitor.New(store, deps, opts, log).Run(c.Context)
	pushMetrics(c.Context, cfg, batch)
	if err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		return cli.Exit(fmt.Sprintf("report is incomplete: %d source(s) failed", len(report.Errors)), exitFailure)
	}
	return nil
}
