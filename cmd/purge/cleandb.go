package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/s3-permanent-deletes/internal/cleanup"
	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/repository/postgres"
	"github.com/andresuchdata/s3-permanent-deletes/pkg/logger"
)

func cleanDBFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "CSV or XLSX file listing video ids", Required: true},
		&cli.StringFlag{Name: "id-column", Usage: "Column holding the video id"},
		&cli.StringFlag{Name: "db-url", Usage: "Database connection string", EnvVars: []string{"DATABASE_URL"}},
		&cli.StringFlag{Name: "video-table", Usage: "Video table name"},
		&cli.StringFlag{Name: "play-activity-table", Usage: "Play activity table name"},
		&cli.BoolFlag{Name: "apply", Usage: "Commit the changes; without it the run only reports"},
	}
}

func cleanDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "clean-db",
		Usage: "Clean relational records of videos whose files were purged",
		Subcommands: []*cli.Command{
			{
				Name:   "unlink",
				Usage:  "Clear file references and mark the rows synced",
				Flags:  cleanDBFlags(),
				Action: runUnlink,
			},
			{
				Name:   "delete-duplicates",
				Usage:  "Delete video rows that have no play activity",
				Flags:  cleanDBFlags(),
				Action: runDeleteDuplicates,
			},
		},
	}
}

type cleanupRun struct {
	service *cleanup.Service
	ids     []int64
	close   func() error
	flush   func()
}

func prepareCleanup(c *cli.Context) (*cleanupRun, error) {
	cfg, err := configFrom(c)
	if err != nil {
		return nil, err
	}
	applyCleanDBFlags(c, cfg)
	log := logger.Component("cleanup")

	list, err := cleanup.ReadIDs(c.String("input"), cfg.Cleanup.IDColumn)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("unusable input: %v", err), exitBadInput)
	}
	log.Info().
		Int("rows", list.Rows).
		Int("ids", len(list.IDs)).
		Int("skipped", list.Skipped).
		Msg("Input read")

	db, err := postgres.NewDB(c.Context, cfg.Database)
	if err != nil {
		return nil, err
	}

	batch := metrics.NewBatch(cfg.Metrics.Job)
	svc := cleanup.NewService(
		postgres.NewVideoRepository(db, cfg.Cleanup),
		cleanup.Options{SyncedStatus: cfg.Cleanup.SyncedStatus, Apply: c.Bool("apply")},
		batch,
		log,
	)
	if !c.Bool("apply") {
		log.Warn().Msg("Dry run, no rows will be changed (pass --apply to commit)")
	}

	return &cleanupRun{
		service: svc,
		ids:     list.IDs,
		close:   db.Close,
		flush:   func() { pushMetrics(c.Context, cfg, batch) },
	}, nil
}

func applyCleanDBFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("id-column") {
		cfg.Cleanup.IDColumn = c.String("id-column")
	}
	if c.IsSet("db-url") {
		cfg.Database.URL = c.String("db-url")
	}
	if c.IsSet("video-table") {
		cfg.Cleanup.VideoTable = c.String("video-table")
	}
	if c.IsSet("play-activity-table") {
		cfg.Cleanup.PlayActivityTable = c.String("play-activity-table")
	}
}

func runUnlink(c *cli.Context) error {
	run, err := prepareCleanup(c)
	if err != nil {
		return err
	}
	defer run.close()

	_, err = run.service.Unlink(c.Context, run.ids)
	run.flush()
	return cleanupError(err)
}

func runDeleteDuplicates(c *cli.Context) error {
	run, err := prepareCleanup(c)
	if err != nil {
		return err
	}
	defer run.close()

	_, err = run.service.DeleteDuplicates(c.Context, run.ids)
	run.flush()
	return cleanupError(err)
}

func cleanupError(err error) error {
	if errors.Is(err, cleanup.ErrNoIDs) {
		return cli.Exit(err.Error(), exitBadInput)
	}
	return err
}
