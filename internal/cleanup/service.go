// Package cleanup unlinks and deletes video rows listed in deletion files.
// Live videos are never touched and videos with play activity are never
// deleted. Both operations are dry runs unless Apply is set.
package cleanup

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
)

// ErrNoIDs is returned when a deletion file yields no usable id.
var ErrNoIDs = errors.New("no valid ids in input")

// VideoCounts is how many of a set of ids exist, and how many are live.
type VideoCounts struct {
	Found int `db:"found"`
	Live  int `db:"live"`
}

// Queries runs inside one transaction.
type Queries interface {
	CountVideos(ctx context.Context, ids []int64) (VideoCounts, error)
	UnlinkVideos(ctx context.Context, ids []int64, syncedStatus string) (int64, error)
	VideosWithPlayActivity(ctx context.Context, ids []int64) ([]int64, error)
	DeleteVideos(ctx context.Context, ids []int64) (int64, error)
}

// Store opens transactions.
type Store interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// Options configures a Service.
type Options struct {
	SyncedStatus string
	Apply        bool
}

// UnlinkReport summarizes an unlink run.
type UnlinkReport struct {
	IDs     int
	Found   int
	Live    int
	Updated int64
	Applied bool
}

// DeleteReport summarizes a delete-duplicates run.
type DeleteReport struct {
	IDs       int
	Found     int
	Live      int
	HeldBack  []int64
	Deletable int
	SafeFound int
	SafeLive  int
	Deleted   int64
	Applied   bool
}

type Service struct {
	store   Store
	opts    Options
	metrics *metrics.Batch
	log     zerolog.Logger
}

func NewService(store Store, opts Options, m *metrics.Batch, log zerolog.Logger) *Service {
	return &Service{store: store, opts: opts, metrics: m, log: log}
}

// Unlink clears the storage location and external record of every non-live
// video in ids, marking it synced. Live videos are counted and left alone.
func (s *Service) Unlink(ctx context.Context, ids []int64) (UnlinkReport, error) {
	report := UnlinkReport{IDs: len(ids), Applied: s.opts.Apply}
	if len(ids) == 0 {
		return report, ErrNoIDs
	}

	err := s.store.InTx(ctx, func(q Queries) error {
		counts, err := q.CountVideos(ctx, ids)
		if err != nil {
			return err
		}
		report.Found = counts.Found
		report.Live = counts.Live

		if !s.opts.Apply {
			return nil
		}

		updated, err := q.UnlinkVideos(ctx, ids, s.opts.SyncedStatus)
		if err != nil {
			return err
		}
		report.Updated = updated
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("unlink failed: %w", err)
	}

	s.metrics.AddCleanupRows("unlink", "updated", int(report.Updated))
	s.metrics.AddCleanupRows("unlink", "live_skipped", report.Live)

	event := s.log.Info()
	if report.Live > 0 {
		event = s.log.Warn()
	}
	event.
		Bool("applied", report.Applied).
		Int("ids", report.IDs).
		Int("found", report.Found).
		Int("missing", report.IDs-report.Found).
		Int("live_skipped", report.Live).
		Int64("updated", report.Updated).
		Msg("Unlink complete")

	return report, nil
}

// DeleteDuplicates deletes the non-live videos in ids that have no play
// activity. Ids with play activity are held back and reported.
func (s *Service) DeleteDuplicates(ctx context.Context, ids []int64) (DeleteReport, error) {
	report := DeleteReport{IDs: len(ids), Applied: s.opts.Apply}
	if len(ids) == 0 {
		return report, ErrNoIDs
	}

	err := s.store.InTx(ctx, func(q Queries) error {
		counts, err := q.CountVideos(ctx, ids)
		if err != nil {
			return err
		}
		report.Found = counts.Found
		report.Live = counts.Live

		played, err := q.VideosWithPlayActivity(ctx, ids)
		if err != nil {
			return err
		}
		report.HeldBack = played

		safe := subtract(ids, played)
		report.Deletable = len(safe)
		if len(safe) == 0 {
			return nil
		}

		safeCounts, err := q.CountVideos(ctx, safe)
		if err != nil {
			return err
		}
		report.SafeFound = safeCounts.Found
		report.SafeLive = safeCounts.Live

		if !s.opts.Apply {
			return nil
		}

		deleted, err := q.DeleteVideos(ctx, safe)
		if err != nil {
			return err
		}
		report.Deleted = deleted
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("delete duplicates failed: %w", err)
	}

	s.metrics.AddCleanupRows("delete-duplicates", "deleted", int(report.Deleted))
	s.metrics.AddCleanupRows("delete-duplicates", "held_back", len(report.HeldBack))
	s.metrics.AddCleanupRows("delete-duplicates", "live_skipped", report.SafeLive)

	event := s.log.Info()
	if report.Live > 0 || len(report.HeldBack) > 0 {
		event = s.log.Warn()
	}
	event.
		Bool("applied", report.Applied).
		Int("ids", report.IDs).
		Int("found", report.Found).
		Int("live", report.Live).
		Int("held_back_play_activity", len(report.HeldBack)).
		Int("deletable", report.Deletable).
		Int("deletable_found", report.SafeFound).
		Int("deletable_live_skipped", report.SafeLive).
		Int64("deleted", report.Deleted).
		Msg("Delete duplicates complete")

	return report, nil
}

func subtract(ids, remove []int64) []int64 {
	drop := make(map[int64]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
