package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/s3-permanent-deletes/internal/cleanup"
	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
)

// VideoRepository implements cleanup.Store over the video and play-activity tables.
type VideoRepository struct {
	db      *DB
	queries queries
}

type queries struct {
	count    string
	unlink   string
	played   string
	deletion string
}

func NewVideoRepository(db *DB, cfg config.CleanupConfig) *VideoRepository {
	videos := pq.QuoteIdentifier(cfg.VideoTable)
	activity := pq.QuoteIdentifier(cfg.PlayActivityTable)
	videoCol := pq.QuoteIdentifier(cfg.PlayVideoColumn)

	return &VideoRepository{
		db: db,
		queries: queries{
			count: fmt.Sprintf(`
				SELECT COUNT(*) AS found,
				       COUNT(*) FILTER (WHERE is_live) AS live
				FROM %s
				WHERE id = ANY($1)`, videos),
			unlink: fmt.Sprintf(`
				UPDATE %s
				SET airtable_record = '',
				    sync_status = $2,
				    location_file = 'NONE',
				    location_folder = 'NONE'
				WHERE id = ANY($1) AND NOT is_live`, videos),
			played: fmt.Sprintf(`
				SELECT DISTINCT %[2]s
				FROM %[1]s
				WHERE %[2]s = ANY($1)
				ORDER BY %[2]s`, activity, videoCol),
			deletion: fmt.Sprintf(`
				DELETE FROM %s
				WHERE id = ANY($1) AND NOT is_live`, videos),
		},
	}
}

func (r *VideoRepository) InTx(ctx context.Context, fn func(q cleanup.Queries) error) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&txQueries{tx: tx, q: r.queries})
	})
}

type txQueries struct {
	tx *sqlx.Tx
	q  queries
}

func (t *txQueries) CountVideos(ctx context.Context, ids []int64) (cleanup.VideoCounts, error) {
	var counts cleanup.VideoCounts
	if err := t.tx.GetContext(ctx, &counts, t.q.count, pq.Array(ids)); err != nil {
		return counts, fmt.Errorf("failed to count videos: %w", err)
	}
	return counts, nil
}

func (t *txQueries) UnlinkVideos(ctx context.Context, ids []int64, syncedStatus string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.q.unlink, pq.Array(ids), syncedStatus)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink videos: %w", err)
	}
	return res.RowsAffected()
}

func (t *txQueries) VideosWithPlayActivity(ctx context.Context, ids []int64) ([]int64, error) {
	var played []int64
	if err := t.tx.SelectContext(ctx, &played, t.q.played, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to query play activity: %w", err)
	}
	return played, nil
}

func (t *txQueries) DeleteVideos(ctx context.Context, ids []int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.q.deletion, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete videos: %w", err)
	}
	return res.RowsAffected()
}

var _ cleanup.Store = (*VideoRepository)(nil)
