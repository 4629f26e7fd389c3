package monitor

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
)

// PendingScanner finds objects whose tag key equals the deletion value.
type PendingScanner struct {
	store     storage.ObjectStore
	tag       storage.Tag
	retention time.Duration
	workers   int
	now       func() time.Time
	log       zerolog.Logger
}

func NewPendingScanner(store storage.ObjectStore, tag storage.Tag, retentionDays, workers int, log zerolog.Logger) *PendingScanner {
	if workers < 1 {
		workers = 1
	}
	return &PendingScanner{
		store:     store,
		tag:       tag,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		workers:   workers,
		now:       time.Now,
		log:       log,
	}
}

// DaysUntil is the whole number of days from now to t, rounded down.
func DaysUntil(t, now time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}

// Scan lists everything under prefix and fetches tags with bounded
// concurrency. Objects whose tags cannot be read are logged and skipped.
// On a listing failure the objects found so far are returned with the error.
func (s *PendingScanner) Scan(ctx context.Context, prefix string) ([]TaggedObject, error) {
	var (
		mu      sync.Mutex
		pending []TaggedObject
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	listErr := s.store.ListObjects(gctx, prefix, func(page []storage.ObjectInfo) error {
		for _, obj := range page {
			g.Go(func() error {
				tags, err := s.store.GetObjectTags(gctx, obj.Key)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					s.log.Warn().Err(err).Str("key", obj.Key).Msg("Could not get tags")
					mu.Lock()
					skipped++
					mu.Unlock()
					return nil
				}

				m := storage.TagMap(tags)
				if v, ok := m[s.tag.Key]; !ok || v != s.tag.Value {
					return nil
				}

				deletion := obj.LastModified.Add(s.retention)
				mu.Lock()
				pending = append(pending, TaggedObject{
					Key:               obj.Key,
					Size:              obj.Size,
					LastModified:      obj.LastModified,
					DeletionDate:      deletion,
					DaysUntilDeletion: DaysUntil(deletion, s.now()),
					Tags:              m,
				})
				mu.Unlock()
				return nil
			})
		}
		return gctx.Err()
	})
	waitErr := g.Wait()

	sort.Slice(pending, func(i, j int) bool { return pending[i].Key < pending[j].Key })

	if skipped > 0 {
		s.log.Warn().Int("skipped", skipped).Msg("Objects skipped because their tags could not be read")
	}
	if listErr != nil {
		return pending, listErr
	}
	return pending, waitErr
}
