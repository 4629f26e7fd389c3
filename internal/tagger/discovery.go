package tagger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
)

// Discoverer runs the listing stage.
type Discoverer struct {
	store     storage.ObjectStore
	namespace string
	extension string
	workers   int
	metrics   *metrics.Batch
	log       zerolog.Logger
}

func NewDiscoverer(store storage.ObjectStore, opts Options, m *metrics.Batch, log zerolog.Logger) *Discoverer {
	opts = opts.withDefaults()
	return &Discoverer{
		store:     store,
		namespace: opts.Namespace,
		extension: opts.Extension,
		workers:   opts.DiscoveryWorkers,
		metrics:   m,
		log:       log,
	}
}

// Discover lists every group once, concurrently, and unions the matches.
// A failing group is logged and contributes nothing; it never stops the
// others. Results are returned in group order.
func (d *Discoverer) Discover(ctx context.Context, groups []LocationGroup) ([]GroupResult, *KeySet) {
	results := make([]GroupResult, len(groups))
	keys := NewKeySet()

	var g errgroup.Group
	g.SetLimit(d.workers)

	for i, group := range groups {
		if ctx.Err() != nil {
			results[i] = GroupResult{Group: group, ListPrefix: ListPrefix(d.namespace, group.Prefix), Err: ctx.Err()}
			continue
		}

		g.Go(func() error {
			res := d.discoverGroup(ctx, group)
			results[i] = res
			keys.Add(res.Matches...)
			d.metrics.ObserveGroup(res.Err != nil)
			return nil
		})
	}
	_ = g.Wait()

	return results, keys
}

func (d *Discoverer) discoverGroup(ctx context.Context, group LocationGroup) (res GroupResult) {
	start := time.Now()
	res.Group = group
	res.ListPrefix = ListPrefix(d.namespace, group.Prefix)

	defer func() {
		if r := recover(); r != nil {
			res.Matches = nil
			res.Err = fmt.Errorf("panic while listing %s: %v", res.ListPrefix, r)
		}
		if res.Err != nil {
			d.log.Error().
				Err(res.Err).
				Str("prefix", res.ListPrefix).
				Msg("Discovery failed for location")
			return
		}
		d.log.Info().
			Str("prefix", res.ListPrefix).
			Int("filenames", len(group.Filenames)).
			Int("matches", len(res.Matches)).
			Str("pattern", res.Pattern.String()).
			Dur("elapsed", time.Since(start)).
			Msg("Location listed")
	}()

	res.Pattern = BuildMatchPattern(res.ListPrefix, group.Filenames, d.extension)

	var matches []string
	err := d.store.ListObjects(ctx, res.ListPrefix, func(page []storage.ObjectInfo) error {
		for _, obj := range page {
			if res.Pattern.MatchString(obj.Key) {
				matches = append(matches, obj.Key)
			}
		}
		return nil
	})
	if err != nil {
		res.Err = err
		return res
	}

	res.Matches = matches
	return res
}
