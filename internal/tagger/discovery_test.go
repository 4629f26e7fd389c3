package tagger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage/storagetest"
)

var modified = time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)

func seededStore() *storagetest.Store {
	store := storagetest.New("svodvideos")
	for _, key := range []string{
		"TvShows/ShowA/S01/ep01_1080p.mp4",
		"TvShows/ShowA/S01/ep01_720p.mp4",
		"TvShows/ShowA/S01/ep02.mp4",
		"TvShows/ShowA/S01/ep02.srt",
		"TvShows/ShowA/S01/ep03.mp4",
		"TvShows/ShowB/S01/ep01.mp4",
		"TvShows/ShowB/S01/extras/ep01.mp4",
		"Movies/ShowA/S01/ep01.mp4",
	} {
		store.Add(key, 1024, modified)
	}
	return store
}

func TestDiscover_OneQueryPerPrefix(t *testing.T) {
	store := seededStore()
	groups := GroupByLocation([]Row{
		{"ShowA/S01", "ep01"},
		{"ShowA/S01", "ep02"},
		{"ShowB/S01", "ep01"},
	})

	d := NewDiscoverer(store, DefaultOptions(), nil, zerolog.Nop())
	results, keys := d.Discover(context.Background(), groups)

	require.Len(t, results, 2)
	assert.Equal(t, 2, store.TotalListCalls())
	assert.Equal(t, 1, store.ListCalls("TvShows/ShowA/S01/"))
	assert.Equal(t, 1, store.ListCalls("TvShows/ShowB/S01/"))

	assert.Equal(t, []string{
		"TvShows/ShowA/S01/ep01_1080p.mp4",
		"TvShows/ShowA/S01/ep01_720p.mp4",
		"TvShows/ShowA/S01/ep02.mp4",
		"TvShows/ShowB/S01/ep01.mp4",
	}, keys.Sorted())

	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotNil(t, r.Pattern)
	}
}

func TestDiscover_FailureIsolation(t *testing.T) {
	store := seededStore()
	store.BeforeList = func(prefix string) error {
		if prefix == "TvShows/ShowA/S01/" {
			return storagetest.AccessDenied("list", prefix)
		}
		return nil
	}

	m := metrics.NewBatch("test")
	groups := GroupByLocation([]Row{{"ShowA/S01", "ep01"}, {"ShowB/S01", "ep01"}})
	results, keys := NewDiscoverer(store, DefaultOptions(), m, zerolog.Nop()).Discover(context.Background(), groups)

	assert.Equal(t, []string{"TvShows/ShowB/S01/ep01.mp4"}, keys.Sorted())
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.Empty(t, results[0].Matches)
	assert.NoError(t, results[1].Err)
}

func TestDiscover_RecoversFromPanic(t *testing.T) {
	store := seededStore()
	store.BeforeList = func(prefix string) error {
		if prefix == "TvShows/ShowB/S01/" {
			panic("listing exploded")
		}
		return nil
	}

	groups := GroupByLocation([]Row{{"ShowA/S01", "ep03"}, {"ShowB/S01", "ep01"}})
	results, keys := NewDiscoverer(store, DefaultOptions(), nil, zerolog.Nop()).Discover(context.Background(), groups)

	assert.Equal(t, []string{"TvShows/ShowA/S01/ep03.mp4"}, keys.Sorted())
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "listing exploded")
}

func TestDiscover_BoundedConcurrency(t *testing.T) {
	store := storagetest.New("bucket")
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	store.BeforeList = func(string) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	var rows []Row
	for _, p := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		rows = append(rows, Row{p, "x"})
	}
	opts := DefaultOptions()
	opts.DiscoveryWorkers = 3

	NewDiscoverer(store, opts, nil, zerolog.Nop()).Discover(context.Background(), GroupByLocation(rows))

	assert.Equal(t, 8, store.TotalListCalls())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestDiscover_CancelledContext(t *testing.T) {
	store := seededStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, keys := NewDiscoverer(store, DefaultOptions(), nil, zerolog.Nop()).
		Discover(ctx, GroupByLocation([]Row{{"ShowA/S01", "ep01"}}))

	assert.Equal(t, 0, keys.Len())
	require.Len(t, results, 1)
	assert.True(t, errors.Is(results[0].Err, context.Canceled))
}

func TestDiscover_EmptyNamespace(t *testing.T) {
	store := storagetest.New("bucket")
	store.Add("ShowA/S01/ep01_1080p.mp4", 1, modified)
	store.Add("ShowA/S01/ep01_720p.mp4", 1, modified)

	opts := DefaultOptions()
	opts.Namespace = ""
	_, keys := NewDiscoverer(store, opts, nil, zerolog.Nop()).
		Discover(context.Background(), GroupByLocation([]Row{{"ShowA/S01", "ep01"}}))

	assert.Equal(t, []string{"ShowA/S01/ep01_1080p.mp4", "ShowA/S01/ep01_720p.mp4"}, keys.Sorted())
}
