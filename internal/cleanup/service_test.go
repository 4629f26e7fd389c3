package cleanup

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type video struct {
	live           bool
	airtableRecord string
	syncStatus     string
	locationFile   string
	locationFolder string
}

// fakeStore keeps videos in memory; a failing transaction leaves them untouched.
type fakeStore struct {
	videos   map[int64]*video
	played   map[int64]bool
	writes   int
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{videos: make(map[int64]*video), played: make(map[int64]bool)}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	snapshot := make(map[int64]video, len(f.videos))
	for id, v := range f.videos {
		snapshot[id] = *v
	}
	if err := fn(f); err != nil {
		f.videos = make(map[int64]*video, len(snapshot))
		for id, v := range snapshot {
			v := v
			f.videos[id] = &v
		}
		return err
	}
	return nil
}

func (f *fakeStore) CountVideos(_ context.Context, ids []int64) (VideoCounts, error) {
	var c VideoCounts
	for _, id := range ids {
		if v, ok := f.videos[id]; ok {
			c.Found++
			if v.live {
				c.Live++
			}
		}
	}
	return c, nil
}

func (f *fakeStore) UnlinkVideos(_ context.Context, ids []int64, status string) (int64, error) {
	f.writes++
	if f.failWith != nil {
		return 0, f.failWith
	}
	var n int64
	for _, id := range ids {
		if v, ok := f.videos[id]; ok && !v.live {
			v.airtableRecord = ""
			v.syncStatus = status
			v.locationFile = "NONE"
			v.locationFolder = "NONE"
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) VideosWithPlayActivity(_ context.Context, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		if f.played[id] {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeStore) DeleteVideos(_ context.Context, ids []int64) (int64, error) {
	f.writes++
	if f.failWith != nil {
		return 0, f.failWith
	}
	var n int64
	for _, id := range ids {
		if v, ok := f.videos[id]; ok && !v.live {
			delete(f.videos, id)
			n++
		}
	}
	return n, nil
}

func seed(f *fakeStore) {
	f.videos[1] = &video{airtableRecord: "rec1", locationFile: "ep01.mp4", locationFolder: "ShowA/S01"}
	f.videos[2] = &video{airtableRecord: "rec2", locationFile: "ep02.mp4", locationFolder: "ShowA/S01"}
	f.videos[3] = &video{live: true, airtableRecord: "rec3", locationFile: "ep03.mp4", locationFolder: "ShowA/S01"}
	f.videos[4] = &video{airtableRecord: "rec4", locationFile: "ep04.mp4", locationFolder: "ShowA/S01"}
}

func TestUnlink_DryRunMakesNoWrites(t *testing.T) {
	store := newFakeStore()
	seed(store)
	svc := NewService(store, Options{SyncedStatus: "synced"}, nil, zerolog.Nop())

	report, err := svc.Unlink(context.Background(), []int64{1, 2, 3, 99})
	require.NoError(t, err)

	assert.Equal(t, UnlinkReport{IDs: 4, Found: 3, Live: 1}, report)
	assert.Equal(t, 0, store.writes)
	assert.Equal(t, "rec1", store.videos[1].airtableRecord)
}

func TestUnlink_SkipsLiveVideos(t *testing.T) {
	store := newFakeStore()
	seed(store)
	svc := NewService(store, Options{SyncedStatus: "synced", Apply: true}, nil, zerolog.Nop())

	report, err := svc.Unlink(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Updated)
	assert.True(t, report.Applied)
	assert.Equal(t, video{syncStatus: "synced", locationFile: "NONE", locationFolder: "NONE"}, *store.videos[1])
	assert.Equal(t, "rec3", store.videos[3].airtableRecord, "live video untouched")
	assert.Equal(t, "rec4", store.videos[4].airtableRecord, "unlisted video untouched")
}

func TestDeleteDuplicates_HoldsBackPlayedAndLive(t *testing.T) {
	store := newFakeStore()
	seed(store)
	store.played[2] = true
	svc := NewService(store, Options{Apply: true}, nil, zerolog.Nop())

	report, err := svc.DeleteDuplicates(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, report.HeldBack)
	assert.Equal(t, 2, report.Deletable)
	assert.Equal(t, 1, report.SafeLive)
	assert.Equal(t, int64(1), report.Deleted)

	assert.NotContains(t, store.videos, int64(1))
	assert.Contains(t, store.videos, int64(2), "played video kept")
	assert.Contains(t, store.videos, int64(3), "live video kept")
	assert.Contains(t, store.videos, int64(4))
}

func TestDeleteDuplicates_DryRun(t *testing.T) {
	store := newFakeStore()
	seed(store)

	report, err := NewService(store, Options{}, nil, zerolog.Nop()).DeleteDuplicates(context.Background(), []int64{1, 4})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Deletable)
	assert.Equal(t, 2, report.SafeFound)
	assert.Equal(t, int64(0), report.Deleted)
	assert.Equal(t, 0, store.writes)
	assert.Len(t, store.videos, 4)
}

func TestDeleteDuplicates_AllHeldBack(t *testing.T) {
	store := newFakeStore()
	seed(store)
	store.played[1] = true

	report, err := NewService(store, Options{Apply: true}, nil, zerolog.Nop()).DeleteDuplicates(context.Background(), []int64{1})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Deletable)
	assert.Equal(t, 0, store.writes)
}

func TestService_FailureRollsBack(t *testing.T) {
	store := newFakeStore()
	seed(store)
	store.failWith = errors.New("connection lost")

	_, err := NewService(store, Options{Apply: true}, nil, zerolog.Nop()).Unlink(context.Background(), []int64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	assert.Equal(t, "rec1", store.videos[1].airtableRecord)
}

func TestService_NoIDs(t *testing.T) {
	svc := NewService(newFakeStore(), Options{Apply: true}, nil, zerolog.Nop())

	_, err := svc.Unlink(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoIDs)

	_, err = svc.DeleteDuplicates(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoIDs)
}
