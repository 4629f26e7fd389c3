package tagger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage/storagetest"
	"github.com/andresuchdata/s3-permanent-deletes/internal/tabular"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Videos-HardDeletes.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRunner_TagsMatchedObjects(t *testing.T) {
	store := storagetest.New("svodvideos")
	store.Add("ShowA/S01/ep01_1080p.mp4", 1, modified)
	store.Add("ShowA/S01/ep01_720p.mp4", 1, modified)
	store.Add("ShowA/S01/ep02.mp4", 1, modified)

	opts := DefaultOptions()
	opts.Namespace = ""
	opts.OutcomesFile = filepath.Join(t.TempDir(), "out", "outcomes.csv")
	m := metrics.NewBatch("test")

	summary, err := NewRunner(store, opts, m, zerolog.Nop()).
		Run(context.Background(), []Row{{"ShowA/S01", "ep01"}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RowsProcessed)
	assert.Equal(t, 1, summary.Groups)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 2, summary.Succeeded())
	assert.Equal(t, 2, summary.NewlyTagged)
	assert.Equal(t, 0, summary.Failed)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, []string{"ShowA/S01/ep01_1080p.mp4", "ShowA/S01/ep01_720p.mp4"}, summary.Samples)

	assert.Equal(t, []storage.Tag{target}, store.Tags("ShowA/S01/ep01_1080p.mp4"))
	assert.Empty(t, store.Tags("ShowA/S01/ep02.mp4"))

	assert.Equal(t,
		"key,success,reason,detail\n"+
			"ShowA/S01/ep01_1080p.mp4,true,newly-tagged,\n"+
			"ShowA/S01/ep01_720p.mp4,true,newly-tagged,\n",
		readFile(t, opts.OutcomesFile))

	expected := `
# HELP s3_permanent_deletes_matched_objects Distinct object keys matched by discovery
# TYPE s3_permanent_deletes_matched_objects gauge
s3_permanent_deletes_matched_objects 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "s3_permanent_deletes_matched_objects"))
}

func TestRunner_SecondRunReportsAlreadyTagged(t *testing.T) {
	store := seededStore()
	rows := []Row{{"ShowA/S01", "ep01"}, {"ShowA/S01", "ep02"}, {"ShowB/S01", "ep01"}}
	runner := NewRunner(store, DefaultOptions(), nil, zerolog.Nop())

	first, err := runner.Run(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 4, first.NewlyTagged)

	writes := store.PutCalls()
	second, err := runner.Run(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 4, second.Matched)
	assert.Equal(t, 4, second.AlreadyTagged)
	assert.Equal(t, 0, second.NewlyTagged)
	assert.Equal(t, writes, store.PutCalls())
}

func TestRunner_FailedGroupStillTagsOthers(t *testing.T) {
	store := seededStore()
	store.BeforeList = func(prefix string) error {
		if strings.Contains(prefix, "ShowB") {
			return storagetest.Throttled("list", prefix)
		}
		return nil
	}

	summary, err := NewRunner(store, DefaultOptions(), nil, zerolog.Nop()).
		Run(context.Background(), []Row{{"ShowA/S01", "ep03"}, {"ShowB/S01", "ep01"}})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Groups)
	assert.Equal(t, 1, summary.FailedGroups)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.NewlyTagged)
}

func TestRunner_NoMatches(t *testing.T) {
	store := seededStore()

	summary, err := NewRunner(store, DefaultOptions(), nil, zerolog.Nop()).
		Run(context.Background(), []Row{{"ShowZ/S09", "ep01"}})

	assert.ErrorIs(t, err, ErrNoMatches)
	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 0, store.GetCalls())
}

func TestRunner_RunTimeoutBoundsDiscovery(t *testing.T) {
	store := seededStore()
	stall := make(chan struct{})
	defer close(stall)
	store.StallList = stall

	opts := DefaultOptions()
	opts.RunTimeout = 50 * time.Millisecond

	start := time.Now()
	summary, err := NewRunner(store, opts, nil, zerolog.Nop()).
		Run(context.Background(), []Row{{"ShowA/S01", "ep01"}, {"ShowB/S01", "ep01"}})

	assert.ErrorIs(t, err, ErrNoMatches)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 2, summary.Groups)
	assert.Equal(t, 2, summary.FailedGroups)
	assert.Equal(t, 0, store.GetCalls())
}

func TestRunner_DryRunSkipsTagging(t *testing.T) {
	store := seededStore()
	opts := DefaultOptions()
	opts.DryRun = true
	opts.OutcomesFile = filepath.Join(t.TempDir(), "matches.csv")

	summary, err := NewRunner(store, opts, nil, zerolog.Nop()).
		Run(context.Background(), []Row{{"ShowA/S01", "ep01"}})
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 0, store.GetCalls())
	assert.Equal(t, 0, store.PutCalls())
	assert.Equal(t,
		"key\nTvShows/ShowA/S01/ep01_1080p.mp4\nTvShows/ShowA/S01/ep01_720p.mp4\n",
		readFile(t, opts.OutcomesFile))
}

func TestRunner_NotFoundIsCounted(t *testing.T) {
	store := seededStore()
	store.BeforeGet = func(key string) error {
		if key == "TvShows/ShowA/S01/ep01_720p.mp4" {
			return storagetest.NotFound("get-tags", key)
		}
		return nil
	}

	summary, err := NewRunner(store, DefaultOptions(), nil, zerolog.Nop()).
		Run(context.Background(), []Row{{"ShowA/S01", "ep01"}})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.NewlyTagged)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.ByReason[ReasonNotFound])
}

func TestRunFile(t *testing.T) {
	store := seededStore()
	path := writeInput(t, "id,location_folder,location_file\n"+
		"1,/ShowA/S01/,ep02\n"+
		"2,,ep01\n"+
		"3,ShowB/S01,ep01\n")

	summary, err := NewRunner(store, DefaultOptions(), nil, zerolog.Nop()).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RowsProcessed)
	assert.Equal(t, 2, summary.Groups)
	assert.Equal(t, 2, summary.NewlyTagged)
}

func TestRunFile_InputErrors(t *testing.T) {
	store := seededStore()
	runner := NewRunner(store, DefaultOptions(), nil, zerolog.Nop())

	_, err := runner.RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, IsInputError(err))

	path := writeInput(t, "id,location_folder\n1,ShowA/S01\n")
	_, err = runner.RunFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsInputError(err))

	var missing *tabular.MissingColumnsError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, 0, store.TotalListCalls())
}

func TestSummarize(t *testing.T) {
	groups := []GroupResult{{}, {Err: errors.New("x")}}
	keys := []string{"a", "b", "c", "d", "e", "f"}
	outcomes := []TagOutcome{
		{Key: "a", Success: true, Reason: ReasonNewlyTagged},
		{Key: "b", Success: true, Reason: ReasonAlreadyTagged},
		{Key: "c", Reason: ReasonNotFound},
		{Key: "d", Reason: ReasonRemoteError},
		{Key: "e", Reason: ReasonUnexpectedError},
		{Key: "f", Success: true, Reason: ReasonNewlyTagged},
	}

	s := Summarize(10, groups, keys, outcomes, 2e9)

	assert.Equal(t, 10, s.RowsProcessed)
	assert.Equal(t, 2, s.Groups)
	assert.Equal(t, 1, s.FailedGroups)
	assert.Equal(t, 6, s.Matched)
	assert.Equal(t, 2, s.NewlyTagged)
	assert.Equal(t, 1, s.AlreadyTagged)
	assert.Equal(t, 3, s.Failed)
	assert.InDelta(t, 3.0, s.Throughput, 0.0001)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.Samples)
}
