package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_Records(t *testing.T) {
	b := NewBatch("test")

	b.ObserveGroup(false)
	b.ObserveGroup(false)
	b.ObserveGroup(true)
	b.SetMatched(3)
	b.ObserveOutcome("newly-tagged")
	b.ObserveOutcome("newly-tagged")
	b.ObserveOutcome("not-found")
	b.ObservePhase("discovery", 1500*time.Millisecond)
	b.SetPending(4, 2048)
	b.AddCleanupRows("unlink", "updated", 5)
	b.AddCleanupRows("unlink", "updated", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(b.groupsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.groupsTotal.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(b.matchedObjects))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.tagOutcomes.WithLabelValues("newly-tagged")))
	assert.Equal(t, 1.5, testutil.ToFloat64(b.phaseDuration.WithLabelValues("discovery")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(b.pendingBytes))
	assert.Equal(t, 5.0, testutil.ToFloat64(b.cleanupRows.WithLabelValues("unlink", "updated")))
}

func TestBatch_NilIsNoop(t *testing.T) {
	var b *Batch
	assert.NotPanics(t, func() {
		b.ObserveGroup(true)
		b.SetMatched(1)
		b.ObserveOutcome("x")
		b.ObservePhase("tagging", time.Second)
		b.SetPending(1, 1)
		b.SetRecentDeletions(1)
		b.AddCleanupRows("a", "b", 1)
	})
	assert.NoError(t, b.Push(context.Background(), "http://unused"))
	assert.Nil(t, b.Registry())
}

func TestBatch_Push(t *testing.T) {
	var (
		gotPath string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewBatch("purge")
	b.SetMatched(7)

	require.NoError(t, b.Push(context.Background(), srv.URL))
	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/purge"), gotPath)
	assert.NotEmpty(t, gotBody)

	assert.NoError(t, b.Push(context.Background(), ""))
}

func TestBatch_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewBatch("purge").Push(context.Background(), srv.URL)
	assert.Error(t, err)
}
