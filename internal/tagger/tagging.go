package tagger

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
)

// Tagger runs the tagging stage.
type Tagger struct {
	store     storage.ObjectStore
	tag       storage.Tag
	workers   int
	batchSize int
	metrics   *metrics.Batch
	log       zerolog.Logger
}

func NewTagger(store storage.ObjectStore, opts Options, m *metrics.Batch, log zerolog.Logger) *Tagger {
	opts = opts.withDefaults()
	return &Tagger{
		store:     store,
		tag:       opts.Tag,
		workers:   opts.TaggingWorkers,
		batchSize: opts.BatchSize,
		metrics:   m,
		log:       log,
	}
}

// TagAll tags every key with a bounded worker pool and returns one outcome
// per key. Outcomes are collected by the calling goroutine only. Once ctx is
// done no further keys are dispatched; those keys get a remote-error outcome.
func (t *Tagger) TagAll(ctx context.Context, keys []string) []TagOutcome {
	total := len(keys)
	outcomes := make([]TagOutcome, 0, total)
	if total == 0 {
		return outcomes
	}

	workerCount := t.workers
	if workerCount > total {
		workerCount = total
	}

	jobChan := make(chan string)
	resultChan := make(chan TagOutcome, workerCount)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobChan {
				resultChan <- t.TagOne(ctx, key)
			}
		}()
	}

	dispatched := 0
	go func() {
		defer close(jobChan)
		for _, key := range keys {
			select {
			case <-ctx.Done():
				return
			case jobChan <- key:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for outcome := range resultChan {
		dispatched++
		outcomes = append(outcomes, outcome)
		t.metrics.ObserveOutcome(string(outcome.Reason))

		if !outcome.Success {
			t.log.Warn().
				Str("key", outcome.Key).
				Str("reason", string(outcome.Reason)).
				Str("detail", outcome.Detail).
				Msg("Failed to tag object")
		}

		if dispatched%t.batchSize == 0 || dispatched == total {
			t.log.Info().
				Int("processed", dispatched).
				Int("total", total).
				Msg("Tagging progress")
		}
	}

	if dispatched < total {
		done := make(map[string]struct{}, len(outcomes))
		for _, o := range outcomes {
			done[o.Key] = struct{}{}
		}
		detail := "not attempted"
		if err := ctx.Err(); err != nil {
			detail = "not attempted: " + err.Error()
		}
		for _, key := range keys {
			if _, ok := done[key]; ok {
				continue
			}
			outcomes = append(outcomes, TagOutcome{Key: key, Reason: ReasonRemoteError, Detail: detail})
			t.metrics.ObserveOutcome(string(ReasonRemoteError))
		}
		t.log.Warn().
			Int("processed", dispatched).
			Int("total", total).
			Msg("Tagging stopped before all objects were attempted")
	}

	return outcomes
}

// TagOne adds the target tag to key unless a tag with the same key is
// already present. The existing tag set is preserved and written back whole.
func (t *Tagger) TagOne(ctx context.Context, key string) (outcome TagOutcome) {
	outcome.Key = key

	defer func() {
		if r := recover(); r != nil {
			outcome = TagOutcome{
				Key:    key,
				Reason: ReasonUnexpectedError,
				Detail: fmt.Sprintf("unexpected error: %v", r),
			}
		}
	}()

	existing, err := t.store.GetObjectTags(ctx, key)
	if err != nil {
		return failure(key, err)
	}

	if storage.HasTagKey(existing, t.tag.Key) {
		outcome.Success = true
		outcome.Reason = ReasonAlreadyTagged
		return outcome
	}

	next := make([]storage.Tag, 0, len(existing)+1)
	next = append(next, existing...)
	next = append(next, t.tag)

	if err := t.store.PutObjectTags(ctx, key, next); err != nil {
		return failure(key, err)
	}

	outcome.Success = true
	outcome.Reason = ReasonNewlyTagged
	return outcome
}

func failure(key string, err error) TagOutcome {
	if storage.IsNotFound(err) {
		return TagOutcome{Key: key, Reason: ReasonNotFound, Detail: "object not found"}
	}

	return TagOutcome{Key: key, Reason: ReasonRemoteError, Detail: err.Error()}
}
