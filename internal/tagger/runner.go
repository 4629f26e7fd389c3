package tagger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
)

// ErrNoMatches is returned when discovery finds nothing to tag.
var ErrNoMatches = errors.New("no matching objects found")

// Runner drives a full discovery + tagging run.
type Runner struct {
	store   storage.ObjectStore
	opts    Options
	metrics *metrics.Batch
	log     zerolog.Logger
}

func NewRunner(store storage.ObjectStore, opts Options, m *metrics.Batch, log zerolog.Logger) *Runner {
	return &Runner{
		store:   store,
		opts:    opts.withDefaults(),
		metrics: m,
		log:     log,
	}
}

// RunFile reads the input table at path and runs it. A read or column
// failure is returned as *InputError before any remote call is made.
func (r *Runner) RunFile(ctx context.Context, path string) (Summary, error) {
	r.log.Info().Str("file", path).Msg("Reading input")

	rows, err := ReadRows(path, r.opts.PrefixColumn, r.opts.FilenameColumn)
	if err != nil {
		r.log.Error().Err(err).Msg("Input is unusable")
		return Summary{}, err
	}
	return r.Run(ctx, rows)
}

// Run executes discovery then tagging. Only ErrNoMatches and output-file
// failures are returned; per-group and per-object failures are counted in
// the summary.
func (r *Runner) Run(ctx context.Context, rows []Row) (Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()

	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}

	groups := GroupByLocation(rows)
	log.Info().
		Str("bucket", r.store.Bucket()).
		Int("rows", len(rows)).
		Int("unique_locations", len(groups)).
		Str("tag", r.opts.Tag.Key+"="+r.opts.Tag.Value).
		Bool("dry_run", r.opts.DryRun).
		Msg("Starting discovery")

	discoverer := NewDiscoverer(r.store, r.opts, r.metrics, log)
	results, keySet := discoverer.Discover(ctx, groups)
	keys := keySet.Sorted()
	r.metrics.ObservePhase("discovery", time.Since(start))
	r.metrics.SetMatched(len(keys))

	log.Info().Int("matched", len(keys)).Msg("Discovery complete")

	finish := func(outcomes []TagOutcome) Summary {
		s := Summarize(len(rows), results, keys, outcomes, time.Since(start))
		s.RunID = runID
		s.DryRun = r.opts.DryRun
		s.Log(log)
		return s
	}

	if len(keys) == 0 {
		log.Warn().Msg("No matching objects found, verify the input and bucket contents")
		return finish(nil), ErrNoMatches
	}

	if r.opts.DryRun {
		log.Info().Msg("Dry run, skipping tagging")
		summary := finish(nil)
		if r.opts.OutcomesFile != "" {
			if err := WriteKeys(r.opts.OutcomesFile, keys); err != nil {
				return summary, err
			}
			log.Info().Str("file", r.opts.OutcomesFile).Msg("Matched keys written")
		}
		return summary, nil
	}

	tagStart := time.Now()
	log.Info().Int("workers", r.opts.TaggingWorkers).Msg("Starting tagging")
	outcomes := NewTagger(r.store, r.opts, r.metrics, log).TagAll(ctx, keys)
	r.metrics.ObservePhase("tagging", time.Since(tagStart))

	summary := finish(outcomes)
	if r.opts.OutcomesFile != "" {
		if err := WriteOutcomes(r.opts.OutcomesFile, outcomes); err != nil {
			return summary, err
		}
		log.Info().Str("file", r.opts.OutcomesFile).Msg("Outcomes written")
	}
	return summary, nil
}
