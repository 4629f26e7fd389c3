package tagger

import (
	"time"

	"github.com/rs/zerolog"
)

const sampleSize = 5

// Summary is the end-of-run report.
type Summary struct {
	RunID         string
	DryRun        bool
	RowsProcessed int
	Groups        int
	FailedGroups  int
	Matched       int
	NewlyTagged   int
	AlreadyTagged int
	Failed        int
	ByReason      map[Reason]int
	Elapsed       time.Duration
	Throughput    float64
	Samples       []string
}

// Succeeded counts newly and already tagged objects.
func (s Summary) Succeeded() int {
	return s.NewlyTagged + s.AlreadyTagged
}

// Summarize aggregates stage results. keys must be the sorted match set.
func Summarize(rows int, groups []GroupResult, keys []string, outcomes []TagOutcome, elapsed time.Duration) Summary {
	s := Summary{
		RowsProcessed: rows,
		Groups:        len(groups),
		Matched:       len(keys),
		ByReason:      make(map[Reason]int),
		Elapsed:       elapsed,
	}

	for _, g := range groups {
		if g.Err != nil {
			s.FailedGroups++
		}
	}

	for _, o := range outcomes {
		s.ByReason[o.Reason]++
		switch {
		case !o.Success:
			s.Failed++
		case o.Reason == ReasonAlreadyTagged:
			s.AlreadyTagged++
		default:
			s.NewlyTagged++
		}
	}

	if secs := elapsed.Seconds(); secs > 0 {
		s.Throughput = float64(s.Matched) / secs
	}

	n := len(keys)
	if n > sampleSize {
		n = sampleSize
	}
	s.Samples = append([]string(nil), keys[:n]...)

	return s
}

// Log writes the summary block.
func (s Summary) Log(log zerolog.Logger) {
	log.Info().
		Bool("dry_run", s.DryRun).
		Int("rows_processed", s.RowsProcessed).
		Int("unique_locations", s.Groups).
		Int("failed_locations", s.FailedGroups).
		Int("matched", s.Matched).
		Int("newly_tagged", s.NewlyTagged).
		Int("already_tagged", s.AlreadyTagged).
		Int("failed", s.Failed).
		Int("not_found", s.ByReason[ReasonNotFound]).
		Int("remote_errors", s.ByReason[ReasonRemoteError]).
		Int("unexpected_errors", s.ByReason[ReasonUnexpectedError]).
		Str("elapsed", s.Elapsed.Round(time.Millisecond).String()).
		Float64("objects_per_second", s.Throughput).
		Msg("Tagging summary")

	for _, key := range s.Samples {
		log.Info().Str("key", key).Msg("Sample matching object")
	}
	if more := s.Matched - len(s.Samples); more > 0 {
		log.Info().Int("more", more).Msg("Additional matching objects not shown")
	}
}
