package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/s3-permanent-deletes/internal/cache"
	"github.com/andresuchdata/s3-permanent-deletes/internal/metrics"
	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
)

type Options struct {
	Prefix         string
	Tag            storage.Tag
	RetentionDays  int
	LookbackHours  int
	Workers        int
	OutputFile     string
	SNSTopicARN    string
	AlertThreshold int
}

func DefaultOptions() Options {
	return Options{
		Tag:            storage.Tag{Key: "PERMANENT_DELETE", Value: "CONFIRMED"},
		RetentionDays:  2,
		LookbackHours:  24,
		Workers:        20,
		AlertThreshold: 100,
	}
}

// Monitor produces lifecycle reports for a single bucket.
type Monitor struct {
	store   storage.ObjectStore
	scanner *PendingScanner
	finder  *DeletionFinder
	alerter *Alerter
	cache   cache.ReportCache
	metrics *metrics.Batch
	opts    Options
	now     func() time.Time
	log     zerolog.Logger
}

// Deps carries the optional collaborators. A nil Trail skips the audit
// lookup; a nil CloudWatch or SNS client disables alarms and alerts.
type Deps struct {
	Trail      LookupEventsAPI
	CloudWatch CloudWatchAPI
	SNS        SNSAPI
	Cache      cache.ReportCache
	Metrics    *metrics.Batch
}

func New(store storage.ObjectStore, deps Deps, opts Options, log zerolog.Logger) *Monitor {
	if opts.LookbackHours <= 0 {
		opts.LookbackHours = 24
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewNoopReportCache()
	}

	m := &Monitor{
		store:   store,
		scanner: NewPendingScanner(store, opts.Tag, opts.RetentionDays, opts.Workers, log),
		cache:   deps.Cache,
		metrics: deps.Metrics,
		opts:    opts,
		now:     time.Now,
		log:     log,
	}
	if deps.Trail != nil {
		m.finder = NewDeletionFinder(deps.Trail, store.Bucket(), log)
	}
	if opts.SNSTopicARN != "" && deps.CloudWatch != nil && deps.SNS != nil {
		m.alerter = NewAlerter(deps.CloudWatch, deps.SNS, store.Bucket(), opts.SNSTopicARN, opts.AlertThreshold, log)
	}
	return m
}

// Run scans pending deletions, looks up recent ones and publishes the report
// to the output file, the cache and the metrics batch. Failures of individual
// sources are recorded in Report.Errors; only cancellation and a failed
// report write are returned as errors.
func (m *Monitor) Run(ctx context.Context) (*Report, error) {
	now := m.now()
	m.scanner.now = func() time.Time { return now }
	bucket := m.store.Bucket()

	var errs []string

	start := time.Now()
	pending, err := m.scanner.Scan(ctx, m.opts.Prefix)
	m.metrics.ObservePhase("monitor-scan", time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Error().Err(err).Msg("Scan for tagged objects failed")
		errs = append(errs, fmt.Sprintf("scan tagged objects: %v", err))
	}

	var deletions []Deletion
	if m.finder != nil {
		m.finder.now = func() time.Time { return now }
		start = time.Now()
		deletions, err = m.finder.Recent(ctx, time.Duration(m.opts.LookbackHours)*time.Hour)
		m.metrics.ObservePhase("monitor-trail", time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.log.Error().Err(err).Msg("CloudTrail lookup failed")
			errs = append(errs, fmt.Sprintf("lookup deletions: %v", err))
		}
	}

	report := BuildReport(bucket, m.opts.LookbackHours, pending, deletions, now)

	if m.alerter != nil {
		if err := m.alerter.EnsureAlarm(ctx); err != nil {
			m.log.Error().Err(err).Msg("Failed to configure alarm")
			errs = append(errs, err.Error())
		}
		if _, err := m.alerter.AlertIfDue(ctx, report.Summary.DueToday); err != nil {
			m.log.Error().Err(err).Msg("Failed to send alert")
			errs = append(errs, err.Error())
		}
	}
	report.Errors = errs

	path := m.opts.OutputFile
	if path == "" {
		path = DefaultReportName(now)
	}
	if err := WriteReport(report, path); err != nil {
		return report, err
	}
	m.log.Info().Str("file", path).Msg("Report written")
	report.Log(m.log)

	m.metrics.SetPending(report.Summary.TotalObjectsTagged, report.PendingBytes())
	m.metrics.SetRecentDeletions(report.Summary.ObjectsDeleted)

	if payload, err := report.Marshal(); err == nil {
		if err := m.cache.StoreReport(ctx, bucket, payload); err != nil {
			m.log.Warn().Err(err).Msg("Failed to cache report")
		}
	}

	return report, nil
}
