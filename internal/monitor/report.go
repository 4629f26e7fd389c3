package monitor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const scheduleSampleSize = 10

// BuildReport assembles the lifecycle report. Objects already past their
// deletion date are scheduled on day 0.
func BuildReport(bucket string, lookbackHours int, pending []TaggedObject, deletions []Deletion, now time.Time) *Report {
	r := &Report{
		GeneratedAt:      now.UTC(),
		BucketName:       bucket,
		DeletionSchedule: make(map[string]DaySchedule),
		RecentDeletions:  deletions,
		PendingObjects:   pending,
	}
	if r.RecentDeletions == nil {
		r.RecentDeletions = []Deletion{}
	}
	if r.PendingObjects == nil {
		r.PendingObjects = []TaggedObject{}
	}

	var total int64
	bytesByDay := make(map[string]int64)
	for _, obj := range pending {
		total += obj.Size

		day := obj.DaysUntilDeletion
		if day <= 0 {
			day = 0
			r.Summary.DueToday++
		}
		name := dayKey(day)

		s := r.DeletionSchedule[name]
		s.Count++
		if len(s.Objects) < scheduleSampleSize {
			s.Objects = append(s.Objects, obj.Key)
		}
		r.DeletionSchedule[name] = s
		bytesByDay[name] += obj.Size
	}
	for name, b := range bytesByDay {
		s := r.DeletionSchedule[name]
		s.SizeMB = toMB(b)
		r.DeletionSchedule[name] = s
	}

	r.Summary.TotalObjectsTagged = len(pending)
	r.Summary.TotalSizeTaggedMB = toMB(total)
	r.Summary.ObjectsDeleted = len(deletions)
	r.Summary.LookbackHours = lookbackHours
	return r
}

func dayKey(day int) string {
	return "day_" + strconv.Itoa(day)
}

// toMB converts bytes to mebibytes rounded to two decimals.
func toMB(b int64) float64 {
	return math.Round(float64(b)/(1024*1024)*100) / 100
}

// PendingBytes sums the size of pending objects.
func (r *Report) PendingBytes() int64 {
	var n int64
	for _, o := range r.PendingObjects {
		n += o.Size
	}
	return n
}

func (r *Report) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// DefaultReportName is the file name used when no output file is configured.
func DefaultReportName(now time.Time) string {
	return "lifecycle_report_" + now.Format("20060102_150405") + ".json"
}

// WriteReport writes r as indented JSON to path.
func WriteReport(r *Report, path string) error {
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Log prints the report as a readable block.
func (r *Report) Log(log zerolog.Logger) {
	log.Info().
		Str("bucket", r.BucketName).
		Int("tagged", r.Summary.TotalObjectsTagged).
		Str("tagged_size", humanize.IBytes(uint64(r.PendingBytes()))).
		Int("due_today", r.Summary.DueToday).
		Int("deleted_recently", r.Summary.ObjectsDeleted).
		Int("lookback_hours", r.Summary.LookbackHours).
		Msg("Lifecycle report")

	days := make([]int, 0, len(r.DeletionSchedule))
	for name := range r.DeletionSchedule {
		if d, err := strconv.Atoi(strings.TrimPrefix(name, "day_")); err == nil {
			days = append(days, d)
		}
	}
	sort.Ints(days)
	for _, d := range days {
		s := r.DeletionSchedule[dayKey(d)]
		log.Info().
			Int("day", d).
			Str("objects", humanize.Comma(int64(s.Count))).
			Str("size", humanize.IBytes(uint64(s.SizeMB*1024*1024))).
			Msg("Scheduled deletions")
	}

	for i, d := range r.RecentDeletions {
		if i == 5 {
			log.Info().Int("more", len(r.RecentDeletions)-i).Msg("Further deletions omitted")
			break
		}
		log.Info().
			Str("key", d.ObjectKey).
			Str("when", humanize.Time(d.DeletionTime)).
			Msg("Recent deletion")
	}

	if len(r.Errors) > 0 {
		log.Warn().Strs("errors", r.Errors).Msg("Report is incomplete")
	}
}
