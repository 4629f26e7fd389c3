// Package tagger resolves (location, filename) hints into object keys and
// idempotently attaches the permanent-delete tag to each of them.
//
// A run has two explicit stages: discovery builds one listing query per
// distinct location and collects matching keys into a deduplicated set, then
// tagging attaches the tag to every key in that set.
package tagger

import (
	"regexp"
	"time"

	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
)

// Row is one usable input record.
type Row struct {
	LocationPrefix string
	BaseFilename   string
}

// LocationGroup holds the filenames searched under one normalized prefix,
// deduplicated and in first-seen order.
type LocationGroup struct {
	Prefix    string
	Filenames []string
}

// GroupResult is the discovery result of one location group.
type GroupResult struct {
	Group      LocationGroup
	ListPrefix string
	Pattern    *regexp.Regexp
	Matches    []string
	Err        error
}

// Reason classifies a TagOutcome.
type Reason string

const (
	ReasonAlreadyTagged   Reason = "already-tagged"
	ReasonNewlyTagged     Reason = "newly-tagged"
	ReasonNotFound        Reason = "not-found"
	ReasonRemoteError     Reason = "remote-error"
	ReasonUnexpectedError Reason = "unexpected-error"
)

// TagOutcome is the result of one tagging attempt.
type TagOutcome struct {
	Key     string
	Success bool
	Reason  Reason
	Detail  string
}

// Options configures a Runner.
type Options struct {
	Tag              storage.Tag
	PrefixColumn     string
	FilenameColumn   string
	Namespace        string
	Extension        string
	DiscoveryWorkers int
	TaggingWorkers   int
	BatchSize        int
	RunTimeout       time.Duration
	DryRun           bool
	OutcomesFile     string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Tag:              storage.Tag{Key: "PERMANENT_DELETE", Value: "CONFIRMED"},
		PrefixColumn:     "location_folder",
		FilenameColumn:   "location_file",
		Namespace:        "TvShows",
		Extension:        "mp4",
		DiscoveryWorkers: 10,
		TaggingWorkers:   50,
		BatchSize:        100,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Tag.Key == "" {
		o.Tag = def.Tag
	}
	if o.PrefixColumn == "" {
		o.PrefixColumn = def.PrefixColumn
	}
	if o.FilenameColumn == "" {
		o.FilenameColumn = def.FilenameColumn
	}
	if o.Extension == "" {
		o.Extension = def.Extension
	}
	if o.DiscoveryWorkers < 1 {
		o.DiscoveryWorkers = def.DiscoveryWorkers
	}
	if o.TaggingWorkers < 1 {
		o.TaggingWorkers = def.TaggingWorkers
	}
	if o.BatchSize < 1 {
		o.BatchSize = def.BatchSize
	}
	return o
}
