package storage

import (
	"context"
	"time"
)

// ObjectInfo represents metadata for a remote object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Tag is a single object tag.
type Tag struct {
	Key   string
	Value string
}

// PageFunc receives one listing page. Returning an error stops the listing.
type PageFunc func(page []ObjectInfo) error

// ObjectStore captures the bucket operations the tagger and monitor need.
// Implementations are bound to a single bucket.
type ObjectStore interface {
	// Bucket returns the bucket the store operates on.
	Bucket() string

	// ListObjects pages through every object under prefix.
	ListObjects(ctx context.Context, prefix string, fn PageFunc) error

	// GetObjectTags returns the current tag set of key.
	GetObjectTags(ctx context.Context, key string) ([]Tag, error)

	// PutObjectTags replaces the whole tag set of key.
	PutObjectTags(ctx context.Context, key string, tags []Tag) error
}

// HasTagKey reports whether tags contains key, regardless of value.
func HasTagKey(tags []Tag, key string) bool {
	for _, t := range tags {
		if t.Key == key {
			return true
		}
	}
	return false
}

// TagMap flattens a tag set into a map.
func TagMap(tags []Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}
