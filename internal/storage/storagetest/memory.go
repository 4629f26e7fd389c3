// Package storagetest provides an in-memory storage.ObjectStore with call
// counters and failure hooks.
package storagetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/s3-permanent-deletes/internal/storage"
)

type object struct {
	info storage.ObjectInfo
	tags []storage.Tag
}

// Store is an in-memory ObjectStore. Hooks run before the matching call and
// may return an error (or panic) to simulate remote failures.
type Store struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]*object

	PageSize   int
	StallList  <-chan struct{} // listings wait for it to close or the context to end
	BeforeList func(prefix string) error
	BeforeGet  func(key string) error
	BeforePut  func(key string) error

	listCalls map[string]int
	getCalls  int
	putCalls  int
}

func New(bucket string) *Store {
	return &Store{
		bucket:    bucket,
		objects:   make(map[string]*object),
		PageSize:  2,
		listCalls: make(map[string]int),
	}
}

// Add stores an object with the given tags.
func (s *Store) Add(key string, size int64, modified time.Time, tags ...storage.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = &object{
		info: storage.ObjectInfo{Key: key, Size: size, LastModified: modified},
		tags: append([]storage.Tag(nil), tags...),
	}
}

// Remove deletes key.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}

// Tags returns a copy of the tag set of key, nil when absent.
func (s *Store) Tags(key string) []storage.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil
	}
	return append([]storage.Tag(nil), obj.tags...)
}

func (s *Store) ListCalls(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls[prefix]
}

func (s *Store) TotalListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.listCalls {
		n += c
	}
	return n
}

func (s *Store) GetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func (s *Store) PutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCalls
}

func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) ListObjects(ctx context.Context, prefix string, fn storage.PageFunc) error {
	s.mu.Lock()
	s.listCalls[prefix]++
	var infos []storage.ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, obj.info)
		}
	}
	s.mu.Unlock()

	if s.StallList != nil {
		select {
		case <-s.StallList:
		case <-ctx.Done():
			return &storage.Error{Op: "list", Key: prefix, Err: ctx.Err()}
		}
	}

	if s.BeforeList != nil {
		if err := s.BeforeList(prefix); err != nil {
			return err
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	size := s.PageSize
	if size < 1 {
		size = len(infos) + 1
	}
	for start := 0; start < len(infos); start += size {
		if err := ctx.Err(); err != nil {
			return &storage.Error{Op: "list", Key: prefix, Err: err}
		}
		end := start + size
		if end > len(infos) {
			end = len(infos)
		}
		if err := fn(infos[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetObjectTags(ctx context.Context, key string) ([]storage.Tag, error) {
	s.mu.Lock()
	s.getCalls++
	s.mu.Unlock()

	if s.BeforeGet != nil {
		if err := s.BeforeGet(key); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &storage.Error{Op: "get-tags", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, NotFound("get-tags", key)
	}
	return append([]storage.Tag(nil), obj.tags...), nil
}

func (s *Store) PutObjectTags(ctx context.Context, key string, tags []storage.Tag) error {
	s.mu.Lock()
	s.putCalls++
	s.mu.Unlock()

	if s.BeforePut != nil {
		if err := s.BeforePut(key); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return &storage.Error{Op: "put-tags", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return NotFound("put-tags", key)
	}
	obj.tags = append([]storage.Tag(nil), tags...)
	return nil
}

// NotFound builds the error a backend returns for a missing key.
func NotFound(op, key string) error {
	return &storage.Error{Op: op, Key: key, Code: "NoSuchKey", Message: "The specified key does not exist.", Err: storage.ErrObjectNotFound}
}

// BucketMissing builds the error a backend returns when the bucket is gone.
func BucketMissing(op, key string) error {
	return &storage.Error{Op: op, Key: key, Code: "NoSuchBucket", Message: "The specified bucket does not exist", Err: storage.ErrBucketNotFound}
}

// Throttled builds a retryable SlowDown error.
func Throttled(op, key string) error {
	return &storage.Error{Op: op, Key: key, Code: "SlowDown", Message: "Please reduce your request rate.", Err: storage.ErrThrottled}
}

// AccessDenied builds a permanent permission error.
func AccessDenied(op, key string) error {
	return &storage.Error{Op: op, Key: key, Code: "AccessDenied", Message: "Access Denied", Err: storage.ErrAccessDenied}
}

var _ storage.ObjectStore = (*Store)(nil)
