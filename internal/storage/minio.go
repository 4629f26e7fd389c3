package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
)

// MinioConfig encapsulates the connection info for S3-compatible storage reached through minio-go.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Profile   string
	UseSSL    bool
}

// minioAPI is the subset of *minio.Client used by MinioStore.
type minioAPI interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObjectTagging(ctx context.Context, bucketName, objectName string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error)
	PutObjectTagging(ctx context.Context, bucketName, objectName string, otags *tags.Tags, opts minio.PutObjectTaggingOptions) error
}

var _ minioAPI = (*minio.Client)(nil)

// MinioStore implements ObjectStore for MinIO and other S3-compatible services.
type MinioStore struct {
	api      minioAPI
	bucket   string
	pageSize int
}

// NewMinioStore builds a new MinioStore. Without static keys it falls back to
// the environment and then the shared AWS credentials file (optionally a named profile).
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secure = true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{Profile: cfg.Profile},
		})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return newMinioStore(client, cfg.Bucket), nil
}

func newMinioStore(api minioAPI, bucket string) *MinioStore {
	return &MinioStore{
		api:      api,
		bucket:   bucket,
		pageSize: 1000,
	}
}

func (c *MinioStore) Bucket() string {
	return c.bucket
}

// ListObjects streams the recursive listing and hands it to fn in pages.
func (c *MinioStore) ListObjects(ctx context.Context, prefix string, fn PageFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	page := make([]ObjectInfo, 0, c.pageSize)
	for obj := range c.api.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return convertMinioError("list", prefix, obj.Err)
		}
		page = append(page, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
		if len(page) == c.pageSize {
			if err := fn(page); err != nil {
				return err
			}
			page = make([]ObjectInfo, 0, c.pageSize)
		}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Op: "list", Key: prefix, Err: err}
	}
	if len(page) > 0 {
		return fn(page)
	}
	return nil
}

// GetObjectTags returns the tag set of key, sorted by tag key.
func (c *MinioStore) GetObjectTags(ctx context.Context, key string) ([]Tag, error) {
	t, err := c.api.GetObjectTagging(ctx, c.bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		return nil, convertMinioError("get-tags", key, err)
	}
	if t == nil {
		return nil, nil
	}

	m := t.ToMap()
	out := make([]Tag, 0, len(m))
	for k, v := range m {
		out = append(out, Tag{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PutObjectTags replaces the tag set of key.
func (c *MinioStore) PutObjectTags(ctx context.Context, key string, tagSet []Tag) error {
	t, err := tags.NewTags(TagMap(tagSet), true)
	if err != nil {
		return &Error{Op: "put-tags", Key: key, Code: "InvalidTag", Err: err}
	}
	if err := c.api.PutObjectTagging(ctx, c.bucket, key, t, minio.PutObjectTaggingOptions{}); err != nil {
		return convertMinioError("put-tags", key, err)
	}
	return nil
}

var _ ObjectStore = (*MinioStore)(nil)

func convertMinioError(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	return newError(op, key, resp.Code, resp.Message, resp.StatusCode, err)
}
