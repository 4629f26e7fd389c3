package storage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store implements ObjectStore on top of the AWS SDK v2 S3 client.
type S3Store struct {
	api      S3API
	bucket   string
	pageSize int32
}

// NewS3Store wraps an S3 API client bound to bucket.
func NewS3Store(api S3API, bucket string) *S3Store {
	return &S3Store{
		api:      api,
		bucket:   bucket,
		pageSize: 1000,
	}
}

// NewS3StoreFromConfig builds the SDK client from awsCfg. A non-empty endpoint
// switches to path-style addressing for S3-compatible services.
func NewS3StoreFromConfig(awsCfg aws.Config, bucket, endpoint string) *S3Store {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		// throttling retries are owned by RetryingStore
		o.RetryMaxAttempts = 1
	})
	return NewS3Store(client, bucket)
}

func (c *S3Store) Bucket() string {
	return c.bucket
}

// ListObjects pages through ListObjectsV2 under prefix.
func (c *S3Store) ListObjects(ctx context.Context, prefix string, fn PageFunc) error {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(c.pageSize),
	})

	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return convertS3Error("list", prefix, err)
		}

		page := make([]ObjectInfo, 0, len(out.Contents))
		for _, obj := range out.Contents {
			page = append(page, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

// GetObjectTags returns the tag set of key.
func (c *S3Store) GetObjectTags(ctx context.Context, key string) ([]Tag, error) {
	out, err := c.api.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, convertS3Error("get-tags", key, err)
	}

	tags := make([]Tag, 0, len(out.TagSet))
	for _, t := range out.TagSet {
		tags = append(tags, Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return tags, nil
}

// PutObjectTags replaces the tag set of key in a single call.
func (c *S3Store) PutObjectTags(ctx context.Context, key string, tags []Tag) error {
	tagSet := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		tagSet = append(tagSet, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}

	_, err := c.api.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(c.bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return convertS3Error("put-tags", key, err)
	}
	return nil
}

// convertS3Error maps SDK errors onto *Error, keeping the provider code and message.
func convertS3Error(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Key: key, Err: err}
	}

	var (
		code    string
		message string
		status  int
	)

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		code = "NoSuchKey"
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		code = "NoSuchBucket"
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if code == "" {
			code = apiErr.ErrorCode()
		}
		message = apiErr.ErrorMessage()
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	return newError(op, key, code, message, status, err)
}
