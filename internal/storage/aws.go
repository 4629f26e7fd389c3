package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/andresuchdata/s3-permanent-deletes/internal/config"
)

// LoadAWSConfig resolves credentials from the named profile when one is set,
// otherwise from the default chain. Static keys take precedence over both.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return awsCfg, nil
}

// New builds the configured backend wrapped in the retry/rate-limit decorator.
func New(ctx context.Context, awsCfg config.AWSConfig, cfg config.StorageConfig) (ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket must be provided")
	}

	var store ObjectStore
	switch cfg.Backend {
	case "", "aws", "s3":
		resolved, err := LoadAWSConfig(ctx, awsCfg)
		if err != nil {
			return nil, err
		}
		store = NewS3StoreFromConfig(resolved, cfg.Bucket, awsCfg.Endpoint)
	case "minio":
		client, err := NewMinioStore(MinioConfig{
			Endpoint:  awsCfg.Endpoint,
			AccessKey: awsCfg.AccessKeyID,
			SecretKey: awsCfg.SecretAccessKey,
			Bucket:    cfg.Bucket,
			Region:    awsCfg.Region,
			Profile:   awsCfg.Profile,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		store = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	return NewRetryingStore(store, RetryConfig{
		MaxRetries:  cfg.MaxRetries,
		BaseDelay:   cfg.RetryBase,
		MaxDelay:    cfg.RetryMax,
		RateLimit:   cfg.RateLimit,
		CallTimeout: cfg.CallTimeout,
	}), nil
}
