package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/andresuchdata/s3-permanent-deletes/pkg/logger"
)

// RetryConfig controls RetryingStore.
type RetryConfig struct {
	MaxRetries  int           // retries after the first attempt, throttling errors only
	BaseDelay   time.Duration // first backoff interval
	MaxDelay    time.Duration // cap on a single backoff interval
	RateLimit   float64       // remote calls per second, 0 disables limiting
	CallTimeout time.Duration // deadline for a single tag read/write, 0 disables
}

// RetryingStore decorates an ObjectStore with bounded exponential backoff for
// throttling-class errors, an optional client-side rate limit and per-call timeouts.
type RetryingStore struct {
	next    ObjectStore
	cfg     RetryConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewRetryingStore wraps next.
func NewRetryingStore(next ObjectStore, cfg RetryConfig) *RetryingStore {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &RetryingStore{
		next:    next,
		cfg:     cfg,
		limiter: limiter,
		log:     logger.Component("storage"),
	}
}

func (r *RetryingStore) Bucket() string {
	return r.next.Bucket()
}

// ListObjects retries throttled listings only until the first page has been
// delivered; after that a failure is returned so callers never see a page twice.
func (r *RetryingStore) ListObjects(ctx context.Context, prefix string, fn PageFunc) error {
	delivered := false
	return r.do(ctx, "list", prefix, func(ctx context.Context) error {
		err := r.next.ListObjects(ctx, prefix, func(page []ObjectInfo) error {
			delivered = true
			if err := fn(page); err != nil {
				return err
			}
			return r.wait(ctx)
		})
		if err != nil && delivered {
			return backoff.Permanent(err)
		}
		return err
	}, false)
}

func (r *RetryingStore) GetObjectTags(ctx context.Context, key string) ([]Tag, error) {
	var out []Tag
	err := r.do(ctx, "get-tags", key, func(ctx context.Context) error {
		tags, err := r.next.GetObjectTags(ctx, key)
		if err != nil {
			return err
		}
		out = tags
		return nil
	}, true)
	return out, err
}

func (r *RetryingStore) PutObjectTags(ctx context.Context, key string, tags []Tag) error {
	return r.do(ctx, "put-tags", key, func(ctx context.Context) error {
		return r.next.PutObjectTags(ctx, key, tags)
	}, true)
}

func (r *RetryingStore) do(ctx context.Context, op, key string, call func(ctx context.Context) error, timed bool) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BaseDelay
	b.MaxInterval = r.cfg.MaxDelay
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries)), ctx)

	attempt := func() error {
		if err := r.wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx := ctx
		if timed && r.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
			defer cancel()
		}

		err := call(callCtx)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.log.Warn().
			Err(err).
			Str("op", op).
			Str("key", key).
			Str("code", ErrorCode(err)).
			Dur("backoff", wait).
			Msg("throttled, retrying")
	}

	return backoff.RetryNotify(attempt, policy, notify)
}

func (r *RetryingStore) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

var _ ObjectStore = (*RetryingStore)(nil)
