// Package resilient decorates an index gateway with per-call timeouts,
// bounded retries and optional client-side throttling.
package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure Gateway implements the interface.
var _ driven.IndexGateway = (*Gateway)(nil)

// Config holds the retry and throttle policy.
type Config struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the first backoff delay; each retry doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Jitter randomises each delay by up to this fraction. Zero disables it.
	Jitter float64

	// RateLimit is the sustained requests per second. Zero disables throttling.
	RateLimit float64

	// Burst is the token bucket size. Defaults to 1.
	Burst int
}

// DefaultConfig returns the default policy: 10s timeout, 3 retries, no throttle.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Jitter:     0.2,
	}
}

// Gateway retries calls that fail with domain.ErrIndexUnavailable.
// Rejected requests (domain.ErrIndexRequest) are returned immediately.
type Gateway struct {
	next    driven.IndexGateway
	config  Config
	limiter *rate.Limiter
}

// New wraps next with the given policy. Zero fields take defaults.
func New(next driven.IndexGateway, config Config) *Gateway {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = defaults.BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.Jitter < 0 || config.Jitter >= 1 {
		config.Jitter = defaults.Jitter
	}

	g := &Gateway{next: next, config: config}
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return g
}

// policy returns a fresh exponential backoff bounded by MaxRetries that
// stops when ctx is done.
func (g *Gateway) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(g.config.BaseDelay),
		backoff.WithMaxInterval(g.config.MaxDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(g.config.Jitter),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(g.config.MaxRetries)), ctx)
}

// call runs fn with throttling, a per-attempt timeout and retries.
// Only domain.ErrIndexUnavailable is retried; anything else is permanent.
func call[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
		attempt int
	)
	operation := func() (T, error) {
		attempt++
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return zero, backoff.Permanent(fmt.Errorf("%w: %s throttled: %v", domain.ErrIndexUnavailable, op, err))
			}
		}

		actx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
		v, err := fn(actx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !domain.IsRetryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}
	notify := func(err error, delay time.Duration) {
		logger.Debug("Index %s failed (attempt %d), retrying in %s: %v", op, attempt, delay, err)
	}

	v, err := backoff.RetryNotifyWithData[T](operation, g.policy(ctx), notify)
	if err != nil {
		// A caller cancellation mid-retry reports the index failure it interrupted.
		if ctx.Err() != nil && lastErr != nil {
			return zero, lastErr
		}
		return zero, err
	}
	return v, nil
}

func exec(ctx context.Context, g *Gateway, op string, fn func(context.Context) error) error {
	_, err := call(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Ping checks the wrapped backend is reachable, retrying while it is unavailable.
func (g *Gateway) Ping(ctx context.Context) error {
	return exec(ctx, g, "ping", g.next.Ping)
}

// EnsureIndex creates the index for def if it does not exist yet.
func (g *Gateway) EnsureIndex(ctx context.Context, def domain.IndexDefinition) (bool, error) {
	return call(ctx, g, "ensure index", func(ctx context.Context) (bool, error) {
		return g.next.EnsureIndex(ctx, def)
	})
}

// IndexDocument upserts one document.
func (g *Gateway) IndexDocument(ctx context.Context, doc domain.IndexedDocument) error {
	return exec(ctx, g, "index", func(ctx context.Context) error {
		return g.next.IndexDocument(ctx, doc)
	})
}

// UpdateDocument patches fields of an indexed document.
func (g *Gateway) UpdateDocument(ctx context.Context, entity domain.EntityType, id string, fields map[string]any) error {
	return exec(ctx, g, "update", func(ctx context.Context) error {
		return g.next.UpdateDocument(ctx, entity, id, fields)
	})
}

// DeleteDocument removes a document. Deleting a missing document succeeds.
func (g *Gateway) DeleteDocument(ctx context.Context, entity domain.EntityType, id string) error {
	return exec(ctx, g, "delete", func(ctx context.Context) error {
		return g.next.DeleteDocument(ctx, entity, id)
	})
}

// BulkIndex upserts docs in one request. Per-item failures are returned in
// the result and never trigger a retry.
func (g *Gateway) BulkIndex(ctx context.Context, entity domain.EntityType, docs []domain.IndexedDocument) (domain.BulkResult, error) {
	return call(ctx, g, "bulk", func(ctx context.Context) (domain.BulkResult, error) {
		return g.next.BulkIndex(ctx, entity, docs)
	})
}

// Search runs q over the selected entity indices.
func (g *Gateway) Search(ctx context.Context, entities []domain.EntityType, q domain.StructuredQuery, page domain.Page) (*domain.SearchHits, error) {
	return call(ctx, g, "search", func(ctx context.Context) (*domain.SearchHits, error) {
		return g.next.Search(ctx, entities, q, page)
	})
}

// Completion returns suggestions starting with prefix.
func (g *Gateway) Completion(ctx context.Context, entities []domain.EntityType, prefix string, limit int) ([]domain.Suggestion, error) {
	return call(ctx, g, "completion", func(ctx context.Context) ([]domain.Suggestion, error) {
		return g.next.Completion(ctx, entities, prefix, limit)
	})
}

// Count returns the number of documents indexed for entity.
func (g *Gateway) Count(ctx context.Context, entity domain.EntityType) (int, error) {
	return call(ctx, g, "count", func(ctx context.Context) (int, error) {
		return g.next.Count(ctx, entity)
	})
}

// Health reports the backend status.
func (g *Gateway) Health(ctx context.Context) (*domain.IndexHealth, error) {
	return call(ctx, g, "health", g.next.Health)
}

// Close closes the wrapped gateway without retrying.
func (g *Gateway) Close() error {
	return g.next.Close()
}
