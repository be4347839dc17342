package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"bondtape/internal/config"
	"bondtape/internal/errors"
	"bondtape/pkg/contracts/domain"
)

// Fetcher wraps a Source with pacing and retries. The limiter is shared by
// every worker so the query rate against the provider stays bounded no
// matter how wide the pool is.
type Fetcher struct {
	logger  *slog.Logger
	source  Source
	limiter *rate.Limiter
	retry   config.RetryConfig
}

// NewFetcher builds a fetcher from the feed configuration. A zero rate limit
// disables pacing.
func NewFetcher(logger *slog.Logger, source Source, cfg config.FeedConfig) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	burst := cfg.RateBurst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}
	return &Fetcher{
		logger:  logger,
		source:  source,
		limiter: rate.NewLimiter(limit, burst),
		retry:   cfg.Retry,
	}
}

// Fetch retrieves one chunk from one feed segment, retrying transient
// failures with exponential backoff. After the final attempt the last error
// comes back wrapped as a feed error.
func (f *Fetcher) Fetch(ctx context.Context, segment domain.FeedType, cusips []string) ([]domain.RawTradeEvent, error) {
	var lastErr error

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.NewFeedError("wait for feed rate limiter", err)
		}

		start := time.Now()
		rows, err := f.source.Fetch(ctx, segment, cusips)
		if err == nil {
			f.logger.DebugContext(ctx, "feed chunk fetched",
				slog.String("segment", string(segment)),
				slog.Int("cusips", len(cusips)),
				slog.Int("rows", len(rows)),
				slog.Duration("duration", time.Since(start)))
			return rows, nil
		}
		lastErr = err

		if attempt >= f.retry.MaxAttempts {
			break
		}

		delay := f.backoffDelay(attempt)
		f.logger.WarnContext(ctx, "feed fetch retry",
			slog.String("segment", string(segment)),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", f.retry.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.NewFeedError("feed fetch cancelled", ctx.Err())
		}
	}

	return nil, errors.NewFeedError(
		fmt.Sprintf("fetch %s segment chunk of %d cusips after %d attempts",
			segment, len(cusips), f.retry.MaxAttempts), lastErr)
}

func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	delay := f.retry.Delay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * f.retry.BackoffFactor)
	}
	return delay
}
