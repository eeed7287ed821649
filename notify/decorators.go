package notify

import (
	"context"
	"net/http"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// DefaultRetryBase is the first backoff interval of Retrying.
const DefaultRetryBase = 200 * time.Millisecond

type retrying struct {
	next       accounts.Notifier
	maxRetries uint64
	base       time.Duration
	logger     accounts.Logger
}

// Retrying retries failed deliveries with exponential backoff, at most
// maxRetries times after the first attempt. Input errors are not retried.
func Retrying(next accounts.Notifier, maxRetries uint64, base time.Duration, logger accounts.Logger) accounts.Notifier {
	if base <= 0 {
		base = DefaultRetryBase
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &retrying{next: next, maxRetries: maxRetries, base: base, logger: logger}
}

func (r *retrying) Send(ctx context.Context, note accounts.Notification) error {
	attempt := 0
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.next.Send(ctx, note)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		r.logger.Warn("notification attempt failed",
			"attempt", attempt,
			"account_id", note.AccountID,
			"purpose", note.Purpose.String(),
			"error", err,
		)
		return retry.RetryableError(err)
	})
}

func retryable(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return true
	}
	switch richErr.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return false
	}
	return true
}

type throttled struct {
	next    accounts.Notifier
	limiter *rate.Limiter
}

// Throttled waits on limiter before each delivery.
func Throttled(next accounts.Notifier, limiter *rate.Limiter) accounts.Notifier {
	if limiter == nil {
		return next
	}
	return &throttled{next: next, limiter: limiter}
}

// NewLimiter returns a limiter allowing perSecond deliveries with burst.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (t *throttled) Send(ctx context.Context, note accounts.Notification) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryRateLimit, "notification throttled").
			WithCode(http.StatusTooManyRequests).
			WithTextCode("NOTIFICATION_THROTTLED")
	}
	return t.next.Send(ctx, note)
}
