package googleauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

// RetryPolicy controls Retry. Delays double after each attempt.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetry is three retries starting at two seconds.
var DefaultRetry = RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second}

// Retry runs fn until it succeeds, returns a non-retryable error, the retries
// are used up or ctx is done.
func Retry(ctx context.Context, p RetryPolicy, op string, fn func(context.Context) error) error {
	delay := p.BaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil || !Retryable(err) || attempt >= p.MaxRetries {
			return err
		}
		slog.WarnContext(ctx, "Google API call failed, retrying",
			"operation", op, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Retryable reports whether err is a rate limit or server error.
func Retryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
}

// IsNotFound reports a 404 from a Google API.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
