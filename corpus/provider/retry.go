package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go"
)

// RetryPolicy is the backoff schedule around one remote call.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration

	// Timer replaces the wall clock between attempts (tests).
	Timer retry.Timer

	// OnRetry is called before each retry with the 0-based attempt that failed.
	OnRetry func(attempt uint, err error)
}

// DefaultRetryPolicy is 5 attempts with exponential backoff from 4s capped at 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Delay: 4 * time.Second, MaxDelay: 60 * time.Second}
}

func (p RetryPolicy) options(ctx context.Context) []retry.Option {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(max(p.Attempts, 1)),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if p.Timer != nil {
		opts = append(opts, retry.WithTimer(p.Timer))
	}
	if p.OnRetry != nil {
		opts = append(opts, retry.OnRetry(p.OnRetry))
	}
	return opts
}

// Call runs fn under the policy. Errors that Transient rejects stop immediately.
func Call[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoWithData(func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !Transient(err) {
			return v, retry.Unrecoverable(err)
		}
		return v, err
	}, p.options(ctx)...)
}

// Transient reports whether err is worth retrying. API errors are judged by
// status code; anything else unrecognised (network, empty body) is retried.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
			return true
		case code >= 500:
			return true
		default:
			return false
		}
	}
	if isAuthError(err) {
		return false
	}
	return true
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isAuthError(err error) bool {
	if err == nil || isRateLimitError(err) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "insufficient balance")
}
