package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

func apiError(code int) *openai.Error {
	return &openai.Error{
		StatusCode: code,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.deepseek.com/chat/completions", nil),
		Response:   &http.Response{StatusCode: code},
	}
}

type fakeTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func TestCall_BacksOffExponentiallyWithCap(t *testing.T) {
	t.Parallel()

	timer := &fakeTimer{}
	p := RetryPolicy{Attempts: 5, Delay: 4 * time.Second, MaxDelay: 10 * time.Second, Timer: timer}

	calls := 0
	_, err := Call(context.Background(), p, func(context.Context) (string, error) {
		calls++
		return "", errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 5 {
		t.Fatalf("calls=%d, want 5", calls)
	}
	want := []time.Duration{4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	if fmt.Sprint(timer.delays) != fmt.Sprint(want) {
		t.Fatalf("delays=%v, want %v", timer.delays, want)
	}
}

func TestCall_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	p.Timer = &fakeTimer{}

	calls := 0
	got, err := Call(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, apiError(http.StatusTooManyRequests)
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got=%d err=%v", got, err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestCall_AuthErrorsFailFast(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	p.Timer = &fakeTimer{}

	calls := 0
	_, err := Call(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, apiError(http.StatusUnauthorized)
	})
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err=%v", err)
	}
}

func TestTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want bool
	}{
		{apiError(500), true},
		{apiError(503), true},
		{apiError(429), true},
		{apiError(400), false},
		{apiError(402), false},
		{fmt.Errorf("wrap: %w", apiError(502)), true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("401 invalid api key"), false},
		{ErrEmptyCompletion, true},
		{context.Canceled, false},
	}
	for _, c := range cases {
		if got := Transient(c.err); got != c.want {
			t.Fatalf("Transient(%v)=%v, want %v", c.err, got, c.want)
		}
	}
}
