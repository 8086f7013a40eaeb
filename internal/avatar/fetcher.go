// Package avatar downloads profile images offered by external identity providers.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/cenkalti/backoff/v5"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrNoImage means the caller should fall back to the default profile image.
var ErrNoImage = errors.New("avatar: no image")

// errThrottled marks a 429 so the retry loop keeps going.
var errThrottled = errors.New("avatar: throttled by upstream")

// Image is a downloaded avatar.
type Image struct {
	Data        []byte
	ContentType string
}

// Options tunes the fetcher. Zero values take the defaults.
type Options struct {
	Timeout         time.Duration
	Attempts        uint
	InitialInterval time.Duration
	MaxBytes        int64
	// RequestsPerSecond throttles outbound fetches across all callers.
	RequestsPerSecond float64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Attempts == 0 {
		o.Attempts = 3
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = time.Second
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 5 << 20
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 5
	}
	return o
}

// Fetcher downloads avatars with retry on 429, a circuit breaker and a client-side rate limit.
type Fetcher struct {
	client  *http.Client
	opts    Options
	cb      *gobreaker.CircuitBreaker[*Image]
	limiter *rate.Limiter
}

// NewFetcher builds a Fetcher. client may be nil.
func NewFetcher(client *http.Client, opts Options) *Fetcher {
	opts = opts.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	cb := gobreaker.NewCircuitBreaker[*Image](gobreaker.Settings{
		Name:        "avatar-fetch",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing avatar is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoImage)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			middleware.Logger.Warn("Circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Fetcher{
		client:  client,
		opts:    opts,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// Fetch downloads url. Any failure is reported as ErrNoImage (wrapped with the cause).
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	if url == "" {
		observability.AvatarFetches.WithLabelValues("empty").Inc()
		return nil, ErrNoImage
	}

	img, err := f.cb.Execute(func() (*Image, error) {
		return f.fetchWithRetry(ctx, url)
	})
	if err != nil {
		outcome := "failed"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "rejected"
		case errors.Is(err, errThrottled):
			outcome = "throttled"
		}
		observability.AvatarFetches.WithLabelValues(outcome).Inc()
		middleware.Logger.WarnContext(ctx, "Avatar fetch failed", "url", url, "error", err)
		if errors.Is(err, ErrNoImage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}

	observability.AvatarFetches.WithLabelValues("ok").Inc()
	return img, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, url string) (*Image, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0

	return backoff.Retry(ctx, func() (*Image, error) {
		return f.fetchOnce(ctx, url)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(f.opts.Attempts))
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*Image, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errThrottled
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("%w: upstream status %d", ErrNoImage, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: avatar larger than %d bytes", ErrNoImage, f.opts.MaxBytes))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Image{Data: data, ContentType: contentType}, nil
}
