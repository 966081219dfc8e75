package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ncobase/runpod/concurrency"
	"github.com/ncobase/runpod/config"
	"github.com/ncobase/runpod/logging/logger"
	"github.com/ncobase/runpod/runpod/job"
	"github.com/sony/gobreaker"
)

// maxErrorBody bounds the reply excerpt kept on a StatusError.
const maxErrorBody = 512

// ErrCircuitOpen is returned while a host's breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker open")

// StatusError is a non-2xx provider reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPRequester performs provider calls over net/http, one circuit breaker
// per host and a shared in-flight cap.
type HTTPRequester struct {
	client   *http.Client
	limiter  *concurrency.Limiter
	settings *config.Breaker
	log      *logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// Option configures an HTTPRequester.
type Option func(*HTTPRequester)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *HTTPRequester) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *HTTPRequester) { r.log = l }
}

// New builds a requester from the provider settings.
func New(cfg *config.Runpod, opts ...Option) (*HTTPRequester, error) {
	if cfg == nil {
		return nil, errors.New("transport: nil config")
	}
	r := &HTTPRequester{
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		settings: cfg.Breaker,
		log:      logger.StdLogger(),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	if cfg.MaxInflight > 0 {
		lim, err := concurrency.NewLimiter(int32(cfg.MaxInflight))
		if err != nil {
			return nil, err
		}
		r.limiter = lim
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Do implements job.Requester.
func (r *HTTPRequester) Do(ctx context.Context, req *job.Request) (json.RawMessage, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer r.limiter.Release()
	}

	cb := r.breaker(u.Host)
	if cb == nil {
		return r.send(ctx, req)
	}

	out, err := cb.Execute(func() (any, error) {
		return r.send(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		r.log.Warn(ctx, "provider request rejected", "host", u.Host, "state", cb.State().String())
		return nil, fmt.Errorf("%w for %s", ErrCircuitOpen, u.Host)
	}
	if err != nil {
		return nil, err
	}
	return out.(json.RawMessage), nil
}

// Metrics reports in-flight usage, nil without a cap.
func (r *HTTPRequester) Metrics() map[string]int64 {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.GetMetrics()
}

func (r *HTTPRequester) send(ctx context.Context, req *job.Request) (json.RawMessage, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}

	start := time.Now()
	res, err := r.client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	r.log.Debug(ctx, "http round trip", "method", req.Method, "host", hr.URL.Host, "status", res.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: snippet(data)}
	}
	if req.JSON && !json.Valid(data) {
		return nil, fmt.Errorf("malformed response body: %s", snippet(data))
	}
	return json.RawMessage(data), nil
}

// breaker returns the host's circuit breaker, nil when disabled.
func (r *HTTPRequester) breaker(host string) *gobreaker.CircuitBreaker {
	if r.settings == nil || !r.settings.Enabled {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[host]; ok {
		return cb
	}
	s := r.settings
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn(context.Background(), "circuit breaker state changed", "host", name, "from", from.String(), "to", to.String())
		},
	})
	r.breakers[host] = cb
	return cb
}

// countsAsSuccess keeps caller mistakes, cancellations and expired caller
// deadlines from tripping the breaker; only 5xx, 429 and network failures
// count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func snippet(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
