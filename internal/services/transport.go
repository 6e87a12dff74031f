package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/a2yt/internal/shared"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryInterval = 500 * time.Millisecond
	maxErrorBody         = 512
)

// ClientOptions configures the HTTP transport shared by both API clients.
type ClientOptions struct {
	BaseURL string
	// Timeout bounds each individual request. Zero means 30 seconds.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt for retryable failures.
	MaxRetries int
	// RetryInterval is the initial backoff interval. Zero means 500ms.
	RetryInterval time.Duration
	// RequestsPerSecond limits outgoing requests. Zero disables limiting.
	RequestsPerSecond float64
	// HTTPClient is the base client; its Transport is wrapped for authentication.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// APIError describes a non-2xx response from a remote API.
type APIError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error: %s %s: status %d", e.Service, e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps the status code onto the shared sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return shared.ErrAuthFailed
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 from either API.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

// request is a single HTTP call. The body is kept as bytes so it can be replayed on retry.
type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	accept      string
}

// transport sends requests with rate limiting, per-request timeouts and bounded retries.
type transport struct {
	service       string
	baseURL       string
	client        *http.Client
	limiter       *rate.Limiter
	maxRetries    int
	retryInterval time.Duration
	logger        *log.Logger
}

func newTransport(service string, client *http.Client, opts ClientOptions) *transport {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.Timeout = timeout

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	t := &transport{
		service:       service,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		client:        client,
		maxRetries:    max(opts.MaxRetries, 0),
		retryInterval: interval,
		logger:        logger,
	}
	if opts.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return t
}

func (t *transport) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.retryInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(t.maxRetries)), ctx)
}

// do executes the request and returns the response body of a 2xx response.
func (t *transport) do(ctx context.Context, r request) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		data, err := t.send(ctx, r)
		if err == nil {
			body = data
			return nil
		}

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return backoff.Permanent(err)
		}

		t.logger.Warn("request failed, retrying", "service", t.service, "method", r.method, "path", r.path, "attempt", attempt, "error", err)
		return err
	}

	if err := backoff.Retry(op, t.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (t *transport) send(ctx context.Context, r request) ([]byte, error) {
	var reader io.Reader
	if r.body != nil {
		reader = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, t.baseURL+r.path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)

	resp, err := t.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrTimeout, r.method, r.path, err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &APIError{
			Service:    t.service,
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.StatusCode,
			Body:       msg,
		}
	}

	return data, nil
}
