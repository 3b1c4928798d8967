// Package portal wraps the outbound HTTP connection to the records
// portal. It owns retries, rate limiting, circuit breaking, and the
// uniform mapping of HTTP failures into non-throwing envelopes.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/enlacemx/recordkit/internal/config"
	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/internal/ports"
	"github.com/enlacemx/recordkit/pkg/circuitbreaker"
	"github.com/enlacemx/recordkit/pkg/idempotency"
	"github.com/enlacemx/recordkit/pkg/logger"
	"github.com/enlacemx/recordkit/pkg/metrics"
	"github.com/enlacemx/recordkit/pkg/metrics/noop"
	"github.com/google/uuid"
	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	headerRequestID = "X-Request-ID"

	rateLimitKey = "portal"

	maxRateLimitWaits = 3
)

// Dependencies are the caller-provided collaborators. Any of them may be
// nil; missing ones degrade to no-ops.
type Dependencies struct {
	Tokens   ports.TokenSource
	Session  ports.SessionEnder
	Loader   ports.LoadSignaler
	Notifier ports.Notifier
	Metrics  metrics.Client
}

// Client issues portal requests. HTTP-level failures never surface as Go
// errors: every call returns an envelope whose Status field carries the
// outcome, matching what downstream code expects everywhere.
type Client struct {
	httpClient *http.Client
	baseURL    string
	deps       Dependencies
	limiter    *throttled.GCRARateLimiterCtx
	breaker    *circuitbreaker.Breaker[*exchange]
	backoffCfg config.Backoff
	maxRetries uint
	idemCfg    config.Idempotency
	logger     logger.Logger
}

// exchange is the raw outcome of one portal round trip before failure
// mapping.
type exchange struct {
	code     int
	envelope *model.Envelope
}

func NewClient(cfg *config.ServiceConfig, deps Dependencies, log logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(cfg.Portal.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("portal base URL must not be empty")
	}

	if deps.Metrics == nil {
		deps.Metrics = noop.NewMetricsClient()
	}

	client := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Portal.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:    baseURL,
		deps:       deps,
		backoffCfg: cfg.Backoff,
		maxRetries: cfg.Portal.MaxRetries,
		idemCfg:    cfg.Idempotency,
		logger:     log.WithComponent("portal-client"),
	}

	if cfg.RateLimit.Enabled {
		store, err := memstore.NewCtx(65536)
		if err != nil {
			return nil, fmt.Errorf("creating rate limit store: %w", err)
		}

		quota := throttled.RateQuota{
			MaxRate:  throttled.PerSec(cfg.RateLimit.RequestsPerSecond),
			MaxBurst: cfg.RateLimit.Burst,
		}

		limiter, err := throttled.NewGCRARateLimiterCtx(store, quota)
		if err != nil {
			return nil, fmt.Errorf("creating rate limiter: %w", err)
		}

		client.limiter = limiter
	}

	client.breaker = circuitbreaker.New[*exchange](circuitbreaker.Config{
		Name:             "portal",
		Enabled:          cfg.CircuitBreaker.Enabled,
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		Timeout:          cfg.CircuitBreaker.Timeout,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		OnStateChange: func(name, from, to string) {
			client.logger.Warn().
				Str("breaker", name).
				Str("from", from).
				Str("to", to).
				Msg("circuit breaker state change")
		},
	})

	return client, nil
}

// Get issues a read. Params land on the query string untouched, already
// normalized by the query layer.
func (c *Client) Get(ctx context.Context, path string, params url.Values, loader bool) *model.Envelope {
	return c.send(ctx, http.MethodGet, path, params, nil, "", loader)
}

// Post issues a JSON mutation.
func (c *Client) Post(ctx context.Context, path string, body any, loader bool) *model.Envelope {
	encoded, err := json.Marshal(body)
	if err != nil {
		return c.localFailure(fmt.Sprintf("encoding request body: %v", err))
	}

	return c.send(ctx, http.MethodPost, path, nil, encoded, "application/json", loader)
}

// PostMultipart issues a create with an attached file: the record JSON
// under "data", the binary under "file", extra fields flat.
func (c *Client) PostMultipart(ctx context.Context, path string, payload model.FilePayload, extra map[string]string, loader bool) *model.Envelope {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	encoded, err := json.Marshal(payload.Data)
	if err != nil {
		return c.localFailure(fmt.Sprintf("encoding record: %v", err))
	}

	if err := writer.WriteField("data", string(encoded)); err != nil {
		return c.localFailure(fmt.Sprintf("building multipart body: %v", err))
	}

	for key, value := range extra {
		if err := writer.WriteField(key, value); err != nil {
			return c.localFailure(fmt.Sprintf("building multipart body: %v", err))
		}
	}

	part, err := writer.CreateFormFile("file", payload.Filename)
	if err != nil {
		return c.localFailure(fmt.Sprintf("building multipart body: %v", err))
	}

	if _, err := io.Copy(part, payload.Content); err != nil {
		return c.localFailure(fmt.Sprintf("reading file content: %v", err))
	}

	if err := writer.Close(); err != nil {
		return c.localFailure(fmt.Sprintf("building multipart body: %v", err))
	}

	return c.send(ctx, http.MethodPost, path, nil, buf.Bytes(), writer.FormDataContentType(), loader)
}

// Put issues a JSON update.
func (c *Client) Put(ctx context.Context, path string, body any, loader bool) *model.Envelope {
	encoded, err := json.Marshal(body)
	if err != nil {
		return c.localFailure(fmt.Sprintf("encoding request body: %v", err))
	}

	return c.send(ctx, http.MethodPut, path, nil, encoded, "application/json", loader)
}

// Delete issues the soft-delete toggle.
func (c *Client) Delete(ctx context.Context, path string, loader bool) *model.Envelope {
	return c.send(ctx, http.MethodDelete, path, nil, nil, "", loader)
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, body []byte, contentType string, loader bool) *model.Envelope {
	if loader && c.deps.Loader != nil {
		c.deps.Loader.Begin()
		defer c.deps.Loader.End()
	}

	if err := c.awaitRateLimit(ctx); err != nil {
		return c.transportFailure(ctx, err)
	}

	requestID := uuid.NewString()
	startTime := time.Now()

	result, err := circuitbreaker.Execute(c.breaker, func() (*exchange, error) {
		return c.dispatchWithRetries(ctx, method, path, params, body, contentType, requestID)
	})

	event := c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int64("duration_ms", time.Since(startTime).Milliseconds())

	if err != nil {
		event.Err(err).Msg("portal request failed")
		c.deps.Metrics.Inc(ctx, "portal.client.errors", 1, attribute.String("method", method))

		return c.transportFailure(ctx, err)
	}

	event.Int("status", result.code).Msg("portal request")
	c.deps.Metrics.Inc(ctx, "portal.client.requests", 1,
		attribute.String("method", method),
		attribute.Int("status", result.code),
	)

	if result.code < 200 || result.code >= 300 {
		return c.mapStatus(ctx, result.code, result.envelope)
	}

	if result.envelope == nil {
		return c.localFailure("unexpected response from the portal")
	}

	return result.envelope
}

// dispatchWithRetries retries idempotent verbs on network errors and
// 5xx responses. POST goes out exactly once.
func (c *Client) dispatchWithRetries(ctx context.Context, method, path string, params url.Values, body []byte, contentType, requestID string) (*exchange, error) {
	idempotencyKey := c.idempotencyKey(ctx, method)

	operation := func() (*exchange, error) {
		result, err := c.dispatch(ctx, method, path, params, body, contentType, requestID, idempotencyKey)
		if err != nil {
			return nil, err
		}

		if result.code >= http.StatusInternalServerError {
			return nil, &statusError{code: result.code, envelope: result.envelope}
		}

		return result, nil
	}

	if !c.retryable(method) || c.maxRetries == 0 {
		result, err := operation()
		if err != nil {
			var stErr *statusError
			if asStatusError(err, &stErr) {
				return &exchange{code: stErr.code, envelope: stErr.envelope}, nil
			}

			return nil, err
		}

		return result, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.backoffCfg.BaseDelay
	expBackoff.Multiplier = c.backoffCfg.Multiplier
	expBackoff.RandomizationFactor = c.backoffCfg.Jitter
	expBackoff.MaxInterval = c.backoffCfg.MaxDelay

	result, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithBackOff(expBackoff),
	)
	if err != nil {
		// Exhausted retries on 5xx still produce an envelope so the
		// status mapping runs; only network errors bubble up.
		var stErr *statusError
		if asStatusError(err, &stErr) {
			return &exchange{code: stErr.code, envelope: stErr.envelope}, nil
		}

		return nil, err
	}

	return result, nil
}

func (c *Client) dispatch(ctx context.Context, method, path string, params url.Values, body []byte, contentType, requestID, idempotencyKey string) (*exchange, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.deps.Tokens != nil {
		if token := c.deps.Tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if idempotencyKey != "" {
		req.Header.Set(c.idemCfg.HeaderName, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	result := &exchange{code: resp.StatusCode}

	var envelope model.Envelope
	if json.Unmarshal(raw, &envelope) == nil {
		result.envelope = &envelope
	}

	return result, nil
}

// awaitRateLimit blocks until the GCRA limiter grants a slot, bounded so
// a saturated limiter cannot stall a call forever.
func (c *Client) awaitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	for attempt := 0; attempt <= maxRateLimitWaits; attempt++ {
		limited, result, err := c.limiter.RateLimitCtx(ctx, rateLimitKey, 1)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		if !limited {
			return nil
		}

		wait := result.RetryAfter
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return model.ErrRateLimited
}

func (c *Client) idempotencyKey(ctx context.Context, method string) string {
	if !c.idemCfg.Enabled || method == http.MethodGet {
		return ""
	}

	if key, ok := idempotency.FromContext(ctx); ok {
		return key
	}

	return idempotency.NewKey()
}

func (c *Client) retryable(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}
