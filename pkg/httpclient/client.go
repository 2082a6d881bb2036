package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

type RetryStrategy int

const (
	// NoRetry fails immediately. Applied to application-level errors,
	// which a retry cannot repair.
	NoRetry RetryStrategy = iota
	// BackoffRetry waits baseDelay * 2^attempt between attempts. Applied
	// to transport failures and transient server errors.
	BackoffRetry
	// SmartRetry honors rate-limit response headers before falling back
	// to exponential backoff. Applied to 429 and 503.
	SmartRetry
)

type RateLimitInfo struct {
	RetryAfter        time.Duration
	ResetTime         int64
	RequestsRemaining int
	TokensRemaining   int
}

type RateLimitHeaderParser func(http.Header) RateLimitInfo

type RetryStrategyFunc func(int) RetryStrategy

// Client is an http.Client wrapper that retries transient failures.
// Transport errors and retryable status codes are reattempted with
// backoff; everything else returns to the caller untouched. The wait
// between attempts respects the request context.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	headerParser RateLimitHeaderParser
	strategyFunc RetryStrategyFunc
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithMaxRetries(max int) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

func WithHeaderParser(parser RateLimitHeaderParser) Option {
	return func(c *Client) {
		c.headerParser = parser
	}
}

func WithRetryStrategy(strategyFunc RetryStrategyFunc) Option {
	return func(c *Client) {
		c.strategyFunc = strategyFunc
	}
}

func New(opts ...Option) *Client {
	client := &Client{
		client:       &http.Client{Timeout: 60 * time.Second},
		maxRetries:   3,
		baseDelay:    time.Second,
		strategyFunc: DefaultRetryStrategy,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// DefaultRetryStrategy maps response status codes to retry strategies.
// Rate limiting and overload get header-aware retries, transient server
// errors get plain backoff, and all other statuses fail immediately.
func DefaultRetryStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return BackoffRetry
	default:
		return NoRetry
	}
}

// Do executes the request, retrying transport failures and retryable
// status codes up to maxRetries times. Requests carrying a body must set
// GetBody so the body can be rewound between attempts; http.NewRequest
// does this for common body types.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, strategy, retryInfo, err := c.attemptRequest(req)
		if strategy == NoRetry || err == nil {
			return resp, err
		}
		lastResp, lastErr = resp, err

		// The caller's context going away ends the whole exchange,
		// even when the failure itself looks retryable.
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return resp, ctxErr
		}

		if attempt >= c.maxRetries {
			break
		}

		delay := c.calculateDelay(strategy, attempt, retryInfo)
		c.logRetry(strategy, delay, attempt, resp)
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	statusCode := 0
	if lastResp != nil {
		statusCode = lastResp.StatusCode
	}
	return lastResp, &RetryableError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("max retries (%d) exceeded", c.maxRetries),
		Err:        lastErr,
	}
}

func (c *Client) attemptRequest(req *http.Request) (*http.Response, RetryStrategy, RateLimitInfo, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		// Connection failures and per-attempt timeouts are worth
		// retrying; context errors are caught by the caller.
		return nil, BackoffRetry, RateLimitInfo{}, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, NoRetry, RateLimitInfo{}, nil
	}

	var retryInfo RateLimitInfo
	if c.headerParser != nil {
		retryInfo = c.headerParser(resp.Header)
	}

	return resp, c.strategyFunc(resp.StatusCode), retryInfo, fmt.Errorf("HTTP %d", resp.StatusCode)
}

func (c *Client) calculateDelay(strategy RetryStrategy, attempt int, retryInfo RateLimitInfo) time.Duration {
	if strategy == SmartRetry {
		if retryInfo.RetryAfter > 0 {
			return retryInfo.RetryAfter
		}
		if retryInfo.ResetTime > 0 {
			if delay := time.Until(time.Unix(retryInfo.ResetTime, 0)); delay > 0 {
				return delay
			}
		}
	}

	exponential := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	jitter := time.Duration(float64(exponential) * 0.1)
	return exponential + jitter
}

func (c *Client) logRetry(strategy RetryStrategy, delay time.Duration, attempt int, resp *http.Response) {
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	if strategy == SmartRetry {
		slog.Warn("Rate limited, retrying",
			"status", statusCode,
			"delay", delay,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries)
		return
	}
	slog.Debug("Transient failure, retrying",
		"status", statusCode,
		"delay", delay,
		"attempt", attempt+1,
		"max_attempts", c.maxRetries)
}
