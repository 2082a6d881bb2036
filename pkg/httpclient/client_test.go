package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		options  []Option
		validate func(t *testing.T, client *Client)
	}{
		{
			name:    "default_configuration",
			options: []Option{},
			validate: func(t *testing.T, client *Client) {
				if client.maxRetries != 3 {
					t.Errorf("Expected maxRetries=3, got %d", client.maxRetries)
				}
				if client.baseDelay != time.Second {
					t.Errorf("Expected baseDelay=1s, got %v", client.baseDelay)
				}
				if client.client.Timeout != 60*time.Second {
					t.Errorf("Expected timeout=60s, got %v", client.client.Timeout)
				}
				if client.strategyFunc == nil {
					t.Error("Expected strategyFunc to be set")
				}
			},
		},
		{
			name:    "custom_max_retries",
			options: []Option{WithMaxRetries(1)},
			validate: func(t *testing.T, client *Client) {
				if client.maxRetries != 1 {
					t.Errorf("Expected maxRetries=1, got %d", client.maxRetries)
				}
			},
		},
		{
			name:    "custom_base_delay",
			options: []Option{WithBaseDelay(5 * time.Millisecond)},
			validate: func(t *testing.T, client *Client) {
				if client.baseDelay != 5*time.Millisecond {
					t.Errorf("Expected baseDelay=5ms, got %v", client.baseDelay)
				}
			},
		},
		{
			name:    "custom_http_client",
			options: []Option{WithHTTPClient(&http.Client{Timeout: 10 * time.Second})},
			validate: func(t *testing.T, client *Client) {
				if client.client.Timeout != 10*time.Second {
					t.Errorf("Expected timeout=10s, got %v", client.client.Timeout)
				}
			},
		},
		{
			name: "custom_header_parser",
			options: []Option{
				WithHeaderParser(func(h http.Header) RateLimitInfo {
					return RateLimitInfo{RetryAfter: 7 * time.Second}
				}),
			},
			validate: func(t *testing.T, client *Client) {
				if client.headerParser == nil {
					t.Fatal("Expected headerParser to be set")
				}
				if got := client.headerParser(http.Header{}); got.RetryAfter != 7*time.Second {
					t.Errorf("Expected RetryAfter=7s, got %v", got.RetryAfter)
				}
			},
		},
		{
			name: "custom_retry_strategy",
			options: []Option{
				WithRetryStrategy(func(statusCode int) RetryStrategy { return NoRetry }),
			},
			validate: func(t *testing.T, client *Client) {
				if got := client.strategyFunc(500); got != NoRetry {
					t.Errorf("Expected NoRetry, got %v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.options...)
			tt.validate(t, client)
		})
	}
}

func TestDefaultRetryStrategy(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   RetryStrategy
	}{
		{"rate_limit_429", http.StatusTooManyRequests, SmartRetry},
		{"service_unavailable_503", http.StatusServiceUnavailable, SmartRetry},
		{"request_timeout_408", http.StatusRequestTimeout, BackoffRetry},
		{"internal_error_500", http.StatusInternalServerError, BackoffRetry},
		{"bad_gateway_502", http.StatusBadGateway, BackoffRetry},
		{"gateway_timeout_504", http.StatusGatewayTimeout, BackoffRetry},
		{"bad_request_400", http.StatusBadRequest, NoRetry},
		{"unauthorized_401", http.StatusUnauthorized, NoRetry},
		{"forbidden_403", http.StatusForbidden, NoRetry},
		{"not_found_404", http.StatusNotFound, NoRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryStrategy(tt.statusCode); got != tt.expected {
				t.Errorf("DefaultRetryStrategy(%d) = %v, want %v", tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestDoSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestDoRetriesTransientServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestDoDoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err == nil {
		t.Fatal("Do() error = nil, want HTTP 401 error")
	}
	if resp != nil {
		resp.Body.Close()
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestDoRetriesConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, url, nil)

	start := time.Now()
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("Do() error = nil, want connection error")
	}

	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		t.Fatalf("Do() error = %T, want *RetryableError", err)
	}
	// two retries at 1ms base should finish fast
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("retries took too long: %v", elapsed)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := client.Do(req)
	if err == nil {
		t.Fatal("Do() error = nil, want retry exhaustion")
	}

	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		t.Fatalf("Do() error = %T, want *RetryableError", err)
	}
	if retryErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", retryErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3 (initial + 2 retries)", got)
	}
}

func TestDoRewindsBodyOnRetry(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	payload := []byte(`{"probe":true}`)
	req, _ := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader(payload))

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(bodies))
	}
	for i, body := range bodies {
		if !bytes.Equal(body, payload) {
			t.Errorf("attempt %d body = %q, want %q", i, body, payload)
		}
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := New(WithMaxRetries(5), WithBaseDelay(time.Hour))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	done := make(chan error, 1)
	go func() {
		_, err := client.Do(req)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Do() error = nil, want context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do() did not return after context cancellation")
	}
}

func TestCalculateDelay(t *testing.T) {
	client := New(WithBaseDelay(100 * time.Millisecond))

	tests := []struct {
		name     string
		strategy RetryStrategy
		attempt  int
		info     RateLimitInfo
		validate func(t *testing.T, delay time.Duration)
	}{
		{
			name:     "smart_retry_honors_retry_after",
			strategy: SmartRetry,
			info:     RateLimitInfo{RetryAfter: 3 * time.Second},
			validate: func(t *testing.T, delay time.Duration) {
				if delay != 3*time.Second {
					t.Errorf("delay = %v, want 3s", delay)
				}
			},
		},
		{
			name:     "backoff_grows_exponentially",
			strategy: BackoffRetry,
			attempt:  2,
			validate: func(t *testing.T, delay time.Duration) {
				// 100ms * 2^2 = 400ms plus 10% jitter
				if delay < 400*time.Millisecond || delay > 500*time.Millisecond {
					t.Errorf("delay = %v, want ~440ms", delay)
				}
			},
		},
		{
			name:     "backoff_first_attempt",
			strategy: BackoffRetry,
			attempt:  0,
			validate: func(t *testing.T, delay time.Duration) {
				if delay < 100*time.Millisecond || delay > 150*time.Millisecond {
					t.Errorf("delay = %v, want ~110ms", delay)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, client.calculateDelay(tt.strategy, tt.attempt, tt.info))
		})
	}
}
