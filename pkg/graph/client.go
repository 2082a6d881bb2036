// Package graph talks to the remote graph tool server.
//
// The server exposes graph query primitives as tools behind a JSON-RPC 2.0
// endpoint. Client wraps the wire contract: envelope construction, API-key
// auth, retries with backoff for transport failures, and decoding of the
// content-wrapped payloads most tools return.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/httpclient"
	"github.com/usegrapevine/grapevine/pkg/observability"
)

// request is a JSON-RPC 2.0 request envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// response is a JSON-RPC 2.0 response envelope.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// callParams carries the tools/call arguments.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallResult is a successfully decoded tool response.
type CallResult struct {
	Tool     string
	Payload  any    // decoded payload structure
	RawText  string // the embedded text before decoding, for debugging
	Duration time.Duration
}

// RemoteTool describes a tool advertised by the server's discovery endpoint.
type RemoteTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Client is a JSON-RPC 2.0 client for the graph tool server. Safe for
// concurrent use; all calls share one bounded connection pool.
type Client struct {
	baseURL   string
	apiKey    string
	http      *httpclient.Client
	transport *http.Transport
	closeOnce sync.Once
}

// NewClient builds a Client from configuration. The per-attempt timeout,
// retry budget, and pool bounds all come from cfg.
func NewClient(cfg *config.GraphConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("graph config is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("graph base_url is required")
	}

	var transport *http.Transport
	if cfg.TLS != nil {
		t, err := httpclient.ConfigureTLS(&httpclient.TLSConfig{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			CACertificate:      cfg.TLS.CACertificate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		transport = t
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost

	retrying := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Transport: transport,
			Timeout:   cfg.CallTimeout,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(cfg.RetryBaseDelay),
		httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
	)

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		http:      retrying,
		transport: transport,
	}, nil
}

// Call invokes one tool and decodes its payload. Transport failures are
// retried by the underlying client; every other failure surfaces
// immediately as a *CallError.
func (c *Client) Call(ctx context.Context, tool string, params map[string]any) (*CallResult, error) {
	start := time.Now()

	tracer := observability.GetTracer("grapevine.graph")
	ctx, span := tracer.Start(ctx, observability.SpanToolCall,
		trace.WithAttributes(attribute.String(observability.AttrToolName, tool)),
	)
	defer span.End()

	result, err := c.call(ctx, tool, params)
	duration := time.Since(start)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolCall(ctx, tool, duration, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "success")
	return result, nil
}

func (c *Client) call(ctx context.Context, tool string, params map[string]any) (*CallResult, error) {
	start := time.Now()

	if params == nil {
		params = map[string]any{}
	}

	envelope := request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "tools/call",
		Params:  callParams{Name: tool, Arguments: params},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, &CallError{Kind: ErrParse, Tool: tool, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, &CallError{Kind: ErrTransport, Tool: tool, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyHTTPFailure(tool, resp, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPFailure(tool, resp, nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Kind: ErrTransport, Tool: tool, Message: "failed to read response", Err: err}
	}

	var rpcResp response
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, &CallError{Kind: ErrParse, Tool: tool, Message: "malformed response body", Err: err}
	}

	if rpcResp.Error != nil {
		return nil, &CallError{
			Kind:    ErrRPC,
			Tool:    tool,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	payload, rawText, err := decodeResult(rpcResp.Result)
	if err != nil {
		return nil, &CallError{Kind: ErrParse, Tool: tool, Message: "undecodable payload", Err: err}
	}

	return &CallResult{
		Tool:     tool,
		Payload:  payload,
		RawText:  rawText,
		Duration: time.Since(start),
	}, nil
}

// Health probes the server's liveness endpoint. No authentication.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
	}

	status := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		// A bare 200 with no body still counts as healthy.
		return map[string]any{"status": "ok"}, nil
	}
	return status, nil
}

// ListTools fetches the server's advertised tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]RemoteTool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool discovery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool discovery returned HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool list: %w", err)
	}

	// Either {"tools":[...]} or a bare array.
	var wrapped struct {
		Tools []RemoteTool `json:"tools"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Tools != nil {
		return wrapped.Tools, nil
	}

	var tools []RemoteTool
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("failed to parse tool list: %w", err)
	}
	return tools, nil
}

// Close releases idle connections. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.transport != nil {
			c.transport.CloseIdleConnections()
		}
	})
}

// classifyHTTPFailure maps an HTTP-level failure to the call error taxonomy.
func classifyHTTPFailure(tool string, resp *http.Response, err error) *CallError {
	if resp != nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &CallError{
				Kind:    ErrAuth,
				Tool:    tool,
				Message: fmt.Sprintf("authentication rejected (HTTP %d)", resp.StatusCode),
				Err:     err,
			}
		}

		// Some servers answer errors with a JSON-RPC body on a non-2xx
		// status. Surface the embedded code when present.
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); readErr == nil {
			var envelope response
			if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
				return &CallError{
					Kind:    ErrRPC,
					Tool:    tool,
					Code:    envelope.Error.Code,
					Message: envelope.Error.Message,
				}
			}
		}

		return &CallError{
			Kind:    ErrTransport,
			Tool:    tool,
			Message: fmt.Sprintf("request failed (HTTP %d)", resp.StatusCode),
			Err:     err,
		}
	}

	return &CallError{
		Kind:    ErrTransport,
		Tool:    tool,
		Message: "request failed",
		Err:     err,
	}
}

// decodeResult unwraps a tools/call result. The common shape is
// {"content":[{"type":"text","text":"<stringified json>"}]}; results not
// matching it are returned as-is.
func decodeResult(raw json.RawMessage) (any, string, error) {
	if len(raw) == 0 {
		return nil, "", nil
	}

	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, "", err
	}

	text, ok := contentText(result)
	if !ok {
		return result, "", nil
	}

	payload, err := DecodePayload(text)
	if err != nil {
		return nil, text, err
	}
	return payload, text, nil
}

// contentText extracts the concatenated text items from a content-wrapped
// result, reporting whether the shape matched.
func contentText(result any) (string, bool) {
	resultMap, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	contentArray, ok := resultMap["content"].([]any)
	if !ok {
		return "", false
	}

	var b strings.Builder
	found := false
	for _, item := range contentArray {
		contentItem, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := contentItem["text"].(string); ok {
			if found {
				b.WriteString("\n")
			}
			b.WriteString(text)
			found = true
		}
	}
	return b.String(), found
}
