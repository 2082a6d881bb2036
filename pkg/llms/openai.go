package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/httpclient"
	"github.com/usegrapevine/grapevine/pkg/observability"
)

const defaultTemperature = 0.7

// OpenAIProvider speaks the OpenAI chat completions API. Any
// OpenAI-compatible endpoint works through the configured base URL.
type OpenAIProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func NewOpenAIProvider(cfg *config.LLMConfig) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(cfg.RetryDelay),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)

	return &OpenAIProvider{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

func (p *OpenAIProvider) ModelName() string {
	return p.config.Model
}

func (p *OpenAIProvider) Close() error {
	return nil
}

// Generate performs one chat completion and records its metrics and span.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	tracer := observability.GetTracer("grapevine.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.Bool("llm.structured", req.Structured != nil),
		),
	)
	defer span.End()

	request := p.buildRequest(req)

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(start)

	metrics := observability.GetGlobalMetrics()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
		}
		return nil, err
	}

	if response.Error != nil {
		apiErr := fmt.Errorf("API error: %s", response.Error.Message)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, apiErr)
		}
		return nil, apiErr
	}

	if len(response.Choices) == 0 {
		noChoiceErr := fmt.Errorf("no response choices returned")
		span.RecordError(noChoiceErr)
		span.SetStatus(codes.Error, "no choices")
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, noChoiceErr)
		}
		return nil, noChoiceErr
	}

	choice := response.Choices[0]

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "success")

	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	}

	return &Response{
		Text:  choice.Message.Content,
		Usage: response.Usage,
	}, nil
}

func (p *OpenAIProvider) buildRequest(req Request) chatRequest {
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	request := chatRequest{
		Model:       p.config.Model,
		Messages:    req.Messages,
		Temperature: temperature,
		Stream:      false,
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		request.MaxTokens = &maxTokens
	}

	if req.Structured != nil && req.Structured.Format == "json" {
		if req.Structured.Schema != nil {
			request.ResponseFormat = &responseFormat{
				Type: "json_schema",
				JSONSchema: &jsonSchemaFormat{
					Name:   "response",
					Schema: req.Structured.Schema,
					Strict: true,
				},
			}
		} else {
			request.ResponseFormat = &responseFormat{
				Type: "json_object",
			}
		}
	}

	return request
}

// parseErrorResponse extracts error details from an API error body.
func parseErrorResponse(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request chatRequest) (*chatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	// The retrying client can hand back both a response and an error once
	// retries are exhausted; the body may still carry API error details.
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			errorBody := string(body)
			if readErr != nil {
				errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
			}
			if apiErr := parseErrorResponse(body); apiErr != nil {
				return nil, fmt.Errorf("API request failed with status %d: %s (type: %s)",
					resp.StatusCode, apiErr.Message, apiErr.Type)
			}
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, errorBody)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp == nil {
		return nil, fmt.Errorf("HTTP request failed: no response received")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &response, nil
}
