package llms

import (
	"context"
	"fmt"

	"github.com/usegrapevine/grapevine/pkg/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Usage is the provider's token accounting for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u, for callers that issue more than one
// request per logical operation.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// StructuredOutputConfig asks the provider to constrain its output.
// Format "json" enables JSON mode; when Schema is set the provider
// enforces it strictly.
type StructuredOutputConfig struct {
	Format string
	Schema map[string]any
}

// Request is one completion request. Zero-valued fields fall back to the
// provider's configured defaults.
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	Structured  *StructuredOutputConfig
}

// Response is a completed generation.
type Response struct {
	Text  string
	Usage Usage
}

// Provider generates chat completions. Implementations are safe for
// concurrent use.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	ModelName() string

	Close() error
}

// NewProvider builds the provider selected by cfg.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}

	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai)", cfg.Provider)
	}
}
