package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
)

// ChatConfig holds the chat-completion provider settings.
type ChatConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// ChatClient calls an OpenAI-compatible chat-completion endpoint.
type ChatClient struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewChatClient creates a chat-completion client.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &ChatClient{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Model returns the configured model name.
func (c *ChatClient) Model() string { return c.model }

// Complete sends the system prompt, prior turns and question as one completion.
// Overload responses wrap domain.ErrModelOverloaded; everything else wraps
// domain.ErrModelFailure.
func (c *ChatClient) Complete(ctx context.Context, req chat.CompletionRequest) (chat.CompletionResult, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	for _, t := range req.Turns {
		role := openai.ChatMessageRoleUser
		if t.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Question})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return chat.CompletionResult{}, classifyChatError(err)
	}
	if len(resp.Choices) == 0 {
		return chat.CompletionResult{}, fmt.Errorf("empty completion response: %w", domain.ErrModelFailure)
	}

	return chat.CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// classifyChatError maps transport errors onto the overloaded/failure split.
func classifyChatError(err error) error {
	f := decodeProviderError(err)
	switch {
	case f.overloaded:
		return fmt.Errorf("chat API status %d: %s: %w", f.status, f.detail, domain.ErrModelOverloaded)
	case f.status != 0:
		return fmt.Errorf("chat API status %d: %s: %w", f.status, f.detail, domain.ErrModelFailure)
	default:
		return fmt.Errorf("chat request failed: %s: %w", f.detail, domain.ErrModelFailure)
	}
}
