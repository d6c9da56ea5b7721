package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/metrics"
)

// Error labels of realtorbot_embedding_errors_total.
const (
	embedErrRateLimited       = "rate_limited"
	embedErrProvider          = "provider_error"
	embedErrEmptyResponse     = "empty_response"
	embedErrDimensionMismatch = "dimension_mismatch"
)

// QueryEmbedder turns a visitor question into the vector searched against a
// tenant's listings index. One question per call; listings are embedded at
// ingestion time by a separate pipeline.
type QueryEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	logger     *zap.Logger
}

// EmbedderConfig holds the embedding provider settings.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions must equal the DIM of every tenant index; 0 trusts the model default.
	Dimensions int
	Provider   string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewQueryEmbedder creates an embedder for an OpenAI-compatible /embeddings endpoint.
func NewQueryEmbedder(cfg *EmbedderConfig) *QueryEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QueryEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		logger:     logger.With(zap.String("embedding_model", cfg.Model)),
	}
}

// Embed implements domain.Embedder.
func (e *QueryEmbedder) Embed(ctx context.Context, question string) (domain.EmbeddingResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("empty question: %w", domain.ErrInvalidQuery)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{question},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		f := decodeProviderError(err)
		label := embedErrProvider
		if f.overloaded {
			label = embedErrRateLimited
		}
		e.fail(label)
		e.logger.Warn("Embedding provider rejected question",
			zap.Int("status", f.status), zap.String("detail", f.detail))
		return domain.EmbeddingResult{}, fmt.Errorf("embedding API status %d: %s: %w",
			f.status, f.detail, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Data) == 0 {
		e.fail(embedErrEmptyResponse)
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	vec := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vec) != e.dimensions {
		e.fail(embedErrDimensionMismatch)
		return domain.EmbeddingResult{}, fmt.Errorf("got %d dimensions, index expects %d: %w",
			len(vec), e.dimensions, domain.ErrInvalidEmbedding)
	}

	e.succeed(time.Since(start), resp.Usage)

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func (e *QueryEmbedder) fail(label string) {
	model := string(e.model)
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, label).Inc()
}

func (e *QueryEmbedder) succeed(d time.Duration, usage openai.Usage) {
	model := string(e.model)
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(d.Seconds())
	if usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(usage.TotalTokens))
	}
}

// HealthCheck lists models, which costs no tokens.
func (e *QueryEmbedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
