package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
	"github.com/kailas-cloud/realtorbot/internal/metrics"
)

// RetryPolicy bounds retries of an overloaded model.
type RetryPolicy struct {
	MaxRetries uint64 // attempts after the first one
	Delay      time.Duration
}

// DefaultRetryPolicy returns two retries two seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Delay: 2 * time.Second}
}

// Generator calls the chat model, retrying only on overload.
type Generator struct {
	model  ChatModel
	policy RetryPolicy
	logger *zap.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(model ChatModel, policy RetryPolicy, logger *zap.Logger) *Generator {
	return &Generator{model: model, policy: policy, logger: logger}
}

// Generate returns the model answer. After the last overloaded attempt the
// error wraps domain.ErrModelOverloaded; other failures are not retried.
func (g *Generator) Generate(ctx context.Context, req chat.CompletionRequest) (chat.CompletionResult, error) {
	op := func() (chat.CompletionResult, error) {
		res, err := g.model.Complete(ctx, req)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, domain.ErrModelOverloaded) {
			return chat.CompletionResult{}, err
		}
		return chat.CompletionResult{}, backoff.Permanent(err)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.policy.Delay), g.policy.MaxRetries), ctx)

	res, err := backoff.RetryNotifyWithData(op, b, func(err error, wait time.Duration) {
		metrics.ModelRetriesTotal.WithLabelValues(g.model.Model()).Inc()
		g.logger.Warn("Chat model overloaded, retrying",
			zap.String("model", g.model.Model()), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		if errors.Is(err, domain.ErrModelOverloaded) || errors.Is(err, domain.ErrModelFailure) {
			return chat.CompletionResult{}, fmt.Errorf("generate: %w", err)
		}
		return chat.CompletionResult{}, fmt.Errorf("generate: %w: %w", domain.ErrModelFailure, err)
	}
	return res, nil
}
