package domain

import "errors"

var (
	// ErrTenantNotFound signals an unknown tenant id.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrPromptTemplateMissing signals a tenant without a prompt template.
	ErrPromptTemplateMissing = errors.New("prompt template missing for tenant")
	// ErrInvalidQuery signals a malformed chat request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidRole signals an unknown caller role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidEmbedding signals a vector that is empty or has non-finite components.
	ErrInvalidEmbedding = errors.New("invalid embedding vector")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrModelOverloaded signals that the chat model stayed overloaded after all retries.
	ErrModelOverloaded = errors.New("chat model overloaded")
	// ErrModelFailure signals a non-retryable chat model failure.
	ErrModelFailure = errors.New("chat model failure")
	// ErrTokenQuotaExceeded signals an exhausted tenant token quota.
	ErrTokenQuotaExceeded = errors.New("token quota exceeded")
)
