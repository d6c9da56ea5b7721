package chi

import "time"

// ErrorCode is the machine-readable error class of an ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeTenantNotFound         ErrorCode = "tenant_not_found"
	ErrorCodeInvalidEmbedding       ErrorCode = "invalid_embedding"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeTokenQuotaExceeded     ErrorCode = "token_quota_exceeded"
	ErrorCodeModelOverloaded        ErrorCode = "model_overloaded"
	ErrorCodeModelFailure           ErrorCode = "model_failure"
	ErrorCodeConfigError            ErrorCode = "config_error"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ChatContext scopes a chat turn to a listing or a development.
type ChatContext struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ChatRequest is the body of POST /v1/tenants/{tenantID}/chat.
type ChatRequest struct {
	Message        string            `json:"message"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Context        *ChatContext      `json:"context,omitempty"`
	History        []string          `json:"history,omitempty"`
	Onboarding     map[string]string `json:"onboarding,omitempty"`
}

// ChatMatch is one ranked retrieval hit.
type ChatMatch struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	ListingID     *string `json:"listing_id,omitempty"`
	DevelopmentID *string `json:"development_id,omitempty"`
}

// ChatResponse is the reply to a chat turn.
type ChatResponse struct {
	Answer         string            `json:"answer"`
	ConversationID string            `json:"conversation_id"`
	Matches        []ChatMatch       `json:"matches"`
	Filters        map[string]string `json:"filters,omitempty"`
	Aggregate      *string           `json:"aggregate,omitempty"`
}

// UsageResponse is the tenant token usage for a period.
type UsageResponse struct {
	TenantID        string    `json:"tenant_id"`
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     *int64    `json:"tokens_limit,omitempty"`
	TokensRemaining *int64    `json:"tokens_remaining,omitempty"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
