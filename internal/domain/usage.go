package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects token usage for a single chat request.
// The handler puts a mutable pointer into the context before calling the pipeline;
// the pipeline writes after each upstream call; the handler reads it for response headers.
type RequestUsage struct {
	EmbeddingTokens int
	ModelTokens     int
	Embedded        bool // true if embedding was called, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records tokens consumed by the embedding provider.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Embedded = true
	}
}

// AddModelTokens records tokens consumed by the chat model.
func (u *RequestUsage) AddModelTokens(n int) {
	if u != nil {
		u.ModelTokens += n
	}
}
