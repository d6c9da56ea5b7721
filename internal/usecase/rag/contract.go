package rag

import (
	"context"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/filter"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/result"
	"github.com/kailas-cloud/realtorbot/internal/domain/tenant"
)

// TenantProvider loads tenant configuration.
type TenantProvider interface {
	Get(ctx context.Context, id string) (tenant.Tenant, error)
}

// Embedder vectorizes the visitor query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher runs a filtered KNN query against a tenant namespace.
type VectorSearcher interface {
	SearchKNN(
		ctx context.Context, indexName string,
		vector []float32, filters filter.Expression, topK int,
	) ([]result.Match, error)
}

// ListingStore answers structured questions the vector index cannot.
type ListingStore interface {
	PriceExtreme(ctx context.Context, tenantID string, order listing.PriceOrder, allowed []string) (float64, bool, error)
	ListingPrice(ctx context.Context, tenantID, listingID string) (float64, bool, error)
	AssignedListingIDs(ctx context.Context, tenantID, userID string) ([]string, error)
}

// ChatModel produces the answer from the assembled prompt.
type ChatModel interface {
	Complete(ctx context.Context, req chat.CompletionRequest) (chat.CompletionResult, error)
	Model() string
}

// Tokenizer counts and truncates text in model tokens.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, limit int) string
}

// UsageMeter enforces and records tenant token quotas.
type UsageMeter interface {
	Check(ctx context.Context, t tenant.Tenant) error
	Record(ctx context.Context, t tenant.Tenant, tokens int)
}
