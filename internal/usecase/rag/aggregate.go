package rag

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain/access"
	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
)

// PriceUnknownMessage is returned when no price extreme can be determined.
const PriceUnknownMessage = "Não foi possível determinar o preço pedido com os imóveis disponíveis."

// Every alternative ends in an ASCII letter so the trailing \b holds for
// accented words too.
var (
	ascendingPattern = regexp.MustCompile(
		`\b(?:mais barat[oa]s?|mais econ[oó]mic[oa]s?|menor pre[cç]o|cheapest)\b`)
	descendingPattern = regexp.MustCompile(
		`\b(?:mais car[oa]s?|maior pre[cç]o|most expensive)\b`)
)

// DetectPriceOrder recognises superlative price phrasing. ok is false when
// the query is not an aggregate price question.
func DetectPriceOrder(text string) (listing.PriceOrder, bool) {
	t := strings.ToLower(text)
	switch {
	case ascendingPattern.MatchString(t):
		return listing.PriceAscending, true
	case descendingPattern.MatchString(t):
		return listing.PriceDescending, true
	}
	return 0, false
}

// AggregateHelper answers price superlatives from the listing store.
type AggregateHelper struct {
	store  ListingStore
	logger *zap.Logger
}

// NewAggregateHelper creates an AggregateHelper.
func NewAggregateHelper(store ListingStore, logger *zap.Logger) *AggregateHelper {
	return &AggregateHelper{store: store, logger: logger}
}

// Answer returns the aggregate sentence for the query, or "" when the query
// is not an aggregate one. Lookup failures degrade to PriceUnknownMessage.
func (h *AggregateHelper) Answer(ctx context.Context, tenantID, text string, scope access.Scope) string {
	order, ok := DetectPriceOrder(text)
	if !ok {
		return ""
	}

	var allowed []string
	if scope.Restricted() {
		allowed = append([]string{}, scope.AllowList()...)
	}

	price, found, err := h.store.PriceExtreme(ctx, tenantID, order, allowed)
	if err != nil {
		h.logger.Warn("Price lookup failed",
			zap.String("tenant_id", tenantID), zap.Stringer("order", order), zap.Error(err))
		return PriceUnknownMessage
	}
	if !found {
		return PriceUnknownMessage
	}

	label := "O imóvel mais barato disponível custa "
	if order == listing.PriceDescending {
		label = "O imóvel mais caro disponível custa "
	}
	return label + formatEuro(price) + "."
}
