package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/realtorbot/internal/domain/access"
	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/filter"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/predicate"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/result"
	"github.com/kailas-cloud/realtorbot/internal/domain/tenant"
	"github.com/kailas-cloud/realtorbot/internal/metrics"
)

// Search slot names, used in logs and metrics.
const (
	SlotListing     = "listing"
	SlotDevelopment = "development"
	SlotBroad       = "broad"
)

// Limits are the topK values of the three hybrid searches.
type Limits struct {
	Listing     int
	Development int
	Broad       int
}

// DefaultLimits returns the standard slot sizes.
func DefaultLimits() Limits {
	return Limits{Listing: 10, Development: 10, Broad: 50}
}

// Slots holds the raw results of the three searches.
type Slots struct {
	Listing     []result.Match
	Development []result.Match
	Broad       []result.Match
}

// SearchInput is what the orchestrator needs for one turn.
type SearchInput struct {
	Tenant     tenant.Tenant
	Vector     []float32
	Context    *chat.ExternalContext
	Scope      access.Scope
	Predicates predicate.Set
}

// Orchestrator fans a query out into targeted and broad searches.
type Orchestrator struct {
	searcher VectorSearcher
	limits   Limits
	logger   *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(searcher VectorSearcher, limits Limits, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{searcher: searcher, limits: limits, logger: logger}
}

// DevelopmentFor returns the development a turn is scoped to: the external
// context development, else the tenant default.
func DevelopmentFor(t tenant.Tenant, ec *chat.ExternalContext) string {
	if id := ec.DevelopmentID(); id != "" {
		return id
	}
	return t.DefaultDevelopmentID()
}

// Search runs the listing, development and broad queries concurrently and
// waits for all of them. A failed query leaves its slot empty; Search itself
// never fails because of the index.
func (o *Orchestrator) Search(ctx context.Context, in SearchInput) Slots {
	var slots Slots
	if in.Scope.Restricted() && len(in.Scope.AllowList()) == 0 {
		for _, s := range []string{SlotListing, SlotDevelopment, SlotBroad} {
			metrics.SearchSlotsTotal.WithLabelValues(s, "skipped").Inc()
		}
		return slots
	}

	base, err := o.baseConditions(in)
	if err != nil {
		o.logger.Warn("Invalid base filter, skipping search",
			zap.String("tenant_id", in.Tenant.ID()), zap.Error(err))
		return slots
	}

	g, gctx := errgroup.WithContext(ctx)

	if id := in.Context.ListingID(); id != "" {
		g.Go(func() error {
			slots.Listing = o.run(gctx, in, SlotListing, base, listing.FieldListingID, id, nil, o.limits.Listing)
			return nil
		})
	} else {
		metrics.SearchSlotsTotal.WithLabelValues(SlotListing, "skipped").Inc()
	}

	if id := DevelopmentFor(in.Tenant, in.Context); id != "" {
		g.Go(func() error {
			slots.Development = o.run(
				gctx, in, SlotDevelopment, base, listing.FieldDevelopmentID, id, nil, o.limits.Development)
			return nil
		})
	} else {
		metrics.SearchSlotsTotal.WithLabelValues(SlotDevelopment, "skipped").Inc()
	}

	g.Go(func() error {
		slots.Broad = o.run(gctx, in, SlotBroad, base, "", "", in.Predicates, o.limits.Broad)
		return nil
	})

	// goroutines report failures through empty slots, never through the group
	_ = g.Wait()
	return slots
}

// baseConditions are applied to every query: tenant isolation plus the
// allow-list of a restricted caller.
func (o *Orchestrator) baseConditions(in SearchInput) ([]filter.Condition, error) {
	tc, err := filter.NewMatch(listing.FieldTenantID, in.Tenant.ID())
	if err != nil {
		return nil, fmt.Errorf("tenant filter: %w", err)
	}
	conds := []filter.Condition{tc}
	if in.Scope.Restricted() {
		ac, err := filter.NewMatchAny(listing.FieldListingID, in.Scope.AllowList())
		if err != nil {
			return nil, fmt.Errorf("allow-list filter: %w", err)
		}
		conds = append(conds, ac)
	}
	return conds, nil
}

func (o *Orchestrator) run(
	ctx context.Context, in SearchInput, slot string,
	base []filter.Condition, key, value string, preds predicate.Set, topK int,
) []result.Match {
	log := o.logger.With(zap.String("tenant_id", in.Tenant.ID()), zap.String("slot", slot))

	must := append([]filter.Condition(nil), base...)
	if key != "" {
		c, err := filter.NewMatch(key, value)
		if err != nil {
			log.Warn("Invalid targeted filter", zap.Error(err))
			metrics.SearchSlotsTotal.WithLabelValues(slot, "error").Inc()
			return nil
		}
		must = append(must, c)
	}
	if len(preds) > 0 {
		conds, err := preds.Conditions()
		if err != nil {
			log.Warn("Invalid predicate filter", zap.Error(err))
			metrics.SearchSlotsTotal.WithLabelValues(slot, "error").Inc()
			return nil
		}
		must = append(must, conds...)
	}

	expr, err := filter.NewExpression(must)
	if err != nil {
		log.Warn("Invalid filter expression", zap.Error(err))
		metrics.SearchSlotsTotal.WithLabelValues(slot, "error").Inc()
		return nil
	}

	matches, err := o.searcher.SearchKNN(ctx, in.Tenant.IndexName(), in.Vector, expr, topK)
	if err != nil {
		log.Warn("Search slot failed", zap.Error(err))
		metrics.SearchSlotsTotal.WithLabelValues(slot, "error").Inc()
		return nil
	}
	metrics.SearchSlotsTotal.WithLabelValues(slot, "ok").Inc()
	log.Debug("Search slot done", zap.Int("matches", len(matches)))
	return matches
}
