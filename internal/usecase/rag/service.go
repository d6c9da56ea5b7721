// Package rag implements the hybrid retrieval and context assembly pipeline:
// filter extraction, parallel targeted and broad searches, re-ranking,
// token budgeting and answer generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/access"
	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/predicate"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/result"
	"github.com/kailas-cloud/realtorbot/internal/domain/tenant"
	"github.com/kailas-cloud/realtorbot/internal/metrics"
)

// Config holds the pipeline tunables. Zero values fall back to defaults.
type Config struct {
	Weights           Weights
	Budget            Budget
	Limits            Limits
	Retry             RetryPolicy
	MaxResponseTokens int
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		Budget:            DefaultBudget(),
		Limits:            DefaultLimits(),
		Retry:             DefaultRetryPolicy(),
		MaxResponseTokens: 1000,
	}
}

// Deps are the collaborators of the pipeline. Meter may be nil.
type Deps struct {
	Tenants   TenantProvider
	Embedder  Embedder
	Searcher  VectorSearcher
	Listings  ListingStore
	Model     ChatModel
	Tokenizer Tokenizer
	Meter     UsageMeter
}

// Request is one visitor turn.
type Request struct {
	TenantID string
	Query    chat.Query
	Scope    access.Scope
}

// Answer is the pipeline output.
type Answer struct {
	Text          string
	Matches       []result.Match
	Filters       predicate.Set
	Aggregate     string
	ContextTokens int
	HistoryTokens int
	Usage         chat.CompletionResult
}

// Service runs the chat pipeline.
type Service struct {
	deps         Deps
	cfg          Config
	extractor    *Extractor
	orchestrator *Orchestrator
	aggregate    *AggregateHelper
	budgeter     *Budgeter
	generator    *Generator
	logger       *zap.Logger
}

// New creates a pipeline Service.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Budget == (Budget{}) {
		cfg.Budget = def.Budget
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = def.Limits
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = def.Retry
	}
	if cfg.MaxResponseTokens <= 0 {
		cfg.MaxResponseTokens = def.MaxResponseTokens
	}
	return &Service{
		deps:         deps,
		cfg:          cfg,
		extractor:    NewExtractor(nil),
		orchestrator: NewOrchestrator(deps.Searcher, cfg.Limits, logger),
		aggregate:    NewAggregateHelper(deps.Listings, logger),
		budgeter:     NewBudgeter(deps.Tokenizer, cfg.Budget),
		generator:    NewGenerator(deps.Model, cfg.Retry, logger),
		logger:       logger,
	}
}

// Answer runs one turn end to end.
func (s *Service) Answer(ctx context.Context, req Request) (Answer, error) {
	start := time.Now()

	t, err := s.deps.Tenants.Get(ctx, req.TenantID)
	if err != nil {
		return Answer{}, fmt.Errorf("load tenant: %w", err)
	}
	if !t.HasPromptTemplate() {
		err = fmt.Errorf("tenant %s: %w", t.ID(), domain.ErrPromptTemplateMissing)
		s.observe(t, start, err)
		return Answer{}, err
	}
	if s.deps.Meter != nil {
		if err := s.deps.Meter.Check(ctx, t); err != nil {
			s.observe(t, start, err)
			return Answer{}, err //nolint:wrapcheck // already carries tenant and quota
		}
	}

	// a visitor closing the widget must not abort paid upstream calls
	ctx = context.WithoutCancel(ctx)

	ans, err := s.answer(ctx, t, req)
	s.observe(t, start, err)
	return ans, err
}

func (s *Service) answer(ctx context.Context, t tenant.Tenant, req Request) (Answer, error) {
	log := s.logger.With(zap.String("tenant_id", t.ID()))
	q := req.Query
	ec := q.Context()

	scope := s.resolveScope(ctx, t, req.Scope)
	scopedPrice := s.scopedPrice(ctx, t, ec)

	filters := make(predicate.Set)
	if !t.Rules().DisableFilterExtraction {
		var conflicts []predicate.Conflict
		filters, conflicts = predicate.Merge(
			s.extractor.ExtractOnboarding(q.Onboarding()),
			s.extractor.Extract(q.Text(), scopedPrice),
		)
		for _, c := range conflicts {
			log.Debug("Query filter overrides onboarding",
				zap.String("key", c.Key),
				zap.Stringer("onboarding", c.Onboarding),
				zap.Stringer("query", c.Query))
		}
	}

	aggregate := s.aggregate.Answer(ctx, t.ID(), q.Text(), scope)

	var slots Slots
	vector, err := s.embed(ctx, q.Text())
	switch {
	case err != nil:
		return Answer{}, err
	case vector != nil:
		slots = s.orchestrator.Search(ctx, SearchInput{
			Tenant:     t,
			Vector:     vector,
			Context:    ec,
			Scope:      scope,
			Predicates: filters,
		})
	}

	ranked := Rerank(slots, RankInput{
		ContextListingID:   ec.ListingID(),
		MentionedListingID: MentionedListingID(q.Text()),
		DevelopmentID:      DevelopmentFor(t, ec),
		Predicates:         filters,
	}, s.cfg.Weights)

	asm := s.budgeter.Assemble(ranked, t.Name(), aggregate, HistoryLines(q.History()))
	metrics.ContextTokens.Observe(float64(asm.ContextTokens))

	system, err := RenderPrompt(t.PromptTemplate(), PromptValues{
		Onboarding:  FormatOnboarding(q.Onboarding()),
		ChatHistory: strings.Join(asm.History, "\n"),
		Context:     asm.Context,
		Question:    q.Text(),
	})
	if err != nil {
		return Answer{}, fmt.Errorf("tenant %s: %w", t.ID(), err)
	}

	// history rendered into the template is not repeated as turns
	var turns []chat.Turn
	if !strings.Contains(t.PromptTemplate(), PlaceholderChatHistory) {
		turns = ParseTurns(asm.History)
	}

	res, err := s.generator.Generate(ctx, chat.CompletionRequest{
		System:    system,
		Turns:     turns,
		Question:  q.Text(),
		MaxTokens: s.cfg.MaxResponseTokens,
	})
	if err != nil {
		return Answer{}, err
	}

	domain.UsageFromContext(ctx).AddModelTokens(res.TotalTokens())
	metrics.ModelTokensTotal.WithLabelValues(t.ID(), "prompt").Add(float64(res.PromptTokens))
	metrics.ModelTokensTotal.WithLabelValues(t.ID(), "completion").Add(float64(res.CompletionTokens))
	if s.deps.Meter != nil {
		s.deps.Meter.Record(ctx, t, res.TotalTokens())
	}

	log.Debug("Answer generated",
		zap.Int("matches", len(ranked)),
		zap.Int("context_matches", asm.Matches),
		zap.Int("context_tokens", asm.ContextTokens),
		zap.Int("history_tokens", asm.HistoryTokens),
		zap.Int("filters", len(filters)))

	return Answer{
		Text:          res.Text,
		Matches:       ranked,
		Filters:       filters,
		Aggregate:     aggregate,
		ContextTokens: asm.ContextTokens,
		HistoryTokens: asm.HistoryTokens,
		Usage:         res,
	}, nil
}

// resolveScope loads the allow-list of a restricted caller that did not
// bring one. A failed lookup yields an empty allow-list, so nothing leaks.
func (s *Service) resolveScope(ctx context.Context, t tenant.Tenant, scope access.Scope) access.Scope {
	if !scope.Restricted() || scope.Resolved() {
		return scope
	}
	ids, err := s.deps.Listings.AssignedListingIDs(ctx, t.ID(), scope.UserID())
	if err != nil {
		s.logger.Warn("Failed to load allow-list, restricting to nothing",
			zap.String("tenant_id", t.ID()), zap.String("user_id", scope.UserID()), zap.Error(err))
		return scope.WithAllowList(nil)
	}
	return scope.WithAllowList(ids)
}

func (s *Service) scopedPrice(ctx context.Context, t tenant.Tenant, ec *chat.ExternalContext) *float64 {
	id := ec.ListingID()
	if id == "" {
		return nil
	}
	price, ok, err := s.deps.Listings.ListingPrice(ctx, t.ID(), id)
	if err != nil {
		s.logger.Warn("Failed to load scoped listing price",
			zap.String("tenant_id", t.ID()), zap.String("listing_id", id), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &price
}

// embed returns the query vector. A provider failure degrades to a nil vector
// (no search); a malformed vector is an input error.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	res, err := s.deps.Embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEmbedding) {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		s.logger.Warn("Embedding failed, answering without retrieval", zap.Error(err))
		return nil, nil //nolint:nilnil // degraded: no vector, no search
	}
	if err := domain.ValidateVector(res.Embedding); err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return res.Embedding, nil
}

func (s *Service) observe(t tenant.Tenant, start time.Time, err error) {
	metrics.ChatDuration.WithLabelValues(t.ID()).Observe(time.Since(start).Seconds())
	metrics.ChatRequestsTotal.WithLabelValues(t.ID(), statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTokenQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrPromptTemplateMissing):
		return "config_error"
	case errors.Is(err, domain.ErrModelOverloaded):
		return "overloaded"
	case errors.Is(err, domain.ErrInvalidEmbedding):
		return "invalid_input"
	default:
		return "error"
	}
}
