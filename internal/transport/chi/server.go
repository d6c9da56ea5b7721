package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/access"
	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
	"github.com/kailas-cloud/realtorbot/internal/domain/tenant"
	domusage "github.com/kailas-cloud/realtorbot/internal/domain/usage"
	"github.com/kailas-cloud/realtorbot/internal/logger"
	healthuc "github.com/kailas-cloud/realtorbot/internal/usecase/health"
	"github.com/kailas-cloud/realtorbot/internal/usecase/rag"
)

// Caller identity headers set by the upstream gateway.
const (
	HeaderUserID          = "X-User-ID"
	HeaderUserRole        = "X-User-Role"
	HeaderAllowedListings = "X-Allowed-Listings"
	HeaderModelTokens     = "X-Model-Tokens"
	HeaderEmbeddingTokens = "X-Embedding-Tokens"
)

// ChatService answers one chat turn.
type ChatService interface {
	Answer(ctx context.Context, req rag.Request) (rag.Answer, error)
}

// TenantReader loads tenants for usage reports.
type TenantReader interface {
	Get(ctx context.Context, id string) (tenant.Tenant, error)
}

// UsageReporter builds tenant usage reports.
type UsageReporter interface {
	Report(ctx context.Context, t tenant.Tenant, period domusage.Period) (domusage.Report, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API of the chatbot.
type Server struct {
	chat          ChatService
	tenants       TenantReader
	usage         UsageReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. usage may be nil.
func NewServer(
	chatSvc ChatService,
	tenants TenantReader,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:    chatSvc,
		tenants: tenants,
		usage:   usage,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidRole, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidEmbedding, http.StatusBadRequest, ErrorCodeInvalidEmbedding),
		sentinelHandler(domain.ErrTenantNotFound, http.StatusNotFound, ErrorCodeTenantNotFound),
		sentinelHandler(domain.ErrTokenQuotaExceeded, http.StatusPaymentRequired, ErrorCodeTokenQuotaExceeded),
		sentinelHandler(domain.ErrModelOverloaded, http.StatusServiceUnavailable, ErrorCodeModelOverloaded),
		sentinelHandler(domain.ErrModelFailure, http.StatusBadGateway, ErrorCodeModelFailure),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrPromptTemplateMissing,
			http.StatusInternalServerError, ErrorCodeConfigError),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Post("/chat", s.Chat)
		r.Get("/usage", s.GetUsage)
	})
}

// Chat handles POST /v1/tenants/{tenantID}/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := bindTenantID(w, r)
	if !ok {
		return
	}

	var body ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	scope, err := scopeFromHeaders(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	q, err := queryFromRequest(&body)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ctx = logger.WithTenant(ctx, tenantID)

	ans, err := s.chat.Answer(ctx, rag.Request{TenantID: tenantID, Query: q, Scope: scope})
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	conversationID := body.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	writeJSON(w, http.StatusOK, chatResponse(ans, conversationID))
}

// GetUsage handles GET /v1/tenants/{tenantID}/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := bindTenantID(w, r)
	if !ok {
		return
	}

	var periodParam *string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &periodParam); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter period")
		return
	}
	var raw string
	if periodParam != nil {
		raw = *periodParam
	}
	period, err := domusage.ParsePeriod(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	if s.usage == nil {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "usage metering is disabled")
		return
	}

	t, err := s.tenants.Get(r.Context(), tenantID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	report, err := s.usage.Report(r.Context(), t, period)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, usageResponse(report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func bindTenantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var tenantID string
	err := runtime.BindStyledParameterWithOptions("simple", "tenantID", chi.URLParam(r, "tenantID"), &tenantID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || tenantID == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter tenantID")
		return "", false
	}
	return tenantID, true
}

// scopeFromHeaders reads the caller identity. An X-Allowed-Listings header,
// even an empty one, is taken as the resolved allow-list.
func scopeFromHeaders(r *http.Request) (access.Scope, error) {
	role, err := access.ParseRole(r.Header.Get(HeaderUserRole))
	if err != nil {
		return access.Scope{}, err //nolint:wrapcheck // already carries the sentinel
	}
	scope := access.NewScope(r.Header.Get(HeaderUserID), role)

	values, present := r.Header[http.CanonicalHeaderKey(HeaderAllowedListings)]
	if !present {
		return scope, nil
	}
	var ids []string
	if len(values) > 0 && values[0] != "" {
		err := runtime.BindStyledParameterWithOptions("simple", HeaderAllowedListings, values[0], &ids,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationHeader, Explode: false})
		if err != nil {
			return access.Scope{}, errors.Join(domain.ErrInvalidQuery, err)
		}
	}
	return scope.WithAllowList(ids), nil
}

func queryFromRequest(body *ChatRequest) (chat.Query, error) {
	var ec *chat.ExternalContext
	if body.Context != nil {
		kind, err := chat.ParseContextKind(body.Context.Type)
		if err != nil {
			return chat.Query{}, err //nolint:wrapcheck // already carries the sentinel
		}
		c, err := chat.NewExternalContext(kind, body.Context.Value)
		if err != nil {
			return chat.Query{}, err //nolint:wrapcheck // already carries the sentinel
		}
		ec = &c
	}
	return chat.NewQuery(body.Message, ec, body.History, body.Onboarding) //nolint:wrapcheck // already carries the sentinel
}

func chatResponse(ans rag.Answer, conversationID string) ChatResponse {
	resp := ChatResponse{
		Answer:         ans.Text,
		ConversationID: conversationID,
		Matches:        make([]ChatMatch, len(ans.Matches)),
	}
	for i, m := range ans.Matches {
		item := ChatMatch{ID: m.ID(), Score: m.Score()}
		if id := m.ListingID(); id != "" {
			item.ListingID = &id
		}
		if id := m.DevelopmentID(); id != "" {
			item.DevelopmentID = &id
		}
		resp.Matches[i] = item
	}
	if len(ans.Filters) > 0 {
		resp.Filters = make(map[string]string, len(ans.Filters))
		for k, p := range ans.Filters {
			resp.Filters[k] = p.String()
		}
	}
	if ans.Aggregate != "" {
		agg := ans.Aggregate
		resp.Aggregate = &agg
	}
	return resp
}

func usageResponse(report domusage.Report) UsageResponse {
	resp := UsageResponse{
		TenantID:      report.TenantID(),
		Period:        string(report.Period()),
		PeriodStartAt: report.PeriodStart(),
		PeriodEndAt:   report.PeriodEnd(),
		TokensUsed:    report.Used(),
		IsExhausted:   report.Exhausted(),
	}
	if report.Limit() > 0 {
		limit, remaining := report.Limit(), report.Remaining()
		resp.TokensLimit = &limit
		resp.TokensRemaining = &remaining
	}
	return resp
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage == nil {
		return
	}
	if usage.ModelTokens > 0 {
		w.Header().Set(HeaderModelTokens, strconv.Itoa(usage.ModelTokens))
	}
	if usage.Embedded {
		w.Header().Set(HeaderEmbeddingTokens, strconv.Itoa(usage.EmbeddingTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidRole,
		domain.ErrInvalidEmbedding,
		domain.ErrTenantNotFound,
		domain.ErrTokenQuotaExceeded,
		domain.ErrModelOverloaded,
		domain.ErrModelFailure,
		domain.ErrEmbeddingProviderError,
		domain.ErrPromptTemplateMissing,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
