package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/predicate"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/result"
	"github.com/kailas-cloud/realtorbot/internal/domain/tenant"
	domusage "github.com/kailas-cloud/realtorbot/internal/domain/usage"
	healthuc "github.com/kailas-cloud/realtorbot/internal/usecase/health"
	"github.com/kailas-cloud/realtorbot/internal/usecase/rag"
)

// --- Mocks ---

type mockChat struct {
	answer  rag.Answer
	err     error
	lastReq rag.Request
	called  bool
}

func (m *mockChat) Answer(ctx context.Context, req rag.Request) (rag.Answer, error) {
	m.called = true
	m.lastReq = req
	u := domain.UsageFromContext(ctx)
	u.AddEmbeddingTokens(3)
	if m.err != nil {
		return rag.Answer{}, m.err
	}
	u.AddModelTokens(15)
	return m.answer, nil
}

type mockTenants struct{}

func (mockTenants) Get(_ context.Context, id string) (tenant.Tenant, error) {
	if id != "acme" {
		return tenant.Tenant{}, domain.ErrTenantNotFound
	}
	return tenant.New("acme", "Acme", "t", "", "", tenant.Rules{MonthlyTokenLimit: 1000})
}

type mockUsage struct {
	lastPeriod domusage.Period
}

func (m *mockUsage) Report(_ context.Context, t tenant.Tenant, p domusage.Period) (domusage.Report, error) {
	m.lastPeriod = p
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return domusage.NewReport(t.ID(), p, start, start.AddDate(0, 1, 0), 400, t.Rules().MonthlyTokenLimit), nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestRouter(c *mockChat, u *mockUsage, h mockHealth) http.Handler {
	s := NewServer(c, mockTenants{}, u, h, zap.NewNop())
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestChat_Success(t *testing.T) {
	c := &mockChat{answer: rag.Answer{
		Text: "Temos um T2 em Lisboa.",
		Matches: []result.Match{
			result.New("realtorbot:acme:L1:0", 1.8, "T2", map[string]string{listing.FieldListingID: "L1"}, nil),
		},
		Filters:   predicate.Set{listing.FieldPrice: predicate.Lt(300000)},
		Aggregate: "O imóvel mais barato disponível custa 250.000 €.",
	}}
	h := newTestRouter(c, &mockUsage{}, mockHealth{})

	body := `{"message":"T2 até 300.000€","context":{"type":"listing","value":"L1"},"history":["user: olá"]}`
	rr := doRequest(h, http.MethodPost, "/v1/tenants/acme/chat", body, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get(HeaderModelTokens); got != "15" {
		t.Errorf("model tokens header = %q", got)
	}
	if got := rr.Header().Get(HeaderEmbeddingTokens); got != "3" {
		t.Errorf("embedding tokens header = %q", got)
	}

	var resp ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Temos um T2 em Lisboa." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.ConversationID == "" {
		t.Error("expected a generated conversation id")
	}
	if len(resp.Matches) != 1 || resp.Matches[0].ListingID == nil || *resp.Matches[0].ListingID != "L1" {
		t.Errorf("unexpected matches: %+v", resp.Matches)
	}
	if resp.Matches[0].DevelopmentID != nil {
		t.Error("expected no development id")
	}
	if resp.Filters[listing.FieldPrice] != "lt 300000" {
		t.Errorf("filters = %v", resp.Filters)
	}
	if resp.Aggregate == nil {
		t.Error("expected aggregate")
	}

	if c.lastReq.TenantID != "acme" {
		t.Errorf("tenant = %q", c.lastReq.TenantID)
	}
	if c.lastReq.Query.Context().ListingID() != "L1" {
		t.Error("expected listing context")
	}
	if len(c.lastReq.Query.History()) != 1 {
		t.Error("expected history to be forwarded")
	}
	if c.lastReq.Scope.Restricted() {
		t.Error("visitor must not be restricted")
	}
}

func TestChat_EchoesConversationID(t *testing.T) {
	h := newTestRouter(&mockChat{}, &mockUsage{}, mockHealth{})
	rr := doRequest(h, http.MethodPost, "/v1/tenants/acme/chat", `{"message":"olá","conversation_id":"conv-1"}`, nil)

	var resp ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ConversationID != "conv-1" {
		t.Errorf("conversation id = %q", resp.ConversationID)
	}
	if resp.Matches == nil {
		t.Error("matches must encode as an empty list")
	}
}

func TestChat_ScopeHeaders(t *testing.T) {
	c := &mockChat{}
	h := newTestRouter(c, &mockUsage{}, mockHealth{})

	rr := doRequest(h, http.MethodPost, "/v1/tenants/acme/chat", `{"message":"olá"}`, map[string]string{
		HeaderUserID:          "agent-7",
		HeaderUserRole:        "agent",
		HeaderAllowedListings: "L1,L2",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	scope := c.lastReq.Scope
	if !scope.Restricted() || !scope.Resolved() || scope.UserID() != "agent-7" {
		t.Errorf("unexpected scope: %+v", scope)
	}
	if got := scope.AllowList(); len(got) != 2 || got[0] != "L1" || got[1] != "L2" {
		t.Errorf("allow-list = %v", got)
	}
}

func TestChat_AgentWithoutAllowListIsUnresolved(t *testing.T) {
	c := &mockChat{}
	h := newTestRouter(c, &mockUsage{}, mockHealth{})

	doRequest(h, http.MethodPost, "/v1/tenants/acme/chat", `{"message":"olá"}`, map[string]string{
		HeaderUserID:   "agent-7",
		HeaderUserRole: "agent",
	})
	if c.lastReq.Scope.Resolved() {
		t.Error("allow-list must be looked up by the pipeline")
	}
}

func TestChat_BadInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
		code    ErrorCode
	}{
		{"malformed body", `{"message":`, nil, ErrorCodeBadRequest},
		{"empty message", `{"message":"   "}`, nil, ErrorCodeValidationFailed},
		{"unknown context type", `{"message":"olá","context":{"type":"city","value":"x"}}`, nil, ErrorCodeValidationFailed},
		{"empty context value", `{"message":"olá","context":{"type":"listing","value":""}}`, nil, ErrorCodeValidationFailed},
		{"unknown role", `{"message":"olá"}`, map[string]string{HeaderUserRole: "owner"}, ErrorCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockChat{}
			h := newTestRouter(c, &mockUsage{}, mockHealth{})
			rr := doRequest(h, http.MethodPost, "/v1/tenants/acme/chat", tt.body, tt.headers)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Code, tt.code)
			}
			if c.called {
				t.Error("pipeline must not run on bad input")
			}
		})
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{domain.ErrTenantNotFound, http.StatusNotFound, ErrorCodeTenantNotFound},
		{domain.ErrInvalidEmbedding, http.StatusBadRequest, ErrorCodeInvalidEmbedding},
		{domain.ErrPromptTemplateMissing, http.StatusInternalServerError, ErrorCodeConfigError},
		{domain.ErrTokenQuotaExceeded, http.StatusPaymentRequired, ErrorCodeTokenQuotaExceeded},
		{domain.ErrModelOverloaded, http.StatusServiceUnavailable, ErrorCodeModelOverloaded},
		{domain.ErrModelFailure, http.StatusBadGateway, ErrorCodeModelFailure},
		{errors.New("socket closed"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			c := &mockChat{err: fmt.Errorf("pipeline: %w", tt.err)}
			h := newTestRouter(c, &mockUsage{}, mockHealth{})
			rr := doRequest(h, http.MethodPost, "/v1/tenants/acme/chat", `{"message":"olá"}`, nil)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "pipeline") {
				t.Errorf("message leaks internals: %q", resp.Message)
			}
			if rr.Header().Get(HeaderEmbeddingTokens) != "3" {
				t.Error("embedding tokens are reported even on failure")
			}
		})
	}
}

func TestGetUsage(t *testing.T) {
	u := &mockUsage{}
	h := newTestRouter(&mockChat{}, u, mockHealth{})

	rr := doRequest(h, http.MethodGet, "/v1/tenants/acme/usage?period=month", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp UsageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TenantID != "acme" || resp.Period != "month" || resp.TokensUsed != 400 {
		t.Errorf("unexpected usage: %+v", resp)
	}
	if resp.TokensLimit == nil || *resp.TokensLimit != 1000 || resp.TokensRemaining == nil || *resp.TokensRemaining != 600 {
		t.Errorf("unexpected limits: %+v", resp)
	}
	if resp.IsExhausted {
		t.Error("quota is not exhausted")
	}
}

func TestGetUsage_DefaultsAndErrors(t *testing.T) {
	u := &mockUsage{}
	h := newTestRouter(&mockChat{}, u, mockHealth{})

	if rr := doRequest(h, http.MethodGet, "/v1/tenants/acme/usage", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if u.lastPeriod != domusage.PeriodMonth {
		t.Errorf("default period = %q", u.lastPeriod)
	}

	if rr := doRequest(h, http.MethodGet, "/v1/tenants/acme/usage?period=total", "", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown period: expected 400, got %d", rr.Code)
	}
	if rr := doRequest(h, http.MethodGet, "/v1/tenants/ghost/usage", "", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown tenant: expected 404, got %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		code   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := newTestRouter(&mockChat{}, &mockUsage{}, mockHealth{report: healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{"valkey": healthuc.CheckOK},
			}})
			rr := doRequest(h, http.MethodGet, "/health", "", nil)
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.status) || resp.Checks["valkey"] != "ok" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}
