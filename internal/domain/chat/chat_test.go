package chat

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/realtorbot/internal/domain"
)

func TestParseContextKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ContextKind
		wantErr bool
	}{
		{"listing", ContextListing, false},
		{" Development ", ContextDevelopment, false},
		{"building", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseContextKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseContextKind(%q) error = %v", tt.in, err)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseContextKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExternalContext_IDs(t *testing.T) {
	lc, err := NewExternalContext(ContextListing, "L1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.ListingID() != "L1" || lc.DevelopmentID() != "" {
		t.Errorf("unexpected ids: listing=%q development=%q", lc.ListingID(), lc.DevelopmentID())
	}

	dc, err := NewExternalContext(ContextDevelopment, "D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc.ListingID() != "" || dc.DevelopmentID() != "D1" {
		t.Errorf("unexpected ids: listing=%q development=%q", dc.ListingID(), dc.DevelopmentID())
	}

	var none *ExternalContext
	if none.ListingID() != "" || none.DevelopmentID() != "" {
		t.Error("nil context must yield empty ids")
	}
}

func TestNewExternalContext_Invalid(t *testing.T) {
	if _, err := NewExternalContext(ContextListing, " "); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := NewExternalContext(ContextKind(9), "x"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNewQuery(t *testing.T) {
	q, err := NewQuery("  procuro T2  ", nil, []string{"user: olá"}, map[string]string{"budget": "300000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text() != "procuro T2" {
		t.Errorf("expected trimmed text, got %q", q.Text())
	}
	if len(q.History()) != 1 || q.Onboarding()["budget"] != "300000" {
		t.Error("history or onboarding lost")
	}

	if _, err := NewQuery("   ", nil, nil, nil); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestTurn_Line(t *testing.T) {
	if got := (Turn{Role: RoleAssistant, Text: "Olá!"}).Line(); got != "assistant: Olá!" {
		t.Errorf("unexpected line: %q", got)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("USER"); err != nil || r != RoleUser {
		t.Errorf("ParseRole(USER) = %v, %v", r, err)
	}
	if _, err := ParseRole("system"); err == nil {
		t.Error("expected error for system role")
	}
}

func TestCompletionResult_TotalTokens(t *testing.T) {
	r := CompletionResult{PromptTokens: 100, CompletionTokens: 20}
	if r.TotalTokens() != 120 {
		t.Errorf("expected 120, got %d", r.TotalTokens())
	}
}
