package tenant

import "testing"

func TestNew_Defaults(t *testing.T) {
	tn, err := New("acme", "", "Olá {question}", "", "", Rules{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.Name() != "acme" {
		t.Errorf("expected name fallback to id, got %q", tn.Name())
	}
	if tn.IndexName() != "realtorbot:acme:idx" {
		t.Errorf("unexpected index name: %q", tn.IndexName())
	}
	if !tn.HasPromptTemplate() {
		t.Error("expected template to be present")
	}
}

func TestNew_Explicit(t *testing.T) {
	tn, err := New("acme", "ACME Imobiliária", "", "custom:idx", "dev-1", Rules{MonthlyTokenLimit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.IndexName() != "custom:idx" {
		t.Errorf("unexpected index name: %q", tn.IndexName())
	}
	if tn.DefaultDevelopmentID() != "dev-1" {
		t.Errorf("unexpected default development: %q", tn.DefaultDevelopmentID())
	}
	if tn.HasPromptTemplate() {
		t.Error("expected empty template")
	}
	if tn.Rules().MonthlyTokenLimit != 1000 {
		t.Errorf("unexpected limit: %d", tn.Rules().MonthlyTokenLimit)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		rules Rules
	}{
		{"empty id", "  ", Rules{}},
		{"colon in id", "a:b", Rules{}},
		{"negative limit", "acme", Rules{MonthlyTokenLimit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.id, "", "", "", "", tt.rules); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
