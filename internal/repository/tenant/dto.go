package tenant

import (
	"fmt"

	"gopkg.in/yaml.v3"

	domtenant "github.com/kailas-cloud/realtorbot/internal/domain/tenant"
)

// Record is the stored (and operator-editable) form of a tenant.
type Record struct {
	ID                      string `json:"id" yaml:"id"`
	Name                    string `json:"name,omitempty" yaml:"name,omitempty"`
	PromptTemplate          string `json:"prompt_template" yaml:"prompt_template"`
	IndexName               string `json:"index_name,omitempty" yaml:"index_name,omitempty"`
	DefaultDevelopmentID    string `json:"default_development_id,omitempty" yaml:"default_development_id,omitempty"`
	DisableFilterExtraction bool   `json:"disable_filter_extraction,omitempty" yaml:"disable_filter_extraction,omitempty"`
	MonthlyTokenLimit       int64  `json:"monthly_token_limit,omitempty" yaml:"monthly_token_limit,omitempty"`
}

// ToDomain validates the record into a Tenant.
func (r Record) ToDomain() (domtenant.Tenant, error) {
	return domtenant.New(r.ID, r.Name, r.PromptTemplate, r.IndexName, r.DefaultDevelopmentID, domtenant.Rules{
		DisableFilterExtraction: r.DisableFilterExtraction,
		MonthlyTokenLimit:       r.MonthlyTokenLimit,
	})
}

// FromDomain converts a Tenant into its stored form.
func FromDomain(t domtenant.Tenant) Record {
	return Record{
		ID:                      t.ID(),
		Name:                    t.Name(),
		PromptTemplate:          t.PromptTemplate(),
		IndexName:               t.IndexName(),
		DefaultDevelopmentID:    t.DefaultDevelopmentID(),
		DisableFilterExtraction: t.Rules().DisableFilterExtraction,
		MonthlyTokenLimit:       t.Rules().MonthlyTokenLimit,
	}
}

// DecodeYAML parses an operator-supplied tenant file.
func DecodeYAML(data []byte) (domtenant.Tenant, error) {
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return domtenant.Tenant{}, fmt.Errorf("parse tenant yaml: %w", err)
	}
	t, err := r.ToDomain()
	if err != nil {
		return domtenant.Tenant{}, fmt.Errorf("invalid tenant: %w", err)
	}
	return t, nil
}
