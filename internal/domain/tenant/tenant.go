package tenant

import (
	"errors"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain"
)

// Rules holds per-tenant retrieval and metering switches.
type Rules struct {
	// DisableFilterExtraction turns the structured filter extractor off for the tenant.
	DisableFilterExtraction bool
	// MonthlyTokenLimit caps chat model tokens per calendar month (0 = unlimited).
	MonthlyTokenLimit int64
}

// Tenant is one real-estate agency with isolated data, prompt and index.
// Immutable once built; shared read-only across requests.
type Tenant struct {
	id                   string
	name                 string
	promptTemplate       string
	indexName            string
	defaultDevelopmentID string
	rules                Rules
}

// New validates and creates a Tenant. An empty index name falls back to the
// conventional "<prefix><id>:idx" namespace.
func New(id, name, promptTemplate, indexName, defaultDevelopmentID string, rules Rules) (Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Tenant{}, errors.New("tenant id is required")
	}
	if strings.ContainsAny(id, ": \t\n") {
		return Tenant{}, errors.New("tenant id must not contain ':' or whitespace")
	}
	if rules.MonthlyTokenLimit < 0 {
		return Tenant{}, errors.New("monthly token limit must be >= 0")
	}
	if name == "" {
		name = id
	}
	if indexName == "" {
		indexName = domain.KeyPrefix + id + ":idx"
	}
	return Tenant{
		id:                   id,
		name:                 name,
		promptTemplate:       promptTemplate,
		indexName:            indexName,
		defaultDevelopmentID: defaultDevelopmentID,
		rules:                rules,
	}, nil
}

// ID returns the tenant identifier.
func (t Tenant) ID() string { return t.id }

// Name returns the display name used in prompts.
func (t Tenant) Name() string { return t.name }

// PromptTemplate returns the system prompt template (may be empty).
func (t Tenant) PromptTemplate() string { return t.promptTemplate }

// HasPromptTemplate reports whether a non-blank template is configured.
func (t Tenant) HasPromptTemplate() bool { return strings.TrimSpace(t.promptTemplate) != "" }

// IndexName returns the vector index namespace.
func (t Tenant) IndexName() string { return t.indexName }

// DefaultDevelopmentID returns the development used when the visitor has no context.
func (t Tenant) DefaultDevelopmentID() string { return t.defaultDevelopmentID }

// Rules returns the tenant rules.
func (t Tenant) Rules() Rules { return t.rules }
