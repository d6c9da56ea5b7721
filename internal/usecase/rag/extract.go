package rag

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain/search/predicate"
)

// Extractor derives structured predicates from free text with a rule table.
// Extraction never fails: text without recognised phrasing yields an empty set.
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an Extractor. A nil table means DefaultRules.
func NewExtractor(rules []Rule) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Extract applies the rule table to text. scopedPrice is the price of the
// listing in the external context, used by relative price phrasing.
func (e *Extractor) Extract(text string, scopedPrice *float64) predicate.Set {
	out := make(predicate.Set)
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return out
	}
	in := RuleInput{ScopedPrice: scopedPrice}

	for _, r := range e.rules {
		if _, done := out[r.Key]; done {
			continue
		}
		for _, m := range r.Pattern.FindAllStringSubmatch(text, -1) {
			if p, ok := r.Build(m, in); ok {
				out[r.Key] = p
				break
			}
		}
	}
	return out
}

// ExtractOnboarding runs the table over onboarding answers, joined in key order.
func (e *Extractor) ExtractOnboarding(answers map[string]string) predicate.Set {
	if len(answers) == 0 {
		return make(predicate.Set)
	}
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(answers[k]); v != "" {
			values = append(values, v)
		}
	}
	// onboarding answers carry no scoped listing
	return e.Extract(strings.Join(values, ". "), nil)
}
