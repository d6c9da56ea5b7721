package rag

import (
	"regexp"
	"strconv"

	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/predicate"
)

// RuleInput is the per-query state a rule may read besides its match.
type RuleInput struct {
	// ScopedPrice is the price of the listing the visitor is looking at, if known.
	ScopedPrice *float64
}

// Rule turns one phrase pattern into a predicate on Key.
// Build returns false when the match does not yield a usable predicate.
type Rule struct {
	Name    string
	Key     string
	Pattern *regexp.Regexp
	Build   func(m []string, in RuleInput) (predicate.Predicate, bool)
}

// DefaultRules returns the Portuguese extraction table. Rules are applied in
// order; the first rule that produces a predicate for a key wins, so the
// comparative bedroom rules sit above the exact ones.
func DefaultRules() []Rule {
	rules := []Rule{
		{
			Name:    "bedrooms_more_than",
			Key:     listing.FieldBedrooms,
			Pattern: regexp.MustCompile(`mais de (\d+)\s*quartos?`),
			Build:   intPredicate(predicate.Gt, 0),
		},
		{
			Name:    "bedrooms_less_than",
			Key:     listing.FieldBedrooms,
			Pattern: regexp.MustCompile(`menos de (\d+)\s*quartos?`),
			Build:   intPredicate(predicate.Lt, 0),
		},
		{
			Name:    "bedrooms_at_least",
			Key:     listing.FieldBedrooms,
			Pattern: regexp.MustCompile(`(?:pelo menos|no m[ií]nimo)\s*(\d+)\s*quartos?`),
			Build:   intPredicate(predicate.Gt, -1),
		},
		{
			Name:    "typology",
			Key:     listing.FieldBedrooms,
			Pattern: regexp.MustCompile(`\bt(\d+)\b`),
			Build:   intPredicate(predicate.Eq, 0),
		},
		{
			Name:    "bedrooms_exact",
			Key:     listing.FieldBedrooms,
			Pattern: regexp.MustCompile(`(\d+)\s*quartos?`),
			Build:   intPredicate(predicate.Eq, 0),
		},
		{
			Name:    "bathrooms_exact",
			Key:     listing.FieldBathrooms,
			Pattern: regexp.MustCompile(`(\d+)\s*(?:casas? de banho|wc)`),
			Build:   intPredicate(predicate.Eq, 0),
		},
		{
			Name:    "area_ceiling",
			Key:     listing.FieldArea,
			Pattern: regexp.MustCompile(`(?:menos de|até|abaixo de|máximo(?: de)?)\s*(\d[\d.,]*)\s*(?:m2|m²|metros)`),
			Build: func(m []string, _ RuleInput) (predicate.Predicate, bool) {
				v, ok := parseNumber(m[1], "")
				return predicate.Lt(v), ok
			},
		},
		{
			Name: "price_ceiling",
			Key:  listing.FieldPrice,
			Pattern: regexp.MustCompile(
				`(?:menos de|até|abaixo de|máximo(?: de)?|orçamento de)\s*(\d[\d.,]*)(?:\s*(k|mil)\b)?\s*(€|euros?|eur)?`),
			Build: func(m []string, _ RuleInput) (predicate.Predicate, bool) {
				// a bare number is a count of something else ("até 3 quartos")
				if m[2] == "" && m[3] == "" {
					return predicate.Predicate{}, false
				}
				v, ok := parseNumber(m[1], m[2])
				return predicate.Lt(v), ok && v > 0
			},
		},
		{
			Name:    "cheaper_than_scoped",
			Key:     listing.FieldPrice,
			Pattern: regexp.MustCompile(`mais barat[oa]s?`),
			Build:   scopedPricePredicate(predicate.Lt),
		},
		{
			Name:    "dearer_than_scoped",
			Key:     listing.FieldPrice,
			Pattern: regexp.MustCompile(`mais car[oa]s?\b`),
			Build:   scopedPricePredicate(predicate.Gt),
		},
	}
	return append(rules, amenityRules()...)
}

func amenityRules() []Rule {
	amenities := []struct {
		name, key, pattern string
	}{
		{"pool", listing.FieldPool, `piscina`},
		{"garden", listing.FieldGarden, `jardim`},
		{"garage", listing.FieldGarage, `garagem|estacionamento|parqueamento`},
		{"elevator", listing.FieldElevator, `elevador`},
		{"balcony", listing.FieldBalcony, `varanda`},
		{"terrace", listing.FieldTerrace, `terraço|terraco`},
		{"gym", listing.FieldGym, `ginásio|ginasio`},
		{"ev_charging", listing.FieldEVCharging, `carregador|carregamento el[ée]trico`},
		{"pets", listing.FieldPetsAllowed, `animais|\bpets?\b|animal de estimação`},
	}
	rules := make([]Rule, 0, len(amenities))
	for _, a := range amenities {
		rules = append(rules, Rule{
			Name:    a.name,
			Key:     a.key,
			Pattern: regexp.MustCompile(a.pattern),
			Build: func([]string, RuleInput) (predicate.Predicate, bool) {
				return predicate.EqBool(true), true
			},
		})
	}
	return rules
}

func intPredicate(mk func(float64) predicate.Predicate, offset int) func([]string, RuleInput) (predicate.Predicate, bool) {
	return func(m []string, _ RuleInput) (predicate.Predicate, bool) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n+offset < 0 {
			return predicate.Predicate{}, false
		}
		return mk(float64(n + offset)), true
	}
}

func scopedPricePredicate(mk func(float64) predicate.Predicate) func([]string, RuleInput) (predicate.Predicate, bool) {
	return func(_ []string, in RuleInput) (predicate.Predicate, bool) {
		if in.ScopedPrice == nil || *in.ScopedPrice <= 0 {
			return predicate.Predicate{}, false
		}
		return mk(*in.ScopedPrice), true
	}
}
