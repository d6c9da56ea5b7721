// Package predicate models the structured filters extracted from a visitor
// query or onboarding answers.
package predicate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain/search/filter"
)

// Op is the comparison a predicate applies.
type Op int

const (
	// OpEq is equality (numeric or boolean).
	OpEq Op = iota + 1
	// OpLt is strictly less than.
	OpLt
	// OpGt is strictly greater than.
	OpGt
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpLt:
		return "lt"
	case OpGt:
		return "gt"
	default:
		return "unknown"
	}
}

// Predicate is one field constraint.
type Predicate struct {
	op     Op
	number float64
	flag   bool
	isBool bool
}

// Eq creates a numeric equality predicate.
func Eq(v float64) Predicate { return Predicate{op: OpEq, number: v} }

// EqBool creates a boolean equality predicate.
func EqBool(b bool) Predicate { return Predicate{op: OpEq, flag: b, isBool: true} }

// Lt creates a strictly-less-than predicate.
func Lt(v float64) Predicate { return Predicate{op: OpLt, number: v} }

// Gt creates a strictly-greater-than predicate.
func Gt(v float64) Predicate { return Predicate{op: OpGt, number: v} }

// Op returns the comparison.
func (p Predicate) Op() Op { return p.op }

// Number returns the numeric operand.
func (p Predicate) Number() float64 { return p.number }

// Bool returns the boolean operand.
func (p Predicate) Bool() bool { return p.flag }

// IsBool reports whether the operand is boolean.
func (p Predicate) IsBool() bool { return p.isBool }

func (p Predicate) String() string {
	if p.isBool {
		return strconv.FormatBool(p.flag)
	}
	v := strconv.FormatFloat(p.number, 'f', -1, 64)
	if p.op == OpEq {
		return v
	}
	return p.op.String() + " " + v
}

// Metadata is the per-match view predicates are evaluated against.
type Metadata interface {
	Numeric(key string) (float64, bool)
	Tag(key string) (string, bool)
}

// Satisfied reports whether a metadata value under key meets the predicate.
func (p Predicate) Satisfied(md Metadata, key string) bool {
	if p.isBool {
		if s, ok := md.Tag(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			return err == nil && b == p.flag
		}
		if n, ok := md.Numeric(key); ok {
			return (n != 0) == p.flag && (n == 0 || n == 1)
		}
		return false
	}
	n, ok := md.Numeric(key)
	if !ok || math.IsNaN(n) {
		return false
	}
	switch p.op {
	case OpEq:
		return n == p.number
	case OpLt:
		return n < p.number
	case OpGt:
		return n > p.number
	default:
		return false
	}
}

// Set maps a field name to its predicate. Keys are unique.
type Set map[string]Predicate

// Keys returns the field names in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CountSatisfied returns how many predicates of the set the metadata meets.
func (s Set) CountSatisfied(md Metadata) int {
	n := 0
	for k, p := range s {
		if p.Satisfied(md, k) {
			n++
		}
	}
	return n
}

// Conflict records a key present in both inputs of Merge.
type Conflict struct {
	Key        string
	Onboarding Predicate
	Query      Predicate
}

// Merge overlays query predicates on onboarding predicates. Query wins on
// every shared key. Inputs are not modified.
func Merge(onboarding, query Set) (Set, []Conflict) {
	out := make(Set, len(onboarding)+len(query))
	for k, p := range onboarding {
		out[k] = p
	}
	var conflicts []Conflict
	for _, k := range query.Keys() {
		p := query[k]
		if prev, ok := out[k]; ok && prev != p {
			conflicts = append(conflicts, Conflict{Key: k, Onboarding: prev, Query: p})
		}
		out[k] = p
	}
	return out, conflicts
}

// Conditions renders the set as search filter conditions, in key order.
func (s Set) Conditions() ([]filter.Condition, error) {
	conds := make([]filter.Condition, 0, len(s))
	for _, k := range s.Keys() {
		c, err := s[k].condition(k)
		if err != nil {
			return nil, fmt.Errorf("predicate %q: %w", k, err)
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func (p Predicate) condition(key string) (filter.Condition, error) {
	if p.isBool {
		return filter.NewMatch(key, strconv.FormatBool(p.flag))
	}
	v := p.number
	var (
		r   filter.Range
		err error
	)
	switch p.op {
	case OpEq:
		r, err = filter.NewRangeFilter(nil, &v, nil, &v)
	case OpLt:
		r, err = filter.NewRangeFilter(nil, nil, &v, nil)
	case OpGt:
		r, err = filter.NewRangeFilter(&v, nil, nil, nil)
	default:
		return filter.Condition{}, fmt.Errorf("unknown op %d", p.op)
	}
	if err != nil {
		return filter.Condition{}, err
	}
	return filter.NewRange(key, r)
}
