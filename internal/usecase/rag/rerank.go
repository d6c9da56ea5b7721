package rag

import (
	"sort"

	"github.com/kailas-cloud/realtorbot/internal/domain/search/predicate"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/result"
)

// Weights are the additive boosts applied on top of the vector score.
// An explicit mention must outrank the context listing, which outranks the
// development, which outranks a single filter hit.
type Weights struct {
	MentionedListing float64
	ContextListing   float64
	Development      float64
	FilterMatch      float64 // per satisfied predicate
	MaxResults       int
}

// DefaultWeights returns the standard boost table.
func DefaultWeights() Weights {
	return Weights{
		MentionedListing: 1.5,
		ContextListing:   1.0,
		Development:      0.8,
		FilterMatch:      0.2,
		MaxResults:       20,
	}
}

// RankInput carries what the boosts compare match metadata against.
type RankInput struct {
	ContextListingID   string
	MentionedListingID string
	DevelopmentID      string
	Predicates         predicate.Set
}

// Rerank merges the three slots, drops duplicate ids, boosts and truncates.
// Listing matches come first, then development, then broad; on a duplicate
// id the earliest occurrence is kept.
func Rerank(slots Slots, in RankInput, w Weights) []result.Match {
	total := len(slots.Listing) + len(slots.Development) + len(slots.Broad)
	seen := make(map[string]struct{}, total)
	merged := make([]result.Match, 0, total)

	for _, list := range [][]result.Match{slots.Listing, slots.Development, slots.Broad} {
		for _, m := range list {
			if _, dup := seen[m.ID()]; dup {
				continue
			}
			seen[m.ID()] = struct{}{}
			merged = append(merged, m.WithScore(m.Score()+boost(m, in, w)))
		}
	}

	// stable: ties keep slot order
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score() > merged[j].Score()
	})

	if w.MaxResults > 0 && len(merged) > w.MaxResults {
		merged = merged[:w.MaxResults]
	}
	return merged
}

func boost(m result.Match, in RankInput, w Weights) float64 {
	var b float64
	lid := m.ListingID()
	if lid != "" && lid == in.ContextListingID {
		b += w.ContextListing
	}
	if lid != "" && lid == in.MentionedListingID {
		b += w.MentionedListing
	}
	if did := m.DevelopmentID(); did != "" && did == in.DevelopmentID {
		b += w.Development
	}
	if len(in.Predicates) > 0 {
		b += w.FilterMatch * float64(in.Predicates.CountSatisfied(m))
	}
	return b
}
