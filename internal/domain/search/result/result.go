// Package result holds a single KNN hit over the listings index.
package result

import (
	"strconv"

	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
)

// Match is one retrieved listing chunk.
type Match struct {
	id       string
	score    float64
	text     string
	tags     map[string]string
	numerics map[string]float64
}

// New creates a Match. Listing and development ids are read from tags.
func New(id string, score float64, text string, tags map[string]string, numerics map[string]float64) Match {
	return Match{id: id, score: score, text: text, tags: tags, numerics: numerics}
}

// ID returns the chunk key inside the index.
func (m Match) ID() string { return m.id }

// Score returns the relevance score (higher is better).
func (m Match) Score() float64 { return m.score }

// Text returns the chunk text fed into the prompt context.
func (m Match) Text() string { return m.text }

// ListingID returns the listing the chunk belongs to, if any.
func (m Match) ListingID() string { return m.tags[listing.FieldListingID] }

// DevelopmentID returns the development the chunk belongs to, if any.
func (m Match) DevelopmentID() string { return m.tags[listing.FieldDevelopmentID] }

// Tags returns the tag metadata.
func (m Match) Tags() map[string]string { return m.tags }

// Numerics returns the numeric metadata.
func (m Match) Numerics() map[string]float64 { return m.numerics }

// Tag returns a tag value.
func (m Match) Tag(key string) (string, bool) {
	v, ok := m.tags[key]
	return v, ok
}

// Numeric returns a numeric value. Tags holding a number are accepted too.
func (m Match) Numeric(key string) (float64, bool) {
	if v, ok := m.numerics[key]; ok {
		return v, true
	}
	if s, ok := m.tags[key]; ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// WithScore returns a copy with a different score.
func (m Match) WithScore(score float64) Match {
	m.score = score
	return m
}
