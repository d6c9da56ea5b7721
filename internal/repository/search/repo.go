package search

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/db"
	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/filter"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo runs KNN queries against a tenant's listings index.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchKNN performs a KNN search on an index with filter pre-filtering.
func (r *Repo) SearchKNN(
	ctx context.Context, indexName string,
	vector []float32, filters filter.Expression, topK int,
) ([]result.Match, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: listing.ReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", indexName, err)
	}
	return parseKNNResults(sr, keyPrefix(indexName)), nil
}

// keyPrefix converts an index name to the key prefix of its listing chunks.
// "realtorbot:acme:idx" -> "realtorbot:acme:"
func keyPrefix(index string) string {
	if strings.HasSuffix(index, ":idx") {
		return strings.TrimSuffix(index, "idx")
	}
	return index + ":"
}

func parseKNNResults(sr *db.SearchResult, prefix string) []result.Match {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	matches := make([]result.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		matches = append(matches, parseEntry(strings.TrimPrefix(entry.Key, prefix), entry))
	}
	return matches
}

// parseEntry splits flat hash fields into text, tags and numerics.
func parseEntry(id string, entry db.SearchEntry) result.Match {
	var text string
	tags := make(map[string]string)
	numerics := make(map[string]float64)

	for k, v := range entry.Fields {
		switch {
		case k == listing.FieldText:
			text = v
		case k == listing.FieldVector || k == listing.FieldVectorScore:
			// binary blob and raw distance are not metadata
		case slices.Contains(listing.IdentityFields, k):
			tags[k] = v
		default:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				numerics[k] = f
			} else {
				tags[k] = v
			}
		}
	}

	return result.New(id, entry.Score, text, tags, numerics)
}
