// Package catalog consumes the content service that owns book, author, and
// genre metadata. Lookups never fail a caller: unknown ids come back as
// placeholder summaries.
package catalog

import (
	"context"

	"readhub/pkg/models"
)

// Gateway resolves a set of book ids to minimal summaries. The returned map
// has an entry for every requested id; misses are placeholders.
type Gateway interface {
	GetSummaries(ctx context.Context, ids []string) (map[string]models.BookSummary, error)
}

// Placeholder is the summary used when the catalog cannot resolve a book.
func Placeholder(id string) models.BookSummary {
	return models.BookSummary{
		ID:    id,
		Title: "Book information unavailable",
	}
}
