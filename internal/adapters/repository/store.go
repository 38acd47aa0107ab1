// Package repository holds the in-memory corpus of rated items.
package repository

import (
	"context"

	"github.com/okian/flickrank/internal/domain/model"
)

// Entry is one row of a category ranking.
type Entry struct {
	Rank int
	Item model.RatedItem
}

// Stats summarizes the ratings of one category.
type Stats struct {
	Category string
	Count    int
	Average  float64
	Min      float64
	Max      float64
}

// Store provides read/write access to the rated corpus, partitioned by category.
type Store interface {
	// Items returns every item of a category ordered by rating desc, id asc.
	Items(ctx context.Context, category string) ([]model.RatedItem, error)

	// Get returns one item. Returns ErrNotFound if it is unknown.
	Get(ctx context.Context, category, id string) (model.RatedItem, error)

	// Put inserts or replaces an item.
	Put(ctx context.Context, item model.RatedItem) error

	// Update runs fn on the current value of an item under the category's
	// write lock and stores the result. An error from fn leaves the item as it was.
	Update(ctx context.Context, category, id string, fn func(model.RatedItem) (model.RatedItem, error)) (model.RatedItem, error)

	// TopN returns the first n entries of a category ranking.
	TopN(ctx context.Context, category string, n int) ([]Entry, error)

	// Stats returns count, average, min and max rating of a category.
	Stats(ctx context.Context, category string) (Stats, error)

	// Count returns the number of items in a category.
	Count(ctx context.Context, category string) int
}
