// Package types contains the read models returned by the service.
package types

import "github.com/okian/flickrank/internal/domain/model"

// Entry is one ranked item of a category.
type Entry struct {
	Rank              int      `json:"rank"`
	ItemID            string   `json:"item_id"`
	Category          string   `json:"category"`
	Rating            float64  `json:"rating"`
	ComparisonsPlayed int      `json:"comparisons_played"`
	StandardError     *float64 `json:"standard_error,omitempty"`
}

// NewEntry builds an entry from a rated item.
func NewEntry(rank int, it model.RatedItem) Entry {
	return Entry{
		Rank:              rank,
		ItemID:            it.ID,
		Category:          it.Category,
		Rating:            it.Rating,
		ComparisonsPlayed: it.ComparisonsPlayed,
		StandardError:     it.StandardError,
	}
}

// CorpusStats summarizes the ratings of a category.
type CorpusStats struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}
