// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Sentiment is the qualitative tier a user declares for a new item before
// any comparison runs. Tiers are ordered from best to worst.
type Sentiment string

// Sentiment tiers.
const (
	Loved    Sentiment = "LOVED"
	Liked    Sentiment = "LIKED"
	Average  Sentiment = "AVERAGE"
	Disliked Sentiment = "DISLIKED"
)

// Sentiments lists every tier in rank order.
var Sentiments = []Sentiment{Loved, Liked, Average, Disliked} //nolint:gochecknoglobals // immutable tier order

// ParseSentiment parses a tier name case-insensitively.
func ParseSentiment(s string) (Sentiment, error) {
	v := Sentiment(strings.ToUpper(strings.TrimSpace(s)))
	if v.Tier() < 0 {
		return "", fmt.Errorf("unknown sentiment %q: %w", s, ErrInvalidSessionInput)
	}
	return v, nil
}

// Tier returns the 0-based position of s in Sentiments, or -1 if unknown.
func (s Sentiment) Tier() int {
	for i, v := range Sentiments {
		if v == s {
			return i
		}
	}
	return -1
}

// Outcome is one pairwise judgment. A is always the item being rated.
type Outcome string

// Comparison outcomes.
const (
	AWins Outcome = "a_wins"
	BWins Outcome = "b_wins"
	// TooTough is "too tough to decide". It is not a statistical draw.
	TooTough Outcome = "too_tough"
)

// ParseOutcome parses the wire representation of an outcome. "tie" is
// accepted as an alias of too_tough.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case AWins:
		return AWins, nil
	case BWins:
		return BWins, nil
	case TooTough, "tie":
		return TooTough, nil
	}
	return "", fmt.Errorf("unknown outcome %q: %w", s, ErrOutcomeRejected)
}

// RatedItem is an item the user has already scored.
type RatedItem struct {
	ID                string   `json:"id"`
	Category          string   `json:"category"`
	Rating            float64  `json:"rating"`
	ComparisonsPlayed int      `json:"comparisons_played"`
	StandardError     *float64 `json:"standard_error,omitempty"`
}

// CandidateItem is an unrated item awaiting its first score.
type CandidateItem struct {
	ID                string    `json:"id"`
	Category          string    `json:"category"`
	Sentiment         Sentiment `json:"sentiment,omitempty"`
	ProvisionalRating *float64  `json:"provisional_rating,omitempty"`
}

// RoundRecord captures one completed comparison round.
type RoundRecord struct {
	Round                int      `json:"round"`
	OpponentID           string   `json:"opponent_id"`
	Outcome              Outcome  `json:"outcome"`
	RatingBefore         *float64 `json:"rating_before"` // nil in round 1
	RatingAfter          float64  `json:"rating_after"`
	OpponentRatingBefore float64  `json:"opponent_rating_before"`
	OpponentRatingAfter  float64  `json:"opponent_rating_after"`
}

// Interval is a confidence interval around a rating.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Width float64 `json:"width"`
	Level float64 `json:"level"`
}

// RatingStats summarizes the running estimate of a session.
type RatingStats struct {
	Rating        float64  `json:"rating"`
	StandardError float64  `json:"standard_error"`
	Interval      Interval `json:"interval"`
	Comparisons   int      `json:"comparisons"`
	Wins          int      `json:"wins"`
	Losses        int      `json:"losses"`
	Ties          int      `json:"ties"`
}

// StopReason tells why a session stopped asking for comparisons.
type StopReason string

// Stop reasons.
const (
	StopConverged  StopReason = "converged"
	StopExhausted  StopReason = "exhausted"
	StopNoOpponent StopReason = "no_opponent"
)

// WriteKind distinguishes durable writes.
type WriteKind string

// Write kinds.
const (
	WriteOpponent WriteKind = "opponent"
	WriteFinal    WriteKind = "final"
	WriteSeed     WriteKind = "seed"
)

// RatingWrite is one durable rating write.
type RatingWrite struct {
	Kind              WriteKind
	Category          string
	ItemID            string
	Rating            float64
	ComparisonsPlayed int
	StandardError     *float64
}

// Item converts a write into the rated item it describes.
func (w RatingWrite) Item() RatedItem {
	return RatedItem{
		ID:                w.ItemID,
		Category:          w.Category,
		Rating:            w.Rating,
		ComparisonsPlayed: w.ComparisonsPlayed,
		StandardError:     w.StandardError,
	}
}
