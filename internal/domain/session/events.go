package session

import (
	"context"

	"github.com/okian/flickrank/internal/domain/model"
)

// State is the lifecycle position of a session.
type State string

// Session states. Complete carries a stop reason in its Result.
const (
	AwaitingSentiment State = "awaiting_sentiment"
	RunningRound      State = "running_round"
	Complete          State = "complete"
	Aborted           State = "aborted"
)

// EventKind tags what a session is asking of, or telling, its driver.
type EventKind string

// Event kinds.
const (
	EventPresentComparison EventKind = "present_comparison"
	EventCompleted         EventKind = "completed"
	EventAborted           EventKind = "aborted"
)

// Event is emitted on every state change. A PresentComparison event must be
// answered with exactly one Submit for its Round.
type Event struct {
	Kind      EventKind           `json:"kind"`
	SessionID string              `json:"session_id"`
	Round     int                 `json:"round,omitempty"`
	Item      model.CandidateItem `json:"item"`
	Opponent  *model.RatedItem    `json:"opponent,omitempty"`
	Result    *Result             `json:"result,omitempty"`
}

// Result is the final outcome of a completed session.
type Result struct {
	ItemID       string              `json:"item_id"`
	Category     string              `json:"category"`
	FinalRating  float64             `json:"final_rating"`
	Stats        model.RatingStats   `json:"stats"`
	History      []model.RoundRecord `json:"history"`
	StopReason   model.StopReason    `json:"stop_reason"`
	RoundsPlayed int                 `json:"rounds_played"`
}

// Item returns the rated item the result describes.
func (r Result) Item() model.RatedItem {
	se := r.Stats.StandardError
	return model.RatedItem{
		ID:                r.ItemID,
		Category:          r.Category,
		Rating:            r.FinalRating,
		ComparisonsPlayed: r.RoundsPlayed,
		StandardError:     &se,
	}
}

// Snapshot is a copy of a session's observable state.
type Snapshot struct {
	ID                  string              `json:"id"`
	Item                model.CandidateItem `json:"item"`
	State               State               `json:"state"`
	Round               int                 `json:"round"`
	Estimate            *float64            `json:"estimate,omitempty"`
	UsedOpponents       []string            `json:"used_opponents"`
	Opponent            *model.RatedItem    `json:"opponent,omitempty"`
	History             []model.RoundRecord `json:"history"`
	Stats               model.RatingStats   `json:"stats"`
	Result              *Result             `json:"result,omitempty"`
	PersistenceFailures int                 `json:"persistence_failures"`
}

// Listener observes emitted events.
type Listener func(ctx context.Context, e Event)
