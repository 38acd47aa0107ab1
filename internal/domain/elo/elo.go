// Package elo computes symmetric rating updates from one pairwise comparison.
//
// One scale is used throughout: the exponent divides the rating gap by
// EloScale (10) and K-factors live on the small 0-1 scale, tiered by games
// played. Win/loss updates layer an underdog multiplier, a major-upset bonus
// and a per-comparison cap over the raw delta. "Too tough" outcomes skip
// the formula entirely and pull both sides to their average.
package elo

import (
	"fmt"
	"math"

	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/internal/domain/scale"
)

// Participant is one side of a comparison.
type Participant struct {
	Rating float64
	Games  int
}

// Pair holds both post-update ratings plus the raw deltas that produced them.
// A is the first argument of the call, B the second.
type Pair struct {
	A      float64
	B      float64
	DeltaA float64
	DeltaB float64
}

// Engine applies the update rules for one parameter set.
type Engine struct {
	p model.Params
}

// New returns an engine bound to a copy of p.
func New(p model.Params) *Engine {
	return &Engine{p: p.Clone()}
}

// ExpectedScore is the probability that self beats opp.
func (e *Engine) ExpectedScore(self, opp float64) float64 {
	return 1 / (1 + math.Pow(e.p.EloBase, (opp-self)/e.p.EloScale))
}

// KFactor returns the tiered K for an item with the given games played.
func (e *Engine) KFactor(games int) float64 {
	k := e.p.K
	switch {
	case games < k.DevelopingAt:
		return k.Novice
	case games < k.EstablishedAt:
		return k.Developing
	case games < k.VeteranAt:
		return k.Established
	default:
		return k.Veteran
	}
}

// Score maps an outcome to A's actual score.
func Score(o model.Outcome) float64 {
	switch o {
	case model.AWins:
		return 1
	case model.BWins:
		return 0
	default:
		return 0.5
	}
}

// Update applies a decisive result. The returned pair is ordered (winner, loser).
func (e *Engine) Update(winner, loser Participant) (Pair, error) {
	if err := e.check(winner, loser); err != nil {
		return Pair{}, err
	}

	expW := e.ExpectedScore(winner.Rating, loser.Rating)
	dW := e.KFactor(winner.Games) * (1 - expW)
	dL := e.KFactor(loser.Games) * (0 - (1 - expW))

	underdog := winner.Rating < loser.Rating
	if underdog {
		dW *= e.p.UnderdogMultiplier
	}

	if underdog && loser.Rating-winner.Rating > e.p.MajorUpsetGap {
		dW += e.p.MajorUpsetBonus
	} else {
		dW = math.Min(dW, e.p.MaxChange)
		dL = math.Max(dL, -e.p.MaxChange)
	}

	dW = math.Max(dW, e.p.MinChange)
	dL = math.Min(dL, -e.p.MinChange)

	return Pair{
		A:      scale.Bound(e.p, winner.Rating+dW),
		B:      scale.Bound(e.p, loser.Rating+dL),
		DeltaA: dW,
		DeltaB: dL,
	}, nil
}

// Tie moves both sides to their average, nudging A up and B down by the
// tie offset so the order stays stable.
func (e *Engine) Tie(a, b Participant) (Pair, error) {
	if err := e.check(a, b); err != nil {
		return Pair{}, err
	}
	avg := (a.Rating + b.Rating) / 2
	na := avg + e.p.TieOffset
	nb := avg - e.p.TieOffset
	return Pair{
		A:      scale.Bound(e.p, na),
		B:      scale.Bound(e.p, nb),
		DeltaA: na - a.Rating,
		DeltaB: nb - b.Rating,
	}, nil
}

// Apply dispatches on the outcome. The returned pair is always ordered (a, b).
func (e *Engine) Apply(a, b Participant, o model.Outcome) (Pair, error) {
	switch o {
	case model.AWins:
		return e.Update(a, b)
	case model.BWins:
		r, err := e.Update(b, a)
		if err != nil {
			return Pair{}, err
		}
		return Pair{A: r.B, B: r.A, DeltaA: r.DeltaB, DeltaB: r.DeltaA}, nil
	case model.TooTough:
		return e.Tie(a, b)
	}
	return Pair{}, fmt.Errorf("outcome %q: %w", o, model.ErrOutcomeRejected)
}

// Place rates an item that has no rating yet against a rated opponent.
// A decisive result puts the new item one placement offset above or below
// the opponent and leaves the opponent alone. A tie places the new item just
// above the opponent and nudges the opponent down by the tie offset.
func (e *Engine) Place(opp float64, o model.Outcome) (Pair, error) {
	if !scale.Valid(e.p, opp) {
		return Pair{}, fmt.Errorf("opponent rating %v: %w", opp, model.ErrInvalidRatingInput)
	}
	var a, b float64
	switch o {
	case model.AWins:
		a, b = opp+e.p.PlacementOffset, opp
	case model.BWins:
		a, b = opp-e.p.PlacementOffset, opp
	case model.TooTough:
		a, b = opp+e.p.TieOffset, opp-e.p.TieOffset
	default:
		return Pair{}, fmt.Errorf("outcome %q: %w", o, model.ErrOutcomeRejected)
	}
	a, b = scale.Bound(e.p, a), scale.Bound(e.p, b)
	return Pair{A: a, B: b, DeltaA: 0, DeltaB: b - opp}, nil
}

func (e *Engine) check(ps ...Participant) error {
	for _, p := range ps {
		if !scale.Valid(e.p, p.Rating) {
			return fmt.Errorf("rating %v: %w", p.Rating, model.ErrInvalidRatingInput)
		}
		if p.Games < 0 {
			return fmt.Errorf("games played %d: %w", p.Games, model.ErrInvalidRatingInput)
		}
	}
	return nil
}
