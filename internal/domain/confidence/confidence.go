// Package confidence estimates uncertainty in a running rating and decides
// when a session has seen enough comparisons.
package confidence

import (
	"fmt"
	"math"

	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/internal/domain/scale"
)

// Estimator computes standard errors, intervals and stop decisions.
type Estimator struct {
	p model.Params
}

// New returns an estimator bound to a copy of p.
func New(p model.Params) *Estimator {
	return &Estimator{p: p.Clone()}
}

// ZScore returns the two-sided critical value for a supported level.
func ZScore(level float64) (float64, error) {
	switch level {
	case 0.95:
		return 1.96, nil
	case 0.99:
		return 2.576, nil
	}
	return 0, fmt.Errorf("level %v: %w", level, model.ErrUnsupportedConfidenceLevel)
}

// StandardError converts the win rate over a comparison history into
// rating units. With no comparisons it is the initial uncertainty.
func (e *Estimator) StandardError(comparisons, wins, losses, ties int) float64 {
	if comparisons <= 0 {
		return e.p.InitialUncertainty
	}
	n := float64(comparisons)
	winRate := (float64(wins) + 0.5*float64(ties)) / n
	variance := winRate * (1 - winRate) / n
	ratingVariance := variance * math.Pow(e.p.EloScale/4, 2)
	return math.Sqrt(ratingVariance / 100)
}

// Interval builds a confidence interval around rating. Width is the
// unclamped 2*margin so it never shrinks at the edges of the scale.
func (e *Estimator) Interval(rating, se, level float64) (model.Interval, error) {
	z, err := ZScore(level)
	if err != nil {
		return model.Interval{}, err
	}
	margin := z * math.Max(se, 0)
	return model.Interval{
		Lower: scale.Clamp(e.p, rating-margin),
		Upper: scale.Clamp(e.p, rating+margin),
		Width: 2 * margin,
		Level: level,
	}, nil
}

// HasConverged reports whether enough comparisons produced a narrow enough interval.
func (e *Estimator) HasConverged(comparisons int, width float64) bool {
	return comparisons >= e.p.MinComparisons && width <= e.p.TargetWidth
}

// ShouldStop applies the MIN/MAX bounds around HasConverged.
func (e *Estimator) ShouldStop(comparisons int, width float64) (bool, model.StopReason) {
	if comparisons >= e.p.MaxComparisons {
		return true, model.StopExhausted
	}
	if e.HasConverged(comparisons, width) {
		return true, model.StopConverged
	}
	return false, ""
}

// Stats assembles the full summary for a rating and its record.
func (e *Estimator) Stats(rating float64, wins, losses, ties int) (model.RatingStats, error) {
	n := wins + losses + ties
	se := e.StandardError(n, wins, losses, ties)
	iv, err := e.Interval(rating, se, e.p.ConfidenceLevel)
	if err != nil {
		return model.RatingStats{}, err
	}
	return model.RatingStats{
		Rating:        scale.Clamp(e.p, rating),
		StandardError: se,
		Interval:      iv,
		Comparisons:   n,
		Wins:          wins,
		Losses:        losses,
		Ties:          ties,
	}, nil
}
