// Package scale holds the numeric primitives of the rating domain.
package scale

import (
	"math"

	"github.com/okian/flickrank/internal/domain/model"
)

// Clamp bounds x to [p.MinRating, p.MaxRating].
func Clamp(p model.Params, x float64) float64 {
	return math.Max(p.MinRating, math.Min(p.MaxRating, x))
}

// Round1 rounds x to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Bound is Round1(Clamp(x)), the form every public rating output takes.
func Bound(p model.Params, x float64) float64 {
	return Round1(Clamp(p, x))
}

// Valid reports whether x is a finite rating inside the scale.
func Valid(p model.Params, x float64) bool {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return false
	}
	return x >= p.MinRating && x <= p.MaxRating
}
