package model

import (
	"fmt"
	"math"
)

// Follow-up opponent policies used after round 1.
const (
	PolicyProximity       = "proximity"
	PolicyAdaptive        = "adaptive"
	PolicyInformationGain = "information_gain"
)

// KSchedule tiers the K-factor by how many comparisons an item has played.
type KSchedule struct {
	Novice        float64 `koanf:"novice"`         // games < DevelopingAt
	Developing    float64 `koanf:"developing"`     // DevelopingAt <= games < EstablishedAt
	Established   float64 `koanf:"established"`    // EstablishedAt <= games < VeteranAt
	Veteran       float64 `koanf:"veteran"`        // games >= VeteranAt
	DevelopingAt  int     `koanf:"developing_at"`  //
	EstablishedAt int     `koanf:"established_at"` //
	VeteranAt     int     `koanf:"veteran_at"`     //
}

// Range is a half-open percentile range [Lo, Hi) over a descending ranking.
type Range struct {
	Lo float64 `koanf:"lo"`
	Hi float64 `koanf:"hi"`
}

// Percentiles maps each sentiment tier to its slice of the ranking.
type Percentiles struct {
	Loved    Range `koanf:"loved"`
	Liked    Range `koanf:"liked"`
	Average  Range `koanf:"average"`
	Disliked Range `koanf:"disliked"`
}

// For returns the range for a sentiment.
func (p Percentiles) For(s Sentiment) (Range, bool) {
	switch s {
	case Loved:
		return p.Loved, true
	case Liked:
		return p.Liked, true
	case Average:
		return p.Average, true
	case Disliked:
		return p.Disliked, true
	}
	return Range{}, false
}

// Baselines is the rating each tier receives when a session ends before any
// comparison was played.
type Baselines struct {
	Loved    float64 `koanf:"loved"`
	Liked    float64 `koanf:"liked"`
	Average  float64 `koanf:"average"`
	Disliked float64 `koanf:"disliked"`
}

// For returns the baseline for a sentiment.
func (b Baselines) For(s Sentiment) (float64, bool) {
	switch s {
	case Loved:
		return b.Loved, true
	case Liked:
		return b.Liked, true
	case Average:
		return b.Average, true
	case Disliked:
		return b.Disliked, true
	}
	return 0, false
}

// Params is the single immutable parameter set shared by every engine
// component. Components receive a copy at construction.
type Params struct {
	MinRating float64 `koanf:"min_rating"`
	MaxRating float64 `koanf:"max_rating"`

	// Expected score: 1 / (1 + Base^((opp-self)/Scale)).
	EloBase  float64   `koanf:"elo_base"`
	EloScale float64   `koanf:"elo_scale"`
	K        KSchedule `koanf:"k"`

	UnderdogMultiplier float64 `koanf:"underdog_multiplier"`
	MajorUpsetGap      float64 `koanf:"major_upset_gap"`
	MajorUpsetBonus    float64 `koanf:"major_upset_bonus"`
	MaxChange          float64 `koanf:"max_change"`
	MinChange          float64 `koanf:"min_change"`
	TieOffset          float64 `koanf:"tie_offset"`
	PlacementOffset    float64 `koanf:"placement_offset"`

	InitialUncertainty float64 `koanf:"initial_uncertainty"`
	ConfidenceLevel    float64 `koanf:"confidence_level"`
	TargetWidth        float64 `koanf:"target_width"`
	MinComparisons     int     `koanf:"min_comparisons"`
	MaxComparisons     int     `koanf:"max_comparisons"`
	MinCorpusSize      int     `koanf:"min_corpus_size"`

	Percentiles Percentiles `koanf:"percentiles"`
	Baselines   Baselines   `koanf:"baselines"`

	ProximityRadius  float64 `koanf:"proximity_radius"`
	ProximityStep    float64 `koanf:"proximity_step"`
	ProximityCeiling float64 `koanf:"proximity_ceiling"`
	ProximityPool    int     `koanf:"proximity_pool"`

	AdaptiveOffset float64   `koanf:"adaptive_offset"`
	AdaptiveRadii  []float64 `koanf:"adaptive_radii"`

	InformationGainPool int `koanf:"information_gain_pool"`

	FollowUpPolicy string `koanf:"follow_up_policy"`
}

// DefaultParams returns the 1-10 scale defaults.
func DefaultParams() Params {
	return Params{
		MinRating: 1.0,
		MaxRating: 10.0,
		EloBase:   10,
		EloScale:  10,
		K: KSchedule{
			Novice:        0.5,
			Developing:    0.25,
			Established:   0.125,
			Veteran:       0.1,
			DevelopingAt:  5,
			EstablishedAt: 10,
			VeteranAt:     20,
		},
		UnderdogMultiplier: 1.2,
		MajorUpsetGap:      3.0,
		MajorUpsetBonus:    0.5,
		MaxChange:          0.7,
		MinChange:          0.1,
		TieOffset:          0.05,
		PlacementOffset:    0.5,
		InitialUncertainty: 2.0,
		ConfidenceLevel:    0.95,
		TargetWidth:        0.6,
		MinComparisons:     3,
		MaxComparisons:     5,
		MinCorpusSize:      3,
		Percentiles: Percentiles{
			Loved:    Range{Lo: 0.00, Hi: 0.25},
			Liked:    Range{Lo: 0.25, Hi: 0.50},
			Average:  Range{Lo: 0.50, Hi: 0.75},
			Disliked: Range{Lo: 0.75, Hi: 1.00},
		},
		Baselines: Baselines{
			Loved:    10.0,
			Liked:    7.5,
			Average:  5.5,
			Disliked: 3.5,
		},
		ProximityRadius:     1.0,
		ProximityStep:       0.5,
		ProximityCeiling:    3.0,
		ProximityPool:       3,
		AdaptiveOffset:      0.8,
		AdaptiveRadii:       []float64{0.3, 0.6, 1.0, 1.5},
		InformationGainPool: 3,
		FollowUpPolicy:      PolicyProximity,
	}
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (p Params) Clone() Params {
	c := p
	c.AdaptiveRadii = append([]float64(nil), p.AdaptiveRadii...)
	return c
}

// Validate checks internal consistency.
func (p Params) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidParams)
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	switch {
	case !finite(p.MinRating) || !finite(p.MaxRating) || p.MinRating >= p.MaxRating:
		return bad("rating bounds [%v, %v]", p.MinRating, p.MaxRating)
	case p.EloBase <= 1 || p.EloScale <= 0:
		return bad("elo base %v scale %v", p.EloBase, p.EloScale)
	case p.K.Novice <= 0 || p.K.Developing <= 0 || p.K.Established <= 0 || p.K.Veteran <= 0:
		return bad("k-factors must be positive")
	case !(p.K.DevelopingAt <= p.K.EstablishedAt && p.K.EstablishedAt <= p.K.VeteranAt):
		return bad("k thresholds must be ascending")
	case p.MaxChange <= 0 || p.MinChange < 0 || p.MinChange > p.MaxChange:
		return bad("change bounds min %v max %v", p.MinChange, p.MaxChange)
	case p.UnderdogMultiplier < 1:
		return bad("underdog multiplier %v", p.UnderdogMultiplier)
	case p.MinComparisons < 1 || p.MaxComparisons < p.MinComparisons:
		return bad("comparisons min %d max %d", p.MinComparisons, p.MaxComparisons)
	case p.MinCorpusSize < 1:
		return bad("min corpus size %d", p.MinCorpusSize)
	case p.ConfidenceLevel != 0.95 && p.ConfidenceLevel != 0.99:
		return fmt.Errorf("confidence level %v: %w: %w", p.ConfidenceLevel, ErrUnsupportedConfidenceLevel, ErrInvalidParams)
	case p.TargetWidth < 0 || p.InitialUncertainty < 0:
		return bad("target width %v initial uncertainty %v", p.TargetWidth, p.InitialUncertainty)
	case p.ProximityRadius <= 0 || p.ProximityStep <= 0 || p.ProximityCeiling < p.ProximityRadius:
		return bad("proximity radius %v step %v ceiling %v", p.ProximityRadius, p.ProximityStep, p.ProximityCeiling)
	case p.ProximityPool < 1 || p.InformationGainPool < 1:
		return bad("selection pools must be positive")
	}
	for _, s := range Sentiments {
		r, _ := p.Percentiles.For(s)
		if r.Lo < 0 || r.Hi > 1 || r.Lo >= r.Hi {
			return bad("percentile range for %s [%v, %v)", s, r.Lo, r.Hi)
		}
		if b, _ := p.Baselines.For(s); !finite(b) || b < p.MinRating || b > p.MaxRating {
			return bad("baseline for %s %v", s, b)
		}
	}
	switch p.FollowUpPolicy {
	case PolicyProximity, PolicyAdaptive, PolicyInformationGain:
	default:
		return bad("unknown follow-up policy %q", p.FollowUpPolicy)
	}
	return nil
}
