// Package selector picks the next comparison opponent from a rated corpus.
//
// Every policy filters the corpus first: an item is eligible when its rating
// is a finite value on the scale and its id is not excluded. Policies return
// (item, true) on success and (zero, false) when nothing is eligible; they
// never panic on an empty corpus.
//
// A Selector owns its random source and is not safe for concurrent use.
package selector

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/okian/flickrank/internal/domain/elo"
	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/internal/domain/scale"
)

// eps absorbs float noise when comparing distances against a radius.
const eps = 1e-9

// Exclusions is a set of item ids a policy must skip.
type Exclusions map[string]struct{}

// Has reports whether id is excluded.
func (e Exclusions) Has(id string) bool {
	_, ok := e[id]
	return ok
}

// Add excludes id.
func (e Exclusions) Add(id string) { e[id] = struct{}{} }

// Selector implements the opponent selection policies.
type Selector struct {
	p   model.Params
	elo *elo.Engine
	rng *rand.Rand
}

// New returns a selector with a copy of p. A nil rng is replaced by a
// time-seeded source.
func New(p model.Params, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // selection is not security sensitive
	}
	return &Selector{p: p.Clone(), elo: elo.New(p), rng: rng}
}

// Eligible returns the eligible items ranked by rating desc, then id asc.
func (s *Selector) Eligible(items []model.RatedItem, exclude Exclusions) []model.RatedItem {
	out := make([]model.RatedItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" || exclude.Has(it.ID) || !scale.Valid(s.p, it.Rating) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Bucket is a half-open index range [Start, End) over a ranked list.
type Bucket struct {
	Start int
	End   int
}

// Len returns the number of indices in b.
func (b Bucket) Len() int { return max(0, b.End-b.Start) }

// Partition returns the bucket of every sentiment tier for a ranked list of n
// items, in tier order.
func (s *Selector) Partition(n int) []Bucket {
	out := make([]Bucket, len(model.Sentiments))
	for i, st := range model.Sentiments {
		out[i] = s.bucket(st, n)
	}
	return out
}

func (s *Selector) bucket(st model.Sentiment, n int) Bucket {
	r, ok := s.p.Percentiles.For(st)
	if !ok || n <= 0 {
		return Bucket{}
	}
	start := int(math.Floor(r.Lo * float64(n)))
	end := int(math.Floor(r.Hi * float64(n)))
	start = min(max(start, 0), n)
	end = min(max(end, start), n)
	return Bucket{Start: start, End: end}
}

// Percentile picks uniformly from the sentiment's slice of the ranking.
// An empty slice falls back to the adjacent tiers, the better one first, and
// finally to the top-ranked eligible item.
func (s *Selector) Percentile(items []model.RatedItem, st model.Sentiment, exclude Exclusions) (model.RatedItem, bool) {
	ranked := s.Eligible(items, exclude)
	if len(ranked) == 0 {
		return model.RatedItem{}, false
	}
	tier := st.Tier()
	if tier < 0 {
		return model.RatedItem{}, false
	}

	for _, t := range []int{tier, tier - 1, tier + 1} {
		if t < 0 || t >= len(model.Sentiments) {
			continue
		}
		b := s.bucket(model.Sentiments[t], len(ranked))
		if b.Len() > 0 {
			return s.pick(ranked[b.Start:b.End]), true
		}
	}
	return ranked[0], true
}

// Proximity picks among the closest items to target, widening the search
// radius by a fixed step until the ceiling.
func (s *Selector) Proximity(items []model.RatedItem, target float64, exclude Exclusions) (model.RatedItem, bool) {
	ranked := s.Eligible(items, exclude)
	if len(ranked) == 0 {
		return model.RatedItem{}, false
	}
	for radius := s.p.ProximityRadius; radius <= s.p.ProximityCeiling+eps; radius += s.p.ProximityStep {
		near := within(ranked, target, radius)
		if len(near) == 0 {
			continue
		}
		byDistance(near, target)
		return s.pick(near[:min(len(near), s.p.ProximityPool)]), true
	}
	return model.RatedItem{}, false
}

// Adaptive searches above the current estimate after a win and below it
// after a loss. Without a hit in any radius it takes the item closest to the
// current estimate regardless of direction.
func (s *Selector) Adaptive(items []model.RatedItem, current float64, last model.Outcome, exclude Exclusions) (model.RatedItem, bool) {
	ranked := s.Eligible(items, exclude)
	if len(ranked) == 0 {
		return model.RatedItem{}, false
	}
	target := current
	switch last {
	case model.AWins:
		target += s.p.AdaptiveOffset
	case model.BWins:
		target -= s.p.AdaptiveOffset
	}
	for _, radius := range s.p.AdaptiveRadii {
		if near := within(ranked, target, radius); len(near) > 0 {
			return s.pick(near), true
		}
	}
	byDistance(ranked, current)
	return ranked[0], true
}

// InformationGain scores each item by how uncertain the outcome against it
// is, discounted by the item's own standard error, and picks among the best.
func (s *Selector) InformationGain(items []model.RatedItem, current float64, exclude Exclusions) (model.RatedItem, bool) {
	ranked := s.Eligible(items, exclude)
	if len(ranked) == 0 {
		return model.RatedItem{}, false
	}
	type scored struct {
		item  model.RatedItem
		score float64
	}
	all := make([]scored, len(ranked))
	for i, it := range ranked {
		all[i] = scored{item: it, score: s.Gain(current, it)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	top := make([]model.RatedItem, 0, s.p.InformationGainPool)
	for _, sc := range all[:min(len(all), s.p.InformationGainPool)] {
		top = append(top, sc.item)
	}
	return s.pick(top), true
}

// Gain is the information-gain score of comparing current against opp.
func (s *Selector) Gain(current float64, opp model.RatedItem) float64 {
	p := s.elo.ExpectedScore(current, opp.Rating)
	se := s.p.InitialUncertainty
	if opp.StandardError != nil && *opp.StandardError >= 0 {
		se = *opp.StandardError
	}
	return 4 * p * (1 - p) / (1 + se)
}

// FollowUp runs the configured policy for rounds after the first.
func (s *Selector) FollowUp(items []model.RatedItem, current float64, last model.Outcome, exclude Exclusions) (model.RatedItem, bool) {
	switch s.p.FollowUpPolicy {
	case model.PolicyAdaptive:
		return s.Adaptive(items, current, last, exclude)
	case model.PolicyInformationGain:
		return s.InformationGain(items, current, exclude)
	default:
		return s.Proximity(items, current, exclude)
	}
}

func (s *Selector) pick(c []model.RatedItem) model.RatedItem {
	return c[s.rng.Intn(len(c))]
}

func within(ranked []model.RatedItem, target, radius float64) []model.RatedItem {
	var out []model.RatedItem
	for _, it := range ranked {
		if math.Abs(it.Rating-target) <= radius+eps {
			out = append(out, it)
		}
	}
	return out
}

// byDistance orders items by |rating-target|, keeping the ranked order on ties.
func byDistance(items []model.RatedItem, target float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return math.Abs(items[i].Rating-target) < math.Abs(items[j].Rating-target)
	})
}
