package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: rating DESC, then item id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the category
// ranking from best to worst. Each category has its own treap and lock;
// writers to different categories never contend.

// ratingScale controls fixed-point scaling of ratings used as treap keys.
const ratingScale = 1_000_000_000

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	return ratingFP(math.Round(x * ratingScale))
}

// treap node
type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) should appear before (bRating, bID).
func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, rating ratingFP, prio uint64) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: prio, size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, rating)
	} else {
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// collect appends up to limit items in rank order. limit < 0 means all.
func collect(n *node, limit int, byID map[string]model.RatedItem, out *[]model.RatedItem) {
	if n == nil || (limit >= 0 && len(*out) >= limit) {
		return
	}
	collect(n.left, limit, byID, out)
	if limit < 0 || len(*out) < limit {
		if it, ok := byID[n.id]; ok {
			*out = append(*out, it)
		}
	}
	collect(n.right, limit, byID, out)
}

// category is one independently locked treap.
type category struct {
	mu   sync.RWMutex
	root *node
	byID map[string]model.RatedItem
}

func (c *category) put(it model.RatedItem, prio uint64) {
	if old, ok := c.byID[it.ID]; ok {
		c.root = deleteNode(c.root, old.ID, toFixedPoint(old.Rating))
	}
	c.byID[it.ID] = it
	c.root = insert(c.root, it.ID, toFixedPoint(it.Rating), prio)
}

// MemoryStore is the in-memory corpus.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]*category

	prioMu sync.Mutex
	prio   *rand.Rand

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs an empty corpus and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		categories:            make(map[string]*category),
		prio:                  rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // treap balance only
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) nextPrio() uint64 {
	s.prioMu.Lock()
	defer s.prioMu.Unlock()
	return s.prio.Uint64()
}

func (s *MemoryStore) category(name string, create bool) *category {
	s.mu.RLock()
	c := s.categories[name]
	s.mu.RUnlock()
	if c != nil || !create {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c = s.categories[name]; c == nil {
		c = &category{byID: make(map[string]model.RatedItem)}
		s.categories[name] = c
	}
	return c
}

func validItem(it model.RatedItem) error {
	if strings.TrimSpace(it.ID) == "" {
		return fmt.Errorf("missing id: %w", ErrInvalidItem)
	}
	if math.IsNaN(it.Rating) || math.IsInf(it.Rating, 0) {
		return fmt.Errorf("rating %v: %w", it.Rating, ErrInvalidItem)
	}
	if it.ComparisonsPlayed < 0 {
		return fmt.Errorf("comparisons played %d: %w", it.ComparisonsPlayed, ErrInvalidItem)
	}
	return nil
}

// Put inserts or replaces an item in O(log n) expected time.
func (s *MemoryStore) Put(ctx context.Context, it model.RatedItem) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := validItem(it); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_item")
		return err
	}
	c := s.category(it.Category, true)
	prio := s.nextPrio()

	c.mu.Lock()
	c.put(it, prio)
	c.mu.Unlock()
	return nil
}

// Update implements Store.Update. The category write lock is held while fn
// runs, so concurrent updates to the same item are applied one after the other.
func (s *MemoryStore) Update(ctx context.Context, cat, id string, fn func(model.RatedItem) (model.RatedItem, error)) (model.RatedItem, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	c := s.category(cat, false)
	if c == nil {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.RatedItem{}, fmt.Errorf("%s/%s: %w", cat, id, ErrNotFound)
	}
	prio := s.nextPrio()

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.RatedItem{}, fmt.Errorf("%s/%s: %w", cat, id, ErrNotFound)
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	next.ID, next.Category = cur.ID, cur.Category
	if err := validItem(next); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_item")
		return cur, err
	}
	c.put(next, prio)
	return next, nil
}

// Get returns one item.
func (s *MemoryStore) Get(ctx context.Context, cat, id string) (model.RatedItem, error) {
	c := s.category(cat, false)
	if c == nil {
		return model.RatedItem{}, fmt.Errorf("%s/%s: %w", cat, id, ErrNotFound)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.byID[id]
	if !ok {
		return model.RatedItem{}, fmt.Errorf("%s/%s: %w", cat, id, ErrNotFound)
	}
	return it, nil
}

// Items returns a category in rank order. An unknown category is empty.
func (s *MemoryStore) Items(ctx context.Context, cat string) ([]model.RatedItem, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	c := s.category(cat, false)
	if c == nil {
		return []model.RatedItem{}, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.RatedItem, 0, len(c.byID))
	collect(c.root, -1, c.byID, &out)
	return out, nil
}

// TopN returns the top n entries of a category with dense ranks.
func (s *MemoryStore) TopN(ctx context.Context, cat string, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	c := s.category(cat, false)
	if c == nil {
		return []Entry{}, nil
	}
	c.mu.RLock()
	items := make([]model.RatedItem, 0, min(n, len(c.byID)))
	collect(c.root, n, c.byID, &items)
	c.mu.RUnlock()

	out := make([]Entry, len(items))
	for i, it := range items {
		out[i] = Entry{Item: it}
	}
	assignRanksWithTies(out)
	return out, nil
}

// Stats returns count, average, min and max for a category.
func (s *MemoryStore) Stats(ctx context.Context, cat string) (Stats, error) {
	st := Stats{Category: cat}
	c := s.category(cat, false)
	if c == nil {
		return st, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	sum := 0.0
	for _, it := range c.byID {
		if st.Count == 0 || it.Rating < st.Min {
			st.Min = it.Rating
		}
		if st.Count == 0 || it.Rating > st.Max {
			st.Max = it.Rating
		}
		sum += it.Rating
		st.Count++
	}
	if st.Count > 0 {
		st.Average = sum / float64(st.Count)
	}
	return st, nil
}

// Count returns the number of items in a category.
func (s *MemoryStore) Count(ctx context.Context, cat string) int {
	c := s.category(cat, false)
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Categories returns the known category names, sorted.
func (s *MemoryStore) Categories(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.categories))
	for name := range s.categories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// startMetricsUpdater periodically publishes per-category sizes.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics(ctx)
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics(ctx context.Context) {
	total := 0
	for _, name := range s.Categories(ctx) {
		n := s.Count(ctx, name)
		metrics.UpdateRepositoryItemsPerCategory(name, n)
		total += n
	}
	metrics.UpdateRepositoryRecordsTotal(total)
}

// assignRanksWithTies assigns dense ranks: items with the same rating share
// a rank and the next distinct rating takes the next rank.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Item.Rating != entries[i-1].Item.Rating {
			rank++
		}
		entries[i].Rank = rank
	}
}
