// Package policycache maps a solve request to its SolvedPolicy, de-duplicates
// concurrent identical computes, and bounds retention with an LRU eviction
// policy: a small fixed-size table of independent runs keyed by request
// fingerprint.
package policycache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/lambdasearch"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
	"github.com/2-07665/ww-echo-policy-calculator/internal/solver"

	"golang.org/x/sync/singleflight"
)

// DefaultBound is the suggested LRU bound: a small bound, e.g. 8.
const DefaultBound = 8

// SolvedPolicy is the immutable result of one compute: the solved policy
// table plus the derived summary figures. Once built it is never mutated,
// so concurrent readers never observe a half-built table.
type SolvedPolicy struct {
	Fingerprint            string
	ComputedAt             time.Time
	TargetScore            float64
	Cost                   costmodel.Model
	LambdaStar             float64
	ExpectedCostPerSuccess float64
	SuccessProbability     float64
	EchoPerSuccess         float64
	TunerPerSuccess        float64
	ExpPerSuccess          float64
	ComputeSeconds         float64

	table *solver.Table
	cat   *catalog.Catalogue
	sc    *scorer.Scorer
}

// entry is the LRU list payload: a policy plus its borrow count. Eviction
// is count-blind — a new compute always inserts — so refs is bookkeeping
// for callers, not an eviction guard; the underlying
// SolvedPolicy a Handle already holds stays valid (ordinary Go GC retention)
// even after its entry is evicted from the index.
type entry struct {
	policy *SolvedPolicy
	refs   int32
}

// Cache is the bounded, fingerprint-keyed policy store. Safe for concurrent use.
type Cache struct {
	cat   *catalog.Catalogue
	bound int

	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element

	group singleflight.Group
}

// New builds a Cache over cat with the given LRU bound (DefaultBound if <= 0).
func New(cat *catalog.Catalogue, bound int) *Cache {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Cache{
		cat:   cat,
		bound: bound,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Compute implements compute_policy: on a fingerprint hit, returns a
// borrowed handle to the cached policy; on a miss, solves once per
// fingerprint even under concurrent callers (singleflight) and inserts the
// result.
func (c *Cache) Compute(ctx context.Context, req Request) (Handle, error) {
	if err := req.validate(c.cat); err != nil {
		return Handle{}, err
	}
	fp := req.fingerprint()

	if h, ok := c.lookup(fp); ok {
		return h, nil
	}

	v, err, _ := c.group.Do(fp, func() (interface{}, error) {
		return c.solve(ctx, req, fp)
	})
	if err != nil {
		return Handle{}, err
	}
	return c.insert(fp, v.(*SolvedPolicy)), nil
}

func (c *Cache) solve(ctx context.Context, req Request, fp string) (*SolvedPolicy, error) {
	start := time.Now()

	sc, err := scorer.New(req.Scorer, req.Weights)
	if err != nil {
		return nil, err
	}

	cat := c.cat
	if req.BlendUserData {
		cat = cat.WithUserCounts(req.UserCounts)
	}
	d := solver.NewDiscoverer(cat, sc, req.Target)

	result, err := lambdasearch.Search(ctx, d, req.Cost, req.LambdaOpts)
	if err != nil {
		return nil, err
	}

	return &SolvedPolicy{
		Fingerprint:            fp,
		ComputedAt:             time.Now(),
		TargetScore:            req.Target,
		Cost:                   req.Cost,
		LambdaStar:             result.LambdaStar,
		ExpectedCostPerSuccess: result.LambdaStar,
		SuccessProbability:     result.SuccessProbability,
		EchoPerSuccess:         result.EchoPerSuccess,
		TunerPerSuccess:        result.TunerPerSuccess,
		ExpPerSuccess:          result.ExpPerSuccess,
		ComputeSeconds:         time.Since(start).Seconds(),
		table:                  result.Table,
		cat:                    cat,
		sc:                     sc,
	}, nil
}

func (c *Cache) lookup(fp string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[fp]
	if !ok {
		return Handle{}, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*entry)
	atomic.AddInt32(&e.refs, 1)
	return Handle{entry: e}, true
}

func (c *Cache) insert(fp string, policy *SolvedPolicy) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have inserted the same fingerprint between our
	// lookup miss and singleflight resolving (e.g. it was evicted and
	// recomputed concurrently); if so, share that entry instead of
	// duplicating it in the index.
	if el, ok := c.index[fp]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*entry)
		atomic.AddInt32(&e.refs, 1)
		return Handle{entry: e}
	}

	e := &entry{policy: policy, refs: 1}
	el := c.order.PushFront(e)
	c.index[fp] = el

	for c.order.Len() > c.bound {
		back := c.order.Back()
		if back == nil {
			break
		}
		victim := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.index, victim.policy.Fingerprint)
	}

	return Handle{entry: e}
}

// Len reports the current number of cached policies, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
