// Package solver implements the inner DP evaluator: given lambda, compute
// V_lambda over every reachable enhancement state and the resulting
// continue/abandon decision. A value-function sweep driven by a worker
// pool: exact dynamic programming over a topologically-ordered state space
// rather than Monte Carlo sampling.
package solver

import (
	"context"
	"math"
	"sync"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/enginestate"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
	"github.com/2-07665/ww-echo-policy-calculator/internal/solver/atomicfloat"
)

// Decision is the per-state continue/abandon advice.
type Decision int

const (
	Continue Decision = iota
	Abandon
)

func (d Decision) String() string {
	if d == Continue {
		return "Continue"
	}
	return "Abandon"
}

// Entry is one PolicyTable row: the solved value and decision for a state.
type Entry struct {
	Value    *atomicfloat.Float64
	Decision Decision
	Hopeless bool
}

// Table maps every reachable EnhancementState (by its canonical Key) to its
// solved Entry, plus the per-stage buckets the lambda-search and reroll
// solver need to walk the table in topological order.
type Table struct {
	entries map[string]*Entry
	byStage [catalog.MaxSlots + 1][]enginestate.State
	// children[k] holds the outgoing transitionEdges of byStage-indexed
	// state k, cached from discovery so Evaluate never recomputes them
	// across lambda-search iterations against the same request.
	children [catalog.MaxSlots + 1][][]transitionEdge
	target   float64

	// successOnce/successCache memoise the per-state success-probability
	// pass — precomputed per-state by a second linear pass over the DP
	// table, computed lazily on the first SuccessProbability call rather than
	// unconditionally during Evaluate.
	successOnce  sync.Once
	successCache map[string]float64
}

// SuccessProbability returns the probability of eventually reaching target
// from s under this table's fixed decisions, computing and caching the
// full per-state pass on first use.
func (t *Table) SuccessProbability(s enginestate.State) float64 {
	t.successOnce.Do(func() {
		t.successCache = t.resourcePass(nil)
	})
	return t.successCache[s.Key()]
}

// Get returns the solved entry for s, or false if s was never discovered
// (e.g. it is unreachable under the catalogue in force).
func (t *Table) Get(s enginestate.State) (Entry, bool) {
	e, ok := t.entries[s.Key()]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// RootValue returns V_lambda(s0), the quantity the lambda-search drives to zero.
func (t *Table) RootValue() float64 {
	e, ok := t.Get(enginestate.Root())
	if !ok {
		return 0
	}
	return e.Value.Load()
}

// Discoverer enumerates and caches the reachable state space once, since it
// is invariant across every lambda the outer search tries for a given
// request (catalogue, weights, scorer, target all fixed).
type Discoverer struct {
	cat    *catalog.Catalogue
	sc     *scorer.Scorer
	target float64

	byStage  [catalog.MaxSlots + 1][]enginestate.State
	children [catalog.MaxSlots + 1][][]transitionEdge
	// bestPerBuff holds each buff's score at its best roll. upperBound sums
	// the best (MaxSlots-n) of these among a state's remaining buffs for
	// hopeless pruning; that bound depends on which buffs are already
	// revealed, so it is computed per state rather than per stage.
	bestPerBuff map[catalog.BuffID]float64
}

// transitionEdge is a Transition resolved to its child's position within
// the next stage's bucket, so Evaluate never re-scans a stage to find a
// child's entry.
type transitionEdge struct {
	childIdx int
	prob     float64
}

// NewDiscoverer enumerates the full reachable state space for cat/sc once.
func NewDiscoverer(cat *catalog.Catalogue, sc *scorer.Scorer, target float64) *Discoverer {
	d := &Discoverer{cat: cat, sc: sc, target: target}
	d.bestPerBuff = make(map[catalog.BuffID]float64, len(cat.Order()))
	for _, id := range cat.Order() {
		b, _ := cat.Lookup(id)
		d.bestPerBuff[id] = sc.ScoreSlot(b, cat.BestValue(id))
	}

	root := enginestate.Root()
	d.byStage[0] = []enginestate.State{root}

	for n := 0; n < catalog.MaxSlots; n++ {
		stageStates := d.byStage[n]
		nextIdx := make(map[string]int, len(stageStates)*4)
		d.children[n] = make([][]transitionEdge, len(stageStates))
		for i, s := range stageStates {
			trans := enginestate.Transitions(cat, sc, s)
			edges := make([]transitionEdge, len(trans))
			for j, t := range trans {
				k := t.Next.Key()
				idx, ok := nextIdx[k]
				if !ok {
					idx = len(d.byStage[n+1])
					nextIdx[k] = idx
					d.byStage[n+1] = append(d.byStage[n+1], t.Next)
				}
				edges[j] = transitionEdge{childIdx: idx, prob: t.Prob}
			}
			d.children[n][i] = edges
		}
	}
	return d
}

// upperBound returns the best additional score attainable from s: the sum
// of the top (MaxSlots - stage) per-buff best-slot scores among buffs not
// yet revealed in s.
func (d *Discoverer) upperBound(s enginestate.State) float64 {
	slotsLeft := catalog.MaxSlots - s.Stage()
	if slotsLeft <= 0 {
		return 0
	}
	remaining := s.Remaining(d.cat)
	best := make([]float64, 0, len(remaining))
	for _, id := range remaining {
		best = append(best, d.bestPerBuff[id])
	}
	// Partial selection sort for the top slotsLeft values; the remaining
	// buff count is always small (catalogue size, at most a few dozen), so
	// this is cheaper than a full sort.Sort call per state.
	total := 0.0
	for k := 0; k < slotsLeft && k < len(best); k++ {
		maxIdx := k
		for j := k + 1; j < len(best); j++ {
			if best[j] > best[maxIdx] {
				maxIdx = j
			}
		}
		best[k], best[maxIdx] = best[maxIdx], best[k]
		total += best[k]
	}
	return total
}

// Evaluate runs the Bellman sweep for lambda over the discovered state
// space, stage by stage from terminal (MaxSlots) down to the root, in the
// topological order the dependency structure requires. Each stage's states
// are independent given the next stage's finalised values, so they are
// evaluated across a bounded worker pool; the completed Table is only
// assembled after every stage finishes, publishing the result atomically.
func Evaluate(ctx context.Context, d *Discoverer, cost costmodel.Model, lambda float64, workers int) (*Table, error) {
	if workers < 1 {
		workers = 1
	}

	table := &Table{entries: make(map[string]*Entry), target: d.target}
	// valuesByStage[n][i] corresponds to d.byStage[n][i]; written once by the
	// owning worker, read only after the stage's sweep() call returns.
	var valuesByStage [catalog.MaxSlots + 1][]*Entry

	for n := catalog.MaxSlots; n >= 0; n-- {
		select {
		case <-ctx.Done():
			return nil, apperrors.Cancelled(ctx.Err())
		default:
		}

		states := d.byStage[n]
		entries := make([]*Entry, len(states))
		valuesByStage[n] = entries

		var childValues []*Entry
		if n < catalog.MaxSlots {
			childValues = valuesByStage[n+1]
		}

		if err := sweep(ctx, workers, len(states), func(i int) error {
			s := states[i]
			var edges []transitionEdge
			if n < catalog.MaxSlots {
				edges = d.children[n][i]
			}
			entry, err := evaluateOne(d, cost, lambda, n, s, edges, childValues)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		}); err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				return nil, apperrors.Cancelled(err)
			}
			return nil, err
		}

		table.byStage[n] = states
		table.children[n] = d.children[n]
		for i, s := range states {
			table.entries[s.Key()] = entries[i]
		}
	}

	root := table.entries[enginestate.Root().Key()]
	if root != nil && math.IsNaN(root.Value.Load()) {
		return nil, apperrors.Numeric(nil, "V_lambda(s0) is NaN")
	}
	return table, nil
}

// evaluateOne computes a single state's Entry given that every state one
// stage deeper has already been finalised in valuesByStage[n+1].
func evaluateOne(
	d *Discoverer,
	cost costmodel.Model,
	lambda float64,
	n int,
	s enginestate.State,
	edges []transitionEdge,
	childValues []*Entry,
) (*Entry, error) {
	if s.Terminal() {
		v := 0.0
		if s.Succeeds(d.target) {
			v = -lambda
		}
		return &Entry{Value: atomicfloat.New(v), Decision: Continue}, nil
	}

	expEmbedded := costmodel.ExpEmbedded(n)
	// Refund returns a fraction of exp already spent, so it is itself an
	// exp-axis quantity: weight it by w_exp to stay in the same cost units
	// as Q_continue.
	qAbandon := -cost.Refund * cost.Weights.Exp * expEmbedded
	if n == 0 {
		// Abandoning before any reveal is a no-op restart.
		qAbandon = 0
	}

	if ub := d.upperBound(s); s.Score+ub < d.target-1e-9 {
		// Hopeless: Continue can never beat Abandon, so don't pay for
		// exploring children.
		return &Entry{Value: atomicfloat.New(qAbandon), Decision: Abandon, Hopeless: true}, nil
	}

	expected := 0.0
	for _, e := range edges {
		expected += e.prob * childValues[e.childIdx].Value.Load()
	}
	qContinue := cost.SlotCost(n+1) + expected

	if math.IsNaN(qContinue) || math.IsInf(qContinue, 0) {
		return nil, apperrors.Numeric(nil, "Q_continue is not finite")
	}

	// Ties prefer Abandon, avoiding pathological loops.
	if qContinue < qAbandon {
		return &Entry{Value: atomicfloat.New(qContinue), Decision: Continue}, nil
	}
	return &Entry{Value: atomicfloat.New(qAbandon), Decision: Abandon}, nil
}
