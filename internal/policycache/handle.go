package policycache

import (
	"sync/atomic"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/enginestate"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
	"github.com/2-07665/ww-echo-policy-calculator/internal/solver"
)

// Handle is a borrowed, reference-counted view onto a cached SolvedPolicy —
// the cache exclusively owns SolvedPolicy entries; requests receive a
// borrowed view. The zero Handle represents "no policy computed yet" and
// every query on it returns NotReady.
type Handle struct {
	entry *entry
}

// Release gives up this handle's borrow. It does not force eviction; the
// cache's LRU bound is the only thing that retires an entry from lookup.
func (h Handle) Release() {
	if h.entry == nil {
		return
	}
	atomic.AddInt32(&h.entry.refs, -1)
}

// Ready reports whether h refers to a computed policy.
func (h Handle) Ready() bool { return h.entry != nil }

// View exposes the read-only internals the reroll solver and Monte-Carlo
// validator need to build derived queries against an already-solved policy
// — evaluate from seed rather than duplicating the recursion — without
// handing out the mutable cache entry itself.
type View struct {
	Table       *solver.Table
	Catalogue   *catalog.Catalogue
	Scorer      *scorer.Scorer
	Cost        costmodel.Model
	LambdaStar  float64
	TargetScore float64
}

// View returns h's underlying policy internals, or NotReady if h is unset.
func (h Handle) View() (View, error) {
	if h.entry == nil {
		return View{}, apperrors.NotReady("policy view requested before any compute")
	}
	p := h.entry.policy
	return View{
		Table:       p.table,
		Catalogue:   p.cat,
		Scorer:      p.sc,
		Cost:        p.Cost,
		LambdaStar:  p.LambdaStar,
		TargetScore: p.TargetScore,
	}, nil
}

// Summary is summary()'s result.
type Summary struct {
	LambdaStar             float64
	ExpectedCostPerSuccess float64
	SuccessProbability     float64
	EchoPerSuccess         float64
	TunerPerSuccess        float64
	ExpPerSuccess          float64
	ComputeSeconds         float64
	TargetScore            float64
}

// Summary implements summary(handle): a non-blocking read of the
// already-solved policy's derived figures.
func (h Handle) Summary() (Summary, error) {
	if h.entry == nil {
		return Summary{}, apperrors.NotReady("summary requested before any compute")
	}
	p := h.entry.policy
	return Summary{
		LambdaStar:             p.LambdaStar,
		ExpectedCostPerSuccess: p.ExpectedCostPerSuccess,
		SuccessProbability:     p.SuccessProbability,
		EchoPerSuccess:         p.EchoPerSuccess,
		TunerPerSuccess:        p.TunerPerSuccess,
		ExpPerSuccess:          p.ExpPerSuccess,
		ComputeSeconds:         p.ComputeSeconds,
		TargetScore:            p.TargetScore,
	}, nil
}

// RevealedBuff is one observed (buff, value) pair in a suggest() query.
type RevealedBuff struct {
	BuffID catalog.BuffID
	Value  int
}

// Suggestion is suggest()'s result.
type Suggestion struct {
	Decision           string
	Stage              int
	SuccessProbability float64
}

// Suggest implements suggest(handle, revealed): canonicalise the reveal
// list into a state and return its decision, stage, and precomputed
// success probability. Non-blocking — a table lookup plus the (cached
// after first call) success-probability pass.
func (h Handle) Suggest(revealed []RevealedBuff) (Suggestion, error) {
	if h.entry == nil {
		return Suggestion{}, apperrors.NotReady("suggestion requested before any compute")
	}
	p := h.entry.policy

	state, err := canonicalize(p.cat, p.sc, revealed)
	if err != nil {
		return Suggestion{}, err
	}

	decisionEntry, ok := p.table.Get(state)
	if !ok {
		return Suggestion{}, apperrors.InvalidInput("revealed", "state unreachable under this policy's catalogue")
	}

	return Suggestion{
		Decision:           decisionEntry.Decision.String(),
		Stage:              state.Stage(),
		SuccessProbability: p.table.SuccessProbability(state),
	}, nil
}

func canonicalize(cat *catalog.Catalogue, sc *scorer.Scorer, revealed []RevealedBuff) (enginestate.State, error) {
	if len(revealed) > catalog.MaxSlots {
		return enginestate.State{}, apperrors.InvalidInput("revealed", "more than MaxSlots buffs revealed")
	}
	seen := make(map[catalog.BuffID]bool, len(revealed))
	s := enginestate.Root()
	for _, r := range revealed {
		if seen[r.BuffID] {
			return enginestate.State{}, apperrors.InvalidInput("revealed", "duplicate buff id: "+string(r.BuffID))
		}
		seen[r.BuffID] = true
		if _, ok := cat.Lookup(r.BuffID); !ok {
			return enginestate.State{}, apperrors.InvalidInput("revealed", "unknown buff id: "+string(r.BuffID))
		}
		s = s.Extend(cat, sc, r.BuffID, r.Value)
	}
	return s, nil
}
