// Package reroll ranks which baseline slots to lock before redrawing the
// rest, reusing the already-solved policy table's own state lookup as its
// "evaluate from seed" entry point — the full DP table already enumerates
// every reachable (buff-subset, values) combination, so a lock-set's
// continuation value is just a lookup, not a fresh solve.
package reroll

import (
	"sort"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/enginestate"
	"github.com/2-07665/ww-echo-policy-calculator/internal/policycache"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
)

// Query is a reroll request: a full five-slot baseline artifact, an
// optional (possibly partial) candidate redraw, and how many ranked
// lock-sets to return.
type Query struct {
	Baseline  [catalog.MaxSlots]policycache.RevealedBuff
	Candidate []policycache.RevealedBuff
	TopK      int
	// RerollCost is the fixed resource cost of one reroll action, charged
	// whenever a lock-set redraws at least one slot. Modeled explicitly here
	// so it varies per request like every other cost input instead of being
	// a hidden global.
	RerollCost float64
}

// Choice is one ranked lock-set.
type Choice struct {
	LockSlotIndices    []int
	ExpectedCost       float64
	SuccessProbability float64
	Regret             float64
}

// Result is query_reroll_recommendation's response.
type Result struct {
	Valid              bool
	BaselineScore      float64
	CandidateScore     float64
	HasCandidateScore  bool
	AcceptCandidate    *bool
	RecommendedChoices []Choice
}

// Solve ranks every admissible lock-set of q.Baseline by expected cost
// under the already-solved policy behind handle.
func Solve(handle policycache.Handle, q Query) (Result, error) {
	view, err := handle.View()
	if err != nil {
		return Result{}, err
	}
	if err := validateBaseline(view.Catalogue, q.Baseline); err != nil {
		return Result{}, err
	}

	baselineScore := scoreOf(view.Scorer, view.Catalogue, q.Baseline[:])

	choices := make([]Choice, 0, 1<<uint(catalog.MaxSlots))
	for _, lockSet := range allLockSets(catalog.MaxSlots) {
		seed := seedState(view.Catalogue, view.Scorer, q.Baseline, lockSet)
		e, ok := view.Table.Get(seed)
		if !ok {
			continue
		}

		cost := e.Value.Load()
		if len(lockSet) < catalog.MaxSlots {
			cost += q.RerollCost
		}

		choices = append(choices, Choice{
			LockSlotIndices:    toOneBased(lockSet),
			ExpectedCost:       cost,
			SuccessProbability: view.Table.SuccessProbability(seed),
		})
	}
	if len(choices) == 0 {
		return Result{}, apperrors.NotReady("no admissible lock-set evaluated; policy does not cover this baseline's catalogue")
	}

	sort.Slice(choices, func(i, j int) bool { return choices[i].ExpectedCost < choices[j].ExpectedCost })
	best := choices[0].ExpectedCost
	for i := range choices {
		choices[i].Regret = choices[i].ExpectedCost - best
	}

	if q.TopK > 0 && q.TopK < len(choices) {
		choices = choices[:q.TopK]
	}

	result := Result{
		Valid:              true,
		BaselineScore:      baselineScore,
		RecommendedChoices: choices,
	}

	if isFullySpecified(q.Candidate) {
		candidateScore := scoreOf(view.Scorer, view.Catalogue, q.Candidate)
		result.CandidateScore = candidateScore
		result.HasCandidateScore = true

		// "the best lock-set's expected cost is not improved by rerolling
		// from B" holds exactly when the no-reroll (lock-all) choice is
		// itself the top-ranked one.
		noRerollIsBest := choices[0].Regret == 0 && len(choices[0].LockSlotIndices) == catalog.MaxSlots
		accept := candidateScore >= baselineScore && noRerollIsBest
		result.AcceptCandidate = &accept
	}

	return result, nil
}

func validateBaseline(cat *catalog.Catalogue, baseline [catalog.MaxSlots]policycache.RevealedBuff) error {
	seen := make(map[catalog.BuffID]bool, catalog.MaxSlots)
	for _, r := range baseline {
		if seen[r.BuffID] {
			return apperrors.InvalidInput("baselineBuffNames", "duplicate buff id in baseline: "+string(r.BuffID))
		}
		seen[r.BuffID] = true
		if _, ok := cat.Lookup(r.BuffID); !ok {
			return apperrors.InvalidInput("baselineBuffNames", "unknown buff id: "+string(r.BuffID))
		}
	}
	return nil
}

func scoreOf(sc *scorer.Scorer, cat *catalog.Catalogue, pairs []policycache.RevealedBuff) float64 {
	total := 0.0
	for _, p := range pairs {
		if b, ok := cat.Lookup(p.BuffID); ok {
			total += sc.ScoreSlot(b, p.Value)
		}
	}
	return total
}

// allLockSets enumerates every subset of {0,...,n-1} (0-indexed baseline
// slot positions), in ascending bitmask order starting from the empty set,
// as the admissible lock-set universe —
// sizes are typically 0..4, but the size-5 no-reroll case must be
// admissible too, so the full 2^n powerset is used.
func allLockSets(n int) [][]int {
	out := make([][]int, 0, 1<<uint(n))
	for mask := 0; mask < (1 << uint(n)); mask++ {
		var set []int
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				set = append(set, i)
			}
		}
		out = append(out, set)
	}
	return out
}

func seedState(cat *catalog.Catalogue, sc *scorer.Scorer, baseline [catalog.MaxSlots]policycache.RevealedBuff, lockSet []int) enginestate.State {
	s := enginestate.Root()
	for _, idx := range lockSet {
		r := baseline[idx]
		s = s.Extend(cat, sc, r.BuffID, r.Value)
	}
	return s
}

func toOneBased(lockSet []int) []int {
	out := make([]int, len(lockSet))
	for i, idx := range lockSet {
		out[i] = idx + 1
	}
	return out
}

func isFullySpecified(candidate []policycache.RevealedBuff) bool {
	return len(candidate) == catalog.MaxSlots
}
