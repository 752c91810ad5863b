// Package enginestate is the canonical representation of an in-progress
// enhancement and its transitions under the game's random draw rule. States
// are immutable values, and a driver visits them in a fixed traversal
// order, topological by reveal count.
package enginestate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
)

// Revealed is one (buff, value) observation in a state, always carried in
// canonical (sorted-by-id) order since the DP's value function does not
// depend on reveal order — only the set of revealed buffs, their values,
// and the count n = |revealed| (which drives the cost schedule) matter.
type Revealed struct {
	BuffID catalog.BuffID
	Value  int
}

// State is an immutable value: the canonical representation of 0..MaxSlots
// distinct revealed buffs plus their accumulated score. Two States with the
// same revealed set (regardless of original reveal order) are equal and
// share one Key.
type State struct {
	Revealed []Revealed
	Score    float64
}

// Root is the initial state s0 with no reveals.
func Root() State {
	return State{}
}

// Stage returns n = |revealed|, the slot index about to be filled.
func (s State) Stage() int { return len(s.Revealed) }

// Terminal reports whether the state has all MaxSlots buffs revealed.
func (s State) Terminal() bool { return len(s.Revealed) >= catalog.MaxSlots }

// Succeeds reports whether the state's accumulated score meets target
// within the numeric tolerance used throughout the solver (1e-9).
func (s State) Succeeds(target float64) bool {
	const tol = 1e-9
	return s.Score >= target-tol
}

// HasBuff reports whether id has already been revealed in s.
func (s State) HasBuff(id catalog.BuffID) bool {
	for _, r := range s.Revealed {
		if r.BuffID == id {
			return true
		}
	}
	return false
}

// Remaining returns the buff ids from the catalogue's canonical order not
// yet revealed in s.
func (s State) Remaining(c *catalog.Catalogue) []catalog.BuffID {
	out := make([]catalog.BuffID, 0, len(c.Order())-len(s.Revealed))
	for _, id := range c.Order() {
		if !s.HasBuff(id) {
			out = append(out, id)
		}
	}
	return out
}

// Extend returns the successor state reached by revealing (id, value),
// inserted to keep Revealed canonically sorted by buff id, with score
// advanced incrementally by sc.ScoreSlot.
func (s State) Extend(c *catalog.Catalogue, sc *scorer.Scorer, id catalog.BuffID, value int) State {
	b, _ := c.Lookup(id)
	next := make([]Revealed, len(s.Revealed), len(s.Revealed)+1)
	copy(next, s.Revealed)
	next = append(next, Revealed{BuffID: id, Value: value})
	sort.Slice(next, func(i, j int) bool { return next[i].BuffID < next[j].BuffID })
	return State{
		Revealed: next,
		Score:    s.Score + sc.ScoreSlot(b, value),
	}
}

// Key returns a canonical string key suitable for map-based memoisation.
// Score is intentionally excluded from the key's identity components beyond
// what Revealed already encodes, since score is a deterministic function of
// Revealed under a fixed scorer — but we still need a discriminator when two
// different scorers could in principle produce colliding keys, so Key
// encodes the raw (id,value) pairs only and callers must not share a
// PolicyTable across scorer variants (policycache enforces this via its
// fingerprint).
func (s State) Key() string {
	var b strings.Builder
	for _, r := range s.Revealed {
		b.WriteString(string(r.BuffID))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(r.Value))
		b.WriteByte(',')
	}
	return b.String()
}

// Pairs converts Revealed entries to scorer.Pair values for recomputation
// checks, which must agree bit-for-bit with incremental scoring.
func (s State) Pairs(c *catalog.Catalogue) []scorer.Pair {
	out := make([]scorer.Pair, len(s.Revealed))
	for i, r := range s.Revealed {
		b, _ := c.Lookup(r.BuffID)
		out[i] = scorer.Pair{Buff: b, Value: r.Value}
	}
	return out
}

// Transition is one (successor, probability) edge out of a non-terminal
// state: P(s -> s U {(b,v)}) = (1/(|Buffs|-n)) * p_v.
type Transition struct {
	Next State
	Prob float64
}

// Transitions enumerates every successor of s and its draw probability. s
// must not be Terminal.
func Transitions(c *catalog.Catalogue, sc *scorer.Scorer, s State) []Transition {
	remaining := s.Remaining(c)
	if len(remaining) == 0 {
		return nil
	}
	buffProb := 1.0 / float64(len(remaining))

	out := make([]Transition, 0, len(remaining)*4)
	for _, id := range remaining {
		b, _ := c.Lookup(id)
		for _, vp := range b.Grid {
			out = append(out, Transition{
				Next: s.Extend(c, sc, id, vp.Value),
				Prob: buffProb * vp.Prob,
			})
		}
	}
	return out
}

// Visit walks every reachable state from root in topological order — by
// decreasing stage first is what the DP driver needs (children solved
// before parents), but Visit itself just enumerates breadth-first from the
// root and lets the caller bucket by stage.
func Visit(c *catalog.Catalogue, sc *scorer.Scorer, fn func(State)) {
	frontier := []State{Root()}
	seen := map[string]bool{Root().Key(): true}
	for len(frontier) > 0 {
		var next []State
		for _, s := range frontier {
			fn(s)
			if s.Terminal() {
				continue
			}
			for _, t := range Transitions(c, sc, s) {
				if k := t.Next.Key(); !seen[k] {
					seen[k] = true
					next = append(next, t.Next)
				}
			}
		}
		frontier = next
	}
}
