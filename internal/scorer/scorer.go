// Package scorer implements the two interchangeable scoring functions
// (Linear and Fixed) behind a single Score operation: a tagged variant with
// two arms sharing a common operation, rather than a subclass hierarchy.
package scorer

import (
	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
)

// Variant selects between the Linear and Fixed scoring rules.
type Variant string

const (
	Linear Variant = "linear"
	Fixed  Variant = "fixed"
)

// Scorer evaluates the per-slot and cumulative score of revealed buffs
// under a fixed weight vector and scorer variant.
type Scorer struct {
	variant Variant
	weights catalog.WeightVector
	// topKSum is S in the Linear formula: the sum of the top-MaxSlots
	// weights. Precomputed once per request since it is invariant across
	// every state the DP visits.
	topKSum float64
}

// New validates variant and builds a Scorer bound to weights.
func New(variant Variant, weights catalog.WeightVector) (*Scorer, error) {
	switch variant {
	case Linear, Fixed:
	default:
		return nil, apperrors.InvalidInput("scorerType", "unknown scorer variant: "+string(variant))
	}
	return &Scorer{
		variant: variant,
		weights: weights,
		topKSum: weights.TopKSum(catalog.MaxSlots),
	}, nil
}

// Variant returns the bound scorer variant.
func (s *Scorer) Variant() Variant { return s.variant }

// MaxScore returns the maximum total score attainable under this scorer:
// 100 for Linear and topKSum for Fixed.
func (s *Scorer) MaxScore() float64 {
	if s.variant == Fixed {
		return s.topKSum
	}
	return 100
}

// ScoreSlot computes the score contribution of a single revealed (buff,
// value) pair. For Linear: 100*w_b*v/(S*M_b). For Fixed: w_b, independent
// of value.
func (s *Scorer) ScoreSlot(b catalog.Buff, value int) float64 {
	w := s.weights.Get(b.ID)
	if s.variant == Fixed {
		return w
	}
	if s.topKSum == 0 || b.MaxValue == 0 {
		return 0
	}
	return 100 * w * float64(value) / (s.topKSum * float64(b.MaxValue))
}

// ScoreTotal recomputes the score of a full (buff,value) set from scratch;
// used to cross-check the DP's incremental accumulation, which must agree
// to within 1e-9 relative error.
func (s *Scorer) ScoreTotal(pairs []Pair) float64 {
	total := 0.0
	for _, p := range pairs {
		total += s.ScoreSlot(p.Buff, p.Value)
	}
	return total
}

// Pair is a revealed (buff, value) observation, the unit both the scorer
// and the state package operate on.
type Pair struct {
	Buff  catalog.Buff
	Value int
}
