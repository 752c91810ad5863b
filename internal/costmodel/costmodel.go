// Package costmodel holds the authoritative per-slot resource cost
// schedule and the refund rule applied on Abandon.
package costmodel

import "github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"

// TunerSchedule is tuners spent revealing slots 1..5 (1-indexed by slot,
// TunerSchedule[n-1] is the cost of slot n).
var TunerSchedule = [catalog_MaxSlots]int{1, 1, 3, 6, 9}

// ExpSchedule is exp spent revealing slots 1..5.
var ExpSchedule = [catalog_MaxSlots]int{0, 0, 1600, 2000, 2800}

// catalog_MaxSlots mirrors catalog.MaxSlots without importing the catalog
// package, avoiding an import cycle since catalog never needs cost data.
const catalog_MaxSlots = 5

// Weights are the per-unit costs of each resource axis.
type Weights struct {
	Echo  float64
	Tuner float64
	Exp   float64
}

// Model is the full per-attempt cost model: resource weights plus refund ratio.
type Model struct {
	Weights Weights
	// Refund is r in [0, 0.75]: the fraction of spent exp refunded on Abandon.
	Refund float64
}

// New validates and constructs a cost Model.
func New(w Weights, refund float64) (Model, error) {
	if w.Echo < 0 || w.Tuner < 0 || w.Exp < 0 {
		return Model{}, apperrors.InvalidInput("costWeights", "cost weights must be non-negative")
	}
	if refund < 0 || refund > 0.75 {
		return Model{}, apperrors.InvalidInput("expRefundRatio", "refund ratio must be within [0, 0.75]")
	}
	return Model{Weights: w, Refund: refund}, nil
}

// SlotCost returns the immediate cost of revealing slot n (1-indexed),
// c(n): echo is booked once, on slot 1.
func (m Model) SlotCost(n int) float64 {
	if n < 1 || n > catalog_MaxSlots {
		return 0
	}
	cost := m.Weights.Tuner*float64(TunerSchedule[n-1]) + m.Weights.Exp*float64(ExpSchedule[n-1])
	if n == 1 {
		cost += m.Weights.Echo
	}
	return cost
}

// ExpEmbedded returns the total exp already sunk into a state with n
// revealed slots — the quantity the refund ratio is applied to on Abandon.
func ExpEmbedded(n int) float64 {
	total := 0
	for i := 0; i < n && i < catalog_MaxSlots; i++ {
		total += ExpSchedule[i]
	}
	return float64(total)
}

// Isolated returns a copy of m with every weight zeroed except axis, which
// keeps its weight from m. Table.Decompose does not use it; it builds its own
// models with the isolated axis weighted 1.
func (m Model) Isolated(axis string) Model {
	iso := m
	iso.Weights = Weights{}
	switch axis {
	case "echo":
		iso.Weights.Echo = m.Weights.Echo
	case "tuner":
		iso.Weights.Tuner = m.Weights.Tuner
	case "exp":
		iso.Weights.Exp = m.Weights.Exp
	}
	return iso
}
