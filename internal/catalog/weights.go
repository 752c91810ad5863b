package catalog

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
)

// WeightVector maps a buff id to a non-negative real weight. Zero-weight
// buffs remain drawable but are semantically inert.
type WeightVector map[BuffID]float64

// Validate checks every weight is non-negative and every id is known to the
// catalogue.
func (w WeightVector) Validate(c *Catalogue) error {
	for id, v := range w {
		if v < 0 {
			return apperrors.InvalidInput("buffWeights["+string(id)+"]", "weight must be non-negative")
		}
		if _, ok := c.Lookup(id); !ok {
			return apperrors.InvalidInput("buffWeights["+string(id)+"]", "unknown buff id")
		}
	}
	return nil
}

// Get returns the weight for id, defaulting to 0.
func (w WeightVector) Get(id BuffID) float64 {
	return w[id]
}

// TopKSum returns the sum of the k largest weights in w, i.e. S in the
// Linear scorer's normalisation. Uses gonum/floats for the underlying sum
// once the candidate set is selected.
func (w WeightVector) TopKSum(k int) float64 {
	vals := make([]float64, 0, len(w))
	for _, v := range w {
		vals = append(vals, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	if k > len(vals) {
		k = len(vals)
	}
	return floats.Sum(vals[:k])
}
