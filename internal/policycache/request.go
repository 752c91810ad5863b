package policycache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/lambdasearch"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
)

// Request is compute_policy's input, and the fingerprint key for the cache.
type Request struct {
	Weights       catalog.WeightVector
	Target        float64
	Scorer        scorer.Variant
	Cost          costmodel.Model
	BlendUserData bool
	// UserCounts is only consulted when BlendUserData is true; see
	// catalog.Catalogue.WithUserCounts.
	UserCounts map[catalog.BuffID]map[int]uint64
	LambdaOpts lambdasearch.Options
}

// validate enforces the range checks that map to InvalidInput: unknown or
// negative weights, and a target out of bounds for the chosen scorer
// (Linear: [0,100]; Fixed: [0, sum of top-K weights]).
func (r Request) validate(cat *catalog.Catalogue) error {
	if err := r.Weights.Validate(cat); err != nil {
		return err
	}
	switch r.Scorer {
	case scorer.Linear:
		if r.Target < 0 || r.Target > 100 {
			return apperrors.InvalidInput("targetScore", "linear scorer target must be within [0, 100]")
		}
	case scorer.Fixed:
		topK := r.Weights.TopKSum(catalog.MaxSlots)
		if r.Target < 0 || r.Target > topK {
			return apperrors.InvalidInput("targetScore", "fixed scorer target must be within [0, sum of top-K weights]")
		}
	default:
		return apperrors.InvalidInput("scorerType", "unknown scorer variant: "+string(r.Scorer))
	}
	return nil
}

// fingerprint builds the cache key: the weight vector rounded to 1e-9,
// target, scorer variant, cost weights, refund ratio, and — when blending is
// on — the actual user counts supplied, so two requests that both set
// BlendUserData but blend different empirical counts never collide on the
// same key. Buff ids and count values are sorted first so iteration order
// over either map never affects the key.
func (r Request) fingerprint() string {
	ids := make([]string, 0, len(r.Weights))
	for id := range r.Weights {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%s=%.9f;", id, r.Weights[catalog.BuffID(id)])
	}
	fmt.Fprintf(&b, "|target=%.9f|scorer=%s|echo=%.9f|tuner=%.9f|exp=%.9f|refund=%.9f|blend=%t",
		r.Target, r.Scorer, r.Cost.Weights.Echo, r.Cost.Weights.Tuner, r.Cost.Weights.Exp, r.Cost.Refund, r.BlendUserData)
	if r.BlendUserData {
		b.WriteString("|counts=")
		b.WriteString(fingerprintUserCounts(r.UserCounts))
	}
	return b.String()
}

// fingerprintUserCounts serializes the empirical count map deterministically:
// buff ids sorted, then observed values sorted within each buff.
func fingerprintUserCounts(counts map[catalog.BuffID]map[int]uint64) string {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		byValue := counts[catalog.BuffID(id)]
		values := make([]int, 0, len(byValue))
		for v := range byValue {
			values = append(values, v)
		}
		sort.Ints(values)

		fmt.Fprintf(&b, "%s:", id)
		for _, v := range values {
			fmt.Fprintf(&b, "%d=%d,", v, byValue[v])
		}
		b.WriteByte(';')
	}
	return b.String()
}
