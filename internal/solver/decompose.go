package solver

import (
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/enginestate"
)

// Decompose returns the expected raw resource draws per success for each
// cost axis, plus the success probability at the root, under the table's
// already-fixed continue/abandon decisions. It reuses the identity behind
// lambda* itself — lambda* equals E[cost per attempt] / successProbability
// at the root — applied per axis with that axis's weight isolated to 1 and
// the others zeroed, so the "cost" of an isolated axis is exactly its raw
// draw count.
func (t *Table) Decompose(refund float64) (echoPerSuccess, tunerPerSuccess, expPerSuccess, successProbability float64) {
	root := enginestate.Root()

	successProbability = t.SuccessProbability(root)
	if successProbability <= 0 {
		return 0, 0, 0, successProbability
	}

	echoModel, _ := costmodel.New(costmodel.Weights{Echo: 1}, refund)
	tunerModel, _ := costmodel.New(costmodel.Weights{Tuner: 1}, refund)
	expModel, _ := costmodel.New(costmodel.Weights{Exp: 1}, refund)

	rootKey := root.Key()
	echoPerSuccess = t.resourcePass(&echoModel)[rootKey] / successProbability
	tunerPerSuccess = t.resourcePass(&tunerModel)[rootKey] / successProbability
	expPerSuccess = t.resourcePass(&expModel)[rootKey] / successProbability
	return
}

// resourcePass walks the table bottom-up under its fixed decisions,
// computing one quantity per state: success-probability when model is
// nil, or isolated expected resource consumption when model is given.
// Both share the same combine rule (expectation over an already-solved
// child set) and differ only in their terminal and abandon leaf values.
func (t *Table) resourcePass(model *costmodel.Model) map[string]float64 {
	values := make(map[string]float64, len(t.entries))
	for n := catalog.MaxSlots; n >= 0; n-- {
		states := t.byStage[n]
		edges := t.children[n]
		for i, s := range states {
			key := s.Key()
			if s.Terminal() {
				if model == nil && s.Succeeds(t.target) {
					values[key] = 1
				} else {
					values[key] = 0
				}
				continue
			}

			entry := t.entries[key]
			if entry.Decision == Abandon {
				if model == nil {
					values[key] = 0
				} else {
					values[key] = -model.Refund * model.Weights.Exp * costmodel.ExpEmbedded(n)
				}
				continue
			}

			expected := 0.0
			for _, e := range edges[i] {
				child := t.byStage[n+1][e.childIdx]
				expected += e.prob * values[child.Key()]
			}
			if model == nil {
				values[key] = expected
			} else {
				values[key] = model.SlotCost(n+1) + expected
			}
		}
	}
	return values
}
