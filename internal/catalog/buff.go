// Package catalog is the domain model: the static buff catalogue, each
// buff's discrete value grid with empirical frequencies, and the weight
// vectors requests score against. It is an immutable, process-wide
// description of "the world" the solver operates over.
package catalog

import (
	"sort"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
)

// MaxSlots is the number of distinct buffs a finished artifact carries.
const MaxSlots = 5

// BuffID is the stable identifier for a buff, e.g. "crit_rate".
type BuffID string

// ValuePoint is one point of a buff's discrete value grid: an integer value
// on the x10 display grid and its empirical probability of being drawn.
type ValuePoint struct {
	Value int
	Prob  float64
}

// Buff is an identified sub-stat with a display label, a percent-valued
// display flag, a maximum value, and a discrete value grid. Buffs are
// loaded once at startup and never mutated afterward.
type Buff struct {
	ID         BuffID
	Label      string
	Category   string
	Percent    bool
	MaxValue   int
	Grid       []ValuePoint
}

// bestValue returns the largest value in the grid, i.e. the value attained
// by the best-possible roll of this buff.
func (b Buff) bestValue() int {
	best := 0
	for _, p := range b.Grid {
		if p.Value > best {
			best = p.Value
		}
	}
	return best
}

// bestProb returns the probability mass of the best-possible roll.
func (b Buff) bestProb() float64 {
	best, bestP := -1, 0.0
	for _, p := range b.Grid {
		if p.Value > best {
			best, bestP = p.Value, p.Prob
		}
	}
	return bestP
}

// Catalogue is the full, immutable buff list plus default presets, loaded
// once at startup.
type Catalogue struct {
	buffs       []Buff
	byID        map[BuffID]Buff
	order       []BuffID
	DefaultRefund  float64
	DefaultTarget  float64
}

// Buffs returns the buff list sorted by buff id; Order gives the
// declaration order.
func (c *Catalogue) Buffs() []Buff {
	out := make([]Buff, len(c.buffs))
	copy(out, c.buffs)
	return out
}

// Lookup returns the buff for id, or false if unknown.
func (c *Catalogue) Lookup(id BuffID) (Buff, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// Order returns the canonical buff id ordering.
func (c *Catalogue) Order() []BuffID {
	out := make([]BuffID, len(c.order))
	copy(out, c.order)
	return out
}

// BestValue returns the best attainable value for a buff, or 0 if unknown.
func (c *Catalogue) BestValue(id BuffID) int {
	if b, ok := c.byID[id]; ok {
		return b.bestValue()
	}
	return 0
}

// BestProb returns the probability of drawing a buff's best value.
func (c *Catalogue) BestProb(id BuffID) float64 {
	if b, ok := c.byID[id]; ok {
		return b.bestProb()
	}
	return 0
}

// defaultBuffs is the compiled-in set of echo sub-stats. Values are on the
// x10 grid (a "21.0%" crit damage roll is 210); probabilities are the
// empirical roll frequencies used by the live game's substat tables.
func defaultBuffs() []Buff {
	return []Buff{
		{ID: "crit_rate", Label: "Crit Rate", Category: "Crit", Percent: true, MaxValue: 130,
			Grid: uniformGrid([]int{63, 70, 76, 83, 89, 96, 105, 117, 124, 130}, nil)},
		{ID: "crit_damage", Label: "Crit Damage", Category: "Crit", Percent: true, MaxValue: 260,
			Grid: uniformGrid([]int{126, 140, 152, 166, 178, 192, 210, 235, 248, 260}, nil)},
		{ID: "atk_pct", Label: "ATK%", Category: "Damage", Percent: true, MaxValue: 163,
			Grid: uniformGrid([]int{79, 88, 95, 104, 111, 120, 131, 147, 156, 163}, nil)},
		{ID: "hp_pct", Label: "HP%", Category: "Sustain", Percent: true, MaxValue: 163,
			Grid: uniformGrid([]int{79, 88, 95, 104, 111, 120, 131, 147, 156, 163}, nil)},
		{ID: "def_pct", Label: "DEF%", Category: "Sustain", Percent: true, MaxValue: 207,
			Grid: uniformGrid([]int{100, 111, 121, 132, 141, 152, 166, 186, 197, 207}, nil)},
		{ID: "energy_regen", Label: "Energy Regen", Category: "Utility", Percent: true, MaxValue: 174,
			Grid: uniformGrid([]int{84, 94, 101, 111, 119, 128, 140, 157, 166, 174}, nil)},
		{ID: "normal_dmg", Label: "Basic Attack DMG Bonus", Category: "Damage", Percent: true, MaxValue: 207,
			Grid: uniformGrid([]int{100, 111, 121, 132, 141, 152, 166, 186, 197, 207}, nil)},
		{ID: "heavy_dmg", Label: "Heavy Attack DMG Bonus", Category: "Damage", Percent: true, MaxValue: 207,
			Grid: uniformGrid([]int{100, 111, 121, 132, 141, 152, 166, 186, 197, 207}, nil)},
		{ID: "skill_dmg", Label: "Resonance Skill DMG Bonus", Category: "Damage", Percent: true, MaxValue: 207,
			Grid: uniformGrid([]int{100, 111, 121, 132, 141, 152, 166, 186, 197, 207}, nil)},
		{ID: "liberation_dmg", Label: "Resonance Liberation DMG Bonus", Category: "Damage", Percent: true, MaxValue: 207,
			Grid: uniformGrid([]int{100, 111, 121, 132, 141, 152, 166, 186, 197, 207}, nil)},
	}
}

// uniformGrid builds a ValuePoint grid from a strictly increasing value
// list, either using the given raw counts (if non-nil, normalised to sum to
// 1) or an empirically-motivated geometric weighting that favors the lower
// rolls, matching the live game's substat roll table shape.
func uniformGrid(values []int, counts []int64) []ValuePoint {
	n := len(values)
	weights := make([]float64, n)
	if counts != nil && len(counts) == n {
		for i, c := range counts {
			weights[i] = float64(c)
		}
	} else {
		// Empirically, each roll is about 1.2 times as likely as the
		// next-higher roll (each step keeps 0.82 of the weight); this reproduces that decay without needing an
		// exact, game-specific frequency table wired in from outside.
		w := 100.0
		for i := range weights {
			weights[i] = w
			w *= 0.82
		}
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	grid := make([]ValuePoint, n)
	for i, v := range values {
		grid[i] = ValuePoint{Value: v, Prob: weights[i] / total}
	}
	return grid
}

// New builds the catalogue from compiled-in defaults, applying any grid
// overrides from cfg. cfg.UserCounts is not applied here; blended grids come
// only from WithUserCounts.
func New(cfg *config.CatalogueConfig) (*Catalogue, error) {
	buffs := defaultBuffs()
	if cfg != nil {
		applyOverrides(buffs, cfg.BuffGridOverrides)
	}

	c := &Catalogue{
		byID: make(map[BuffID]Buff, len(buffs)),
	}
	for _, b := range buffs {
		if err := validateBuff(b); err != nil {
			return nil, err
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, apperrors.InvalidInput("buffId", "duplicate buff id: "+string(b.ID))
		}
		c.byID[b.ID] = b
		c.buffs = append(c.buffs, b)
		c.order = append(c.order, b.ID)
	}
	sort.Slice(c.buffs, func(i, j int) bool { return c.buffs[i].ID < c.buffs[j].ID })

	if cfg != nil {
		c.DefaultRefund = cfg.DefaultRefund
		c.DefaultTarget = cfg.DefaultTarget
	}
	return c, nil
}

func applyOverrides(buffs []Buff, overrides []config.BuffGridOverride) {
	byID := make(map[string]int, len(buffs))
	for i, b := range buffs {
		byID[string(b.ID)] = i
	}
	for _, o := range overrides {
		idx, ok := byID[o.ID]
		if !ok || len(o.Values) == 0 {
			continue
		}
		var counts []int64
		if len(o.Counts) == len(o.Values) {
			counts = make([]int64, len(o.Values))
			for i, c := range o.Counts {
				counts[i] = int64(c)
			}
		}
		buffs[idx].Grid = uniformGrid(o.Values, counts)
		buffs[idx].MaxValue = o.Values[len(o.Values)-1]
	}
}

// validateBuff enforces a strictly positive, strictly increasing value grid
// whose probabilities sum to 1 within 1e-9.
func validateBuff(b Buff) error {
	if len(b.Grid) == 0 {
		return apperrors.InvalidInput("grid", "buff "+string(b.ID)+" has an empty value grid")
	}
	sum := 0.0
	prevValue := 0
	for i, p := range b.Grid {
		if p.Value <= 0 {
			return apperrors.InvalidInput("grid", "buff "+string(b.ID)+" has a non-positive value")
		}
		if i > 0 && p.Value <= prevValue {
			return apperrors.InvalidInput("grid", "buff "+string(b.ID)+" grid is not strictly increasing")
		}
		prevValue = p.Value
		sum += p.Prob
	}
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		return apperrors.InvalidInput("grid", "buff "+string(b.ID)+" probabilities do not sum to 1")
	}
	return nil
}

// WithUserCounts returns a new Catalogue whose grids are blended with
// observed counts (keyed by buff id, then value), leaving the receiver
// untouched. Buff ids absent from counts keep their original grid. A
// nominal base total of 1000 implied observations is assumed for the
// static catalogue's own probabilities, matching the scale user-supplied
// counts are expected to arrive in.
func (c *Catalogue) WithUserCounts(counts map[BuffID]map[int]uint64) *Catalogue {
	if len(counts) == 0 {
		return c
	}
	const assumedBaseTotal = 1000

	next := &Catalogue{
		byID:          make(map[BuffID]Buff, len(c.buffs)),
		DefaultRefund: c.DefaultRefund,
		DefaultTarget: c.DefaultTarget,
	}
	for _, b := range c.buffs {
		if uc, ok := counts[b.ID]; ok && len(uc) > 0 {
			b.Grid = MergeUserCounts(b.Grid, uc, assumedBaseTotal)
			b.MaxValue = b.Grid[len(b.Grid)-1].Value
		}
		next.byID[b.ID] = b
		next.buffs = append(next.buffs, b)
		next.order = append(next.order, b.ID)
	}
	return next
}

// MergeUserCounts performs an additive frequency-count blend: raw observed
// counts are added to the catalogue's own implied counts before
// renormalising, and must happen before any scoring or solving uses the
// resulting grid.
func MergeUserCounts(base []ValuePoint, userCounts map[int]uint64, baseTotal uint64) []ValuePoint {
	if len(userCounts) == 0 {
		return base
	}
	counts := make(map[int]float64, len(base))
	for _, p := range base {
		counts[p.Value] = p.Prob * float64(baseTotal)
	}
	for v, c := range userCounts {
		counts[v] += float64(c)
	}
	values := make([]int, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Ints(values)

	total := 0.0
	for _, c := range counts {
		total += c
	}
	out := make([]ValuePoint, len(values))
	for i, v := range values {
		out[i] = ValuePoint{Value: v, Prob: counts[v] / total}
	}
	return out
}
