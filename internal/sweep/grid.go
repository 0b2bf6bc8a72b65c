package sweep

import (
	"fmt"

	"github.com/banshee-data/power.report/internal/gsp"
)

// maxCombos bounds the size of a sweep.
const maxCombos = 10000

// Grid lists the values to try per parameter. An empty dimension keeps the
// base config's value.
type Grid struct {
	Sigma     []float64
	Ri        []float64
	TPositive []float64
}

// Size returns the number of combinations the grid expands to.
func (g Grid) Size() int {
	n := 1
	for _, dim := range [][]float64{g.Sigma, g.Ri, g.TPositive} {
		if len(dim) > 0 {
			n *= len(dim)
		}
	}
	return n
}

// Combos expands grid over base. TNegative follows TPositive as its mirror
// when base uses symmetric thresholds. Invalid combinations are an error so
// a typo in a range does not silently shrink the sweep.
func Combos(base gsp.Config, grid Grid) ([]gsp.Config, error) {
	if n := grid.Size(); n > maxCombos {
		return nil, fmt.Errorf("parameter combinations (%d) would exceed safe limit of %d", n, maxCombos)
	}

	orDefault := func(vals []float64, def float64) []float64 {
		if len(vals) == 0 {
			return []float64{def}
		}
		return vals
	}
	sigmas := orDefault(grid.Sigma, base.Sigma)
	ris := orDefault(grid.Ri, base.Ri)
	tpos := orDefault(grid.TPositive, base.TPositive)
	symmetric := base.TNegative == -base.TPositive

	configs := make([]gsp.Config, 0, len(sigmas)*len(ris)*len(tpos))
	for _, sigma := range sigmas {
		for _, ri := range ris {
			for _, tp := range tpos {
				cfg := base
				cfg.Sigma = sigma
				cfg.Ri = ri
				cfg.TPositive = tp
				if symmetric {
					cfg.TNegative = -tp
				}
				if err := cfg.Validate(); err != nil {
					return nil, fmt.Errorf("combination sigma=%g ri=%g t_positive=%g: %w", sigma, ri, tp, err)
				}
				configs = append(configs, cfg)
			}
		}
	}
	return configs, nil
}
