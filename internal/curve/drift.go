package curve

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Drifter produces new parameter vectors from the current one plus a
// bounded random perturbation. It never mutates its input and never
// touches the decay parameter.
type Drifter struct {
	normal distuv.Normal
}

// NewDrifter creates a drifter whose perturbations are drawn from a
// zero-mean normal distribution with the given standard deviation.
func NewDrifter(volatility float64) *Drifter {
	return &Drifter{
		normal: distuv.Normal{Mu: 0, Sigma: volatility},
	}
}

// Drift returns a new parameter vector with each shape parameter perturbed
// by an independent draw. Lambda is carried over unchanged.
func (d *Drifter) Drift(p Parameters) Parameters {
	return Parameters{
		Beta0:  p.Beta0 + d.normal.Rand(),
		Beta1:  p.Beta1 + d.normal.Rand(),
		Beta2:  p.Beta2 + d.normal.Rand(),
		Lambda: p.Lambda,
	}
}

// DriftBuckets perturbs the effective yields of a random subset of tenors
// and folds the perturbation back into the shape parameters by solving the
// least-squares adjustment over the Nelson-Siegel loadings at the chosen
// tenors. The parametric model stays the single source of truth for the
// yield at any maturity; no per-tenor override state exists.
func (d *Drifter) DriftBuckets(p Parameters, tenors []Tenor) (Parameters, error) {
	if len(tenors) == 0 {
		return p, nil
	}

	// Pick the buckets to shock. Each tenor is included with probability
	// one half; at least one must be shocked for the tick to move.
	chosen := make([]Tenor, 0, len(tenors))
	for _, tenor := range tenors {
		if rand.Intn(2) == 1 {
			chosen = append(chosen, tenor)
		}
	}
	if len(chosen) == 0 {
		chosen = append(chosen, tenors[rand.Intn(len(tenors))])
	}

	// Build the loadings matrix L (one row per shocked tenor) and the
	// target yield perturbation vector, then solve min ||L*db - target||
	// for the shape adjustment db.
	rows := len(chosen)
	loadingsData := make([]float64, 0, rows*3)
	targets := make([]float64, 0, rows)
	for _, tenor := range chosen {
		years, err := Years(tenor)
		if err != nil {
			return Parameters{}, err
		}
		l0, l1, l2 := loadings(p.Lambda, years)
		loadingsData = append(loadingsData, l0, l1, l2)
		targets = append(targets, d.normal.Rand())
	}

	l := mat.NewDense(rows, 3, loadingsData)
	b := mat.NewVecDense(rows, targets)

	var adjustment mat.VecDense
	if err := adjustment.SolveVec(l, b); err != nil {
		return Parameters{}, fmt.Errorf("fitting bucket drift to shape parameters: %w", err)
	}

	return Parameters{
		Beta0:  p.Beta0 + adjustment.AtVec(0),
		Beta1:  p.Beta1 + adjustment.AtVec(1),
		Beta2:  p.Beta2 + adjustment.AtVec(2),
		Lambda: p.Lambda,
	}, nil
}
