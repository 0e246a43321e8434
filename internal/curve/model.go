package curve

import "math"

// Parameters holds the Nelson-Siegel curve parameters. Beta0, Beta1 and
// Beta2 are the shape parameters (level, slope, curvature); Lambda is the
// decay rate and is a fixed structural constant for a run.
type Parameters struct {
	Beta0  float64 `json:"beta0"`
	Beta1  float64 `json:"beta1"`
	Beta2  float64 `json:"beta2"`
	Lambda float64 `json:"lambda"`
}

// shortMaturityEpsilon is the maturity below which the slope loading is
// taken at its t->0 limit of 1 instead of dividing by a near-zero lambda*t.
const shortMaturityEpsilon = 1e-10

// Yield returns the model yield for a maturity in years:
//
//	y(t) = beta0 + beta1*f1(t) + beta2*(f1(t) - e^(-lambda*t))
//	f1(t) = (1 - e^(-lambda*t)) / (lambda*t)
//
// For maturities below a small epsilon the formula converges to
// beta0 + beta1, which is returned directly.
func Yield(p Parameters, maturityYears float64) float64 {
	if maturityYears < shortMaturityEpsilon {
		return p.Beta0 + p.Beta1
	}

	decay := math.Exp(-p.Lambda * maturityYears)
	slope := (1 - decay) / (p.Lambda * maturityYears)
	curvature := slope - decay

	return p.Beta0 + p.Beta1*slope + p.Beta2*curvature
}

// Curve evaluates the model at every tenor in the given set. Unknown
// tenor labels are rejected.
func Curve(p Parameters, tenors []Tenor) (map[Tenor]float64, error) {
	out := make(map[Tenor]float64, len(tenors))
	for _, tenor := range tenors {
		years, err := Years(tenor)
		if err != nil {
			return nil, err
		}
		out[tenor] = Yield(p, years)
	}
	return out, nil
}

// DeltaBP returns the live-vs-SOD yield change per tenor in basis points
// (1bp = 0.0001 in decimal yield terms). It is a pure function of the two
// parameter vectors; no per-tenor delta state is kept anywhere.
func DeltaBP(sod, live Parameters, tenors []Tenor) (map[Tenor]float64, error) {
	out := make(map[Tenor]float64, len(tenors))
	for _, tenor := range tenors {
		years, err := Years(tenor)
		if err != nil {
			return nil, err
		}
		out[tenor] = (Yield(live, years) - Yield(sod, years)) * 10000
	}
	return out, nil
}

// loadings returns the Nelson-Siegel factor loadings (1, f1, f1-e^(-lt))
// at a maturity. Used by the partial-bucket drift fit.
func loadings(lambda, maturityYears float64) (l0, l1, l2 float64) {
	if maturityYears < shortMaturityEpsilon {
		return 1, 1, 0
	}
	decay := math.Exp(-lambda * maturityYears)
	slope := (1 - decay) / (lambda * maturityYears)
	return 1, slope, slope - decay
}
