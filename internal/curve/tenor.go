// Package curve implements the Nelson-Siegel yield curve model and the
// stochastic drift that evolves it between ticks.
package curve

import "fmt"

// Tenor is a named maturity bucket on the curve (e.g. "10Y").
type Tenor string

// The fixed tenor set, ordered from shortest to longest maturity.
const (
	Tenor3M  Tenor = "3M"
	Tenor6M  Tenor = "6M"
	Tenor1Y  Tenor = "1Y"
	Tenor2Y  Tenor = "2Y"
	Tenor5Y  Tenor = "5Y"
	Tenor10Y Tenor = "10Y"
	Tenor30Y Tenor = "30Y"
)

// tenorYears maps each tenor to its year-fraction.
var tenorYears = map[Tenor]float64{
	Tenor3M:  0.25,
	Tenor6M:  0.5,
	Tenor1Y:  1.0,
	Tenor2Y:  2.0,
	Tenor5Y:  5.0,
	Tenor10Y: 10.0,
	Tenor30Y: 30.0,
}

var tenorOrder = []Tenor{Tenor3M, Tenor6M, Tenor1Y, Tenor2Y, Tenor5Y, Tenor10Y, Tenor30Y}

// Tenors returns the full tenor set in maturity order.
func Tenors() []Tenor {
	out := make([]Tenor, len(tenorOrder))
	copy(out, tenorOrder)
	return out
}

// Years returns the year-fraction for a tenor. Unknown tenor labels are
// rejected rather than silently defaulted.
func Years(t Tenor) (float64, error) {
	years, ok := tenorYears[t]
	if !ok {
		return 0, fmt.Errorf("unknown tenor: %s", t)
	}
	return years, nil
}
