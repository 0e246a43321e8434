package portfolio

import (
	"math"

	"github.com/aristath/blotter/internal/curve"
)

// roundCents rounds a dollar amount to cents. Derived valuations are
// stored rounded so that repeated recomputes cannot accumulate float
// drift.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recompute returns a full replacement position set with PnL and live PV
// derived from the per-tenor yield change in basis points:
//
//	pnl     = sum(dv01[tenor] * deltaBP[tenor])
//	pv_live = pv_sod + pnl
//
// Inputs are never mutated; callers can swap the result in atomically.
func Recompute(positions []Position, deltaBP map[curve.Tenor]float64) []Position {
	out := make([]Position, len(positions))
	for i, pos := range positions {
		pnl := 0.0
		for tenor, dv01 := range pos.DV01 {
			pnl += dv01 * deltaBP[tenor]
		}

		pos.PnL = roundCents(pnl)
		pos.PVLive = roundCents(pos.PVSOD + pos.PnL)
		out[i] = pos
	}
	return out
}

// TotalPnL sums the already-rounded per-position PnL values, rounded to
// cents. It never re-derives from unrounded internals, so the total always
// equals the sum of what each position reports.
func TotalPnL(positions []Position) float64 {
	total := 0.0
	for _, pos := range positions {
		total += pos.PnL
	}
	return roundCents(total)
}

// TotalNotional sums position notionals.
func TotalNotional(positions []Position) float64 {
	total := 0.0
	for _, pos := range positions {
		total += pos.Notional
	}
	return total
}

// TotalPVSOD sums start-of-day present values.
func TotalPVSOD(positions []Position) float64 {
	total := 0.0
	for _, pos := range positions {
		total += pos.PVSOD
	}
	return total
}

// TotalPVLive sums live present values.
func TotalPVLive(positions []Position) float64 {
	total := 0.0
	for _, pos := range positions {
		total += pos.PVLive
	}
	return total
}
