package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/blotter/internal/curve"
)

func testPosition() Position {
	return Position{
		CUSIP:    "912828A123",
		Notional: 10_000_000,
		PVSOD:    9_985_000,
		DV01:     map[curve.Tenor]float64{curve.Tenor10Y: 500},
		PVLive:   9_985_000,
	}
}

func TestRecompute_FivePointShift(t *testing.T) {
	// +5bp at 10Y against a 500 DV01 is $2500 of PnL.
	delta := map[curve.Tenor]float64{curve.Tenor10Y: 5.0}

	out := Recompute([]Position{testPosition()}, delta)
	require.Len(t, out, 1)

	assert.InDelta(t, 2500.00, out[0].PnL, 1e-9)
	assert.InDelta(t, 9_987_500.00, out[0].PVLive, 1e-9)
}

func TestRecompute_UnmappedTenorContributesZero(t *testing.T) {
	delta := map[curve.Tenor]float64{curve.Tenor3M: 12.0, curve.Tenor30Y: -8.0}

	out := Recompute([]Position{testPosition()}, delta)
	require.Len(t, out, 1)

	assert.Zero(t, out[0].PnL)
	assert.Equal(t, out[0].PVSOD, out[0].PVLive)
}

func TestRecompute_DoesNotMutateInputs(t *testing.T) {
	positions := []Position{testPosition()}
	delta := map[curve.Tenor]float64{curve.Tenor10Y: 5.0}

	_ = Recompute(positions, delta)

	assert.Zero(t, positions[0].PnL, "input slice must not be mutated")
	assert.Equal(t, map[curve.Tenor]float64{curve.Tenor10Y: 5.0}, delta, "delta must not be mutated")
}

func TestRecompute_RoundsToCents(t *testing.T) {
	pos := testPosition()
	pos.DV01 = map[curve.Tenor]float64{curve.Tenor10Y: 1}

	out := Recompute([]Position{pos}, map[curve.Tenor]float64{curve.Tenor10Y: 3.14159})
	require.Len(t, out, 1)

	assert.Equal(t, 3.14, out[0].PnL)
	assert.Equal(t, 9_985_003.14, out[0].PVLive)
}

func TestTotalPnL_SumsRoundedValues(t *testing.T) {
	a := testPosition()
	b := testPosition()
	b.CUSIP = "912828B456"
	b.DV01 = map[curve.Tenor]float64{curve.Tenor5Y: 120}

	delta := map[curve.Tenor]float64{
		curve.Tenor10Y: 2.555,
		curve.Tenor5Y:  -1.333,
	}

	out := Recompute([]Position{a, b}, delta)

	// Total equals the sum of the already-rounded per-position values.
	want := out[0].PnL + out[1].PnL
	assert.Equal(t, roundCents(want), TotalPnL(out))
}

func TestTotals_EmptyPortfolio(t *testing.T) {
	assert.Zero(t, TotalPnL(nil))
	assert.Zero(t, TotalNotional(nil))
	assert.Zero(t, TotalPVSOD(nil))
	assert.Zero(t, TotalPVLive(nil))
}
