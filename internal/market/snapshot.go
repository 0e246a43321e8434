// Package market owns the single shared market snapshot that the
// simulator writes and every consumer reads.
package market

import (
	"time"

	"github.com/aristath/blotter/internal/curve"
	"github.com/aristath/blotter/internal/portfolio"
)

// Snapshot is one complete, internally consistent view of curve and
// portfolio state. A snapshot is never mutated after it is published;
// every tick swaps in a whole new value, so the curve parameters and the
// position PnL in one snapshot always belong to the same tick.
type Snapshot struct {
	Live      curve.Parameters
	SOD       curve.Parameters
	Positions []portfolio.Position
	UpdatedAt time.Time
}

// DeltaBP returns the snapshot's live-vs-SOD curve change in basis points
// over the fixed tenor set.
func (s *Snapshot) DeltaBP() (map[curve.Tenor]float64, error) {
	return curve.DeltaBP(s.SOD, s.Live, curve.Tenors())
}
