// Package portfolio holds the bond positions and the DV01-based PnL engine.
package portfolio

import "github.com/aristath/blotter/internal/curve"

// Position is a bond position with bucketed DV01 sensitivities. PVLive and
// PnL are derived fields, recomputed every tick from the SOD present value
// and the current curve delta. Tenors absent from the DV01 map contribute
// zero sensitivity.
type Position struct {
	CUSIP    string                  `json:"cusip"`
	Notional float64                 `json:"notional"`
	PVSOD    float64                 `json:"pv_sod"`
	DV01     map[curve.Tenor]float64 `json:"dv01_bucketed"`
	PVLive   float64                 `json:"pv_live"`
	PnL      float64                 `json:"pnl"`
}
