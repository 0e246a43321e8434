package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/blotter/internal/curve"
	"github.com/aristath/blotter/internal/events"
	"github.com/aristath/blotter/internal/market"
	"github.com/aristath/blotter/internal/portfolio"
)

// CurvePoint is one tenor row of the curve response.
type CurvePoint struct {
	Tenor     curve.Tenor `json:"tenor"`
	SODYield  float64     `json:"sod_yield"`
	LiveYield float64     `json:"live_yield"`
	DeltaBP   float64     `json:"delta_bp"`
}

// PnLResponse is the payload of the PnL report endpoint.
type PnLResponse struct {
	TotalPnL  float64              `json:"total_pnl"`
	Positions []portfolio.Position `json:"positions"`
	Timestamp string               `json:"timestamp"`
}

// SummaryResponse aggregates curve parameters and portfolio totals.
type SummaryResponse struct {
	CurveParameters curve.Parameters `json:"curve_parameters"`
	SODParameters   curve.Parameters `json:"sod_parameters"`
	PositionCount   int              `json:"position_count"`
	TotalNotional   float64          `json:"total_notional"`
	TotalPVSOD      float64          `json:"total_pv_sod"`
	TotalPVLive     float64          `json:"total_pv_live"`
	TotalPnL        float64          `json:"total_pnl"`
	Timestamp       string           `json:"timestamp"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "blotter",
	})
}

// snapshotOr503 reads the current snapshot, reporting the pre-seed state
// as 503 so clients can tell "not yet initialized" from an empty result.
func (s *Server) snapshotOr503(w http.ResponseWriter) (*market.Snapshot, bool) {
	snap, err := s.state.Snapshot()
	if err != nil {
		if errors.Is(err, market.ErrNotSeeded) {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "market state not yet initialized",
			})
			return nil, false
		}
		s.log.Error().Err(err).Msg("Failed to read market snapshot")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return nil, false
	}
	return snap, true
}

// handleGetCurve handles GET /api/v1/curve
//
// The whole response is derived from one snapshot read, so the SOD and
// live yields in a single response always belong to the same tick.
func (s *Server) handleGetCurve(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}

	points, err := curvePoints(snap)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to evaluate curve")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	s.writeJSON(w, http.StatusOK, points)
}

// handleGetPositions handles GET /api/v1/positions
func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}

	positions := snap.Positions
	if positions == nil {
		positions = []portfolio.Position{}
	}
	s.writeJSON(w, http.StatusOK, positions)
}

// handleGetPnL handles GET /api/v1/pnl
func (s *Server) handleGetPnL(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}

	positions := snap.Positions
	if positions == nil {
		positions = []portfolio.Position{}
	}

	s.writeJSON(w, http.StatusOK, PnLResponse{
		TotalPnL:  portfolio.TotalPnL(positions),
		Positions: positions,
		Timestamp: snap.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// handleGetSummary handles GET /api/v1/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, SummaryResponse{
		CurveParameters: snap.Live,
		SODParameters:   snap.SOD,
		PositionCount:   len(snap.Positions),
		TotalNotional:   portfolio.TotalNotional(snap.Positions),
		TotalPVSOD:      portfolio.TotalPVSOD(snap.Positions),
		TotalPVLive:     portfolio.TotalPVLive(snap.Positions),
		TotalPnL:        portfolio.TotalPnL(snap.Positions),
		Timestamp:       snap.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// handleReset handles POST /api/v1/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := s.state.Reset()
	if err != nil {
		if errors.Is(err, market.ErrNotSeeded) {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "market state not yet initialized",
			})
			return
		}
		s.log.Error().Err(err).Msg("Failed to reset curve")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	s.bus.Publish("server", &events.CurveResetData{Source: "api"})

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Curve reset to start-of-day",
		"timestamp": snap.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// curvePoints builds the per-tenor curve rows from a single snapshot.
func curvePoints(snap *market.Snapshot) ([]CurvePoint, error) {
	tenors := curve.Tenors()

	sodCurve, err := curve.Curve(snap.SOD, tenors)
	if err != nil {
		return nil, err
	}
	liveCurve, err := curve.Curve(snap.Live, tenors)
	if err != nil {
		return nil, err
	}
	delta, err := curve.DeltaBP(snap.SOD, snap.Live, tenors)
	if err != nil {
		return nil, err
	}

	points := make([]CurvePoint, 0, len(tenors))
	for _, tenor := range tenors {
		points = append(points, CurvePoint{
			Tenor:     tenor,
			SODYield:  sodCurve[tenor],
			LiveYield: liveCurve[tenor],
			DeltaBP:   delta[tenor],
		})
	}
	return points, nil
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
