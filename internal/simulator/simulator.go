// Package simulator drives the periodic curve drift and PnL recompute
// against the shared market state.
package simulator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/blotter/internal/curve"
	"github.com/aristath/blotter/internal/events"
	"github.com/aristath/blotter/internal/market"
	"github.com/aristath/blotter/internal/portfolio"
)

// Config holds simulator tuning.
type Config struct {
	Interval    time.Duration // cadence between ticks
	Volatility  float64       // stddev of per-tick parameter perturbation
	BucketDrift bool          // perturb a random subset of tenors instead of the shape parameters directly
}

// Simulator drives the periodic writes to the market state. Each tick it
// drifts the live curve, recomputes position PnL against the start-of-day
// curve, and publishes one new snapshot through state.Update, serialized
// against resets.
type Simulator struct {
	state   *market.State
	bus     *events.Bus
	drifter *curve.Drifter
	cfg     Config
	log     zerolog.Logger
}

// New creates a simulator bound to the given market state and event bus.
func New(state *market.State, bus *events.Bus, cfg Config, log zerolog.Logger) *Simulator {
	return &Simulator{
		state:   state,
		bus:     bus,
		drifter: curve.NewDrifter(cfg.Volatility),
		cfg:     cfg,
		log:     log.With().Str("component", "simulator").Logger(),
	}
}

// Run drives the tick loop until ctx is cancelled. A failed tick is
// abandoned - the last published snapshot stays current - and the loop
// waits for the next cadence boundary. Cancellation interrupts the
// inter-tick wait; a tick in flight either publishes or is dropped whole,
// never partially.
func (s *Simulator) Run(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Float64("volatility", s.cfg.Volatility).
		Bool("bucket_drift", s.cfg.BucketDrift).
		Msg("Simulator started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Simulator stopped")
			return
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				s.log.Error().Err(err).Msg("Tick failed, keeping last published snapshot")
			}
		}
	}
}

// Tick performs one full drift/recompute/publish cycle. The whole cycle
// runs inside state.Update, so it serializes against resets: a tick
// always drifts from whatever the latest write left behind, never from a
// snapshot a concurrent reset has already replaced.
func (s *Simulator) Tick() error {
	var totalPnL, maxDelta float64
	var positionCount int

	_, err := s.state.Update(func(cur *market.Snapshot) (*market.Snapshot, error) {
		live, err := s.driftParameters(cur.Live)
		if err != nil {
			return nil, fmt.Errorf("drifting curve parameters: %w", err)
		}

		delta, err := curve.DeltaBP(cur.SOD, live, curve.Tenors())
		if err != nil {
			return nil, fmt.Errorf("computing curve delta: %w", err)
		}

		positions := portfolio.Recompute(cur.Positions, delta)

		totalPnL = portfolio.TotalPnL(positions)
		maxDelta = 0
		for _, bp := range delta {
			if math.Abs(bp) > math.Abs(maxDelta) {
				maxDelta = bp
			}
		}
		positionCount = len(positions)

		return &market.Snapshot{
			Live:      live,
			SOD:       cur.SOD,
			Positions: positions,
			UpdatedAt: time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return err
	}

	s.bus.Publish("simulator", &events.SnapshotPublishedData{
		TotalPnL:   totalPnL,
		MaxDeltaBP: maxDelta,
		Positions:  positionCount,
	})

	s.log.Debug().
		Float64("max_delta_bp", maxDelta).
		Float64("total_pnl", totalPnL).
		Msg("Curve updated")

	return nil
}

func (s *Simulator) driftParameters(p curve.Parameters) (curve.Parameters, error) {
	if s.cfg.BucketDrift {
		return s.drifter.DriftBuckets(p, curve.Tenors())
	}
	return s.drifter.Drift(p), nil
}
