package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/blotter/internal/events"
	"github.com/aristath/blotter/internal/market"
)

// SODResetJob restores the live curve to the start-of-day parameters on a
// configured schedule, zeroing all position PnL. SOD itself stays frozen;
// the job only republishes live := sod.
type SODResetJob struct {
	state *market.State
	bus   *events.Bus
	log   zerolog.Logger
}

// NewSODResetJob creates the scheduled reset job.
func NewSODResetJob(state *market.State, bus *events.Bus, log zerolog.Logger) *SODResetJob {
	return &SODResetJob{
		state: state,
		bus:   bus,
		log:   log.With().Str("job", "sod_reset").Logger(),
	}
}

// Name returns the job name
func (j *SODResetJob) Name() string {
	return "sod_reset"
}

// Run resets the market state to start-of-day.
func (j *SODResetJob) Run() error {
	if _, err := j.state.Reset(); err != nil {
		return err
	}

	j.bus.Publish("scheduler", &events.CurveResetData{Source: "scheduled"})
	j.log.Info().Msg("Scheduled SOD reset completed")
	return nil
}
