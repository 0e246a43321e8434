package market

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/blotter/internal/curve"
	"github.com/aristath/blotter/internal/portfolio"
)

var (
	// ErrNotSeeded is returned when a snapshot is requested before the
	// state has been seeded. Distinct from an empty portfolio, which is a
	// normal state.
	ErrNotSeeded = errors.New("market state not seeded")

	// ErrAlreadySeeded is returned when Seed is called a second time.
	ErrAlreadySeeded = errors.New("market state already seeded")
)

// State holds the current market snapshot. Writers (the simulator tick,
// resets) replace it through Update, which serializes the whole
// read-compute-swap; any number of readers take the current value via
// Snapshot. Readers never see a snapshot mid-construction: a writer
// builds a complete new value and swaps the pointer under the lock.
type State struct {
	mu      sync.RWMutex
	current *Snapshot
	log     zerolog.Logger
}

// NewState creates an empty, unseeded state.
func NewState(log zerolog.Logger) *State {
	return &State{
		log: log.With().Str("component", "market_state").Logger(),
	}
}

// Seed performs the one-time initialization with the start-of-day
// parameters and the loaded positions. Live equals SOD at seed, so every
// position starts at zero PnL. Calling Seed twice is an error; SOD is
// write-once for the life of the process.
func (s *State) Seed(params curve.Parameters, positions []portfolio.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return ErrAlreadySeeded
	}

	s.current = &Snapshot{
		Live:      params,
		SOD:       params,
		Positions: portfolio.Recompute(positions, nil),
		UpdatedAt: time.Now().UTC(),
	}

	s.log.Info().
		Int("positions", len(positions)).
		Float64("beta0", params.Beta0).
		Float64("beta1", params.Beta1).
		Float64("beta2", params.Beta2).
		Float64("lambda", params.Lambda).
		Msg("Market state seeded")

	return nil
}

// Snapshot returns the current snapshot. The returned value is shared and
// must be treated as read-only.
func (s *State) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, ErrNotSeeded
	}
	return s.current, nil
}

// Update applies fn to the current snapshot and publishes its result,
// holding the write lock across the whole read-compute-swap. Every
// mutation after seeding goes through here: a simulator tick and a reset
// serialize against each other, so a tick can never republish state it
// read before a concurrent reset. fn must not mutate cur; it builds and
// returns a complete replacement snapshot. If fn fails, nothing is
// published.
func (s *State) Update(fn func(cur *Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNotSeeded
	}

	next, err := fn(s.current)
	if err != nil {
		return nil, err
	}
	s.current = next
	return next, nil
}

// Reset publishes a snapshot with live restored to the SOD parameters by
// direct assignment (bitwise-equal, not recomputed) and all PnL back to
// zero. Returns the published snapshot.
func (s *State) Reset() (*Snapshot, error) {
	snap, err := s.Update(func(cur *Snapshot) (*Snapshot, error) {
		return &Snapshot{
			Live:      cur.SOD,
			SOD:       cur.SOD,
			Positions: portfolio.Recompute(cur.Positions, nil),
			UpdatedAt: time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Msg("Curve reset to start-of-day parameters")
	return snap, nil
}
