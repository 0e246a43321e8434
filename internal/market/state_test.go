package market

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/blotter/internal/curve"
	"github.com/aristath/blotter/internal/portfolio"
)

var seedParams = curve.Parameters{
	Beta0:  0.055,
	Beta1:  -0.015,
	Beta2:  0.008,
	Lambda: 0.6,
}

func seedPositions() []portfolio.Position {
	return []portfolio.Position{{
		CUSIP:    "912828A123",
		Notional: 10_000_000,
		PVSOD:    9_985_000,
		DV01:     map[curve.Tenor]float64{curve.Tenor10Y: 500},
	}}
}

func TestState_SnapshotBeforeSeed(t *testing.T) {
	s := NewState(zerolog.Nop())

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrNotSeeded)
}

func TestState_SeedInitializesZeroPnL(t *testing.T) {
	s := NewState(zerolog.Nop())
	require.NoError(t, s.Seed(seedParams, seedPositions()))

	snap, err := s.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, seedParams, snap.Live)
	assert.Equal(t, seedParams, snap.SOD)
	require.Len(t, snap.Positions, 1)
	assert.Zero(t, snap.Positions[0].PnL)
	assert.Equal(t, snap.Positions[0].PVSOD, snap.Positions[0].PVLive)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestState_SeedTwiceFails(t *testing.T) {
	s := NewState(zerolog.Nop())
	require.NoError(t, s.Seed(seedParams, seedPositions()))

	err := s.Seed(seedParams, nil)
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}

func TestState_SeedEmptyPortfolio(t *testing.T) {
	s := NewState(zerolog.Nop())
	require.NoError(t, s.Seed(seedParams, nil))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)
	assert.Zero(t, portfolio.TotalPnL(snap.Positions))
}

func TestState_UpdateSwapsWholeSnapshot(t *testing.T) {
	s := NewState(zerolog.Nop())
	require.NoError(t, s.Seed(seedParams, seedPositions()))

	before, err := s.Snapshot()
	require.NoError(t, err)

	next, err := s.Update(func(cur *Snapshot) (*Snapshot, error) {
		live := cur.Live
		live.Beta0 += 0.0005
		delta, err := curve.DeltaBP(cur.SOD, live, curve.Tenors())
		if err != nil {
			return nil, err
		}
		return &Snapshot{
			Live:      live,
			SOD:       cur.SOD,
			Positions: portfolio.Recompute(cur.Positions, delta),
			UpdatedAt: time.Now().UTC(),
		}, nil
	})
	require.NoError(t, err)

	after, err := s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, next, after)

	// The prior snapshot is untouched.
	assert.Equal(t, seedParams, before.Live)
	assert.Zero(t, before.Positions[0].PnL)
}

func TestState_UpdateBeforeSeed(t *testing.T) {
	s := NewState(zerolog.Nop())

	_, err := s.Update(func(cur *Snapshot) (*Snapshot, error) {
		t.Fatal("update func must not run before seed")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNotSeeded)
}

func TestState_UpdateErrorPublishesNothing(t *testing.T) {
	s := NewState(zerolog.Nop())
	require.NoError(t, s.Seed(seedParams, seedPositions()))

	before, err := s.Snapshot()
	require.NoError(t, err)

	_, err = s.Update(func(cur *Snapshot) (*Snapshot, error) {
		return nil, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	after, err := s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestState_ResetRestoresSODExactly(t *testing.T) {
	s := NewState(zerolog.Nop())
	require.NoError(t, s.Seed(seedParams, seedPositions()))

	// Drift away from SOD.
	_, err := s.Update(func(cur *Snapshot) (*Snapshot, error) {
		live := cur.Live
		live.Beta0 += 0.0005
		live.Beta1 -= 0.0002
		delta, err := curve.DeltaBP(cur.SOD, live, curve.Tenors())
		if err != nil {
			return nil, err
		}
		return &Snapshot{
			Live:      live,
			SOD:       cur.SOD,
			Positions: portfolio.Recompute(cur.Positions, delta),
			UpdatedAt: time.Now().UTC(),
		}, nil
	})
	require.NoError(t, err)

	snap, err := s.Reset()
	require.NoError(t, err)

	// Direct assignment, so bitwise-equal floats.
	assert.Equal(t, seedParams, snap.Live)
	assert.Equal(t, snap.SOD, snap.Live)
	assert.Zero(t, portfolio.TotalPnL(snap.Positions))

	current, err := s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, snap, current)
}

func TestState_ResetBeforeSeed(t *testing.T) {
	s := NewState(zerolog.Nop())

	_, err := s.Reset()
	assert.ErrorIs(t, err, ErrNotSeeded)
}

func TestState_ConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	// The writer publishes snapshots whose position PnL is derived from
	// the snapshot's own live parameters. Readers running concurrently
	// must never observe a curve from one tick paired with PnL from
	// another.
	s := NewState(zerolog.Nop())
	require.NoError(t, s.Seed(seedParams, seedPositions()))

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_, err := s.Update(func(cur *Snapshot) (*Snapshot, error) {
				live := cur.Live
				live.Beta0 += 0.0001
				delta, err := curve.DeltaBP(cur.SOD, live, curve.Tenors())
				if err != nil {
					return nil, err
				}
				return &Snapshot{
					Live:      live,
					SOD:       cur.SOD,
					Positions: portfolio.Recompute(cur.Positions, delta),
					UpdatedAt: time.Now().UTC(),
				}, nil
			})
			if err != nil {
				return
			}
		}
		close(done)
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				snap, err := s.Snapshot()
				if err != nil {
					continue
				}

				// PnL implied by this snapshot's own curve must match
				// what the snapshot carries.
				delta, err := snap.DeltaBP()
				if err != nil {
					t.Error(err)
					return
				}
				want := portfolio.Recompute(snap.Positions, delta)
				for i := range want {
					if want[i].PnL != snap.Positions[i].PnL {
						t.Errorf("torn snapshot: recomputed pnl %v != stored pnl %v", want[i].PnL, snap.Positions[i].PnL)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
