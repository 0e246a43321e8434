package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/blotter/internal/curve"
	"github.com/aristath/blotter/internal/events"
	"github.com/aristath/blotter/internal/market"
	"github.com/aristath/blotter/internal/portfolio"
)

var seedParams = curve.Parameters{
	Beta0:  0.055,
	Beta1:  -0.015,
	Beta2:  0.008,
	Lambda: 0.6,
}

func seededState(t *testing.T) *market.State {
	t.Helper()
	state := market.NewState(zerolog.Nop())
	require.NoError(t, state.Seed(seedParams, []portfolio.Position{{
		CUSIP:    "912828A123",
		Notional: 10_000_000,
		PVSOD:    9_985_000,
		DV01:     map[curve.Tenor]float64{curve.Tenor10Y: 500},
	}}))
	return state
}

func newSimulator(state *market.State, bus *events.Bus, bucketDrift bool) *Simulator {
	return New(state, bus, Config{
		Interval:    time.Millisecond,
		Volatility:  0.0002,
		BucketDrift: bucketDrift,
	}, zerolog.Nop())
}

func TestTick_BeforeSeedFails(t *testing.T) {
	state := market.NewState(zerolog.Nop())
	sim := newSimulator(state, events.NewBus(zerolog.Nop()), false)

	err := sim.Tick()
	assert.ErrorIs(t, err, market.ErrNotSeeded)
}

func TestTick_InvariantsHoldAcrossTicks(t *testing.T) {
	state := seededState(t)
	sim := newSimulator(state, events.NewBus(zerolog.Nop()), false)

	for i := 0; i < 50; i++ {
		require.NoError(t, sim.Tick())

		snap, err := state.Snapshot()
		require.NoError(t, err)

		// SOD never moves.
		assert.Equal(t, seedParams, snap.SOD)
		assert.Equal(t, seedParams.Lambda, snap.Live.Lambda)

		// Each published snapshot is self-consistent: the PnL it carries
		// is exactly the PnL implied by its own curve.
		delta, err := snap.DeltaBP()
		require.NoError(t, err)
		want := portfolio.Recompute(snap.Positions, delta)
		for j := range want {
			assert.Equal(t, want[j].PnL, snap.Positions[j].PnL)
			assert.Equal(t, want[j].PVLive, snap.Positions[j].PVLive)
		}
	}
}

func TestTick_PublishesEvent(t *testing.T) {
	state := seededState(t)
	bus := events.NewBus(zerolog.Nop())

	var published []*events.Event
	bus.Subscribe(events.SnapshotPublished, func(e *events.Event) {
		published = append(published, e)
	})

	sim := newSimulator(state, bus, false)
	require.NoError(t, sim.Tick())

	require.Len(t, published, 1)
	data, ok := published[0].Data.(*events.SnapshotPublishedData)
	require.True(t, ok)
	assert.Equal(t, 1, data.Positions)
}

func TestTick_BucketDrift(t *testing.T) {
	state := seededState(t)
	sim := newSimulator(state, events.NewBus(zerolog.Nop()), true)

	require.NoError(t, sim.Tick())

	snap, err := state.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, seedParams.Lambda, snap.Live.Lambda)
	assert.NotEqual(t, seedParams, snap.Live)
}

func TestTick_TimestampAdvances(t *testing.T) {
	state := seededState(t)
	sim := newSimulator(state, events.NewBus(zerolog.Nop()), false)

	first, err := state.Snapshot()
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, sim.Tick())

	second, err := state.Snapshot()
	require.NoError(t, err)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestResetAfterTicks_RestoresSODExactly(t *testing.T) {
	state := seededState(t)
	sim := newSimulator(state, events.NewBus(zerolog.Nop()), false)

	for i := 0; i < 10; i++ {
		require.NoError(t, sim.Tick())
	}

	snap, err := state.Reset()
	require.NoError(t, err)

	assert.Equal(t, seedParams, snap.Live)
	assert.Zero(t, portfolio.TotalPnL(snap.Positions))
}

func TestTick_ConcurrentResetIsNeverLost(t *testing.T) {
	// Zero volatility makes every tick republish the live curve it read,
	// so if a tick could start from a pre-reset snapshot and publish after
	// the reset, the final state would be stuck on the shifted path with
	// non-zero PnL.
	state := seededState(t)
	sim := New(state, events.NewBus(zerolog.Nop()), Config{
		Interval:   time.Millisecond,
		Volatility: 0,
	}, zerolog.Nop())

	// Put live on a +10bp path so a lost reset is observable.
	_, err := state.Update(func(cur *market.Snapshot) (*market.Snapshot, error) {
		live := cur.SOD
		live.Beta0 += 0.001
		delta, err := curve.DeltaBP(cur.SOD, live, curve.Tenors())
		if err != nil {
			return nil, err
		}
		return &market.Snapshot{
			Live:      live,
			SOD:       cur.SOD,
			Positions: portfolio.Recompute(cur.Positions, delta),
			UpdatedAt: time.Now().UTC(),
		}, nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if err := sim.Tick(); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	_, err = state.Reset()
	require.NoError(t, err)
	<-done

	// Whether the reset landed before, between or after the ticks, the
	// final state must be back on SOD with zero PnL.
	snap, err := state.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.SOD, snap.Live)
	assert.Zero(t, portfolio.TotalPnL(snap.Positions))
}

func TestRun_StopsOnCancel(t *testing.T) {
	state := seededState(t)
	sim := newSimulator(state, events.NewBus(zerolog.Nop()), false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	// Let it tick a few times, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop after cancellation")
	}

	// State stays at the last fully published snapshot.
	snap, err := state.Snapshot()
	require.NoError(t, err)
	delta, err := snap.DeltaBP()
	require.NoError(t, err)
	want := portfolio.Recompute(snap.Positions, delta)
	assert.Equal(t, want[0].PnL, snap.Positions[0].PnL)
}

func TestRun_ContinuesAfterFailedTick(t *testing.T) {
	// An unseeded state makes every tick fail; the loop must keep
	// running until cancelled rather than terminating.
	state := market.NewState(zerolog.Nop())
	sim := newSimulator(state, events.NewBus(zerolog.Nop()), false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("simulator did not survive failing ticks")
	}
}
