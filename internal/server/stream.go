package server

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/blotter/internal/events"
	"github.com/aristath/blotter/internal/market"
	"github.com/aristath/blotter/internal/portfolio"
)

// writeWait bounds a single send to one subscriber so a stalled peer
// cannot hold its push loop forever.
const writeWait = 5 * time.Second

// PnLSummary is the aggregate block of a streamed snapshot.
type PnLSummary struct {
	TotalPnL      float64 `json:"total_pnl"`
	TotalPVSOD    float64 `json:"total_pv_sod"`
	TotalPVLive   float64 `json:"total_pv_live"`
	PositionCount int     `json:"position_count"`
}

// StreamPayload is the full snapshot projection pushed to subscribers.
type StreamPayload struct {
	Type       string               `json:"type"`
	Curve      []CurvePoint         `json:"curve"`
	Positions  []portfolio.Position `json:"positions"`
	PnLSummary PnLSummary           `json:"pnl_summary"`
	Timestamp  string               `json:"timestamp"`
}

// StreamHandler upgrades websocket subscribers and pushes the full market
// snapshot to each of them on a fixed cadence. Every subscriber is served
// by its own loop holding only a reference to the market state, so a slow
// or dead subscriber never blocks the simulator or its peers.
type StreamHandler struct {
	state    *market.State
	interval time.Duration
	log      zerolog.Logger

	mu    sync.RWMutex
	kicks map[string]chan struct{} // per-subscriber out-of-cycle push triggers

	done      chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler creates the websocket stream handler and hooks it to
// the event bus: a curve reset pushes immediately instead of waiting out
// the cadence.
func NewStreamHandler(state *market.State, bus *events.Bus, interval time.Duration, log zerolog.Logger) *StreamHandler {
	h := &StreamHandler{
		state:    state,
		interval: interval,
		log:      log.With().Str("component", "ws_stream").Logger(),
		kicks:    make(map[string]chan struct{}),
		done:     make(chan struct{}),
	}

	bus.Subscribe(events.CurveReset, func(*events.Event) {
		h.kickAll()
	})

	return h
}

// ServeHTTP handles GET /api/v1/ws/stream requests.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	useMsgpack := r.URL.Query().Get("format") == "msgpack"

	id := uuid.NewString()
	kick := make(chan struct{}, 1)

	h.mu.Lock()
	h.kicks[id] = kick
	count := len(h.kicks)
	h.mu.Unlock()

	h.log.Info().
		Str("subscriber", id).
		Bool("msgpack", useMsgpack).
		Int("subscribers", count).
		Msg("Streaming subscriber connected")

	defer func() {
		h.mu.Lock()
		delete(h.kicks, id)
		remaining := len(h.kicks)
		h.mu.Unlock()
		h.log.Info().
			Str("subscriber", id).
			Int("subscribers", remaining).
			Msg("Streaming subscriber removed")
	}()

	// The stream is write-only. CloseRead keeps consuming the read side so
	// close handshakes and control frames are processed, and cancels the
	// returned context the moment the peer goes away.
	ctx := conn.CloseRead(r.Context())

	// Initial hello so clients can confirm the subscription before the
	// first cadence boundary.
	if err := h.send(ctx, conn, useMsgpack, map[string]string{
		"type":    "connected",
		"message": "Connected to market data stream",
	}); err != nil {
		conn.CloseNow()
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.CloseNow()
			return
		case <-h.done:
			// No close handshake on shutdown; a peer that is not reading
			// must not delay subscriber cleanup.
			conn.CloseNow()
			return
		case <-kick:
		case <-ticker.C:
		}

		if err := h.pushSnapshot(ctx, conn, useMsgpack); err != nil {
			// Delivery failures are isolated to this subscriber.
			h.log.Debug().Err(err).Str("subscriber", id).Msg("Push failed, dropping subscriber")
			conn.CloseNow()
			return
		}
	}
}

// Subscribers returns the number of connected streaming subscribers.
func (h *StreamHandler) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.kicks)
}

// Close releases every subscriber. Used at shutdown; websocket
// connections are hijacked and not covered by http.Server.Shutdown.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// kickAll triggers an immediate push on every subscriber loop without
// blocking the publisher.
func (h *StreamHandler) kickAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, kick := range h.kicks {
		select {
		case kick <- struct{}{}:
		default:
		}
	}
}

// pushSnapshot sends one full snapshot projection, derived from a single
// snapshot read. Before the first seed there is nothing to push yet.
func (h *StreamHandler) pushSnapshot(ctx context.Context, conn *websocket.Conn, useMsgpack bool) error {
	snap, err := h.state.Snapshot()
	if err != nil {
		return nil
	}

	points, err := curvePoints(snap)
	if err != nil {
		return err
	}

	positions := snap.Positions
	if positions == nil {
		positions = []portfolio.Position{}
	}

	payload := StreamPayload{
		Type:      "snapshot",
		Curve:     points,
		Positions: positions,
		PnLSummary: PnLSummary{
			TotalPnL:      portfolio.TotalPnL(positions),
			TotalPVSOD:    portfolio.TotalPVSOD(positions),
			TotalPVLive:   portfolio.TotalPVLive(positions),
			PositionCount: len(positions),
		},
		Timestamp: snap.UpdatedAt.Format(time.RFC3339Nano),
	}

	return h.send(ctx, conn, useMsgpack, payload)
}

// send writes one message with a bounded deadline, as JSON text or
// msgpack binary depending on the subscriber's requested format. The
// msgpack frames reuse the json field names so both formats describe the
// same wire shape.
func (h *StreamHandler) send(ctx context.Context, conn *websocket.Conn, useMsgpack bool, v interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if useMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return err
		}
		return conn.Write(writeCtx, websocket.MessageBinary, buf.Bytes())
	}
	return wsjson.Write(writeCtx, conn, v)
}
