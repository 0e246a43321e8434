package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/blotter/internal/market"
)

// SystemHandlers exposes process and service status for operators.
type SystemHandlers struct {
	state     *market.State
	stream    *StreamHandler
	interval  time.Duration
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system status handlers.
func NewSystemHandlers(state *market.State, stream *StreamHandler, interval time.Duration, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		state:     state,
		stream:    stream,
		interval:  interval,
		startedAt: time.Now(),
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
}

// HandleStatus handles GET /api/v1/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	seeded := true
	positionCount := 0
	if snap, err := h.state.Snapshot(); err != nil {
		seeded = false
	} else {
		positionCount = len(snap.Positions)
	}

	status := map[string]interface{}{
		"status":           "running",
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
		"tick_interval_ms": h.interval.Milliseconds(),
		"seeded":           seeded,
		"position_count":   positionCount,
		"subscribers":      h.stream.Subscribers(),
		"goroutines":       runtime.NumGoroutine(),
		"timestamp":        time.Now().Format(time.RFC3339),
	}

	// Memory stats are informational, the status call should not fail
	// when the platform cannot report them.
	if vmStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read memory stats")
	} else {
		status["memory"] = map[string]interface{}{
			"total_mb":     vmStat.Total / 1024 / 1024,
			"used_mb":      vmStat.Used / 1024 / 1024,
			"used_percent": vmStat.UsedPercent,
		}
	}

	h.writeJSON(w, http.StatusOK, status)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
