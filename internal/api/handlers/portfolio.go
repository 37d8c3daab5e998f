// Package handlers holds the dashboard API endpoint implementations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/rebalance"
	"github.com/wonny/rotor/pkg/logger"
)

const historyFetchLimit = 500

// PortfolioHandler serves the current basket, history and events
// ⭐ SSOT: 포트폴리오 API 핸들러는 이 구조체에서만
type PortfolioHandler struct {
	engine    *rebalance.Engine
	snapshots contracts.SnapshotStore
	hub       *Hub
	logger    *logger.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(engine *rebalance.Engine, snapshots contracts.SnapshotStore, hub *Hub, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		engine:    engine,
		snapshots: snapshots,
		hub:       hub,
		logger:    log,
	}
}

// GetCurrent returns the latest snapshot (the live draft)
// GET /api/portfolio
func (h *PortfolioHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve portfolio")
		return
	}
	if snapshot == nil {
		respondError(w, http.StatusNotFound, "No rebalance cycle has run yet")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// historyPoint is the dashboard equity-curve row
type historyPoint struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	EquityValue float64   `json:"equity_value"`
	Cash        float64   `json:"cash"`
	Holdings    int       `json:"holdings"`
	Locked      bool      `json:"locked"`
}

// GetHistory returns snapshot summaries for a timeframe
// GET /api/portfolio/history?range=1M|3M|6M|YTD|ALL
func (h *PortfolioHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	cutoff, ok := rangeCutoff(r.URL.Query().Get("range"), time.Now())
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid range, use 1M, 3M, 6M, YTD or ALL")
		return
	}

	snapshots, err := h.snapshots.History(r.Context(), historyFetchLimit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load snapshot history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	points := make([]historyPoint, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if !cutoff.IsZero() && snapshot.Timestamp.Before(cutoff) {
			continue
		}
		points = append(points, historyPoint{
			ID:          snapshot.ID,
			Timestamp:   snapshot.Timestamp,
			EquityValue: snapshot.EquityValue,
			Cash:        snapshot.Cash,
			Holdings:    len(snapshot.Positions),
			Locked:      snapshot.Locked,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"range":  normalizeRange(r.URL.Query().Get("range")),
		"points": points,
	})
}

// GetEvents returns the most recent cycle's activity log
// GET /api/portfolio/events
func (h *PortfolioHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.LatestEvents(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest events")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// GetStatus reports the last cycle outcome: 실패한 사이클은 스냅샷을
// 남기지 않으므로 마지막 성공본과 에러를 나란히 노출.
// GET /api/portfolio/status
func (h *PortfolioHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Latest(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve status")
		return
	}

	status := map[string]interface{}{
		"last_error": nil,
	}
	if lastErr := h.engine.LastError(); lastErr != nil {
		status["last_error"] = lastErr.Error()
	}
	if snapshot != nil {
		status["last_snapshot_id"] = snapshot.ID
		status["last_snapshot_at"] = snapshot.Timestamp
		status["equity_value"] = snapshot.EquityValue
	}

	respondJSON(w, http.StatusOK, status)
}

// TriggerCycle runs a rebalance cycle immediately
// POST /api/rebalance/run
func (h *PortfolioHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.RunCycle(r.Context())
	if err != nil {
		var unavailable *contracts.RankingUnavailableError
		switch {
		case errors.Is(err, contracts.ErrRunInProgress):
			respondError(w, http.StatusConflict, "Another rebalance run is already in progress")
		case errors.As(err, &unavailable):
			h.logger.WithError(err).Error("Ranking feed unavailable")
			respondError(w, http.StatusBadGateway, "Ranking feed unavailable, previous snapshot kept")
		default:
			h.logger.WithError(err).Error("Rebalance cycle failed")
			respondError(w, http.StatusInternalServerError, "Rebalance cycle failed")
		}
		return
	}

	h.hub.Broadcast("snapshot", snapshot)
	respondJSON(w, http.StatusOK, snapshot)
}

// rangeCutoff maps a timeframe token onto the earliest included time.
// Zero time = no cutoff (ALL).
func rangeCutoff(token string, now time.Time) (time.Time, bool) {
	switch normalizeRange(token) {
	case "ALL":
		return time.Time{}, true
	case "1M":
		return now.AddDate(0, -1, 0), true
	case "3M":
		return now.AddDate(0, -3, 0), true
	case "6M":
		return now.AddDate(0, -6, 0), true
	case "YTD":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

func normalizeRange(token string) string {
	if token == "" {
		return "ALL"
	}
	return strings.ToUpper(token)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
