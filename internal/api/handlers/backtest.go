package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wonny/rotor/internal/backtest"
	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/pkg/logger"
)

// BacktestHandler triggers historical simulations
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	simulator *backtest.Simulator
	guard     contracts.RunGuard
	logger    *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(simulator *backtest.Simulator, guard contracts.RunGuard, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		simulator: simulator,
		guard:     guard,
		logger:    log,
	}
}

// backtestRequest is the simulation request body
type backtestRequest struct {
	StartDate      string  `json:"start_date"` // YYYY-MM-DD
	EndDate        string  `json:"end_date"`   // YYYY-MM-DD
	CheckpointDays int     `json:"checkpoint_days,omitempty"`
	InitialCapital float64 `json:"initial_capital,omitempty"`
}

// Run executes a backtest synchronously and returns the result.
// 라이브 사이클과 동일한 실행 가드를 공유: 동시 실행 금지.
// POST /api/backtest/run
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if endDate.Before(startDate) {
		respondError(w, http.StatusBadRequest, "end_date precedes start_date")
		return
	}

	release, err := h.guard.Acquire(r.Context())
	if err != nil {
		if errors.Is(err, contracts.ErrRunInProgress) {
			respondError(w, http.StatusConflict, "Another run is already in progress")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to acquire run guard")
		return
	}
	defer release()

	result, err := h.simulator.Run(r.Context(), backtest.Config{
		StartDate:      startDate,
		EndDate:        endDate,
		CheckpointDays: req.CheckpointDays,
		InitialCapital: req.InitialCapital,
	})
	if err != nil {
		var violation *contracts.LookAheadViolationError
		if errors.As(err, &violation) {
			h.logger.WithError(err).Error("Backtest aborted on look-ahead violation")
			respondError(w, http.StatusUnprocessableEntity, violation.Error())
			return
		}
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, "Backtest failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"start_date":        result.StartDate.Format("2006-01-02"),
		"end_date":          result.EndDate.Format("2006-01-02"),
		"trading_days":      result.TradingDays,
		"checkpoints":       result.Checkpoints,
		"initial_capital":   result.InitialCapital,
		"final_equity":      result.FinalEquity,
		"total_return":      result.TotalReturn,
		"annualized_return": result.AnnualizedReturn,
		"cagr":              result.CAGR,
		"volatility":        result.Volatility,
		"sharpe_ratio":      result.SharpeRatio,
		"max_drawdown":      result.MaxDrawdown,
		"stop_loss_exits":   result.StopLossExits,
		"equity_curve":      result.EquityCurve,
	})
}
