package strategyconfig

import (
	"fmt"
	"math"
	"regexp"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	dayPattern  = regexp.MustCompile(`^(mon|tue|wed|thu|fri|sat|sun)$`)
)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Tiers ===
	if cfg.Tiers.TakeProfitCount <= 0 {
		return ValidationError{"tiers.take_profit_count", "must be > 0"}
	}
	if cfg.Tiers.HoldCount <= 0 {
		return ValidationError{"tiers.hold_count", "must be > 0"}
	}
	if cfg.Tiers.BufferCount < 0 {
		return ValidationError{"tiers.buffer_count", "must be >= 0"}
	}
	if cfg.Tiers.Total() > 50 {
		return ValidationError{"tiers", "total basket size must be <= 50"}
	}

	// 티어별 가중치: 전부 0 (균등) 또는 합이 1.0 이하
	if !cfg.Tiers.EqualWeight() {
		if cfg.Tiers.TakeProfitWeightEach <= 0 || cfg.Tiers.HoldWeightEach <= 0 ||
			(cfg.Tiers.BufferCount > 0 && cfg.Tiers.BufferWeightEach <= 0) {
			return ValidationError{"tiers", "per-slot weights must all be set or all be zero"}
		}
		total := cfg.Tiers.TotalWeight()
		if total > 1.0+1e-6 {
			return ValidationError{"tiers", fmt.Sprintf("total weight %.4f exceeds 1.0", total)}
		}
		if math.IsNaN(total) || math.IsInf(total, 0) {
			return ValidationError{"tiers", "total weight is not a number"}
		}
	}

	// === Exit ===
	if cfg.Exit.TrailingStopPct <= 0 || cfg.Exit.TrailingStopPct >= 1 {
		return ValidationError{"exit.trailing_stop_pct", "must be in (0, 1)"}
	}

	// === Capital ===
	if cfg.Capital.Initial <= 0 {
		return ValidationError{"capital.initial", "must be > 0"}
	}

	// === Schedule ===
	if !dayPattern.MatchString(cfg.Schedule.Day) {
		return ValidationError{"schedule.day", "must be one of mon..sun"}
	}
	if !hhmmPattern.MatchString(cfg.Schedule.Time) {
		return ValidationError{"schedule.time", "must be HH:MM"}
	}
	if cfg.Schedule.Timezone == "" {
		return ValidationError{"schedule.timezone", "required"}
	}

	// === Backtest ===
	if cfg.Backtest.CheckpointDays <= 0 {
		return ValidationError{"backtest.checkpoint_days", "must be > 0"}
	}

	return nil
}
