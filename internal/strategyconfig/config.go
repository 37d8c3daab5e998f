package strategyconfig

import (
	"github.com/wonny/rotor/internal/contracts"
)

// Config는 로테이션 전략의 전체 설정
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Tiers    Tiers    `yaml:"tiers" json:"tiers"`
	Exit     Exit     `yaml:"exit" json:"exit"`
	Capital  Capital  `yaml:"capital" json:"capital"`
	Schedule Schedule `yaml:"schedule" json:"schedule"`
	Screener Screener `yaml:"screener" json:"screener"`
	Backtest Backtest `yaml:"backtest" json:"backtest"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Tiers fixes the basket partition sizes and the per-slot weight of each
// tier. Weight 합 = 1.0 (현금 보유분 제외 시)
type Tiers struct {
	TakeProfitCount int     `yaml:"take_profit_count" json:"take_profit_count"`
	HoldCount       int     `yaml:"hold_count" json:"hold_count"`
	BufferCount     int     `yaml:"buffer_count" json:"buffer_count"`
	// Per-position weight fraction by tier. 0 = equal weight across slots.
	TakeProfitWeightEach float64 `yaml:"take_profit_weight_each" json:"take_profit_weight_each"`
	HoldWeightEach       float64 `yaml:"hold_weight_each" json:"hold_weight_each"`
	BufferWeightEach     float64 `yaml:"buffer_weight_each" json:"buffer_weight_each"`
}

// Total returns the full basket size K1+K2+K3
func (t Tiers) Total() int {
	return t.TakeProfitCount + t.HoldCount + t.BufferCount
}

// EqualWeight reports whether slots share one uniform weight
func (t Tiers) EqualWeight() bool {
	return t.TakeProfitWeightEach == 0 && t.HoldWeightEach == 0 && t.BufferWeightEach == 0
}

// WeightFor returns the per-slot capital fraction for a tier
func (t Tiers) WeightFor(tier contracts.Tier) float64 {
	if t.EqualWeight() {
		return 1.0 / float64(t.Total())
	}
	switch tier {
	case contracts.TierTakeProfit:
		return t.TakeProfitWeightEach
	case contracts.TierHold:
		return t.HoldWeightEach
	case contracts.TierBuffer:
		return t.BufferWeightEach
	}
	return 0
}

// TotalWeight returns the summed capital fraction of a full basket
func (t Tiers) TotalWeight() float64 {
	if t.EqualWeight() {
		return 1.0
	}
	return float64(t.TakeProfitCount)*t.TakeProfitWeightEach +
		float64(t.HoldCount)*t.HoldWeightEach +
		float64(t.BufferCount)*t.BufferWeightEach
}

// Exit 청산 규칙
type Exit struct {
	TrailingStopPct float64 `yaml:"trailing_stop_pct" json:"trailing_stop_pct"` // 예: 0.15
}

// Capital 자본 설정
type Capital struct {
	Initial float64 `yaml:"initial" json:"initial"`
}

// Schedule 리밸런스 트리거 (요일/시각/타임존)
type Schedule struct {
	Day      string `yaml:"day" json:"day"`           // mon..sun
	Time     string `yaml:"time" json:"time"`         // HH:MM
	Timezone string `yaml:"timezone" json:"timezone"` // IANA name
}

// Screener 랭킹 피드 설정
type Screener struct {
	URL string `yaml:"url" json:"url"`
}

// Backtest 백테스트 기본값
type Backtest struct {
	CheckpointDays int `yaml:"checkpoint_days" json:"checkpoint_days"` // 예: 7 (주간)
}

// ToSettings converts the strategy baseline into the runtime Settings shape
func (c *Config) ToSettings() *contracts.Settings {
	return &contracts.Settings{
		TakeProfitCount:  c.Tiers.TakeProfitCount,
		HoldCount:        c.Tiers.HoldCount,
		BufferCount:      c.Tiers.BufferCount,
		TrailingStopPct:  c.Exit.TrailingStopPct,
		InitialCapital:   c.Capital.Initial,
		ScheduleDay:      c.Schedule.Day,
		ScheduleTime:     c.Schedule.Time,
		ScheduleTimezone: c.Schedule.Timezone,
	}
}

// Default returns the baseline rotation strategy configuration
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "rotation_v1",
			Version:    "1.0.0",
		},
		Tiers: Tiers{
			TakeProfitCount: 3,
			HoldCount:       10,
			BufferCount:     2,
		},
		Exit: Exit{
			TrailingStopPct: 0.15,
		},
		Capital: Capital{
			Initial: 150000,
		},
		Schedule: Schedule{
			Day:      "mon",
			Time:     "19:00",
			Timezone: "Europe/Rome",
		},
		Backtest: Backtest{
			CheckpointDays: 7,
		},
	}
}
