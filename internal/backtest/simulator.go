// Package backtest replays the rotation strategy over historical data:
// checkpoint cycles through the rebalance engine, daily trailing-stop
// passes in between, one sealed snapshot per checkpoint.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/rebalance"
	"github.com/wonny/rotor/internal/stoploss"
	"github.com/wonny/rotor/internal/store"
	"github.com/wonny/rotor/internal/strategyconfig"
	"github.com/wonny/rotor/pkg/logger"
)

// Config holds one simulation run's parameters
type Config struct {
	StartDate      time.Time
	EndDate        time.Time
	CheckpointDays int     // rebalance cadence in trading days (e.g. 5 for weekly)
	InitialCapital float64 // 0 → settings default
}

// Result holds the completed simulation
type Result struct {
	Config      Config
	StartDate   time.Time
	EndDate     time.Time
	Duration    time.Duration
	TradingDays int
	Checkpoints int

	// Performance metrics
	InitialCapital   float64
	FinalEquity      float64
	TotalReturn      float64
	AnnualizedReturn float64
	CAGR             float64
	Volatility       float64
	SharpeRatio      float64
	MaxDrawdown      float64
	StopLossExits    int

	EquityCurve []EquityPoint
	Snapshots   []*contracts.Snapshot
}

// EquityPoint represents one trading day on the equity curve
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
	Return float64   `json:"return"`
}

// Simulator runs historical simulations of the rotation strategy
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Simulator struct {
	settings   *contracts.Settings
	tiers      strategyconfig.Tiers
	configHash string

	engine    *rebalance.Engine
	prices    contracts.PriceSource // guarded
	snapshots contracts.SnapshotStore
	tracker   *stoploss.Tracker
	clock     *cutoff
	logger    *logger.Logger
}

// New creates a simulator over point-in-time historical sources. Both
// sources are wrapped with the look-ahead guard: data timestamped past
// the simulated day aborts the whole run.
func New(
	settings *contracts.Settings,
	tiers strategyconfig.Tiers,
	configHash string,
	rankings contracts.RankingSource,
	prices contracts.PriceSource,
	snapshots contracts.SnapshotStore,
	log *logger.Logger,
) *Simulator {
	clock := &cutoff{}
	guardedPrices := &guardedPrices{src: prices, cutoff: clock}

	engine := rebalance.New(
		rebalance.Config{
			Settings:   settings,
			Tiers:      tiers,
			ConfigHash: configHash,
			Mode:       rebalance.ModeBacktest,
		},
		&guardedRanking{src: rankings, cutoff: clock},
		guardedPrices,
		snapshots,
		store.NewLocalRunGuard(), // RunCycleAt 경로에서는 미사용
		log,
	)

	return &Simulator{
		settings:   settings,
		tiers:      tiers,
		configHash: configHash,
		engine:     engine,
		prices:     guardedPrices,
		snapshots:  snapshots,
		tracker:    stoploss.New(settings.TrailingStopPct),
		clock:      clock,
		logger:     log,
	}
}

// Run executes the simulation day by day. Deterministic: the same inputs
// produce byte-identical snapshots.
func (s *Simulator) Run(ctx context.Context, config Config) (*Result, error) {
	if config.CheckpointDays <= 0 {
		config.CheckpointDays = 5
	}
	capital := config.InitialCapital
	if capital <= 0 {
		capital = s.settings.InitialCapital
	}

	s.logger.WithFields(map[string]interface{}{
		"start_date":      config.StartDate.Format("2006-01-02"),
		"end_date":        config.EndDate.Format("2006-01-02"),
		"initial_capital": capital,
		"checkpoint_days": config.CheckpointDays,
	}).Info("Starting backtest")

	startTime := time.Now()
	result := &Result{
		Config:         config,
		StartDate:      config.StartDate,
		EndDate:        config.EndDate,
		InitialCapital: capital,
		EquityCurve:    make([]EquityPoint, 0),
		Snapshots:      make([]*contracts.Snapshot, 0),
	}

	state := &rebalance.BasketState{
		Basket: contracts.NewBasket(),
		Cash:   capital,
	}

	// Intra-checkpoint stop-loss activity, folded into the next snapshot
	carried := make([]contracts.ChangeEvent, 0)
	carriedWarnings := make([]contracts.Warning, 0)

	current := config.StartDate
	daysSinceCheckpoint := config.CheckpointDays // 첫 거래일은 체크포인트
	for !current.After(config.EndDate) {
		if current.Weekday() == time.Saturday || current.Weekday() == time.Sunday {
			current = current.AddDate(0, 0, 1)
			continue
		}
		result.TradingDays++
		s.clock.advance(endOfDay(current))

		if daysSinceCheckpoint >= config.CheckpointDays {
			snapshot, err := s.engine.RunCycleAt(ctx, rebalance.CycleInput{
				State:           state,
				AsOf:            current,
				CarriedEvents:   carried,
				CarriedWarnings: carriedWarnings,
			})
			if err != nil {
				// look-ahead 위반 포함: 부분 결과 없이 전체 중단
				return nil, fmt.Errorf("checkpoint %s: %w", current.Format("2006-01-02"), err)
			}

			id, err := s.snapshots.Save(ctx, snapshot)
			if err != nil {
				return nil, fmt.Errorf("persist snapshot %s: %w", current.Format("2006-01-02"), err)
			}
			snapshot.ID = id
			result.Snapshots = append(result.Snapshots, snapshot)
			result.Checkpoints++

			carried = carried[:0]
			carriedWarnings = carriedWarnings[:0]
			daysSinceCheckpoint = 1
		} else {
			exits, err := s.dailyStopPass(ctx, state, current)
			if err != nil {
				return nil, fmt.Errorf("daily pass %s: %w", current.Format("2006-01-02"), err)
			}
			carried = append(carried, exits...)
			daysSinceCheckpoint++
		}

		equity, err := s.markToMarket(ctx, state, current)
		if err != nil {
			return nil, fmt.Errorf("mark to market %s: %w", current.Format("2006-01-02"), err)
		}
		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Date:   current,
			Equity: equity,
			Return: (equity - capital) / capital,
		})

		current = current.AddDate(0, 0, 1)
	}

	result.Duration = time.Since(startTime)
	if len(result.EquityCurve) > 0 {
		result.FinalEquity = result.EquityCurve[len(result.EquityCurve)-1].Equity
	} else {
		result.FinalEquity = capital
	}
	s.calculateMetrics(result)

	s.logger.WithFields(map[string]interface{}{
		"trading_days": result.TradingDays,
		"checkpoints":  result.Checkpoints,
		"total_return": fmt.Sprintf("%.2f%%", result.TotalReturn*100),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}

// dailyStopPass applies the trailing stop between checkpoints. Exits sell
// into cash immediately; the events carry over into the next snapshot.
func (s *Simulator) dailyStopPass(ctx context.Context, state *rebalance.BasketState, day time.Time) ([]contracts.ChangeEvent, error) {
	if state.Basket.Len() == 0 {
		return nil, nil
	}

	quotes, err := s.prices.Prices(ctx, state.Basket.Tickers(), day)
	if err != nil {
		return nil, err
	}

	// 일중 가격 공백은 해당 종목만 스킵 (경고는 체크포인트 사이클 몫)
	exits, _ := s.tracker.Observe(state.Basket, quotes)
	for _, exit := range exits {
		pos, _ := state.Basket.Remove(exit.Ticker)
		state.Cash += pos.MarketValue(exit.Price)

		s.logger.WithFields(map[string]interface{}{
			"date":   day.Format("2006-01-02"),
			"ticker": exit.Ticker,
			"price":  exit.Price,
			"peak":   exit.PeakPrice,
		}).Debug("Intra-period trailing stop")
	}
	return stoploss.Events(exits), nil
}

// markToMarket values the working state at the day's prices. Missing
// quotes fall back to the entry price.
func (s *Simulator) markToMarket(ctx context.Context, state *rebalance.BasketState, day time.Time) (float64, error) {
	equity := state.Cash
	if state.Basket.Len() == 0 {
		return equity, nil
	}

	quotes, err := s.prices.Prices(ctx, state.Basket.Tickers(), day)
	if err != nil {
		return 0, err
	}
	for _, pos := range state.Basket.Positions() {
		price := pos.EntryPrice
		if quote, ok := quotes[pos.Ticker]; ok {
			price = quote.Price
		}
		equity += pos.MarketValue(price)
	}
	return equity, nil
}

// calculateMetrics derives performance metrics from the equity curve
func (s *Simulator) calculateMetrics(result *Result) {
	if len(result.EquityCurve) == 0 {
		return
	}

	result.TotalReturn = (result.FinalEquity - result.InitialCapital) / result.InitialCapital

	days := result.EndDate.Sub(result.StartDate).Hours() / 24
	years := days / 365.25
	if years > 0 {
		result.AnnualizedReturn = result.TotalReturn / years
		result.CAGR = math.Pow(result.FinalEquity/result.InitialCapital, 1.0/years) - 1.0
	}

	dailyReturns := make([]float64, 0, len(result.EquityCurve)-1)
	for i := 1; i < len(result.EquityCurve); i++ {
		prev := result.EquityCurve[i-1].Equity
		if prev > 0 {
			dailyReturns = append(dailyReturns, (result.EquityCurve[i].Equity-prev)/prev)
		}
	}
	result.Volatility = stddev(dailyReturns) * math.Sqrt(252)
	if result.Volatility > 0 {
		result.SharpeRatio = result.AnnualizedReturn / result.Volatility
	}

	result.MaxDrawdown = maxDrawdown(result.EquityCurve)

	for _, snapshot := range result.Snapshots {
		for _, ev := range snapshot.Events {
			if ev.Reason == contracts.ReasonStopLoss {
				result.StopLossExits++
			}
		}
	}
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	worst := 0.0
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			drawdown := (peak - point.Equity) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}
	return worst
}

func endOfDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, day.Location())
}
