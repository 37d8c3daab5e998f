package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/store"
	"github.com/wonny/rotor/internal/strategyconfig"
	"github.com/wonny/rotor/pkg/logger"
)

// histRanking serves a fixed ranked list stamped at the requested date
type histRanking struct {
	tickers []string
}

func (h *histRanking) Ranking(_ context.Context, asOf time.Time) ([]contracts.RankedEntry, error) {
	entries := make([]contracts.RankedEntry, 0, len(h.tickers))
	for i, t := range h.tickers {
		entries = append(entries, contracts.RankedEntry{Ticker: t, Rank: i + 1, AsOf: asOf})
	}
	return entries, nil
}

// histPrices serves base prices with optional per-date overrides,
// each quote stamped at the requested date (or shifted by skew).
type histPrices struct {
	base      map[string]float64
	overrides map[string]map[string]float64 // "2026-03-04" → ticker → price
	skew      time.Duration                 // look-ahead 위반 시뮬레이션용
}

func (h *histPrices) Prices(_ context.Context, tickers []string, asOf time.Time) (map[string]contracts.Quote, error) {
	day := asOf.Format("2006-01-02")
	out := make(map[string]contracts.Quote, len(tickers))
	for _, t := range tickers {
		price, ok := h.base[t]
		if byDay, exists := h.overrides[day]; exists {
			if p, overridden := byDay[t]; overridden {
				price, ok = p, true
			}
		}
		if ok {
			out[t] = contracts.Quote{Price: price, AsOf: asOf.Add(h.skew)}
		}
	}
	return out, nil
}

func testSettings() *contracts.Settings {
	s := contracts.DefaultSettings()
	s.TakeProfitCount = 1
	s.HoldCount = 2
	s.BufferCount = 1
	s.InitialCapital = 100000
	return s
}

func newTestSimulator(settings *contracts.Settings, rankings contracts.RankingSource, prices contracts.PriceSource, snapshots contracts.SnapshotStore) *Simulator {
	tiers := strategyconfig.Tiers{
		TakeProfitCount: settings.TakeProfitCount,
		HoldCount:       settings.HoldCount,
		BufferCount:     settings.BufferCount,
	}
	return New(settings, tiers, "backtest-hash", rankings, prices, snapshots, logger.Nop())
}

func flatMarket() (*histRanking, *histPrices) {
	return &histRanking{tickers: []string{"AAPL", "MSFT", "NVDA", "TSLA"}},
		&histPrices{base: map[string]float64{
			"AAPL": 50, "MSFT": 100, "NVDA": 200, "TSLA": 25,
		}}
}

func TestRun_WeeklyCheckpointsProduceSealedSnapshots(t *testing.T) {
	rankings, prices := flatMarket()
	snapshots := store.NewMemorySnapshots()
	sim := newTestSimulator(testSettings(), rankings, prices, snapshots)

	result, err := sim.Run(context.Background(), Config{
		StartDate:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), // 월요일
		EndDate:        time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		CheckpointDays: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.TradingDays)
	assert.Equal(t, 2, result.Checkpoints)
	require.Len(t, result.Snapshots, 2)

	for _, snapshot := range result.Snapshots {
		assert.True(t, snapshot.Locked, "backtest snapshots seal immediately")
		assert.ErrorIs(t, snapshot.SetNotes("edit"), contracts.ErrSnapshotLocked)
		assert.Equal(t, "backtest-hash", snapshot.ConfigHash)
	}

	// 첫 주: 진입 4건, 둘째 주: 전부 HOLD
	for _, ev := range result.Snapshots[0].Events {
		assert.Equal(t, contracts.ChangeEnter, ev.Kind)
	}
	require.Len(t, result.Snapshots[1].Events, 4)
	for _, ev := range result.Snapshots[1].Events {
		assert.Equal(t, contracts.ChangeHold, ev.Kind)
	}

	// 가격 불변 → 수익률 0
	assert.InDelta(t, 100000, result.FinalEquity, 1e-6)
	assert.InDelta(t, 0, result.TotalReturn, 1e-9)
	assert.Zero(t, result.StopLossExits)
	assert.Len(t, result.EquityCurve, 10)

	history, err := snapshots.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRun_IntraWeekStopLossCarriesIntoNextSnapshot(t *testing.T) {
	rankings, prices := flatMarket()
	// 수요일 TSLA 25 → 20 (-20%, 트레일링 스탑 15% 발동), 목요일부터 회복
	prices.overrides = map[string]map[string]float64{
		"2026-03-04": {"TSLA": 20},
	}
	snapshots := store.NewMemorySnapshots()
	sim := newTestSimulator(testSettings(), rankings, prices, snapshots)

	result, err := sim.Run(context.Background(), Config{
		StartDate:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		CheckpointDays: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 3)
	assert.Equal(t, 1, result.StopLossExits)

	// 2주차 스냅샷: 일중 청산이 접혀 들어가고 같은 사이클 재진입 없음
	week2 := result.Snapshots[1]
	var tslaEvents []contracts.ChangeEvent
	for _, ev := range week2.Events {
		if ev.Ticker == "TSLA" {
			tslaEvents = append(tslaEvents, ev)
		}
	}
	require.Len(t, tslaEvents, 1)
	assert.Equal(t, contracts.ChangeExit, tslaEvents[0].Kind)
	assert.Equal(t, contracts.ReasonStopLoss, tslaEvents[0].Reason)
	assert.Equal(t, 20.0, tslaEvents[0].Price)
	assert.NotContains(t, week2.AllTickers(), "TSLA")

	// 1000주 × 20 청산 대금
	assert.InDelta(t, 20000, week2.Cash, 1e-6)

	// 3주차: 차단 해제, 랭킹 유지 중이므로 재진입
	week3 := result.Snapshots[2]
	assert.Contains(t, week3.AllTickers(), "TSLA")
	var reentered bool
	for _, ev := range week3.Events {
		if ev.Ticker == "TSLA" && ev.Kind == contracts.ChangeEnter {
			reentered = true
		}
	}
	assert.True(t, reentered, "stop-loss block lasts one cycle only")
}

func TestRun_LookAheadViolationAbortsWithoutSnapshot(t *testing.T) {
	rankings, prices := flatMarket()
	prices.skew = 48 * time.Hour // 미래 시점 데이터
	snapshots := store.NewMemorySnapshots()
	sim := newTestSimulator(testSettings(), rankings, prices, snapshots)

	_, err := sim.Run(context.Background(), Config{
		StartDate:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		CheckpointDays: 5,
	})
	require.Error(t, err)

	var violation *contracts.LookAheadViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "prices", violation.Source)

	// 위반 체크포인트의 스냅샷은 저장되지 않음
	history, storeErr := snapshots.History(context.Background(), 10)
	require.NoError(t, storeErr)
	assert.Empty(t, history)
}

func TestRun_IsDeterministic(t *testing.T) {
	runOnce := func() *Result {
		rankings, prices := flatMarket()
		prices.overrides = map[string]map[string]float64{
			"2026-03-04": {"TSLA": 20, "NVDA": 210},
			"2026-03-10": {"AAPL": 55},
		}
		sim := newTestSimulator(testSettings(), rankings, prices, store.NewMemorySnapshots())
		result, err := sim.Run(context.Background(), Config{
			StartDate:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			EndDate:        time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
			CheckpointDays: 5,
		})
		require.NoError(t, err)
		return result
	}

	first := runOnce()
	second := runOnce()

	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	require.Equal(t, len(first.Snapshots), len(second.Snapshots))
	for i := range first.Snapshots {
		assert.Equal(t, first.Snapshots[i].Events, second.Snapshots[i].Events)
		assert.Equal(t, first.Snapshots[i].Basket, second.Snapshots[i].Basket)
		assert.Equal(t, first.Snapshots[i].EquityValue, second.Snapshots[i].EquityValue)
		assert.Equal(t, first.Snapshots[i].Cash, second.Snapshots[i].Cash)
	}
}
