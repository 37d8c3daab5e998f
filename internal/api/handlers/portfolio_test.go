package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/rebalance"
	"github.com/wonny/rotor/internal/store"
	"github.com/wonny/rotor/internal/strategyconfig"
	"github.com/wonny/rotor/pkg/logger"
)

type stubRanking struct {
	entries []contracts.RankedEntry
	err     error
}

func (s *stubRanking) Ranking(_ context.Context, asOf time.Time) ([]contracts.RankedEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]contracts.RankedEntry, len(s.entries))
	copy(out, s.entries)
	for i := range out {
		out[i].AsOf = asOf
	}
	return out, nil
}

type stubPrices struct {
	quotes map[string]float64
}

func (s *stubPrices) Prices(_ context.Context, tickers []string, asOf time.Time) (map[string]contracts.Quote, error) {
	out := make(map[string]contracts.Quote, len(tickers))
	for _, t := range tickers {
		if price, ok := s.quotes[t]; ok {
			out[t] = contracts.Quote{Price: price, AsOf: asOf}
		}
	}
	return out, nil
}

func ranked(tickers ...string) []contracts.RankedEntry {
	entries := make([]contracts.RankedEntry, 0, len(tickers))
	for i, t := range tickers {
		entries = append(entries, contracts.RankedEntry{Ticker: t, Rank: i + 1})
	}
	return entries
}

type fixture struct {
	handler   *PortfolioHandler
	snapshots *store.MemorySnapshots
	guard     *store.LocalRunGuard
}

func newFixture(t *testing.T, rankings contracts.RankingSource, prices contracts.PriceSource) *fixture {
	t.Helper()

	settings := contracts.DefaultSettings()
	settings.TakeProfitCount = 1
	settings.HoldCount = 2
	settings.BufferCount = 1
	settings.InitialCapital = 100000

	snapshots := store.NewMemorySnapshots()
	guard := store.NewLocalRunGuard()
	engine := rebalance.New(
		rebalance.Config{
			Settings: settings,
			Tiers: strategyconfig.Tiers{
				TakeProfitCount: 1,
				HoldCount:       2,
				BufferCount:     1,
			},
			Mode: rebalance.ModeLive,
		},
		rankings, prices, snapshots, guard, logger.Nop(),
	)

	return &fixture{
		handler:   NewPortfolioHandler(engine, snapshots, NewHub(logger.Nop()), logger.Nop()),
		snapshots: snapshots,
		guard:     guard,
	}
}

func healthyFixture(t *testing.T) *fixture {
	return newFixture(t,
		&stubRanking{entries: ranked("AAPL", "MSFT", "NVDA", "TSLA")},
		&stubPrices{quotes: map[string]float64{
			"AAPL": 50, "MSFT": 100, "NVDA": 200, "TSLA": 25,
		}},
	)
}

func TestGetCurrent_NotFoundBeforeFirstCycle(t *testing.T) {
	f := healthyFixture(t)

	rec := httptest.NewRecorder()
	f.handler.GetCurrent(rec, httptest.NewRequest("GET", "/api/portfolio", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerCycleThenGetCurrent(t *testing.T) {
	f := healthyFixture(t)

	rec := httptest.NewRecorder()
	f.handler.TriggerCycle(rec, httptest.NewRequest("POST", "/api/rebalance/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.GetCurrent(rec, httptest.NewRequest("GET", "/api/portfolio", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot contracts.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Len(t, snapshot.Positions, 4)
	assert.InDelta(t, 100000, snapshot.EquityValue, 1e-6)
	assert.False(t, snapshot.Locked)
}

func TestTriggerCycle_ConflictWhileRunning(t *testing.T) {
	f := healthyFixture(t)

	release, err := f.guard.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	rec := httptest.NewRecorder()
	f.handler.TriggerCycle(rec, httptest.NewRequest("POST", "/api/rebalance/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerCycle_RankingFeedDown(t *testing.T) {
	f := newFixture(t,
		&stubRanking{err: errors.New("feed down")},
		&stubPrices{},
	)

	rec := httptest.NewRecorder()
	f.handler.TriggerCycle(rec, httptest.NewRequest("POST", "/api/rebalance/run", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// 실패 후 상태 조회: 스냅샷 없음 + 에러 노출
	rec = httptest.NewRecorder()
	f.handler.GetStatus(rec, httptest.NewRequest("GET", "/api/portfolio/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.NotNil(t, status["last_error"])
	_, hasSnapshot := status["last_snapshot_id"]
	assert.False(t, hasSnapshot)
}

func TestGetHistory_RangeFiltering(t *testing.T) {
	f := healthyFixture(t)
	ctx := context.Background()

	old := contracts.NewDraft(time.Now().AddDate(0, -4, 0))
	recent := contracts.NewDraft(time.Now().AddDate(0, 0, -7))
	_, err := f.snapshots.Save(ctx, old)
	require.NoError(t, err)
	_, err = f.snapshots.Save(ctx, recent)
	require.NoError(t, err)

	get := func(rng string) []historyPoint {
		rec := httptest.NewRecorder()
		f.handler.GetHistory(rec, httptest.NewRequest("GET", "/api/portfolio/history?range="+rng, nil))
		require.Equal(t, http.StatusOK, rec.Code, rng)

		var body struct {
			Points []historyPoint `json:"points"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body.Points
	}

	assert.Len(t, get("ALL"), 2)
	assert.Len(t, get("1M"), 1)
	assert.Len(t, get("6M"), 2)

	rec := httptest.NewRecorder()
	f.handler.GetHistory(rec, httptest.NewRequest("GET", "/api/portfolio/history?range=2W", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRangeCutoff(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		token string
		want  time.Time
		ok    bool
	}{
		{"", time.Time{}, true},
		{"ALL", time.Time{}, true},
		{"all", time.Time{}, true},
		{"1M", now.AddDate(0, -1, 0), true},
		{"3m", now.AddDate(0, -3, 0), true},
		{"6M", now.AddDate(0, -6, 0), true},
		{"YTD", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"2W", time.Time{}, false},
		{"1Y", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := rangeCutoff(tt.token, now)
		assert.Equal(t, tt.ok, ok, tt.token)
		assert.True(t, got.Equal(tt.want), "token %s: got %v want %v", tt.token, got, tt.want)
	}
}
