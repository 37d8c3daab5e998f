package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/ranking"
	"github.com/wonny/rotor/internal/stoploss"
	"github.com/wonny/rotor/internal/strategyconfig"
	"github.com/wonny/rotor/pkg/logger"
)

// State is the engine's per-cycle phase
type State string

const (
	StateCollectingPrices State = "COLLECTING_PRICES"
	StateApplyingStopLoss State = "APPLYING_STOP_LOSS"
	StateDiffingRanking   State = "DIFFING_RANKING"
	StateMerging          State = "MERGING"
	StateSealed           State = "SEALED"
)

// Mode selects snapshot sealing behavior
type Mode string

const (
	// ModeLive keeps the resulting snapshot as a mutable draft until a
	// subsequent cycle supersedes it.
	ModeLive Mode = "live"
	// ModeBacktest seals every snapshot immediately.
	ModeBacktest Mode = "backtest"
)

// Config holds engine configuration for one run scope
type Config struct {
	Settings   *contracts.Settings
	Tiers      strategyconfig.Tiers
	ConfigHash string
	Mode       Mode
}

// Engine orchestrates one rebalance cycle
// ⭐ SSOT: 사이클 오케스트레이션은 여기서만
type Engine struct {
	config   Config
	rankings contracts.RankingSource
	prices   contracts.PriceSource
	store    contracts.SnapshotStore
	guard    contracts.RunGuard
	logger   *logger.Logger

	mu      sync.RWMutex
	lastErr error
}

// BasketState is the working holdings plus the cash ledger, owned
// exclusively by the in-flight cycle. 사이클은 절대 인터리브되지 않음.
type BasketState struct {
	Basket *contracts.Basket
	Cash   float64
}

// CycleInput carries everything one cycle needs besides the collaborators
type CycleInput struct {
	State *BasketState
	AsOf  time.Time
	// Intra-period stop-loss exits already applied to State by the
	// caller (backtest daily pass); folded into this cycle's snapshot.
	CarriedEvents   []contracts.ChangeEvent
	CarriedWarnings []contracts.Warning
}

// New creates a rebalance engine
func New(
	config Config,
	rankings contracts.RankingSource,
	prices contracts.PriceSource,
	store contracts.SnapshotStore,
	guard contracts.RunGuard,
	log *logger.Logger,
) *Engine {
	return &Engine{
		config:   config,
		rankings: rankings,
		prices:   prices,
		store:    store,
		guard:    guard,
		logger:   log,
	}
}

// RunCycle executes one live rebalance: acquire the exclusive run guard,
// restore state from the latest snapshot, run the cycle and persist the
// resulting draft. The superseded draft is sealed first.
func (e *Engine) RunCycle(ctx context.Context) (*contracts.Snapshot, error) {
	release, err := e.guard.Acquire(ctx)
	if err != nil {
		e.setLastError(err)
		return nil, err
	}
	defer release()

	latest, err := e.store.Latest(ctx)
	if err != nil {
		e.setLastError(err)
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	state := &BasketState{
		Basket: contracts.NewBasket(),
		Cash:   e.config.Settings.InitialCapital,
	}
	if latest != nil {
		// 이전 "현재" 스냅샷은 새 사이클 시작 시점에 봉인됨
		if !latest.Locked {
			if err := e.store.Lock(ctx, latest.ID); err != nil {
				e.setLastError(err)
				return nil, fmt.Errorf("seal superseded snapshot: %w", err)
			}
		}
		state.Basket = latest.RestoreBasket()
		state.Cash = latest.Cash
	}

	snapshot, err := e.RunCycleAt(ctx, CycleInput{State: state, AsOf: time.Now()})
	if err != nil {
		e.setLastError(err)
		return nil, err
	}

	id, err := e.store.Save(ctx, snapshot)
	if err != nil {
		e.setLastError(err)
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	snapshot.ID = id

	e.setLastError(nil)
	return snapshot, nil
}

// RunCycleAt runs the cycle state machine against an explicit working
// state. No persistence, no guard: the caller owns both. Used directly
// by the backtest simulator.
func (e *Engine) RunCycleAt(ctx context.Context, input CycleInput) (*contracts.Snapshot, error) {
	working := input.State.Basket
	cash := input.State.Cash
	settings := e.config.Settings

	snapshot := contracts.NewDraft(input.AsOf)
	snapshot.ConfigHash = e.config.ConfigHash

	warnings := append([]contracts.Warning{}, input.CarriedWarnings...)
	events := append([]contracts.ChangeEvent{}, input.CarriedEvents...)

	// Stop-loss exits are final for the cycle: no same-cycle re-entry.
	blocked := make(map[string]bool)
	for _, ev := range input.CarriedEvents {
		if ev.Kind == contracts.ChangeExit && ev.Reason == contracts.ReasonStopLoss {
			blocked[ev.Ticker] = true
		}
	}

	// === COLLECTING_PRICES ===
	e.logState(StateCollectingPrices, input.AsOf)

	quotes := make(map[string]contracts.Quote)
	if working.Len() > 0 {
		var err error
		quotes, err = e.prices.Prices(ctx, working.Tickers(), input.AsOf)
		if err != nil {
			return nil, fmt.Errorf("collect prices for held positions: %w", err)
		}
	}

	// === APPLYING_STOP_LOSS ===
	e.logState(StateApplyingStopLoss, input.AsOf)

	tracker := stoploss.New(settings.TrailingStopPct)
	exits, gaps := tracker.Observe(working, quotes)
	warnings = append(warnings, gaps...)

	sells := 0
	for _, exit := range exits {
		pos, _ := working.Remove(exit.Ticker)
		cash += pos.MarketValue(exit.Price)
		blocked[exit.Ticker] = true
		sells++

		e.logger.WithFields(map[string]interface{}{
			"ticker": exit.Ticker,
			"price":  exit.Price,
			"stop":   exit.StopPrice,
			"peak":   exit.PeakPrice,
		}).Info("Trailing stop triggered")
	}
	events = append(events, stoploss.Events(exits)...)

	// === DIFFING_RANKING ===
	e.logState(StateDiffingRanking, input.AsOf)

	entries, err := e.rankings.Ranking(ctx, input.AsOf)
	if err != nil {
		var unavailable *contracts.RankingUnavailableError
		if !errors.As(err, &unavailable) {
			err = &contracts.RankingUnavailableError{AsOf: input.AsOf, Err: err}
		}
		return nil, err
	}

	counts := ranking.CountsFromSettings(settings)
	tiered, err := ranking.Normalize(entries, counts)
	if err != nil {
		return nil, err
	}

	diffEvents := Diff(working, tiered)

	// === MERGING ===
	e.logState(StateMerging, input.AsOf)

	enterEvents := make([]contracts.ChangeEvent, 0)
	for _, ev := range diffEvents {
		// 스탑로스 청산이 이김: 동일 사이클 재진입/중복 이벤트 금지
		if blocked[ev.Ticker] {
			continue
		}

		switch ev.Kind {
		case contracts.ChangeExit:
			quote, ok := quotes[ev.Ticker]
			if !ok {
				// 보유 종목 가격 누락: 보수적으로 홀드오버
				warnings = append(warnings, contracts.Warning{
					Ticker:  ev.Ticker,
					Message: "price unavailable, rank exit deferred to a later cycle",
				})
				events = append(events, contracts.ChangeEvent{
					Ticker:  ev.Ticker,
					Kind:    contracts.ChangeHold,
					OldTier: ev.OldTier,
					NewTier: ev.OldTier,
				})
				continue
			}
			pos, _ := working.Remove(ev.Ticker)
			cash += pos.MarketValue(quote.Price)
			ev.Price = quote.Price
			events = append(events, ev)
			sells++

		case contracts.ChangeTierChange:
			pos, _ := working.Get(ev.Ticker)
			pos.Tier = ev.NewTier
			if quote, ok := quotes[ev.Ticker]; ok {
				ev.Price = quote.Price
			}
			events = append(events, ev)

		case contracts.ChangeHold:
			if quote, ok := quotes[ev.Ticker]; ok {
				ev.Price = quote.Price
			}
			events = append(events, ev)

		case contracts.ChangeEnter:
			enterEvents = append(enterEvents, ev)
		}
	}

	buys, enterResult, err := e.applyEnters(ctx, working, &cash, quotes, enterEvents, counts, input.AsOf, &warnings)
	if err != nil {
		return nil, err
	}
	events = append(events, enterResult...)

	// === SEALED ===
	e.logState(StateSealed, input.AsOf)

	equity := cash
	for _, pos := range working.Positions() {
		equity += pos.MarketValue(e.valuationPrice(pos, quotes))
	}

	contracts.SortEvents(events)

	if err := snapshot.SetBasket(working); err != nil {
		return nil, err
	}
	if err := snapshot.SetEquity(equity, cash); err != nil {
		return nil, err
	}
	if err := snapshot.AppendEvents(events...); err != nil {
		return nil, err
	}
	for _, w := range warnings {
		if err := snapshot.AppendWarning(w); err != nil {
			return nil, err
		}
	}
	notes := fmt.Sprintf("%d sells, %d buys, %d holdings", sells, buys, working.Len())
	if err := snapshot.SetNotes(notes); err != nil {
		return nil, err
	}

	if e.config.Mode == ModeBacktest {
		snapshot.Seal()
	}

	input.State.Basket = working
	input.State.Cash = cash

	e.logger.WithFields(map[string]interface{}{
		"as_of":    input.AsOf.Format("2006-01-02"),
		"holdings": working.Len(),
		"equity":   equity,
		"cash":     cash,
		"events":   len(events),
		"warnings": len(warnings),
	}).Info("Cycle sealed")

	return snapshot, nil
}

// applyEnters prices the enter candidates and buys what the cash ledger
// allows. 진입 후보 가격 누락은 WARNING + 이번 사이클 제외, 중단 아님.
func (e *Engine) applyEnters(
	ctx context.Context,
	working *contracts.Basket,
	cash *float64,
	heldQuotes map[string]contracts.Quote,
	enters []contracts.ChangeEvent,
	counts ranking.TierCounts,
	asOf time.Time,
	warnings *[]contracts.Warning,
) (int, []contracts.ChangeEvent, error) {
	out := make([]contracts.ChangeEvent, 0, len(enters))
	if len(enters) == 0 {
		return 0, out, nil
	}

	tickers := make([]string, 0, len(enters))
	for _, ev := range enters {
		tickers = append(tickers, ev.Ticker)
	}

	enterQuotes, err := e.prices.Prices(ctx, tickers, asOf)
	if err != nil {
		// look-ahead 위반은 사이클 치명적 (백테스트 무결성)
		var violation *contracts.LookAheadViolationError
		if errors.As(err, &violation) {
			return 0, nil, err
		}
		// 그 외 후보 전체 가격 조회 실패: 이번 사이클은 진입 없이 진행
		e.logger.WithError(err).Warn("Price lookup for enter candidates failed")
		for _, ev := range enters {
			*warnings = append(*warnings, contracts.Warning{
				Ticker:  ev.Ticker,
				Message: "price unavailable, excluded from this cycle",
			})
		}
		return 0, out, nil
	}

	// 진입 배분 기준: 현금 + 잔존 포지션 평가액
	equityBase := *cash
	for _, pos := range working.Positions() {
		equityBase += pos.MarketValue(e.valuationPrice(pos, heldQuotes))
	}

	buys := 0
	for _, ev := range enters {
		if working.Len() >= counts.Total() {
			*warnings = append(*warnings, contracts.Warning{
				Ticker:  ev.Ticker,
				Message: "basket full (deferred exits), entry skipped",
			})
			continue
		}

		quote, ok := enterQuotes[ev.Ticker]
		if !ok || quote.Price <= 0 {
			*warnings = append(*warnings, contracts.Warning{
				Ticker:  ev.Ticker,
				Message: "price unavailable, excluded from this cycle",
			})
			continue
		}

		alloc := e.config.Tiers.WeightFor(ev.NewTier) * equityBase
		if alloc > *cash {
			alloc = *cash
		}
		if alloc <= 0 {
			*warnings = append(*warnings, contracts.Warning{
				Ticker:  ev.Ticker,
				Message: "cash exhausted, entry skipped",
			})
			continue
		}

		pos := &contracts.Position{
			Ticker:     ev.Ticker,
			Tier:       ev.NewTier,
			EntryPrice: quote.Price,
			EntryDate:  asOf,
			PeakPrice:  quote.Price,
			Shares:     alloc / quote.Price,
		}
		if err := working.Add(pos); err != nil {
			// diff가 ENTER를 보장하므로 도달 불가, 방어적 로그만
			e.logger.WithError(err).Error("Enter collided with held position")
			continue
		}
		*cash -= alloc
		buys++

		ev.Price = quote.Price
		out = append(out, ev)
	}

	return buys, out, nil
}

// valuationPrice picks the mark price for a position: the cycle's quote
// when present, otherwise the entry price (conservative on data gaps).
func (e *Engine) valuationPrice(pos *contracts.Position, quotes map[string]contracts.Quote) float64 {
	if quote, ok := quotes[pos.Ticker]; ok {
		return quote.Price
	}
	return pos.EntryPrice
}

// CurrentBasket returns the latest persisted snapshot's basket state
func (e *Engine) CurrentBasket(ctx context.Context) (*contracts.Snapshot, error) {
	return e.store.Latest(ctx)
}

// LatestEvents returns the activity log of the most recent cycle
func (e *Engine) LatestEvents(ctx context.Context) ([]contracts.ChangeEvent, error) {
	latest, err := e.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return []contracts.ChangeEvent{}, nil
	}
	return latest.Events, nil
}

// LastError returns the most recent cycle failure (nil after a success).
// 대시보드는 마지막 성공 스냅샷 + 이 에러를 함께 노출.
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
}

func (e *Engine) logState(state State, asOf time.Time) {
	e.logger.WithFields(map[string]interface{}{
		"state": string(state),
		"as_of": asOf.Format("2006-01-02"),
	}).Debug("Cycle state")
}
