// Package stoploss implements the trailing-stop guardrail that runs
// independently of the ranking-driven rebalance.
package stoploss

import (
	"fmt"

	"github.com/wonny/rotor/internal/contracts"
)

// Exit is a forced stop-loss exit for one position
type Exit struct {
	Ticker    string
	Price     float64 // observed price that triggered the stop
	PeakPrice float64 // running peak at trigger time
	StopPrice float64 // peak * (1 - trailing_stop_pct)
}

// Tracker evaluates the trailing stop against open positions
// ⭐ SSOT: 트레일링 스탑 판정은 여기서만
type Tracker struct {
	trailingStopPct float64
}

// New creates a tracker with the configured trailing fraction (e.g. 0.15)
func New(trailingStopPct float64) *Tracker {
	return &Tracker{trailingStopPct: trailingStopPct}
}

// Observe feeds one batch of price observations to every open position.
// Peaks are ratcheted first, then the stop is evaluated: a position exits
// iff price ≤ peak × (1 − pct), boundary inclusive. Positions without a
// quote this batch are untouched and reported as data-gap warnings —
// 가격 누락이 강제 청산으로 이어지면 안 됨.
func (t *Tracker) Observe(basket *contracts.Basket, quotes map[string]contracts.Quote) ([]Exit, []contracts.Warning) {
	exits := make([]Exit, 0)
	gaps := make([]contracts.Warning, 0)

	for _, pos := range basket.Positions() {
		quote, ok := quotes[pos.Ticker]
		if !ok {
			gaps = append(gaps, contracts.Warning{
				Ticker:  pos.Ticker,
				Message: "no price observation, position held at last known peak",
			})
			continue
		}

		peak := pos.ObservePrice(quote.Price)
		stop := peak * (1 - t.trailingStopPct)

		if triggered(quote.Price, stop, peak) {
			exits = append(exits, Exit{
				Ticker:    pos.Ticker,
				Price:     quote.Price,
				PeakPrice: peak,
				StopPrice: stop,
			})
		}
	}

	return exits, gaps
}

// triggered applies the inclusive boundary check with a relative epsilon.
// peak=100, pct=0.15 → 85.00 청산, 85.01 유지 (이진 부동소수 오차 보정).
func triggered(price, stop, peak float64) bool {
	const eps = 1e-9
	return price <= stop+peak*eps
}

// Events converts forced exits into activity log events
func Events(exits []Exit) []contracts.ChangeEvent {
	out := make([]contracts.ChangeEvent, 0, len(exits))
	for _, e := range exits {
		out = append(out, contracts.ChangeEvent{
			Ticker: e.Ticker,
			Kind:   contracts.ChangeExit,
			Reason: contracts.ReasonStopLoss,
			Price:  e.Price,
		})
	}
	return out
}

// String describes the exit for log lines
func (e Exit) String() string {
	return fmt.Sprintf("%s: %.2f <= stop %.2f (peak %.2f)", e.Ticker, e.Price, e.StopPrice, e.PeakPrice)
}
