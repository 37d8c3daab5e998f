// Package rebalance orchestrates one rotation cycle: trailing-stop exits,
// ranking diff, merge and snapshot sealing.
package rebalance

import (
	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/ranking"
)

// Diff compares the previous basket against the freshly normalized tiers
// and classifies every ticker.
//
//   - held but not tiered      → EXIT / RANK_EXIT
//   - tiered but not held      → ENTER / RANK_ENTER
//   - held, tier moved         → TIER_CHANGE / TIER_SHIFT (포지션 유지,
//     entry_price/peak_price 그대로)
//   - held, tier unchanged     → HOLD
//
// Output is deterministically ordered: EXIT → ENTER → TIER_CHANGE → HOLD,
// ticker ascending within each kind. Pure; price 필드는 엔진이 나중에 기록.
func Diff(prev *contracts.Basket, next *ranking.Tiered) []contracts.ChangeEvent {
	events := make([]contracts.ChangeEvent, 0, prev.Len()+len(next.Tickers()))

	for _, ticker := range prev.Tickers() {
		pos, _ := prev.Get(ticker)
		newTier, stillRanked := next.TierOf(ticker)

		switch {
		case !stillRanked:
			events = append(events, contracts.ChangeEvent{
				Ticker:  ticker,
				Kind:    contracts.ChangeExit,
				Reason:  contracts.ReasonRankExit,
				OldTier: pos.Tier,
			})
		case newTier != pos.Tier:
			events = append(events, contracts.ChangeEvent{
				Ticker:  ticker,
				Kind:    contracts.ChangeTierChange,
				Reason:  contracts.ReasonTierShift,
				OldTier: pos.Tier,
				NewTier: newTier,
			})
		default:
			events = append(events, contracts.ChangeEvent{
				Ticker:  ticker,
				Kind:    contracts.ChangeHold,
				OldTier: pos.Tier,
				NewTier: pos.Tier,
			})
		}
	}

	for _, ticker := range next.Tickers() {
		if prev.Has(ticker) {
			continue
		}
		tier, _ := next.TierOf(ticker)
		events = append(events, contracts.ChangeEvent{
			Ticker:  ticker,
			Kind:    contracts.ChangeEnter,
			Reason:  contracts.ReasonRankEnter,
			NewTier: tier,
		})
	}

	contracts.SortEvents(events)
	return events
}
