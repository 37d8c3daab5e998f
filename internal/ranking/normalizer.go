// Package ranking partitions the external ranked ticker list into the
// three basket tiers (Take-Profit / Hold / Buffer).
package ranking

import (
	"sort"

	"github.com/wonny/rotor/internal/contracts"
)

// TierCounts fixes the tier boundary sizes (K1, K2, K3)
type TierCounts struct {
	TakeProfit int
	Hold       int
	Buffer     int
}

// Total returns K1+K2+K3
func (c TierCounts) Total() int {
	return c.TakeProfit + c.Hold + c.Buffer
}

// CountsFromSettings builds TierCounts from runtime settings
func CountsFromSettings(s *contracts.Settings) TierCounts {
	return TierCounts{
		TakeProfit: s.TakeProfitCount,
		Hold:       s.HoldCount,
		Buffer:     s.BufferCount,
	}
}

// Tiered is the normalized ranking: tier → ordered entries,
// ranks preserved as intra-tier order.
type Tiered struct {
	byTier   map[contracts.Tier][]contracts.RankedEntry
	tierOf   map[string]contracts.Tier
	ordered  []string
}

// Normalize partitions the ranked entries into tiers.
// 피드는 이미 랭크순 정렬이지만 방어적으로 재정렬하지 않고 rank 필드로
// 정렬 검증: 동률 rank는 티커 알파벳순 (결정적 2차 정렬 키, 문서화된 동작).
// Fewer entries than the configured total is an upstream screener problem
// and is surfaced, never silently padded.
func Normalize(entries []contracts.RankedEntry, counts TierCounts) (*Tiered, error) {
	if len(entries) < counts.Total() {
		return nil, &contracts.InsufficientUniverseError{
			Got:  len(entries),
			Want: counts.Total(),
		}
	}

	sorted := make([]contracts.RankedEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].Ticker < sorted[j].Ticker
	})

	t := &Tiered{
		byTier:  make(map[contracts.Tier][]contracts.RankedEntry, 3),
		tierOf:  make(map[string]contracts.Tier, counts.Total()),
		ordered: make([]string, 0, counts.Total()),
	}

	boundaries := []struct {
		tier  contracts.Tier
		count int
	}{
		{contracts.TierTakeProfit, counts.TakeProfit},
		{contracts.TierHold, counts.Hold},
		{contracts.TierBuffer, counts.Buffer},
	}

	idx := 0
	for _, b := range boundaries {
		slice := sorted[idx : idx+b.count]
		t.byTier[b.tier] = slice
		for _, e := range slice {
			t.tierOf[e.Ticker] = b.tier
			t.ordered = append(t.ordered, e.Ticker)
		}
		idx += b.count
	}

	return t, nil
}

// TierOf returns the tier a ticker was assigned to
func (t *Tiered) TierOf(ticker string) (contracts.Tier, bool) {
	tier, ok := t.tierOf[ticker]
	return tier, ok
}

// Has reports whether the ticker made the tiers
func (t *Tiered) Has(ticker string) bool {
	_, ok := t.tierOf[ticker]
	return ok
}

// Entries returns the ordered entries of one tier
func (t *Tiered) Entries(tier contracts.Tier) []contracts.RankedEntry {
	return t.byTier[tier]
}

// Tickers returns every tiered ticker, rank order across tiers
func (t *Tiered) Tickers() []string {
	out := make([]string, len(t.ordered))
	copy(out, t.ordered)
	return out
}
