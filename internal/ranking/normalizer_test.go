package ranking

import (
	"errors"
	"testing"
	"time"

	"github.com/wonny/rotor/internal/contracts"
)

func rankedList(tickers ...string) []contracts.RankedEntry {
	asOf := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	out := make([]contracts.RankedEntry, 0, len(tickers))
	for i, t := range tickers {
		out = append(out, contracts.RankedEntry{Ticker: t, Rank: i + 1, AsOf: asOf})
	}
	return out
}

func defaultCounts() TierCounts {
	return TierCounts{TakeProfit: 3, Hold: 10, Buffer: 2}
}

func TestNormalizePartition(t *testing.T) {
	entries := rankedList(
		"A", "B", "C",
		"D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
		"N", "O",
	)

	tiered, err := Normalize(entries, defaultCounts())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	wantTiers := map[contracts.Tier][]string{
		contracts.TierTakeProfit: {"A", "B", "C"},
		contracts.TierHold:       {"D", "E", "F", "G", "H", "I", "J", "K", "L", "M"},
		contracts.TierBuffer:     {"N", "O"},
	}
	for tier, want := range wantTiers {
		got := tiered.Entries(tier)
		if len(got) != len(want) {
			t.Fatalf("%s: got %d entries, want %d", tier, len(got), len(want))
		}
		for i, w := range want {
			if got[i].Ticker != w {
				t.Errorf("%s[%d]: got %s, want %s (rank order must be preserved)", tier, i, got[i].Ticker, w)
			}
		}
	}

	// 티어 분할: 모든 티커는 정확히 하나의 티어
	seen := make(map[string]bool)
	for _, ticker := range tiered.Tickers() {
		if seen[ticker] {
			t.Errorf("ticker %s assigned twice", ticker)
		}
		seen[ticker] = true
	}
	if len(seen) != 15 {
		t.Errorf("expected 15 tiered tickers, got %d", len(seen))
	}
}

func TestNormalizeInsufficientUniverse(t *testing.T) {
	entries := rankedList("A", "B", "C", "D", "E")

	_, err := Normalize(entries, defaultCounts())
	if err == nil {
		t.Fatal("expected InsufficientUniverseError")
	}

	var insufficientErr *contracts.InsufficientUniverseError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientUniverseError, got %T", err)
	}
	if insufficientErr.Got != 5 || insufficientErr.Want != 15 {
		t.Errorf("unexpected counts in error: got=%d want=%d", insufficientErr.Got, insufficientErr.Want)
	}
}

func TestNormalizeExtraEntriesIgnored(t *testing.T) {
	// 피드가 15개 이상 제공하면 상위 15개만 사용
	entries := rankedList(
		"A", "B", "C", "D", "E", "F", "G", "H", "I", "J",
		"K", "L", "M", "N", "O", "P", "Q", "R",
	)

	tiered, err := Normalize(entries, defaultCounts())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if tiered.Has("P") || tiered.Has("Q") || tiered.Has("R") {
		t.Error("entries beyond the configured total must not be tiered")
	}
}

func TestNormalizeTieBreak(t *testing.T) {
	// 동률 rank → 티커 알파벳순
	asOf := time.Now()
	entries := []contracts.RankedEntry{
		{Ticker: "ZZZ", Rank: 1, AsOf: asOf},
		{Ticker: "AAA", Rank: 1, AsOf: asOf},
		{Ticker: "MMM", Rank: 2, AsOf: asOf},
	}

	tiered, err := Normalize(entries, TierCounts{TakeProfit: 1, Hold: 1, Buffer: 1})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if tier, _ := tiered.TierOf("AAA"); tier != contracts.TierTakeProfit {
		t.Errorf("AAA should win the rank-1 tie, got tier %s", tier)
	}
	if tier, _ := tiered.TierOf("ZZZ"); tier != contracts.TierHold {
		t.Errorf("ZZZ should fall to hold, got tier %s", tier)
	}
}
