package stoploss

import (
	"testing"
	"time"

	"github.com/wonny/rotor/internal/contracts"
)

func basketWith(t *testing.T, tickers map[string]float64) *contracts.Basket {
	t.Helper()
	b := contracts.NewBasket()
	for ticker, peak := range tickers {
		err := b.Add(&contracts.Position{
			Ticker:     ticker,
			Tier:       contracts.TierHold,
			EntryPrice: peak,
			EntryDate:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			PeakPrice:  peak,
			Shares:     100,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func quote(price float64) contracts.Quote {
	return contracts.Quote{Price: price, AsOf: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)}
}

func TestTrailingStopBoundary(t *testing.T) {
	// peak=100, pct=0.15: 85.00은 청산, 85.01은 유지 (경계 포함)
	tracker := New(0.15)

	cases := []struct {
		price       float64
		wantTrigger bool
	}{
		{85.00, true},
		{85.01, false},
		{84.99, true},
		{100.00, false},
		{86.00, false},
	}

	for _, tc := range cases {
		b := basketWith(t, map[string]float64{"NXT": 100})
		exits, gaps := tracker.Observe(b, map[string]contracts.Quote{"NXT": quote(tc.price)})

		if len(gaps) != 0 {
			t.Errorf("price %.2f: unexpected gaps %v", tc.price, gaps)
		}
		if got := len(exits) == 1; got != tc.wantTrigger {
			t.Errorf("price %.2f: trigger=%v, want %v", tc.price, got, tc.wantTrigger)
		}
	}
}

func TestPeakRatchetsBeforeCheck(t *testing.T) {
	tracker := New(0.15)
	b := basketWith(t, map[string]float64{"MU": 100})

	// 신고가 관측: peak 120으로 상승, 청산 없음
	exits, _ := tracker.Observe(b, map[string]contracts.Quote{"MU": quote(120)})
	if len(exits) != 0 {
		t.Fatalf("new high must not trigger: %v", exits)
	}

	pos, _ := b.Get("MU")
	if pos.PeakPrice != 120 {
		t.Fatalf("expected peak 120, got %v", pos.PeakPrice)
	}

	// 이제 스탑은 120*0.85=102: 101은 청산
	exits, _ = tracker.Observe(b, map[string]contracts.Quote{"MU": quote(101)})
	if len(exits) != 1 {
		t.Fatalf("expected stop-loss exit at 101 with peak 120, got %v", exits)
	}
	if exits[0].StopPrice < 101.9 || exits[0].StopPrice > 102.1 {
		t.Errorf("expected stop near 102, got %v", exits[0].StopPrice)
	}
}

func TestMissingQuoteIsDataGapNotExit(t *testing.T) {
	tracker := New(0.15)
	b := basketWith(t, map[string]float64{"CAT": 50, "MU": 80})

	// CAT 가격 누락: 경고만, 청산 없음
	exits, gaps := tracker.Observe(b, map[string]contracts.Quote{"MU": quote(79)})

	if len(exits) != 0 {
		t.Errorf("missing quote must never force an exit: %v", exits)
	}
	if len(gaps) != 1 || gaps[0].Ticker != "CAT" {
		t.Errorf("expected one data-gap warning for CAT, got %v", gaps)
	}

	pos, _ := b.Get("CAT")
	if pos.PeakPrice != 50 {
		t.Errorf("peak must be unchanged on gap, got %v", pos.PeakPrice)
	}
}

func TestDeepDropTriggersRegardlessOfEntry(t *testing.T) {
	// peak=50, pct=0.15, 관측가 40 → 청산 (스펙 시나리오)
	tracker := New(0.15)
	b := basketWith(t, map[string]float64{"ELAN": 50})

	exits, _ := tracker.Observe(b, map[string]contracts.Quote{"ELAN": quote(40)})
	if len(exits) != 1 {
		t.Fatalf("expected forced exit, got %v", exits)
	}

	events := Events(exits)
	if events[0].Kind != contracts.ChangeExit || events[0].Reason != contracts.ReasonStopLoss {
		t.Errorf("expected EXIT/STOP_LOSS event, got %s/%s", events[0].Kind, events[0].Reason)
	}
	if events[0].Price != 40 {
		t.Errorf("expected event price 40, got %v", events[0].Price)
	}
}
