package contracts

import (
	"errors"
	"testing"
	"time"
)

func TestSnapshotSealIsOneWay(t *testing.T) {
	s := NewDraft(time.Date(2025, 3, 3, 19, 0, 0, 0, time.UTC))

	if err := s.SetEquity(151000, 2000); err != nil {
		t.Fatalf("draft mutation failed: %v", err)
	}
	if err := s.AppendEvents(ChangeEvent{Ticker: "NXT", Kind: ChangeEnter, Reason: ReasonRankEnter}); err != nil {
		t.Fatalf("draft append failed: %v", err)
	}

	s.Seal()

	// 잠긴 스냅샷의 모든 변경은 동일한 고정 에러로 실패
	mutations := map[string]error{
		"SetEquity":     s.SetEquity(0, 0),
		"SetBasket":     s.SetBasket(NewBasket()),
		"AppendEvents":  s.AppendEvents(ChangeEvent{}),
		"AppendWarning": s.AppendWarning(Warning{Message: "x"}),
		"SetNotes":      s.SetNotes("tampered"),
	}
	for name, err := range mutations {
		if !errors.Is(err, ErrSnapshotLocked) {
			t.Errorf("%s on locked snapshot: got %v, want ErrSnapshotLocked", name, err)
		}
	}

	// 실패한 변경이 내용을 건드리지 않았는지 확인
	if s.EquityValue != 151000 {
		t.Errorf("equity mutated after seal: %v", s.EquityValue)
	}
	if len(s.Events) != 1 {
		t.Errorf("events mutated after seal: %d", len(s.Events))
	}
	if s.Notes != "" {
		t.Errorf("notes mutated after seal: %q", s.Notes)
	}
}

func TestSortEventsDeterministic(t *testing.T) {
	events := []ChangeEvent{
		{Ticker: "Z", Kind: ChangeHold, Reason: ReasonRankEnter},
		{Ticker: "B", Kind: ChangeEnter, Reason: ReasonRankEnter},
		{Ticker: "A", Kind: ChangeTierChange, Reason: ReasonTierShift},
		{Ticker: "C", Kind: ChangeExit, Reason: ReasonRankExit},
		{Ticker: "A", Kind: ChangeExit, Reason: ReasonStopLoss},
	}

	SortEvents(events)

	want := []struct {
		ticker string
		kind   ChangeKind
	}{
		{"A", ChangeExit},
		{"C", ChangeExit},
		{"B", ChangeEnter},
		{"A", ChangeTierChange},
		{"Z", ChangeHold},
	}
	for i, w := range want {
		if events[i].Ticker != w.ticker || events[i].Kind != w.kind {
			t.Errorf("position %d: got %s/%s, want %s/%s",
				i, events[i].Ticker, events[i].Kind, w.ticker, w.kind)
		}
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings must validate: %v", err)
	}
	if s.TotalSize() != 15 {
		t.Errorf("expected default basket size 15, got %d", s.TotalSize())
	}

	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero take profit", func(s *Settings) { s.TakeProfitCount = 0 }},
		{"trailing stop over 1", func(s *Settings) { s.TrailingStopPct = 1.5 }},
		{"negative capital", func(s *Settings) { s.InitialCapital = -1 }},
		{"bad day", func(s *Settings) { s.ScheduleDay = "monday" }},
		{"bad time", func(s *Settings) { s.ScheduleTime = "7pm" }},
		{"bad timezone", func(s *Settings) { s.ScheduleTimezone = "Mars/Olympus" }},
	}
	for _, tc := range cases {
		s := DefaultSettings()
		tc.mutate(s)
		if err := s.Validate(); err == nil {
			t.Errorf("%s: expected validation failure", tc.name)
		}
	}
}
