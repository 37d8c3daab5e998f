package contracts

import "sort"

// ChangeKind classifies what happened to a position during a cycle
type ChangeKind string

const (
	ChangeEnter      ChangeKind = "ENTER"
	ChangeExit       ChangeKind = "EXIT"
	ChangeTierChange ChangeKind = "TIER_CHANGE"
	ChangeHold       ChangeKind = "HOLD"
)

// ChangeReason explains why the change happened
type ChangeReason string

const (
	ReasonRankEnter ChangeReason = "RANK_ENTER"
	ReasonRankExit  ChangeReason = "RANK_EXIT"
	ReasonStopLoss  ChangeReason = "STOP_LOSS"
	ReasonTierShift ChangeReason = "TIER_SHIFT"
)

// ChangeEvent records one position change. Immutable once created;
// the ordered list for a cycle is the activity log entry.
type ChangeEvent struct {
	Ticker  string       `json:"ticker"`
	Kind    ChangeKind   `json:"kind"`
	Reason  ChangeReason `json:"reason"`
	OldTier Tier         `json:"old_tier,omitempty"`
	NewTier Tier         `json:"new_tier,omitempty"`
	Price   float64      `json:"price"`
}

// Warning is a non-fatal activity log entry (data gaps etc.)
type Warning struct {
	Ticker  string `json:"ticker,omitempty"`
	Message string `json:"message"`
}

// kindOrder: EXIT → ENTER → TIER_CHANGE → HOLD. 로그 재현성을 위해 고정.
var kindOrder = map[ChangeKind]int{
	ChangeExit:       0,
	ChangeEnter:      1,
	ChangeTierChange: 2,
	ChangeHold:       3,
}

// SortEvents orders events deterministically: by kind
// (EXIT, ENTER, TIER_CHANGE, HOLD), then by ticker ascending.
func SortEvents(events []ChangeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if kindOrder[events[i].Kind] != kindOrder[events[j].Kind] {
			return kindOrder[events[i].Kind] < kindOrder[events[j].Kind]
		}
		return events[i].Ticker < events[j].Ticker
	})
}
