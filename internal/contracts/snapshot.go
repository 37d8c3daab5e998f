package contracts

import (
	"errors"
	"time"
)

// ErrSnapshotLocked is returned by every mutation attempt on a sealed
// snapshot. 고정 에러: 잠긴 스냅샷 변경은 항상 동일하게 실패.
var ErrSnapshotLocked = errors.New("snapshot is locked")

// Snapshot is the historical record of one cycle: the resulting basket,
// equity value and the complete ordered activity log.
//
// A snapshot starts as a draft (the live "current" state, mutable only by
// the owning cycle) and transitions once, irreversibly, to locked via
// Seal(). Mutators reject locked snapshots; the store refuses updates to
// locked rows as the second line of defense.
type Snapshot struct {
	ID          int64             `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Basket      map[Tier][]string `json:"basket"`
	Positions   []Position        `json:"positions"` // full holding state for cycle resume
	EquityValue float64           `json:"equity_value"`
	Cash        float64           `json:"cash"`
	Events      []ChangeEvent     `json:"events"`
	Warnings    []Warning         `json:"warnings,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	ConfigHash  string            `json:"config_hash,omitempty"`
	Locked      bool              `json:"locked"`
}

// NewDraft creates an unlocked snapshot for the in-flight cycle
func NewDraft(ts time.Time) *Snapshot {
	return &Snapshot{
		Timestamp: ts,
		Basket:    make(map[Tier][]string),
		Events:    make([]ChangeEvent, 0),
	}
}

// Seal locks the snapshot. One-way; sealing twice is a no-op.
func (s *Snapshot) Seal() {
	s.Locked = true
}

// SetBasket replaces the basket composition and position state
func (s *Snapshot) SetBasket(basket *Basket) error {
	if s.Locked {
		return ErrSnapshotLocked
	}
	s.Basket = basket.TierMap()
	s.Positions = make([]Position, 0, basket.Len())
	for _, pos := range basket.Positions() {
		s.Positions = append(s.Positions, *pos)
	}
	return nil
}

// RestoreBasket rebuilds a working Basket from the persisted positions
func (s *Snapshot) RestoreBasket() *Basket {
	b := NewBasket()
	for i := range s.Positions {
		cp := s.Positions[i]
		_ = b.Add(&cp)
	}
	return b
}

// SetEquity updates the equity valuation
func (s *Snapshot) SetEquity(equity, cash float64) error {
	if s.Locked {
		return ErrSnapshotLocked
	}
	s.EquityValue = equity
	s.Cash = cash
	return nil
}

// AppendEvents appends to the activity log
func (s *Snapshot) AppendEvents(events ...ChangeEvent) error {
	if s.Locked {
		return ErrSnapshotLocked
	}
	s.Events = append(s.Events, events...)
	return nil
}

// AppendWarning records a non-fatal data gap
func (s *Snapshot) AppendWarning(w Warning) error {
	if s.Locked {
		return ErrSnapshotLocked
	}
	s.Warnings = append(s.Warnings, w)
	return nil
}

// SetNotes sets the free-form cycle summary
func (s *Snapshot) SetNotes(notes string) error {
	if s.Locked {
		return ErrSnapshotLocked
	}
	s.Notes = notes
	return nil
}

// AllTickers returns every ticker in the snapshot basket, tier order
func (s *Snapshot) AllTickers() []string {
	out := make([]string, 0)
	for _, tier := range Tiers() {
		out = append(out, s.Basket[tier]...)
	}
	return out
}
