package contracts

import (
	"fmt"
	"time"
)

// Tier classifies a position inside the rotation basket
// ⭐ SSOT: 티어 정의는 여기서만
type Tier string

const (
	TierTakeProfit Tier = "TAKE_PROFIT" // 상위 K1 종목
	TierHold       Tier = "HOLD"        // 다음 K2 종목
	TierBuffer     Tier = "BUFFER"      // 다음 K3 종목
)

// Tiers lists all tiers in rank order (best first)
func Tiers() []Tier {
	return []Tier{TierTakeProfit, TierHold, TierBuffer}
}

// Position is one open holding. Owned exclusively by its Basket.
// PeakPrice는 보유 기간 중 유일하게 변하는 필드 (단조 증가)
type Position struct {
	Ticker     string    `json:"ticker"`
	Tier       Tier      `json:"tier"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  time.Time `json:"entry_date"`
	PeakPrice  float64   `json:"peak_price"`
	Shares     float64   `json:"shares"` // set once at entry, fractional
}

// ObservePrice ratchets the running peak. Returns the updated peak.
func (p *Position) ObservePrice(price float64) float64 {
	if price > p.PeakPrice {
		p.PeakPrice = price
	}
	return p.PeakPrice
}

// MarketValue values the position at the given price
func (p *Position) MarketValue(price float64) float64 {
	return p.Shares * price
}

// Basket is the complete current holdings: an ordered ticker → Position
// mapping. Tiers partition the basket; at most one position per ticker.
type Basket struct {
	order     []string
	positions map[string]*Position
}

// NewBasket creates an empty basket
func NewBasket() *Basket {
	return &Basket{
		order:     make([]string, 0),
		positions: make(map[string]*Position),
	}
}

// Add inserts a position. Fails if the ticker is already held.
func (b *Basket) Add(pos *Position) error {
	if _, exists := b.positions[pos.Ticker]; exists {
		return fmt.Errorf("duplicate position: %s", pos.Ticker)
	}
	b.order = append(b.order, pos.Ticker)
	b.positions[pos.Ticker] = pos
	return nil
}

// Remove deletes and returns the position for ticker
func (b *Basket) Remove(ticker string) (*Position, bool) {
	pos, exists := b.positions[ticker]
	if !exists {
		return nil, false
	}
	delete(b.positions, ticker)
	for i, t := range b.order {
		if t == ticker {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return pos, true
}

// Get returns the position for ticker
func (b *Basket) Get(ticker string) (*Position, bool) {
	pos, exists := b.positions[ticker]
	return pos, exists
}

// Has reports whether ticker is held
func (b *Basket) Has(ticker string) bool {
	_, exists := b.positions[ticker]
	return exists
}

// Len returns the number of open positions
func (b *Basket) Len() int {
	return len(b.order)
}

// Tickers returns all held tickers in insertion order
func (b *Basket) Tickers() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// TierTickers returns held tickers of one tier, in insertion order
func (b *Basket) TierTickers(tier Tier) []string {
	out := make([]string, 0)
	for _, t := range b.order {
		if b.positions[t].Tier == tier {
			out = append(out, t)
		}
	}
	return out
}

// TierMap returns tier → ordered ticker list (snapshot shape)
func (b *Basket) TierMap() map[Tier][]string {
	out := make(map[Tier][]string, 3)
	for _, tier := range Tiers() {
		out[tier] = b.TierTickers(tier)
	}
	return out
}

// Positions returns all positions in insertion order
func (b *Basket) Positions() []*Position {
	out := make([]*Position, 0, len(b.order))
	for _, t := range b.order {
		out = append(out, b.positions[t])
	}
	return out
}

// Clone deep-copies the basket. 사이클 작업본은 항상 복제본에서 시작.
func (b *Basket) Clone() *Basket {
	clone := NewBasket()
	for _, t := range b.order {
		cp := *b.positions[t]
		_ = clone.Add(&cp)
	}
	return clone
}
