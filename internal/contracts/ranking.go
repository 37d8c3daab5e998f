package contracts

import "time"

// RankedEntry is one row of the external ranking feed.
// Rank는 1부터 시작, 랭킹 내 유일. 생성 후 불변.
type RankedEntry struct {
	Ticker string    `json:"ticker"`
	Rank   int       `json:"rank"`
	AsOf   time.Time `json:"as_of"`
}

// Quote is a single observed price with its observation timestamp.
// 타임스탬프는 백테스트 look-ahead 검증에 사용.
type Quote struct {
	Price float64   `json:"price"`
	AsOf  time.Time `json:"as_of"`
}

// Ratios holds point-in-time fundamental ratios for a ticker
type Ratios struct {
	PER       float64 `json:"per"`
	PBR       float64 `json:"pbr"`
	ROE       float64 `json:"roe"`
	DebtRatio float64 `json:"debt_ratio"`
	AsOf      time.Time `json:"as_of"`
}
