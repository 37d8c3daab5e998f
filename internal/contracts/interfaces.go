package contracts

import (
	"context"
	"time"
)

// RankingSource fetches the external ranked ticker list as of a date
// ⭐ SSOT: 랭킹 피드 인터페이스
type RankingSource interface {
	Ranking(ctx context.Context, asOf time.Time) ([]RankedEntry, error)
}

// PriceSource performs batch price lookups. Partial results are allowed:
// a missing ticker means unavailable data, not an error.
// ⭐ SSOT: 가격 조회 인터페이스
type PriceSource interface {
	Prices(ctx context.Context, tickers []string, asOf time.Time) (map[string]Quote, error)
}

// FundamentalsSource serves point-in-time fundamental ratios (backtest only)
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, ticker string, asOf time.Time) (*Ratios, error)
}

// SnapshotStore is the append-only snapshot persistence contract.
// Locked snapshots expose no update or delete path.
// ⭐ SSOT: 스냅샷 저장 인터페이스
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *Snapshot) (int64, error)
	Latest(ctx context.Context) (*Snapshot, error)
	History(ctx context.Context, limit int) ([]*Snapshot, error)
	// Lock seals a draft snapshot in place (one-way). Locked rows never
	// accept further writes.
	Lock(ctx context.Context, id int64) error
}

// SettingsStore persists the typed runtime settings
type SettingsStore interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
}

// RunGuard serializes rebalance/backtest runs process-wide. Acquire
// returns a release func that must run on every exit path.
// ⭐ SSOT: 중복 실행 방지는 이 가드를 통해서만
type RunGuard interface {
	Acquire(ctx context.Context) (release func(), err error)
}
