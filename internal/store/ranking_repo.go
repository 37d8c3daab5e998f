package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rotor/internal/contracts"
)

// PGRankings serves point-in-time screener rankings from the historical
// table. Backtest 전용: 라이브 사이클은 스크리너를 직접 긁음.
// ⭐ SSOT: 과거 랭킹 조회는 여기서만
type PGRankings struct {
	pool *pgxpool.Pool
}

// NewPGRankings creates a Postgres-backed historical ranking source
func NewPGRankings(pool *pgxpool.Pool) *PGRankings {
	return &PGRankings{pool: pool}
}

// Ranking returns the most recent stored ranking at or before asOf.
// Implements contracts.RankingSource. 기록이 전혀 없으면
// RankingUnavailableError: 백테스트 시작일 이전 데이터 적재 필요.
func (r *PGRankings) Ranking(ctx context.Context, asOf time.Time) ([]contracts.RankedEntry, error) {
	query := `
		SELECT ticker, rank, as_of
		FROM rotor.rankings
		WHERE as_of = (
			SELECT MAX(as_of) FROM rotor.rankings WHERE as_of <= $1
		)
		ORDER BY rank ASC
	`

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, &contracts.RankingUnavailableError{
			AsOf: asOf,
			Err:  fmt.Errorf("failed to query rankings: %w", err),
		}
	}
	defer rows.Close()

	var entries []contracts.RankedEntry
	for rows.Next() {
		var entry contracts.RankedEntry
		if err := rows.Scan(&entry.Ticker, &entry.Rank, &entry.AsOf); err != nil {
			return nil, &contracts.RankingUnavailableError{
				AsOf: asOf,
				Err:  fmt.Errorf("failed to scan ranking row: %w", err),
			}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, &contracts.RankingUnavailableError{
			AsOf: asOf,
			Err:  fmt.Errorf("error iterating rankings: %w", err),
		}
	}

	if len(entries) == 0 {
		return nil, &contracts.RankingUnavailableError{
			AsOf: asOf,
			Err:  fmt.Errorf("no stored ranking at or before %s", asOf.Format("2006-01-02")),
		}
	}
	return entries, nil
}

// InsertRanking upserts one ranking row (백테스트 데이터 적재용)
func (r *PGRankings) InsertRanking(ctx context.Context, ticker string, rank int, asOf time.Time) error {
	query := `
		INSERT INTO rotor.rankings (ticker, rank, as_of)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, as_of) DO UPDATE SET rank = EXCLUDED.rank
	`
	if _, err := r.pool.Exec(ctx, query, ticker, rank, asOf); err != nil {
		return fmt.Errorf("failed to insert ranking: %w", err)
	}
	return nil
}
