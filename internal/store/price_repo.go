package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rotor/internal/contracts"
)

// PGPrices serves point-in-time daily prices and fundamentals from the
// historical tables. Backtest 전용 데이터 소스.
// ⭐ SSOT: 과거 시세/재무 조회는 여기서만
type PGPrices struct {
	pool *pgxpool.Pool
}

// NewPGPrices creates a Postgres-backed historical price source
func NewPGPrices(pool *pgxpool.Pool) *PGPrices {
	return &PGPrices{pool: pool}
}

// Prices returns the latest close at or before asOf for each ticker.
// Implements contracts.PriceSource: 기록이 없는 티커는 결과에서 빠짐.
func (r *PGPrices) Prices(ctx context.Context, tickers []string, asOf time.Time) (map[string]contracts.Quote, error) {
	if len(tickers) == 0 {
		return map[string]contracts.Quote{}, nil
	}

	// DISTINCT ON으로 티커별 최신 거래일 한 건씩
	query := `
		SELECT DISTINCT ON (ticker) ticker, trade_date, close
		FROM rotor.daily_prices
		WHERE ticker = ANY($1)
		  AND trade_date <= $2
		ORDER BY ticker, trade_date DESC
	`

	rows, err := r.pool.Query(ctx, query, tickers, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	quotes := make(map[string]contracts.Quote, len(tickers))
	for rows.Next() {
		var (
			ticker     string
			tradeDate  time.Time
			closePrice float64
		)
		if err := rows.Scan(&ticker, &tradeDate, &closePrice); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		quotes[ticker] = contracts.Quote{Price: closePrice, AsOf: tradeDate}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return quotes, nil
}

// Fundamentals returns the latest reported ratios at or before asOf.
// Implements contracts.FundamentalsSource.
func (r *PGPrices) Fundamentals(ctx context.Context, ticker string, asOf time.Time) (*contracts.Ratios, error) {
	query := `
		SELECT per, pbr, roe, debt_ratio, report_date
		FROM rotor.fundamentals
		WHERE ticker = $1
		  AND report_date <= $2
		ORDER BY report_date DESC
		LIMIT 1
	`

	var ratios contracts.Ratios
	err := r.pool.QueryRow(ctx, query, ticker, asOf).Scan(
		&ratios.PER, &ratios.PBR, &ratios.ROE, &ratios.DebtRatio, &ratios.AsOf,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no fundamentals for %s as of %s", ticker, asOf.Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	return &ratios, nil
}

// InsertDailyPrice upserts one historical close (백테스트 데이터 적재용)
func (r *PGPrices) InsertDailyPrice(ctx context.Context, ticker string, tradeDate time.Time, closePrice float64) error {
	query := `
		INSERT INTO rotor.daily_prices (ticker, trade_date, close)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET close = EXCLUDED.close
	`
	if _, err := r.pool.Exec(ctx, query, ticker, tradeDate, closePrice); err != nil {
		return fmt.Errorf("failed to insert daily price: %w", err)
	}
	return nil
}
