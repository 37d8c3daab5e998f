package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/pkg/logger"
)

// PriceRecorder persists one daily close into the historical table
type PriceRecorder interface {
	InsertDailyPrice(ctx context.Context, ticker string, tradeDate time.Time, closePrice float64) error
}

// RankingRecorder persists one ranking row into the historical table
type RankingRecorder interface {
	InsertRanking(ctx context.Context, ticker string, rank int, asOf time.Time) error
}

// CaptureJob records the live screener ranking and the closes of every
// ranked ticker into the historical tables each trading day. 백테스트의
// point-in-time 데이터는 이 잡이 쌓은 것만 사용함.
// ⭐ SSOT: 히스토리 적재는 이 Job에서만
type CaptureJob struct {
	rankings  contracts.RankingSource
	prices    contracts.PriceSource
	rankStore RankingRecorder
	priceRepo PriceRecorder
	logger    *logger.Logger
}

// NewCaptureJob creates the daily data capture job
func NewCaptureJob(
	rankings contracts.RankingSource,
	prices contracts.PriceSource,
	rankStore RankingRecorder,
	priceRepo PriceRecorder,
	log *logger.Logger,
) *CaptureJob {
	return &CaptureJob{
		rankings:  rankings,
		prices:    prices,
		rankStore: rankStore,
		priceRepo: priceRepo,
		logger:    log,
	}
}

// Name returns the job name
func (j *CaptureJob) Name() string {
	return "data_capture"
}

// Schedule runs after the US close, Monday through Friday
func (j *CaptureJob) Schedule() string {
	return "0 30 22 * * MON-FRI"
}

// Run captures today's ranking and closes
func (j *CaptureJob) Run(ctx context.Context) error {
	now := time.Now()

	entries, err := j.rankings.Ranking(ctx, now)
	if err != nil {
		return fmt.Errorf("capture ranking: %w", err)
	}

	tickers := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := j.rankStore.InsertRanking(ctx, entry.Ticker, entry.Rank, entry.AsOf); err != nil {
			return fmt.Errorf("store ranking %s: %w", entry.Ticker, err)
		}
		tickers = append(tickers, entry.Ticker)
	}

	quotes, err := j.prices.Prices(ctx, tickers, now)
	if err != nil {
		return fmt.Errorf("capture prices: %w", err)
	}

	stored := 0
	for ticker, quote := range quotes {
		if err := j.priceRepo.InsertDailyPrice(ctx, ticker, quote.AsOf, quote.Price); err != nil {
			return fmt.Errorf("store price %s: %w", ticker, err)
		}
		stored++
	}

	j.logger.WithFields(map[string]interface{}{
		"ranked": len(entries),
		"priced": stored,
	}).Info("Daily capture finished")
	return nil
}
