package backtest

import (
	"context"
	"time"

	"github.com/wonny/rotor/internal/contracts"
)

// cutoff is the simulated "now" shared by the guarded sources. The
// simulator advances it before every lookup; the run is single-threaded
// so no locking is needed.
type cutoff struct {
	at time.Time
}

func (c *cutoff) advance(t time.Time) {
	c.at = t
}

// guardedRanking wraps a historical ranking source and rejects any entry
// timestamped after the simulated checkpoint.
// ⭐ SSOT: look-ahead 차단은 여기서만 (과거 데이터만 통과)
type guardedRanking struct {
	src    contracts.RankingSource
	cutoff *cutoff
}

func (g *guardedRanking) Ranking(ctx context.Context, asOf time.Time) ([]contracts.RankedEntry, error) {
	entries, err := g.src.Ranking(ctx, asOf)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.AsOf.After(g.cutoff.at) {
			return nil, &contracts.LookAheadViolationError{
				Checkpoint: g.cutoff.at,
				DataAsOf:   entry.AsOf,
				Source:     "ranking",
				Ticker:     entry.Ticker,
			}
		}
	}
	return entries, nil
}

// guardedPrices wraps a historical price source with the same cutoff rule
type guardedPrices struct {
	src    contracts.PriceSource
	cutoff *cutoff
}

func (g *guardedPrices) Prices(ctx context.Context, tickers []string, asOf time.Time) (map[string]contracts.Quote, error) {
	quotes, err := g.src.Prices(ctx, tickers, asOf)
	if err != nil {
		return nil, err
	}
	for ticker, quote := range quotes {
		if quote.AsOf.After(g.cutoff.at) {
			return nil, &contracts.LookAheadViolationError{
				Checkpoint: g.cutoff.at,
				DataAsOf:   quote.AsOf,
				Source:     "prices",
				Ticker:     ticker,
			}
		}
	}
	return quotes, nil
}
