// Package marketdata implements live price lookups against the Yahoo
// Finance chart API with a Redis read-through cache.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/pkg/httputil"
	"github.com/wonny/rotor/pkg/logger"
	"github.com/wonny/rotor/pkg/redis"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// YahooClient fetches last-trade quotes from Yahoo Finance.
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
//
// Implements contracts.PriceSource: per-ticker failures are data gaps
// (티커 누락으로 표현), never batch-fatal.
type YahooClient struct {
	httpClient *httputil.Client
	cache      *redis.Cache // nil이면 캐시 없이 동작
	cacheTTL   time.Duration
	logger     *logger.Logger
	baseURL    string
}

// chartResponse is the subset of the v8 chart API payload we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// NewYahooClient creates a Yahoo Finance quote client
func NewYahooClient(httpClient *httputil.Client, cache *redis.Cache, cacheTTL time.Duration, log *logger.Logger) *YahooClient {
	return &YahooClient{
		httpClient: httpClient,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     log,
		baseURL:    defaultBaseURL,
	}
}

// WithBaseURL overrides the endpoint (tests)
func (c *YahooClient) WithBaseURL(base string) *YahooClient {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// Prices looks up last-trade quotes for the given tickers. Missing
// tickers are omitted from the result map; the caller treats them as
// data gaps.
func (c *YahooClient) Prices(ctx context.Context, tickers []string, asOf time.Time) (map[string]contracts.Quote, error) {
	quotes := make(map[string]contracts.Quote, len(tickers))

	for _, ticker := range tickers {
		quote, ok := c.cachedQuote(ctx, ticker)
		if ok {
			quotes[ticker] = quote
			continue
		}

		quote, err := c.fetchQuote(ctx, ticker)
		if err != nil {
			// 개별 실패는 공백으로 처리
			c.logger.WithFields(map[string]interface{}{
				"ticker": ticker,
				"error":  err.Error(),
			}).Warn("Quote lookup failed")
			continue
		}
		quotes[ticker] = quote

		if c.cache != nil {
			key := cacheKey(ticker)
			if err := c.cache.Set(ctx, key, quote, c.cacheTTL); err != nil {
				c.logger.WithError(err).Debug("Quote cache write failed")
			}
		}
	}

	return quotes, nil
}

// fetchQuote fetches one ticker's last trade from the chart API
func (c *YahooClient) fetchQuote(ctx context.Context, ticker string) (contracts.Quote, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", c.baseURL, ticker)

	var payload chartResponse
	if err := c.httpClient.GetJSON(ctx, url, &payload); err != nil {
		return contracts.Quote{}, fmt.Errorf("chart request failed: %w", err)
	}

	if payload.Chart.Error != nil {
		return contracts.Quote{}, fmt.Errorf("chart API error: %s", payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return contracts.Quote{}, fmt.Errorf("empty chart result")
	}

	meta := payload.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return contracts.Quote{}, fmt.Errorf("no market price for %s", ticker)
	}

	return contracts.Quote{
		Price: meta.RegularMarketPrice,
		AsOf:  time.Unix(meta.RegularMarketTime, 0).UTC(),
	}, nil
}

func (c *YahooClient) cachedQuote(ctx context.Context, ticker string) (contracts.Quote, bool) {
	if c.cache == nil {
		return contracts.Quote{}, false
	}

	var quote contracts.Quote
	hit, err := c.cache.Get(ctx, cacheKey(ticker), &quote)
	if err != nil {
		c.logger.WithError(err).Debug("Quote cache read failed")
		return contracts.Quote{}, false
	}
	return quote, hit
}

func cacheKey(ticker string) string {
	return "quote:" + ticker
}
