// Package screener implements the ranked stock feed on top of the Finviz
// screener pages.
package screener

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/pkg/httputil"
	"github.com/wonny/rotor/pkg/logger"
)

const (
	defaultBaseURL = "https://finviz.com"
	pageSize       = 20
	maxPages       = 10
)

// tickerPattern matches quote page links: quote.ashx?t=MSFT&ty=c ...
var tickerPattern = regexp.MustCompile(`quote\.ashx\?t=([A-Za-z][A-Za-z0-9.\-]*)`)

// Client fetches the ranked ticker list from the Finviz screener.
// ⭐ SSOT: Finviz 호출은 이 클라이언트에서만
//
// The screener page order IS the ranking: the first ticker is rank 1.
// 쿼리 자체(필터/정렬 파라미터)는 전략 설정에 통째로 들어있음.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	query      string // screener.ashx 쿼리스트링 (v=111&f=...&o=...)
}

// NewClient creates a Finviz screener client
func NewClient(httpClient *httputil.Client, log *logger.Logger, query string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    defaultBaseURL,
		query:      query,
	}
}

// WithBaseURL overrides the endpoint (tests)
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// Ranking fetches the screener pages and returns the ordered ticker list.
// Implements contracts.RankingSource. Any failure is cycle-fatal and is
// reported as RankingUnavailableError.
func (c *Client) Ranking(ctx context.Context, asOf time.Time) ([]contracts.RankedEntry, error) {
	entries := make([]contracts.RankedEntry, 0, pageSize)
	seen := make(map[string]bool)

	for page := 0; page < maxPages; page++ {
		pageURL := fmt.Sprintf("%s/screener.ashx?%s", c.baseURL, c.query)
		if page > 0 {
			// Finviz 페이지네이션: r = 1-based 시작 행
			pageURL = fmt.Sprintf("%s&r=%d", pageURL, page*pageSize+1)
		}

		tickers, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, &contracts.RankingUnavailableError{AsOf: asOf, Err: err}
		}

		added := 0
		for _, ticker := range tickers {
			if seen[ticker] {
				continue
			}
			seen[ticker] = true
			entries = append(entries, contracts.RankedEntry{
				Ticker: ticker,
				Rank:   len(entries) + 1,
				AsOf:   asOf,
			})
			added++
		}

		// 새 티커가 없으면 마지막 페이지
		if added == 0 {
			break
		}
	}

	if len(entries) == 0 {
		return nil, &contracts.RankingUnavailableError{
			AsOf: asOf,
			Err:  fmt.Errorf("screener returned no tickers"),
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"count": len(entries),
		"as_of": asOf.Format("2006-01-02"),
	}).Debug("Fetched screener ranking")
	return entries, nil
}

// fetchPage downloads one screener page and extracts its tickers in order
func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]string, error) {
	resp, err := c.httpClient.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse screener HTML: %w", err)
	}
	return parseTickers(doc), nil
}

// parseTickers extracts quote page links in document order, deduplicated.
// 같은 티커 링크가 행마다 여러 번 나옴 (차트/이름/티커 셀).
func parseTickers(doc *goquery.Document) []string {
	tickers := make([]string, 0, pageSize)
	seen := make(map[string]bool)

	doc.Find("a[href*='quote.ashx']").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		ticker := extractTicker(href)
		if ticker == "" || seen[ticker] {
			return
		}
		seen[ticker] = true
		tickers = append(tickers, ticker)
	})
	return tickers
}

// extractTicker pulls the t= parameter out of a quote link
func extractTicker(href string) string {
	if parsed, err := url.Parse(href); err == nil {
		if t := parsed.Query().Get("t"); t != "" {
			return strings.ToUpper(t)
		}
	}
	// 상대/비정형 href 폴백
	if m := tickerPattern.FindStringSubmatch(href); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}
