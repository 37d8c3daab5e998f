package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wonny/rotor/pkg/httputil"
	"github.com/wonny/rotor/pkg/logger"
)

func newTestClient(base string) *YahooClient {
	httpClient := httputil.New(logger.Nop(), 5*time.Second).DisableRetry()
	return NewYahooClient(httpClient, nil, 0, logger.Nop()).WithBaseURL(base)
}

func chartBody(symbol string, price float64, ts int64) string {
	return fmt.Sprintf(`{
		"chart": {
			"result": [{"meta": {"symbol": %q, "regularMarketPrice": %g, "regularMarketTime": %d}}],
			"error": null
		}
	}`, symbol, price, ts)
}

func TestPrices_PartialResultsOnFailure(t *testing.T) {
	marketTime := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		ticker := parts[len(parts)-1]
		switch ticker {
		case "AAPL":
			fmt.Fprint(w, chartBody("AAPL", 187.5, marketTime.Unix()))
		case "MSFT":
			fmt.Fprint(w, chartBody("MSFT", 412.25, marketTime.Unix()))
		case "GONE":
			fmt.Fprint(w, `{"chart": {"result": [], "error": {"code": "Not Found", "description": "No data found"}}}`)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	quotes, err := client.Prices(context.Background(), []string{"AAPL", "MSFT", "GONE", "BOOM"}, time.Now())
	if err != nil {
		t.Fatalf("Prices() error = %v (per-ticker failures must not be batch-fatal)", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("Prices() returned %d quotes, want 2", len(quotes))
	}
	if quotes["AAPL"].Price != 187.5 {
		t.Errorf("AAPL price = %g, want 187.5", quotes["AAPL"].Price)
	}
	if quotes["MSFT"].Price != 412.25 {
		t.Errorf("MSFT price = %g, want 412.25", quotes["MSFT"].Price)
	}
	if !quotes["AAPL"].AsOf.Equal(marketTime) {
		t.Errorf("AAPL AsOf = %v, want %v", quotes["AAPL"].AsOf, marketTime)
	}
	if _, ok := quotes["GONE"]; ok {
		t.Error("delisted ticker must be omitted, not zero-priced")
	}
}

func TestPrices_RejectsNonPositivePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody("ZERO", 0, time.Now().Unix()))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	quotes, err := client.Prices(context.Background(), []string{"ZERO"}, time.Now())
	if err != nil {
		t.Fatalf("Prices() error = %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("zero price must be treated as a gap, got %v", quotes)
	}
}

func TestPrices_EmptyTickerList(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0") // 호출되면 실패

	quotes, err := client.Prices(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("Prices() error = %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("expected empty result, got %v", quotes)
	}
}
