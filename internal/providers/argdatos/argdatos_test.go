package argdatos

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"econpulse/internal/cache"
	"econpulse/internal/model"
	"econpulse/internal/ratelimit"
)

const inflationSeries = `[
	{"fecha":"2025-03-01","valor":3.7},
	{"fecha":"2025-04-01","valor":3.1},
	{"fecha":"2025-05-01","valor":2.8}
]`

const riskSeries = `[
	{"fecha":"2025-05-30","valor":680},
	{"fecha":"2025-06-02","valor":650}
]`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWithConfig(Config{BaseURL: server.URL}, cache.New[model.Indicator](10), ratelimit.New())
}

func TestFetchInflation(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(inflationSeries))
	})

	got, err := client.FetchInflation(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Value != 2.8 {
		t.Errorf("expected latest value 2.8, got %v", got.Value)
	}
	if got.PreviousValue != 3.1 {
		t.Errorf("expected previous 3.1, got %v", got.PreviousValue)
	}
	if got.Change != -0.3 {
		t.Errorf("expected change -0.3, got %v", got.Change)
	}
	if got.Category != model.CategoryInflation {
		t.Errorf("expected inflation category, got %s", got.Category)
	}
}

func TestFetchCountryRisk(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(riskSeries))
	})

	got, err := client.FetchCountryRisk(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.ID != "riesgo-pais" {
		t.Errorf("expected riesgo-pais, got %s", got.ID)
	}
	if got.Value != 650 {
		t.Errorf("expected 650, got %v", got.Value)
	}
	if got.ChangePercent != -4.41 {
		t.Errorf("expected -4.41%%, got %v", got.ChangePercent)
	}
}

func TestParseSeriesEmpty(t *testing.T) {
	_, err := parseSeries([]byte(`[]`), seriesSpec{indicatorID: "x"})
	if !errors.Is(err, ErrNoSeries) {
		t.Fatalf("expected ErrNoSeries, got %v", err)
	}
}

func TestParseSeriesSinglePoint(t *testing.T) {
	got, err := parseSeries([]byte(`[{"fecha":"2025-05-01","valor":2.8}]`), seriesSpec{indicatorID: "x"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Change != 0 || got.PreviousValue != 0 {
		t.Errorf("single point must not fabricate a change: %+v", got)
	}
}

func TestFetchIndicatorsPartialFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "riesgo") {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(inflationSeries))
	})

	indicators, err := client.FetchIndicators(context.Background())
	if err != nil {
		t.Fatalf("partial success must not fail: %v", err)
	}
	if len(indicators) != 1 {
		t.Fatalf("expected 1 indicator, got %d", len(indicators))
	}
	if indicators[0].ID != "inflacion-mensual" {
		t.Errorf("expected surviving inflation indicator, got %s", indicators[0].ID)
	}
}

func TestFetchIndicatorsTotalFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	if _, err := client.FetchIndicators(context.Background()); err == nil {
		t.Fatal("expected error when every series fails")
	}
}
