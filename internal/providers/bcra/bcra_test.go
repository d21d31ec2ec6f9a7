package bcra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"econpulse/internal/cache"
	"econpulse/internal/model"
	"econpulse/internal/ratelimit"
)

const variablesPayload = `{"results":[
	{"idVariable":1,"descripcion":"Reservas Internacionales del BCRA","fecha":"2025-06-01","valor":38500},
	{"idVariable":6,"descripcion":"Tasa de Politica Monetaria","fecha":"2025-06-01","valor":29},
	{"idVariable":27,"descripcion":"Inflacion mensual","fecha":"2025-05-01","valor":2.8},
	{"idVariable":999,"descripcion":"Serie no seguida","fecha":"2025-06-01","valor":1}
]}`

const historyPayloadBody = `{"results":[
	{"fecha":"2025-03-01","valor":3.7},
	{"fecha":"2025-04-01","valor":3.1},
	{"fecha":"2025-05-01","valor":2.8}
]}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWithConfig(
		Config{BaseURL: server.URL},
		cache.New[[]model.Indicator](10),
		cache.New[[]Observation](10),
		ratelimit.New(),
	)
}

func TestParseVariablesFiltersTracked(t *testing.T) {
	indicators, err := parseVariables([]byte(variablesPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(indicators) != 3 {
		t.Fatalf("expected 3 tracked indicators, got %d", len(indicators))
	}
	for _, ind := range indicators {
		if ind.ID == "" || ind.Source != "bcra" {
			t.Errorf("indicator missing identity: %+v", ind)
		}
	}
}

func TestParseVariablesEmpty(t *testing.T) {
	if _, err := parseVariables([]byte(`{"results":[]}`)); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if _, err := parseVariables([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestParseHistorySortedAscending(t *testing.T) {
	unordered := `{"results":[
		{"fecha":"2025-05-01","valor":2.8},
		{"fecha":"2025-03-01","valor":3.7}
	]}`
	series, err := parseHistory([]byte(unordered))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}
	if !series[0].Date.Before(series[1].Date) {
		t.Error("series should be sorted oldest first")
	}
}

func TestFetchIndicatorsEnrichesInflation(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "desde") {
			w.Write([]byte(historyPayloadBody))
			return
		}
		w.Write([]byte(variablesPayload))
	})

	indicators, err := client.FetchIndicators(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var inflation *model.Indicator
	for i := range indicators {
		if indicators[i].ID == "inflacion-mensual" {
			inflation = &indicators[i]
		}
	}
	if inflation == nil {
		t.Fatal("inflation indicator missing")
	}
	if inflation.PreviousValue != 3.1 {
		t.Errorf("expected previous 3.1, got %v", inflation.PreviousValue)
	}
	if inflation.Change != -0.3 {
		t.Errorf("expected change -0.3, got %v", inflation.Change)
	}
}

func TestFetchIndicatorsSurvivesHistoryFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "desde") {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(variablesPayload))
	})

	indicators, err := client.FetchIndicators(context.Background())
	if err != nil {
		t.Fatalf("snapshot must not fail when history is down: %v", err)
	}
	for _, ind := range indicators {
		if ind.ID == "inflacion-mensual" && ind.PreviousValue != 0 {
			t.Errorf("expected zero previous when history failed, got %v", ind.PreviousValue)
		}
	}
}

func TestFetchHistoryCached(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(historyPayloadBody))
	})

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if _, err := client.FetchHistory(context.Background(), VarMonthlyCPI, from, to); err != nil {
			t.Fatalf("history %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}
