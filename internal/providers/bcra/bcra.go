package bcra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"econpulse/internal/cache"
	"econpulse/internal/model"
	"econpulse/internal/providers"
	"econpulse/internal/ratelimit"
)

const (
	defaultBaseURL     = "https://api.bcra.gob.ar/estadisticas/v3.0/monetarias"
	defaultCacheTTL    = 300 * time.Second
	defaultMaxRequests = 20
	sourceName         = "bcra"
	dateLayout         = "2006-01-02"
)

var ErrNoResults = errors.New("bcra: no results in payload")

// Monetary variable ids published by the central bank statistics API.
const (
	VarReserves        = 1
	VarWholesaleDollar = 5
	VarPolicyRate      = 6
	VarMonthlyCPI      = 27
	VarAnnualCPI       = 28
)

type variableSpec struct {
	indicatorID string
	name        string
	shortName   string
	category    model.Category
	unit        string
	decimals    int
	frequency   model.Frequency
}

var variables = map[int]variableSpec{
	VarReserves:        {"reservas", "Reservas Internacionales", "Reservas", model.CategoryActivity, "USD M", 0, model.FrequencyDaily},
	VarWholesaleDollar: {"dolar-mayorista-bcra", "Dólar Mayorista (Com. A3500)", "Mayorista", model.CategoryExchangeRate, "ARS", 2, model.FrequencyDaily},
	VarPolicyRate:      {"tasa-politica", "Tasa de Política Monetaria", "Tasa BCRA", model.CategoryRates, "% n.a.", 2, model.FrequencyDaily},
	VarMonthlyCPI:      {"inflacion-mensual", "Inflación Mensual", "IPC", model.CategoryInflation, "%", 1, model.FrequencyMonthly},
	VarAnnualCPI:       {"inflacion-interanual", "Inflación Interanual", "IPC i.a.", model.CategoryInflation, "%", 1, model.FrequencyMonthly},
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	CacheTTL    time.Duration
	MaxRequests int
	RateWindow  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:     providers.Getenv("BCRA_BASE_URL", defaultBaseURL),
		Timeout:     providers.GetenvDuration("BCRA_TIMEOUT", providers.DefaultTimeout),
		CacheTTL:    providers.GetenvDuration("BCRA_CACHE_TTL", defaultCacheTTL),
		MaxRequests: providers.GetenvInt("BCRA_RATE_LIMIT", defaultMaxRequests),
		RateWindow:  providers.GetenvDuration("BCRA_RATE_WINDOW", ratelimit.DefaultWindow),
	}
}

type Client struct {
	config  Config
	client  *http.Client
	cache   *cache.Cache[[]model.Indicator]
	history *cache.Cache[[]Observation]
	limiter *ratelimit.Limiter
}

func New(indicators *cache.Cache[[]model.Indicator], history *cache.Cache[[]Observation], limiter *ratelimit.Limiter) *Client {
	return NewWithConfig(ConfigFromEnv(), indicators, history, limiter)
}

func NewWithConfig(cfg Config, indicators *cache.Cache[[]model.Indicator], history *cache.Cache[[]Observation], limiter *ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = providers.DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = defaultMaxRequests
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = ratelimit.DefaultWindow
	}
	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   indicators,
		history: history,
		limiter: limiter,
	}
}

func (c *Client) Name() string {
	return sourceName
}

// Observation is one point of a variable's history series.
type Observation struct {
	Date  time.Time
	Value float64
}

// FetchIndicators returns the current snapshot of the monetary variables
// this layer tracks. Inflation readings are enriched with the previous
// month's value from the history endpoint when it is reachable.
func (c *Client) FetchIndicators(ctx context.Context) ([]model.Indicator, error) {
	const key = "bcra:variables"
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	if !c.limiter.CanProceed(sourceName, c.config.MaxRequests, c.config.RateWindow) {
		return nil, providers.ErrRateLimited
	}

	body, err := providers.Get(ctx, c.client, c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("bcra: %w", err)
	}

	indicators, err := parseVariables(body)
	if err != nil {
		providers.LogParseFailure(sourceName, body, err)
		return nil, err
	}

	c.enrichFromHistory(ctx, indicators)

	c.cache.Set(key, indicators, c.config.CacheTTL)
	return indicators, nil
}

// enrichFromHistory backfills PreviousValue/Change for monthly variables.
// A history failure only leaves the change at zero, it never fails the
// snapshot.
func (c *Client) enrichFromHistory(ctx context.Context, indicators []model.Indicator) {
	for i := range indicators {
		if indicators[i].Frequency != model.FrequencyMonthly {
			continue
		}
		varID, ok := variableIDFor(indicators[i].ID)
		if !ok {
			continue
		}

		to := time.Now()
		series, err := c.FetchHistory(ctx, varID, to.AddDate(0, -3, 0), to)
		if err != nil || len(series) < 2 {
			if err != nil {
				slog.Debug("bcra history unavailable", "variable", varID, "error", err)
			}
			continue
		}

		previous := series[len(series)-2].Value
		indicators[i].PreviousValue = previous
		indicators[i].Change = providers.Round2(indicators[i].Value - previous)
		indicators[i].ChangePercent = providers.ChangePercent(indicators[i].Value, previous)
	}
}

// FetchHistory returns the time-ordered series for one variable id within
// the date range.
func (c *Client) FetchHistory(ctx context.Context, variableID int, from, to time.Time) ([]Observation, error) {
	key := fmt.Sprintf("bcra:history:%d:%s:%s", variableID, from.Format(dateLayout), to.Format(dateLayout))
	if cached, ok := c.history.Get(key); ok {
		return cached, nil
	}
	if !c.limiter.CanProceed(sourceName, c.config.MaxRequests, c.config.RateWindow) {
		return nil, providers.ErrRateLimited
	}

	url := fmt.Sprintf("%s/%d?desde=%s&hasta=%s", c.config.BaseURL, variableID, from.Format(dateLayout), to.Format(dateLayout))
	body, err := providers.Get(ctx, c.client, url)
	if err != nil {
		return nil, fmt.Errorf("bcra: %w", err)
	}

	series, err := parseHistory(body)
	if err != nil {
		providers.LogParseFailure(sourceName, body, err)
		return nil, err
	}

	c.history.Set(key, series, c.config.CacheTTL)
	return series, nil
}

type variablePayload struct {
	Results []struct {
		IDVariable  int     `json:"idVariable"`
		Descripcion string  `json:"descripcion"`
		Fecha       string  `json:"fecha"`
		Valor       float64 `json:"valor"`
	} `json:"results"`
}

func parseVariables(body []byte) ([]model.Indicator, error) {
	var payload variablePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("bcra: %w", err)
	}
	if len(payload.Results) == 0 {
		return nil, ErrNoResults
	}

	indicators := make([]model.Indicator, 0, len(variables))
	for _, result := range payload.Results {
		spec, tracked := variables[result.IDVariable]
		if !tracked {
			continue
		}
		updated, _ := time.Parse(dateLayout, result.Fecha)
		indicators = append(indicators, model.Indicator{
			ID:          spec.indicatorID,
			Name:        spec.name,
			ShortName:   spec.shortName,
			Category:    spec.category,
			Value:       result.Valor,
			Unit:        spec.unit,
			Decimals:    spec.decimals,
			Source:      sourceName,
			LastUpdated: updated,
			Frequency:   spec.frequency,
		})
	}
	if len(indicators) == 0 {
		return nil, ErrNoResults
	}

	sort.Slice(indicators, func(i, j int) bool { return indicators[i].ID < indicators[j].ID })
	return indicators, nil
}

type historyPayload struct {
	Results []struct {
		Fecha string  `json:"fecha"`
		Valor float64 `json:"valor"`
	} `json:"results"`
}

func parseHistory(body []byte) ([]Observation, error) {
	var payload historyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("bcra: %w", err)
	}
	if len(payload.Results) == 0 {
		return nil, ErrNoResults
	}

	series := make([]Observation, 0, len(payload.Results))
	for _, point := range payload.Results {
		date, err := time.Parse(dateLayout, point.Fecha)
		if err != nil {
			return nil, fmt.Errorf("bcra: bad date %q: %w", point.Fecha, err)
		}
		series = append(series, Observation{Date: date, Value: point.Valor})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

func variableIDFor(indicatorID string) (int, bool) {
	for id, spec := range variables {
		if spec.indicatorID == indicatorID {
			return id, true
		}
	}
	return 0, false
}
