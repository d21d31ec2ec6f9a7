package argdatos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"econpulse/internal/cache"
	"econpulse/internal/model"
	"econpulse/internal/providers"
	"econpulse/internal/ratelimit"
)

// argdatos serves aggregate statistics mirrored from official publications.
// It is the backup source for inflation and the primary one for country
// risk; its data lags the primary sources, hence the longer cache TTL.
const (
	defaultBaseURL       = "https://api.argentinadatos.com/v1"
	defaultInflationPath = "/finanzas/indices/inflacion"
	defaultRiskPath      = "/finanzas/indices/riesgo-pais"
	defaultCacheTTL      = 600 * time.Second
	defaultMaxRequests   = 10
	sourceName           = "argentinadatos"
	dateLayout           = "2006-01-02"
)

var ErrNoSeries = errors.New("argdatos: empty series")

type Config struct {
	BaseURL       string
	InflationPath string
	RiskPath      string
	Timeout       time.Duration
	CacheTTL      time.Duration
	MaxRequests   int
	RateWindow    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:       providers.Getenv("ARGDATOS_BASE_URL", defaultBaseURL),
		InflationPath: providers.Getenv("ARGDATOS_INFLATION_PATH", defaultInflationPath),
		RiskPath:      providers.Getenv("ARGDATOS_RISK_PATH", defaultRiskPath),
		Timeout:       providers.GetenvDuration("ARGDATOS_TIMEOUT", providers.DefaultTimeout),
		CacheTTL:      providers.GetenvDuration("ARGDATOS_CACHE_TTL", defaultCacheTTL),
		MaxRequests:   providers.GetenvInt("ARGDATOS_RATE_LIMIT", defaultMaxRequests),
		RateWindow:    providers.GetenvDuration("ARGDATOS_RATE_WINDOW", ratelimit.DefaultWindow),
	}
}

type Client struct {
	config  Config
	client  *http.Client
	cache   *cache.Cache[model.Indicator]
	limiter *ratelimit.Limiter
}

func New(indicators *cache.Cache[model.Indicator], limiter *ratelimit.Limiter) *Client {
	return NewWithConfig(ConfigFromEnv(), indicators, limiter)
}

func NewWithConfig(cfg Config, indicators *cache.Cache[model.Indicator], limiter *ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.InflationPath == "" {
		cfg.InflationPath = defaultInflationPath
	}
	if cfg.RiskPath == "" {
		cfg.RiskPath = defaultRiskPath
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
		limiter: limiter,
	}
}

func (c *Client) Name() string {
	return sourceName
}

// FetchInflation returns the latest monthly inflation reading from the
// mirrored series, with the prior month as previous value.
func (c *Client) FetchInflation(ctx context.Context) (model.Indicator, error) {
	return c.fetchSeries(ctx, c.config.InflationPath, "argdatos:inflacion", seriesSpec{
		indicatorID: "inflacion-mensual",
		name:        "Inflación Mensual",
		shortName:   "IPC",
		category:    model.CategoryInflation,
		unit:        "%",
		decimals:    1,
		frequency:   model.FrequencyMonthly,
	})
}

// FetchCountryRisk returns the latest country-risk reading in basis points.
func (c *Client) FetchCountryRisk(ctx context.Context) (model.Indicator, error) {
	return c.fetchSeries(ctx, c.config.RiskPath, "argdatos:riesgo-pais", seriesSpec{
		indicatorID: "riesgo-pais",
		name:        "Riesgo País",
		shortName:   "Riesgo",
		category:    model.CategoryRates,
		unit:        "pb",
		decimals:    0,
		frequency:   model.FrequencyDaily,
	})
}

// FetchIndicators returns every indicator this source can serve. One series
// failing does not discard the other; only a total failure is an error.
func (c *Client) FetchIndicators(ctx context.Context) ([]model.Indicator, error) {
	var indicators []model.Indicator
	var lastErr error

	if inflation, err := c.FetchInflation(ctx); err != nil {
		lastErr = err
	} else {
		indicators = append(indicators, inflation)
	}
	if risk, err := c.FetchCountryRisk(ctx); err != nil {
		lastErr = err
	} else {
		indicators = append(indicators, risk)
	}

	if len(indicators) == 0 {
		return nil, lastErr
	}
	return indicators, nil
}

type seriesSpec struct {
	indicatorID string
	name        string
	shortName   string
	category    model.Category
	unit        string
	decimals    int
	frequency   model.Frequency
}

func (c *Client) fetchSeries(ctx context.Context, path, cacheKey string, spec seriesSpec) (model.Indicator, error) {
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}
	if !c.limiter.CanProceed(sourceName, c.config.MaxRequests, c.config.RateWindow) {
		return model.Indicator{}, providers.ErrRateLimited
	}

	body, err := providers.Get(ctx, c.client, c.config.BaseURL+path)
	if err != nil {
		return model.Indicator{}, fmt.Errorf("argdatos: %w", err)
	}

	indicator, err := parseSeries(body, spec)
	if err != nil {
		providers.LogParseFailure(sourceName, body, err)
		return model.Indicator{}, err
	}

	c.cache.Set(cacheKey, indicator, c.config.CacheTTL)
	return indicator, nil
}

type seriesPoint struct {
	Fecha string  `json:"fecha"`
	Valor float64 `json:"valor"`
}

func parseSeries(body []byte, spec seriesSpec) (model.Indicator, error) {
	var points []seriesPoint
	if err := json.Unmarshal(body, &points); err != nil {
		return model.Indicator{}, fmt.Errorf("argdatos: %w", err)
	}
	if len(points) == 0 {
		return model.Indicator{}, ErrNoSeries
	}

	type observation struct {
		date  time.Time
		value float64
	}
	series := make([]observation, 0, len(points))
	for _, p := range points {
		date, err := time.Parse(dateLayout, p.Fecha)
		if err != nil {
			return model.Indicator{}, fmt.Errorf("argdatos: bad date %q: %w", p.Fecha, err)
		}
		series = append(series, observation{date: date, value: p.Valor})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })

	latest := series[len(series)-1]
	indicator := model.Indicator{
		ID:          spec.indicatorID,
		Name:        spec.name,
		ShortName:   spec.shortName,
		Category:    spec.category,
		Value:       latest.value,
		Unit:        spec.unit,
		Decimals:    spec.decimals,
		Source:      sourceName,
		LastUpdated: latest.date,
		Frequency:   spec.frequency,
	}
	if len(series) > 1 {
		previous := series[len(series)-2].value
		indicator.PreviousValue = previous
		indicator.Change = providers.Round2(latest.value - previous)
		indicator.ChangePercent = providers.ChangePercent(latest.value, previous)
	}
	return indicator, nil
}
