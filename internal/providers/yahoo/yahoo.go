package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"econpulse/internal/cache"
	"econpulse/internal/commodities"
	"econpulse/internal/model"
	"econpulse/internal/providers"
	"econpulse/internal/ratelimit"
)

const (
	defaultBaseURL     = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultCacheTTL    = 300 * time.Second
	defaultMaxRequests = 15
	sourceName         = "yahoo-finance"
)

var ErrNoChart = errors.New("yahoo: no chart result in payload")

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	CacheTTL    time.Duration
	MaxRequests int
	RateWindow  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:     providers.Getenv("YAHOO_BASE_URL", defaultBaseURL),
		Timeout:     providers.GetenvDuration("YAHOO_TIMEOUT", providers.DefaultTimeout),
		CacheTTL:    providers.GetenvDuration("YAHOO_CACHE_TTL", defaultCacheTTL),
		MaxRequests: providers.GetenvInt("YAHOO_RATE_LIMIT", defaultMaxRequests),
		RateWindow:  providers.GetenvDuration("YAHOO_RATE_WINDOW", ratelimit.DefaultWindow),
	}
}

type Client struct {
	config  Config
	table   *commodities.Table
	client  *http.Client
	cache   *cache.Cache[model.Indicator]
	limiter *ratelimit.Limiter
}

func New(table *commodities.Table, indicators *cache.Cache[model.Indicator], limiter *ratelimit.Limiter) *Client {
	return NewWithConfig(ConfigFromEnv(), table, indicators, limiter)
}

func NewWithConfig(cfg Config, table *commodities.Table, indicators *cache.Cache[model.Indicator], limiter *ratelimit.Limiter) *Client {
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
		table:   table,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   indicators,
		limiter: limiter,
	}
}

func (c *Client) Name() string {
	return sourceName
}

// FetchIndicators returns futures prices for every commodity in the
// conversion table, in table order. One failing ticker does not discard
// the rest.
func (c *Client) FetchIndicators(ctx context.Context) ([]model.Indicator, error) {
	var indicators []model.Indicator
	var lastErr error

	for _, commodity := range c.table.All() {
		indicator, err := c.FetchCommodity(ctx, commodity.Ticker)
		if err != nil {
			lastErr = err
			continue
		}
		indicators = append(indicators, indicator)
	}

	if len(indicators) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoChart
	}
	return indicators, nil
}

// FetchCommodity returns the normalized future price for one ticker.
func (c *Client) FetchCommodity(ctx context.Context, ticker string) (model.Indicator, error) {
	commodity, ok := c.table.ByTicker(ticker)
	if !ok {
		return model.Indicator{}, fmt.Errorf("yahoo: unknown ticker %q", ticker)
	}

	key := "yahoo:" + ticker
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	if !c.limiter.CanProceed(sourceName, c.config.MaxRequests, c.config.RateWindow) {
		return model.Indicator{}, providers.ErrRateLimited
	}

	body, err := providers.Get(ctx, c.client, c.config.BaseURL+"/"+url.PathEscape(ticker))
	if err != nil {
		return model.Indicator{}, fmt.Errorf("yahoo: %w", err)
	}

	indicator, err := parseChart(body, commodity)
	if err != nil {
		providers.LogParseFailure(sourceName, body, err)
		return model.Indicator{}, err
	}

	c.cache.Set(key, indicator, c.config.CacheTTL)
	return indicator, nil
}

type chartPayload struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketTime    int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

func parseChart(body []byte, commodity commodities.Commodity) (model.Indicator, error) {
	var payload chartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Indicator{}, fmt.Errorf("yahoo: %w", err)
	}
	if len(payload.Chart.Result) == 0 {
		return model.Indicator{}, ErrNoChart
	}

	meta := payload.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return model.Indicator{}, fmt.Errorf("yahoo: zero price for %s", commodity.Ticker)
	}

	value := providers.Round2(commodity.Convert(meta.RegularMarketPrice))
	previous := providers.Round2(commodity.Convert(meta.ChartPreviousClose))

	var updated time.Time
	if meta.RegularMarketTime > 0 {
		updated = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	return model.Indicator{
		ID:            commodity.ID,
		Name:          commodity.Name,
		ShortName:     commodity.ShortName,
		Category:      commodity.Category,
		Value:         value,
		PreviousValue: previous,
		Change:        providers.Round2(value - previous),
		ChangePercent: providers.ChangePercent(value, previous),
		Unit:          commodity.Unit,
		Decimals:      2,
		Source:        sourceName,
		LastUpdated:   updated,
		Frequency:     model.FrequencyRealtime,
	}, nil
}
