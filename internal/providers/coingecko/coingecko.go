package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"econpulse/internal/cache"
	"econpulse/internal/model"
	"econpulse/internal/providers"
	"econpulse/internal/ratelimit"
)

const (
	defaultBaseURL     = "https://api.coingecko.com/api/v3/simple/price"
	defaultCacheTTL    = 120 * time.Second
	defaultMaxRequests = 10
	sourceName         = "coingecko"
)

var ErrNoPrices = errors.New("coingecko: no prices in payload")

// Tracked coins, largest market cap first. The order is part of the ticker
// display contract downstream.
var defaultCoins = []coinSpec{
	{id: "bitcoin", name: "Bitcoin", shortName: "BTC"},
	{id: "ethereum", name: "Ethereum", shortName: "ETH"},
}

type coinSpec struct {
	id        string
	name      string
	shortName string
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
		BaseURL:     providers.Getenv("COINGECKO_BASE_URL", defaultBaseURL),
		Timeout:     providers.GetenvDuration("COINGECKO_TIMEOUT", providers.DefaultTimeout),
		CacheTTL:    providers.GetenvDuration("COINGECKO_CACHE_TTL", defaultCacheTTL),
		MaxRequests: providers.GetenvInt("COINGECKO_RATE_LIMIT", defaultMaxRequests),
		RateWindow:  providers.GetenvDuration("COINGECKO_RATE_WINDOW", ratelimit.DefaultWindow),
	}
}

type Client struct {
	config  Config
	coins   []coinSpec
	client  *http.Client
	cache   *cache.Cache[[]model.Indicator]
	limiter *ratelimit.Limiter
}

func New(indicators *cache.Cache[[]model.Indicator], limiter *ratelimit.Limiter) *Client {
	return NewWithConfig(ConfigFromEnv(), indicators, limiter)
}

func NewWithConfig(cfg Config, indicators *cache.Cache[[]model.Indicator], limiter *ratelimit.Limiter) *Client {
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
		coins:   defaultCoins,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   indicators,
		limiter: limiter,
	}
}

func (c *Client) Name() string {
	return sourceName
}

// FetchIndicators returns USD prices with 24h change for the tracked coins,
// in market-cap order.
func (c *Client) FetchIndicators(ctx context.Context) ([]model.Indicator, error) {
	const key = "coingecko:prices"
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	if !c.limiter.CanProceed(sourceName, c.config.MaxRequests, c.config.RateWindow) {
		return nil, providers.ErrRateLimited
	}

	ids := make([]string, len(c.coins))
	for i, coin := range c.coins {
		ids[i] = coin.id
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")

	body, err := providers.Get(ctx, c.client, c.config.BaseURL+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}

	indicators, err := parsePrices(body, c.coins)
	if err != nil {
		providers.LogParseFailure(sourceName, body, err)
		return nil, err
	}

	c.cache.Set(key, indicators, c.config.CacheTTL)
	return indicators, nil
}

type pricePayload map[string]struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
}

func parsePrices(body []byte, coins []coinSpec) ([]model.Indicator, error) {
	var payload pricePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}

	indicators := make([]model.Indicator, 0, len(coins))
	for _, coin := range coins {
		price, ok := payload[coin.id]
		if !ok || price.USD == 0 {
			continue
		}

		// A 24h change of exactly -100 would zero the denominator; treat
		// the reading as having no usable previous.
		previous := 0.0
		change := 0.0
		changePercent := 0.0
		if denom := 1 + price.Change24h/100; denom != 0 {
			previous = price.USD / denom
			change = providers.Round2(price.USD - previous)
			changePercent = providers.Round2(price.Change24h)
		}

		indicators = append(indicators, model.Indicator{
			ID:            coin.id,
			Name:          coin.name,
			ShortName:     coin.shortName,
			Category:      model.CategoryCrypto,
			Value:         price.USD,
			PreviousValue: providers.Round2(previous),
			Change:        change,
			ChangePercent: changePercent,
			Unit:          "USD",
			Decimals:      2,
			Source:        sourceName,
			LastUpdated:   time.Now(),
			Frequency:     model.FrequencyRealtime,
		})
	}

	if len(indicators) == 0 {
		return nil, ErrNoPrices
	}
	return indicators, nil
}
