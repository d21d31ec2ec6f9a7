package dolarapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"econpulse/internal/cache"
	"econpulse/internal/model"
	"econpulse/internal/providers"
	"econpulse/internal/ratelimit"
)

const (
	defaultBaseURL     = "https://dolarapi.com/v1/dolares"
	defaultCacheTTL    = 60 * time.Second
	defaultMaxRequests = 10
	sourceName         = "dolarapi"
	cacheKey           = "dolarapi:quotes"
)

var ErrNoQuotes = errors.New("dolarapi: no quotes in payload")

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	CacheTTL    time.Duration
	MaxRequests int
	RateWindow  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:     providers.Getenv("DOLARAPI_BASE_URL", defaultBaseURL),
		Timeout:     providers.GetenvDuration("DOLARAPI_TIMEOUT", providers.DefaultTimeout),
		CacheTTL:    providers.GetenvDuration("DOLARAPI_CACHE_TTL", defaultCacheTTL),
		MaxRequests: providers.GetenvInt("DOLARAPI_RATE_LIMIT", defaultMaxRequests),
		RateWindow:  providers.GetenvDuration("DOLARAPI_RATE_WINDOW", ratelimit.DefaultWindow),
	}
}

type Client struct {
	config  Config
	client  *http.Client
	cache   *cache.Cache[[]model.DollarQuote]
	limiter *ratelimit.Limiter

	// Sell prices by channel, kept across refreshes: last holds the
	// readings now in the cache, prior the refresh before them. The
	// payload carries no previous close, so changes are derived here.
	mu    sync.Mutex
	last  map[model.QuoteType]float64
	prior map[model.QuoteType]float64
}

func New(quotes *cache.Cache[[]model.DollarQuote], limiter *ratelimit.Limiter) *Client {
	return NewWithConfig(ConfigFromEnv(), quotes, limiter)
}

func NewWithConfig(cfg Config, quotes *cache.Cache[[]model.DollarQuote], limiter *ratelimit.Limiter) *Client {
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
		cache:   quotes,
		limiter: limiter,
	}
}

func (c *Client) Name() string {
	return sourceName
}

// FetchQuotes returns the current dollar quotes for every market channel.
// Cache hits skip both the rate limiter and the upstream call.
func (c *Client) FetchQuotes(ctx context.Context) ([]model.DollarQuote, error) {
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}
	if !c.limiter.CanProceed(sourceName, c.config.MaxRequests, c.config.RateWindow) {
		return nil, providers.ErrRateLimited
	}

	body, err := providers.Get(ctx, c.client, c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("dolarapi: %w", err)
	}

	quotes, err := parseQuotes(body)
	if err != nil {
		providers.LogParseFailure(sourceName, body, err)
		return nil, err
	}

	c.enrichChanges(quotes)
	c.cache.Set(cacheKey, quotes, c.config.CacheTTL)
	return quotes, nil
}

// enrichChanges fills Change/ChangePercent against the previous successful
// refresh and records the current sells for the next one. The first
// refresh has no prior reading; its changes stay zero.
func (c *Client) enrichChanges(quotes []model.DollarQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := make(map[model.QuoteType]float64, len(quotes))
	for i, q := range quotes {
		if prev, ok := c.last[q.Type]; ok && prev != 0 {
			quotes[i].Change = providers.Round2(q.Sell - prev)
			quotes[i].ChangePercent = providers.ChangePercent(q.Sell, prev)
		}
		current[q.Type] = q.Sell
	}
	c.prior = c.last
	c.last = current
}

// previousSell returns the sell price behind the cached reading for one
// channel.
func (c *Client) previousSell(quoteType model.QuoteType) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.prior[quoteType]
	return prev, ok && prev != 0
}

// FetchIndicators projects the dollar quotes into exchange-rate indicators
// (sell side), for consumers that only speak Indicator.
func (c *Client) FetchIndicators(ctx context.Context) ([]model.Indicator, error) {
	quotes, err := c.FetchQuotes(ctx)
	if err != nil {
		return nil, err
	}

	indicators := make([]model.Indicator, 0, len(quotes))
	for _, q := range quotes {
		indicator := model.Indicator{
			ID:            "dolar-" + string(q.Type),
			Name:          q.Name,
			ShortName:     q.Name,
			Category:      model.CategoryExchangeRate,
			Value:         q.Sell,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			Unit:          "ARS",
			Decimals:      2,
			Source:        sourceName,
			LastUpdated:   q.LastUpdated,
			Frequency:     model.FrequencyRealtime,
		}
		// Before the second refresh there is no prior reading; previous
		// and change stay zero rather than inventing one.
		if prev, ok := c.previousSell(q.Type); ok {
			indicator.PreviousValue = prev
		}
		indicators = append(indicators, indicator)
	}
	return indicators, nil
}

type quotePayload struct {
	Casa               string  `json:"casa"`
	Nombre             string  `json:"nombre"`
	Compra             float64 `json:"compra"`
	Venta              float64 `json:"venta"`
	FechaActualizacion string  `json:"fechaActualizacion"`
}

var casaTypes = map[string]model.QuoteType{
	"oficial":         model.QuoteOficial,
	"blue":            model.QuoteBlue,
	"bolsa":           model.QuoteMEP,
	"contadoconliqui": model.QuoteCCL,
	"cripto":          model.QuoteCrypto,
	"mayorista":       model.QuoteWholesale,
	"tarjeta":         model.QuoteTourist,
}

func parseQuotes(body []byte) ([]model.DollarQuote, error) {
	var payload []quotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("dolarapi: %w", err)
	}

	quotes := make([]model.DollarQuote, 0, len(payload))
	for _, entry := range payload {
		quoteType, ok := casaTypes[entry.Casa]
		if !ok {
			continue
		}

		spread := 0.0
		if entry.Compra > 0 {
			spread = providers.Round2((entry.Venta - entry.Compra) / entry.Compra * 100)
		}

		updated, _ := time.Parse(time.RFC3339, entry.FechaActualizacion)

		quotes = append(quotes, model.DollarQuote{
			Type:        quoteType,
			Name:        entry.Nombre,
			Buy:         entry.Compra,
			Sell:        entry.Venta,
			Spread:      spread,
			LastUpdated: updated,
			Source:      sourceName,
		})
	}

	if len(quotes) == 0 {
		return nil, ErrNoQuotes
	}
	return quotes, nil
}
