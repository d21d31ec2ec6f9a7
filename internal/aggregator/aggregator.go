package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"econpulse/internal/cache"
	"econpulse/internal/cascade"
	"econpulse/internal/model"
	"econpulse/internal/providers"
)

const (
	defaultOverviewTTL = 60 * time.Second
	overviewCacheKey   = "aggregator:overview"
)

// QuoteSource supplies the dollar quote board.
type QuoteSource interface {
	FetchQuotes(ctx context.Context) ([]model.DollarQuote, error)
}

// Family is one indicator family with its ordered source cascade. The
// template identifies the family when every source fails.
type Family struct {
	Name     string
	Template model.Indicator
	Steps    []cascade.Step
}

type Config struct {
	OverviewTTL time.Duration

	// HeadlineCommodities are the indicator ids that fill the ticker's
	// commodity tail, in order. When empty the tail takes the first
	// agro/energy indicators as they arrive.
	HeadlineCommodities []string
}

// Aggregator merges every connector family into a single market overview.
// Families are fetched concurrently; one family failing degrades that
// family only, never the cycle.
type Aggregator struct {
	quotes    QuoteSource
	families  []Family
	overview  *cache.Cache[model.MarketOverview]
	ttl       time.Duration
	headlines []string
	now       func() time.Time
}

func New(quotes QuoteSource, families []Family, overview *cache.Cache[model.MarketOverview], cfg Config) *Aggregator {
	ttl := cfg.OverviewTTL
	if ttl <= 0 {
		ttl = defaultOverviewTTL
	}
	return &Aggregator{
		quotes:    quotes,
		families:  families,
		overview:  overview,
		ttl:       ttl,
		headlines: cfg.HeadlineCommodities,
		now:       time.Now,
	}
}

// BuildOverview returns the current overview, recomputing at most once per
// TTL window.
func (a *Aggregator) BuildOverview(ctx context.Context) model.MarketOverview {
	if cached, ok := a.overview.Get(overviewCacheKey); ok {
		return cached
	}

	quotes, indicators := a.fetchAll(ctx)

	overview := model.MarketOverview{
		Ticker:        buildTicker(quotes, indicators, a.headlines),
		Groups:        buildGroups(indicators),
		DollarQuotes:  quotes,
		DollarMetrics: buildDollarMetrics(quotes),
		GeneratedAt:   a.now(),
	}

	a.overview.Set(overviewCacheKey, overview, a.ttl)
	return overview
}

// IndicatorsByCategory returns the current indicators in one category.
func (a *Aggregator) IndicatorsByCategory(ctx context.Context, category model.Category) []model.Indicator {
	for _, group := range a.BuildOverview(ctx).Groups {
		if group.Category == category {
			return group.Indicators
		}
	}
	return nil
}

// IndicatorByID returns one indicator from the current overview.
func (a *Aggregator) IndicatorByID(ctx context.Context, id string) (model.Indicator, bool) {
	for _, group := range a.BuildOverview(ctx).Groups {
		for _, indicator := range group.Indicators {
			if indicator.ID == id {
				return indicator, true
			}
		}
	}
	return model.Indicator{}, false
}

// fetchAll fans out to the quote board and every family concurrently and
// waits for all of them. In-flight fetches are not cancelled when a
// sibling fails; their results still warm the caches.
func (a *Aggregator) fetchAll(ctx context.Context) ([]model.DollarQuote, []model.Indicator) {
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		quotes     []model.DollarQuote
		indicators []model.Indicator
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		fetched, err := a.quotes.FetchQuotes(ctx)
		if err != nil {
			slog.Warn("quote board unavailable", "error", err)
			return
		}
		mu.Lock()
		quotes = fetched
		mu.Unlock()
	}()

	for _, family := range a.families {
		wg.Add(1)
		go func(f Family) {
			defer wg.Done()
			flat := cascade.Run(ctx, f.Template, f.Steps).Flatten()
			mu.Lock()
			indicators = append(indicators, flat...)
			mu.Unlock()
		}(family)
	}

	wg.Wait()
	return quotes, dedupeByID(indicators)
}

// dedupeByID keeps the first record per indicator id, preferring records
// that carry data over flagged empties regardless of arrival order.
func dedupeByID(indicators []model.Indicator) []model.Indicator {
	seen := make(map[string]int, len(indicators))
	out := make([]model.Indicator, 0, len(indicators))
	for _, indicator := range indicators {
		if at, ok := seen[indicator.ID]; ok {
			if out[at].NoData && !indicator.NoData {
				out[at] = indicator
			}
			continue
		}
		seen[indicator.ID] = len(out)
		out = append(out, indicator)
	}
	return out
}

var groupSpecs = []struct {
	id          string
	name        string
	category    model.Category
	description string
}{
	{"cambio", "Tipo de Cambio", model.CategoryExchangeRate, "Cotizaciones del dólar en todos los canales"},
	{"inflacion", "Inflación", model.CategoryInflation, "Índices de precios"},
	{"tasas", "Tasas y Riesgo", model.CategoryRates, "Tasas de referencia y riesgo país"},
	{"actividad", "Actividad", model.CategoryActivity, "Indicadores de actividad y reservas"},
	{"cripto", "Criptomonedas", model.CategoryCrypto, "Precios de referencia en USD"},
	{"agro", "Agro", model.CategoryAgro, "Futuros de granos en Chicago"},
	{"energia", "Energía", model.CategoryEnergy, "Futuros de energía"},
}

// buildGroups buckets indicators by category in display order. A category
// with no indicators is omitted entirely.
func buildGroups(indicators []model.Indicator) []model.IndicatorGroup {
	var groups []model.IndicatorGroup
	for _, spec := range groupSpecs {
		var members []model.Indicator
		for _, indicator := range indicators {
			if indicator.Category == spec.category {
				members = append(members, indicator)
			}
		}
		if len(members) == 0 {
			continue
		}
		groups = append(groups, model.IndicatorGroup{
			ID:          spec.id,
			Name:        spec.name,
			Category:    spec.category,
			Description: spec.description,
			Indicators:  members,
		})
	}
	return groups
}

// buildDollarMetrics computes gap percentages against the official quote.
// A gap is nil whenever its anchor or its counterpart is unavailable; a
// missing anchor is never divided by.
func buildDollarMetrics(quotes []model.DollarQuote) model.DollarMetrics {
	byType := make(map[model.QuoteType]model.DollarQuote, len(quotes))
	for _, q := range quotes {
		byType[q.Type] = q
	}

	oficial, hasAnchor := byType[model.QuoteOficial]
	if !hasAnchor || oficial.Sell <= 0 {
		return model.DollarMetrics{}
	}

	gap := func(t model.QuoteType) *float64 {
		q, ok := byType[t]
		if !ok || q.Sell <= 0 {
			return nil
		}
		g := providers.Round2((q.Sell - oficial.Sell) / oficial.Sell * 100)
		return &g
	}

	return model.DollarMetrics{
		BlueGap: gap(model.QuoteBlue),
		MEPGap:  gap(model.QuoteMEP),
		CCLGap:  gap(model.QuoteCCL),
	}
}

// tickerQuoteOrder is the fixed display order for the currency head of the
// ticker strip.
var tickerQuoteOrder = []model.QuoteType{
	model.QuoteOficial,
	model.QuoteBlue,
	model.QuoteMEP,
	model.QuoteCCL,
}

// tickerMacroOrder is the fixed order for headline macro indicators.
var tickerMacroOrder = []string{"inflacion-mensual", "riesgo-pais"}

// buildTicker assembles the flat ticker strip: currency quotes, headline
// macro indicators, crypto, then two headline commodities. The order is a
// display contract and must stay stable across cycles.
func buildTicker(quotes []model.DollarQuote, indicators []model.Indicator, headlines []string) []model.TickerItem {
	var ticker []model.TickerItem

	byType := make(map[model.QuoteType]model.DollarQuote, len(quotes))
	for _, q := range quotes {
		byType[q.Type] = q
	}
	for _, quoteType := range tickerQuoteOrder {
		q, ok := byType[quoteType]
		if !ok {
			continue
		}
		ticker = append(ticker, model.TickerItem{
			ID:     "dolar-" + string(quoteType),
			Label:  q.Name,
			Value:  fmt.Sprintf("$%.2f", q.Sell),
			Change: formatChange(q.ChangePercent),
			Trend:  trendOf(q.ChangePercent),
		})
	}

	byID := make(map[string]model.Indicator, len(indicators))
	for _, indicator := range indicators {
		byID[indicator.ID] = indicator
	}
	for _, id := range tickerMacroOrder {
		if indicator, ok := byID[id]; ok {
			ticker = append(ticker, tickerItem(indicator))
		}
	}

	for _, indicator := range indicators {
		if indicator.Category == model.CategoryCrypto {
			ticker = append(ticker, tickerItem(indicator))
		}
	}

	for _, indicator := range commodityTail(indicators, headlines) {
		ticker = append(ticker, tickerItem(indicator))
	}

	return ticker
}

// commodityTail picks the two commodities shown at the end of the ticker:
// the flagged headline ids first, then arrival order to fill any gap.
func commodityTail(indicators []model.Indicator, headlines []string) []model.Indicator {
	var pool []model.Indicator
	for _, indicator := range indicators {
		if indicator.Category == model.CategoryAgro || indicator.Category == model.CategoryEnergy {
			pool = append(pool, indicator)
		}
	}

	var tail []model.Indicator
	taken := make(map[string]struct{}, 2)
	for _, id := range headlines {
		if len(tail) == 2 {
			break
		}
		for _, indicator := range pool {
			if indicator.ID == id {
				tail = append(tail, indicator)
				taken[id] = struct{}{}
				break
			}
		}
	}
	for _, indicator := range pool {
		if len(tail) == 2 {
			break
		}
		if _, ok := taken[indicator.ID]; ok {
			continue
		}
		tail = append(tail, indicator)
	}
	return tail
}

func tickerItem(indicator model.Indicator) model.TickerItem {
	value := "s/d"
	if !indicator.NoData {
		value = fmt.Sprintf("%.*f", indicator.Decimals, indicator.Value)
		if indicator.Unit != "" {
			value += " " + indicator.Unit
		}
	}
	return model.TickerItem{
		ID:     indicator.ID,
		Label:  indicator.ShortName,
		Value:  value,
		Change: formatChange(indicator.ChangePercent),
		Trend:  trendOf(indicator.ChangePercent),
	}
}

func formatChange(changePercent float64) string {
	if changePercent == 0 {
		return ""
	}
	return fmt.Sprintf("%+.2f%%", changePercent)
}

func trendOf(change float64) model.Trend {
	switch {
	case change > 0:
		return model.TrendUp
	case change < 0:
		return model.TrendDown
	default:
		return model.TrendNeutral
	}
}

