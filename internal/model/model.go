package model

import "time"

type Category string

const (
	CategoryExchangeRate Category = "exchange-rate"
	CategoryInflation    Category = "inflation"
	CategoryRates        Category = "rates"
	CategoryActivity     Category = "activity"
	CategoryCrypto       Category = "crypto"
	CategoryAgro         Category = "agro"
	CategoryEnergy       Category = "energy"
)

type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyDaily    Frequency = "daily"
	FrequencyMonthly  Frequency = "monthly"
)

// Indicator is a single normalized reading with provenance and change
// metrics. When NoData is set the value is forced to zero and IsFallback
// is set as well; values are never invented.
type Indicator struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ShortName     string    `json:"shortName"`
	Category      Category  `json:"category"`
	Value         float64   `json:"value"`
	PreviousValue float64   `json:"previousValue"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Unit          string    `json:"unit"`
	Decimals      int       `json:"decimals"`
	Source        string    `json:"source"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Frequency     Frequency `json:"frequency"`
	IsFallback    bool      `json:"isFallback,omitempty"`
	NoData        bool      `json:"noData,omitempty"`
	Disclaimer    string    `json:"disclaimer,omitempty"`
}

type QuoteType string

const (
	QuoteOficial   QuoteType = "oficial"
	QuoteBlue      QuoteType = "blue"
	QuoteMEP       QuoteType = "mep"
	QuoteCCL       QuoteType = "ccl"
	QuoteCrypto    QuoteType = "cripto"
	QuoteWholesale QuoteType = "mayorista"
	QuoteTourist   QuoteType = "tarjeta"
)

// DollarQuote is a buy/sell currency quote for one market channel.
// Spread is (sell-buy)/buy expressed as a percentage, zero when buy is zero.
// The upstream payload carries no previous close, so Change and
// ChangePercent compare the sell price against the connector's previous
// successful refresh; both stay zero until a second refresh happens.
type DollarQuote struct {
	Type          QuoteType `json:"type"`
	Name          string    `json:"name"`
	Buy           float64   `json:"buy"`
	Sell          float64   `json:"sell"`
	Spread        float64   `json:"spread"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Source        string    `json:"source"`
}

type IndicatorGroup struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    Category    `json:"category"`
	Description string      `json:"description,omitempty"`
	Indicators  []Indicator `json:"indicators"`
}

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// TickerItem is the display-ready projection of a headline indicator.
// Regenerated on every aggregation cycle, never persisted.
type TickerItem struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Change string `json:"change,omitempty"`
	Trend  Trend  `json:"trend"`
}

// DollarMetrics carries gap percentages between quote channels relative to
// the official quote. A nil gap means the anchor quote was unavailable.
type DollarMetrics struct {
	BlueGap *float64 `json:"blueGap"`
	MEPGap  *float64 `json:"mepGap"`
	CCLGap  *float64 `json:"cclGap"`
}

type MarketOverview struct {
	Ticker        []TickerItem     `json:"ticker"`
	Groups        []IndicatorGroup `json:"groups"`
	DollarQuotes  []DollarQuote    `json:"dollarQuotes"`
	DollarMetrics DollarMetrics    `json:"dollarMetrics"`
	GeneratedAt   time.Time        `json:"generatedAt"`
}

// ProcessedArticle is the unit handed to the news store by the scrape and
// summarization pipeline. ProcessingError is set when summarization failed;
// the article is still stored.
type ProcessedArticle struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Header          string    `json:"header,omitempty"`
	OriginalContent string    `json:"originalContent,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	KeyPoints       []string  `json:"keyPoints,omitempty"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	SourceImageURL  string    `json:"sourceImageUrl,omitempty"`
	SourceURL       string    `json:"sourceUrl"`
	SourceName      string    `json:"sourceName"`
	SourceID        string    `json:"sourceId"`
	Category        string    `json:"category,omitempty"`
	Priority        int       `json:"priority"`
	PublishedAt     time.Time `json:"publishedAt"`
	ProcessedAt     time.Time `json:"processedAt"`
	IsProcessed     bool      `json:"isProcessed"`
	ProcessingError string    `json:"processingError,omitempty"`
}

// StoreMeta tracks collection freshness independent of individual articles.
type StoreMeta struct {
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type StoreSnapshot struct {
	Articles []ProcessedArticle `json:"articles"`
	Meta     StoreMeta          `json:"meta"`
}

// Staleness is the read-side freshness signal for the news collection.
type Staleness struct {
	Stale      bool `json:"stale"`
	MinutesOld int  `json:"minutesOld"`
}
