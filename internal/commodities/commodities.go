package commodities

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"econpulse/internal/model"
)

//go:embed commodities.yaml
var defaultTable []byte

// Commodity describes one futures contract and how to convert its quoted
// price into display units. FromCents means the exchange quotes in cents
// (per bushel, or per pound for soybean oil).
type Commodity struct {
	ID               string         `yaml:"id"`
	Ticker           string         `yaml:"ticker"`
	Name             string         `yaml:"name"`
	ShortName        string         `yaml:"short_name"`
	Category         model.Category `yaml:"category"`
	Unit             string         `yaml:"unit"`
	ConversionFactor float64        `yaml:"conversion_factor"`
	FromCents        bool           `yaml:"from_cents"`
	Headline         bool           `yaml:"headline"`
}

// Convert maps a raw exchange quote to the commodity's display unit.
func (c Commodity) Convert(price float64) float64 {
	if c.FromCents {
		price /= 100
	}
	return price * c.ConversionFactor
}

type Table struct {
	ordered  []Commodity
	byTicker map[string]Commodity
}

type tableFile struct {
	Commodities []Commodity `yaml:"commodities"`
}

// Load returns the built-in conversion table.
func Load() (*Table, error) {
	return parse(defaultTable)
}

// LoadFile reads a conversion table from path, replacing the built-in one.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("commodities: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("commodities: %w", err)
	}
	if len(file.Commodities) == 0 {
		return nil, fmt.Errorf("commodities: empty table")
	}

	byTicker := make(map[string]Commodity, len(file.Commodities))
	for _, c := range file.Commodities {
		if c.ID == "" || c.Ticker == "" || c.ConversionFactor == 0 {
			return nil, fmt.Errorf("commodities: incomplete entry %q", c.ID)
		}
		byTicker[c.Ticker] = c
	}
	return &Table{ordered: file.Commodities, byTicker: byTicker}, nil
}

// All returns the commodities in file order.
func (t *Table) All() []Commodity {
	out := make([]Commodity, len(t.ordered))
	copy(out, t.ordered)
	return out
}

func (t *Table) ByTicker(ticker string) (Commodity, bool) {
	c, ok := t.byTicker[ticker]
	return c, ok
}

// Headlines returns the commodities flagged for the ticker strip, in file
// order.
func (t *Table) Headlines() []Commodity {
	var out []Commodity
	for _, c := range t.ordered {
		if c.Headline {
			out = append(out, c)
		}
	}
	return out
}
