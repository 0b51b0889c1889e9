package market

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SymbolInfo carries the exchange trading filters for one futures symbol.
// A zero TickSize or StepSize disables rounding for that dimension.
type SymbolInfo struct {
	Symbol            string          `yaml:"symbol"`
	BaseAsset         string          `yaml:"base_asset"`
	QuoteAsset        string          `yaml:"quote_asset"`
	MarginAsset       string          `yaml:"margin_asset"`
	PricePrecision    int             `yaml:"price_precision"`
	QuantityPrecision int             `yaml:"quantity_precision"`
	TickSize          decimal.Decimal `yaml:"tick_size"`
	StepSize          decimal.Decimal `yaml:"step_size"`
	MinQuantity       decimal.Decimal `yaml:"min_quantity"`
	MaxQuantity       decimal.Decimal `yaml:"max_quantity"`
	MinNotional       decimal.Decimal `yaml:"min_notional"`
}

// RoundPrice snaps p to the nearest tick.
func (s SymbolInfo) RoundPrice(p float64) float64 {
	if !s.TickSize.IsPositive() {
		return p
	}
	d := decimal.NewFromFloat(p).Div(s.TickSize).Round(0).Mul(s.TickSize)
	f, _ := d.Float64()
	return f
}

// RoundQuantity truncates q toward zero to a whole number of steps,
// keeping its sign.
func (s SymbolInfo) RoundQuantity(q float64) float64 {
	if !s.StepSize.IsPositive() {
		return q
	}
	d := decimal.NewFromFloat(q)
	abs := d.Abs().Div(s.StepSize).Floor().Mul(s.StepSize)
	if d.IsNegative() {
		abs = abs.Neg()
	}
	f, _ := abs.Float64()
	return f
}

// CheckQuantity applies the min/max quantity and min notional filters to
// an already rounded quantity.
func (s SymbolInfo) CheckQuantity(q, price float64) error {
	abs := decimal.NewFromFloat(q).Abs()
	if s.MinQuantity.IsPositive() && abs.LessThan(s.MinQuantity) {
		return fmt.Errorf("%s: quantity %s below minimum %s", s.Symbol, abs, s.MinQuantity)
	}
	if s.MaxQuantity.IsPositive() && abs.GreaterThan(s.MaxQuantity) {
		return fmt.Errorf("%s: quantity %s above maximum %s", s.Symbol, abs, s.MaxQuantity)
	}
	if s.MinNotional.IsPositive() && price > 0 {
		notional := abs.Mul(decimal.NewFromFloat(price))
		if notional.LessThan(s.MinNotional) {
			return fmt.Errorf("%s: notional %s below minimum %s", s.Symbol, notional, s.MinNotional)
		}
	}
	return nil
}

// Symbols is a read-only lookup of symbol filters.
type Symbols struct {
	m map[string]SymbolInfo
}

func NewSymbols(infos ...SymbolInfo) Symbols {
	m := make(map[string]SymbolInfo, len(infos))
	for _, info := range infos {
		m[info.Symbol] = info
	}
	return Symbols{m: m}
}

func (s Symbols) Get(symbol string) (SymbolInfo, bool) {
	info, ok := s.m[symbol]
	return info, ok
}

// Lookup returns the filters for symbol, or a filterless SymbolInfo when
// the symbol is unknown.
func (s Symbols) Lookup(symbol string) SymbolInfo {
	if info, ok := s.m[symbol]; ok {
		return info
	}
	return SymbolInfo{Symbol: symbol}
}

func (s Symbols) Len() int { return len(s.m) }

// List returns all entries sorted by symbol.
func (s Symbols) List() []SymbolInfo {
	out := make([]SymbolInfo, 0, len(s.m))
	for _, info := range s.m {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Merge returns a new lookup with other's entries taking precedence.
func (s Symbols) Merge(other Symbols) Symbols {
	m := make(map[string]SymbolInfo, len(s.m)+len(other.m))
	for k, v := range s.m {
		m[k] = v
	}
	for k, v := range other.m {
		m[k] = v
	}
	return Symbols{m: m}
}

type symbolsFile struct {
	Symbols []SymbolInfo `yaml:"symbols"`
}

// LoadSymbols reads a YAML file of the form `symbols: [ ... ]`.
func LoadSymbols(path string) (Symbols, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Symbols{}, err
	}
	var f symbolsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Symbols{}, fmt.Errorf("%s: %w", path, err)
	}
	for i, info := range f.Symbols {
		if info.Symbol == "" {
			return Symbols{}, fmt.Errorf("%s: entry %d has no symbol", path, i)
		}
	}
	return NewSymbols(f.Symbols...), nil
}

func SaveSymbols(path string, s Symbols) error {
	b, err := yaml.Marshal(symbolsFile{Symbols: s.List()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// DefaultSymbols covers the pairs used in examples and tests.
var DefaultSymbols = NewSymbols(
	SymbolInfo{
		Symbol:            "BTCUSDT",
		BaseAsset:         "BTC",
		QuoteAsset:        "USDT",
		MarginAsset:       "USDT",
		PricePrecision:    2,
		QuantityPrecision: 3,
		TickSize:          decimal.RequireFromString("0.10"),
		StepSize:          decimal.RequireFromString("0.001"),
		MinQuantity:       decimal.RequireFromString("0.001"),
		MaxQuantity:       decimal.RequireFromString("1000"),
		MinNotional:       decimal.RequireFromString("5"),
	},
	SymbolInfo{
		Symbol:            "ETHUSDT",
		BaseAsset:         "ETH",
		QuoteAsset:        "USDT",
		MarginAsset:       "USDT",
		PricePrecision:    2,
		QuantityPrecision: 3,
		TickSize:          decimal.RequireFromString("0.01"),
		StepSize:          decimal.RequireFromString("0.001"),
		MinQuantity:       decimal.RequireFromString("0.001"),
		MaxQuantity:       decimal.RequireFromString("10000"),
		MinNotional:       decimal.RequireFromString("5"),
	},
)
