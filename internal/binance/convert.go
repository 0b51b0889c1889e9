package binance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/backtrader/market"
)

var intervals = map[time.Duration]string{
	time.Minute:        "1m",
	3 * time.Minute:    "3m",
	5 * time.Minute:    "5m",
	15 * time.Minute:   "15m",
	30 * time.Minute:   "30m",
	time.Hour:          "1h",
	2 * time.Hour:      "2h",
	4 * time.Hour:      "4h",
	6 * time.Hour:      "6h",
	8 * time.Hour:      "8h",
	12 * time.Hour:     "12h",
	24 * time.Hour:     "1d",
	3 * 24 * time.Hour: "3d",
	7 * 24 * time.Hour: "1w",
}

// Interval maps a duration to the exchange's kline interval name.
func Interval(d time.Duration) (string, error) {
	s, ok := intervals[d]
	if !ok {
		return "", fmt.Errorf("%s is not a binance kline interval", d)
	}
	return s, nil
}

func ConvertKline(k *futures.Kline) (market.Candle, error) {
	if k == nil {
		return market.Candle{}, fmt.Errorf("nil kline")
	}
	fields := []struct {
		name string
		raw  string
	}{
		{"open", k.Open}, {"high", k.High}, {"low", k.Low}, {"close", k.Close}, {"volume", k.Volume},
	}
	var v [5]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("kline %d %s: %w", k.OpenTime, f.name, err)
		}
		v[i] = x
	}
	return market.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     v[0],
		High:     v[1],
		Low:      v[2],
		Close:    v[3],
		Volume:   v[4],
	}, nil
}

// filter returns a field of the first exchange filter of the given type.
func filter(filters []map[string]interface{}, kind, key string) (string, bool) {
	for _, f := range filters {
		if t, _ := f["filterType"].(string); t != kind {
			continue
		}
		v, ok := f[key].(string)
		return v, ok
	}
	return "", false
}

func decimalFilter(s futures.Symbol, kind, key string) (decimal.Decimal, error) {
	raw, ok := filter(s.Filters, kind, key)
	if !ok || raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %s.%s: %w", s.Symbol, kind, key, err)
	}
	return d, nil
}

// ConvertSymbol reads the trading rules of one exchange symbol.
func ConvertSymbol(s futures.Symbol) (market.SymbolInfo, error) {
	info := market.SymbolInfo{
		Symbol:            s.Symbol,
		BaseAsset:         s.BaseAsset,
		QuoteAsset:        s.QuoteAsset,
		MarginAsset:       s.MarginAsset,
		PricePrecision:    s.PricePrecision,
		QuantityPrecision: s.QuantityPrecision,
	}

	var err error
	for _, f := range []struct {
		dst       *decimal.Decimal
		kind, key string
	}{
		{&info.TickSize, "PRICE_FILTER", "tickSize"},
		{&info.StepSize, "LOT_SIZE", "stepSize"},
		{&info.MinQuantity, "LOT_SIZE", "minQty"},
		{&info.MaxQuantity, "LOT_SIZE", "maxQty"},
		{&info.MinNotional, "MIN_NOTIONAL", "notional"},
	} {
		if *f.dst, err = decimalFilter(s, f.kind, f.key); err != nil {
			return market.SymbolInfo{}, err
		}
	}
	return info, nil
}

// ConvertSymbols converts the named symbols (all of them when names is
// empty). Unknown names are an error.
func ConvertSymbols(all []futures.Symbol, names ...string) (market.Symbols, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToUpper(n)] = true
	}

	var infos []market.SymbolInfo
	for _, s := range all {
		if len(want) > 0 && !want[s.Symbol] {
			continue
		}
		if len(want) == 0 && s.Status != "" && s.Status != "TRADING" {
			continue
		}
		info, err := ConvertSymbol(s)
		if err != nil {
			return market.Symbols{}, err
		}
		infos = append(infos, info)
		delete(want, s.Symbol)
	}

	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		return market.Symbols{}, fmt.Errorf("unknown symbols: %s", strings.Join(missing, ", "))
	}
	return market.NewSymbols(infos...), nil
}
