package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/backtrader/market"
)

// MaxKlines is the largest page the USDⓈ-M klines endpoint returns.
const MaxKlines = 1500

type klinesFunc func(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error)

// Client downloads futures market data. Public endpoints only; the keys
// may be empty.
type Client struct {
	client  *futures.Client
	limiter *rate.Limiter
	log     *zap.Logger

	maxRetries int
	backoff    time.Duration
	klines     klinesFunc
}

func NewClient(apiKey, secretKey string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	fc := futures.NewClient(apiKey, secretKey)
	fc.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	c := &Client{
		client:     fc,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		log:        log,
		maxRetries: 3,
		backoff:    100 * time.Millisecond,
	}
	c.klines = c.fetchKlines
	return c
}

func (c *Client) fetchKlines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error) {
	return c.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(start).
		EndTime(end).
		Limit(limit).
		Do(ctx)
}

// page fetches one page, retrying with exponential backoff.
func (c *Client) page(ctx context.Context, symbol, interval string, start, end int64) ([]*futures.Kline, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		ks, err := c.klines(ctx, symbol, interval, start, end, MaxKlines)
		if err == nil {
			return ks, nil
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
		c.log.Warn("klines request failed, retrying",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, lastErr)
}

// Klines downloads every candle with start <= OpenTime < end, paging
// through the endpoint.
func (c *Client) Klines(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]market.Candle, error) {
	iv, err := Interval(interval)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("klines: end %s is not after start %s",
			end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}

	var out []market.Candle
	from := start.UnixMilli()
	to := end.UnixMilli() - 1

	for from <= to {
		ks, err := c.page(ctx, symbol, iv, from, to)
		if err != nil {
			return nil, err
		}

		next := from
		for _, k := range ks {
			candle, err := ConvertKline(k)
			if err != nil {
				return nil, err
			}
			if candle.OpenTime.Before(start) || !candle.OpenTime.Before(end) {
				continue
			}
			if n := len(out); n > 0 && !candle.OpenTime.After(out[n-1].OpenTime) {
				continue
			}
			out = append(out, candle)
			next = candle.OpenTime.Add(interval).UnixMilli()
		}

		c.log.Debug("klines page",
			zap.String("symbol", symbol),
			zap.String("interval", iv),
			zap.Int("rows", len(ks)),
			zap.Int("total", len(out)),
		)

		if len(ks) < MaxKlines || next <= from {
			break
		}
		from = next
	}
	return out, nil
}

// Symbols fetches exchange info and converts the requested symbols. With
// no names every trading symbol is returned.
func (c *Client) Symbols(ctx context.Context, names ...string) (market.Symbols, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return market.Symbols{}, err
	}
	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return market.Symbols{}, fmt.Errorf("exchange info: %w", err)
	}
	return ConvertSymbols(info.Symbols, names...)
}
