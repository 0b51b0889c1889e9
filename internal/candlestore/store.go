package candlestore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rustyeddy/backtrader/market"
)

// Store is a pebble-backed cache of candles keyed by symbol, interval and
// open time.
type Store struct {
	db *pebble.DB
}

type record struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes candles in one batch. An existing candle with the same open
// time is replaced.
func (s *Store) Put(symbol string, interval time.Duration, candles []market.Candle) error {
	prefix, err := seriesPrefix(symbol, interval)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	for _, c := range candles {
		data, err := json.Marshal(record{c.Open, c.High, c.Low, c.Close, c.Volume})
		if err != nil {
			return fmt.Errorf("failed to marshal candle: %w", err)
		}
		if err := b.Set(candleKey(prefix, c.OpenTime), data, nil); err != nil {
			return err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save candles: %w", err)
	}
	return nil
}

// Load returns the candles with start <= OpenTime < end as a CandleSet. A
// zero start or end leaves that side open.
func (s *Store) Load(symbol string, interval time.Duration, start, end time.Time) (*market.CandleSet, error) {
	prefix, err := seriesPrefix(symbol, interval)
	if err != nil {
		return nil, err
	}

	opts := &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
	if !start.IsZero() {
		opts.LowerBound = candleKey(prefix, start)
	}
	if !end.IsZero() {
		opts.UpperBound = candleKey(prefix, end)
	}

	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var candles []market.Candle
	for iter.First(); iter.Valid(); iter.Next() {
		c, err := decode(prefix, iter.Key(), iter.Value())
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	cs := market.NewCandleSet(symbol, interval, candles)
	cs.Source = "pebble:" + string(prefix)
	return cs, nil
}

// Latest returns the newest stored candle of a series.
func (s *Store) Latest(symbol string, interval time.Duration) (market.Candle, bool, error) {
	prefix, err := seriesPrefix(symbol, interval)
	if err != nil {
		return market.Candle{}, false, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return market.Candle{}, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return market.Candle{}, false, iter.Error()
	}
	c, err := decode(prefix, iter.Key(), iter.Value())
	if err != nil {
		return market.Candle{}, false, err
	}
	return c, true, nil
}

// Delete removes a whole series.
func (s *Store) Delete(symbol string, interval time.Duration) error {
	prefix, err := seriesPrefix(symbol, interval)
	if err != nil {
		return err
	}
	if err := s.db.DeleteRange(prefix, keyUpperBound(prefix), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete series: %w", err)
	}
	return nil
}

func decode(prefix, key, value []byte) (market.Candle, error) {
	t, err := keyTime(prefix, key)
	if err != nil {
		return market.Candle{}, err
	}
	var r record
	if err := json.Unmarshal(value, &r); err != nil {
		return market.Candle{}, fmt.Errorf("failed to unmarshal candle at %s: %w", t.Format(time.RFC3339), err)
	}
	return market.Candle{
		OpenTime: t,
		Open:     r.Open,
		High:     r.High,
		Low:      r.Low,
		Close:    r.Close,
		Volume:   r.Volume,
	}, nil
}
