package candlestore

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/backtrader/market"
)

// Keys are "c:<SYMBOL>:<interval>:" followed by the candle open time in
// unix milliseconds, big-endian, so iteration order is time order.
const prefixCandle = "c:"

func seriesPrefix(symbol string, interval time.Duration) ([]byte, error) {
	iv, err := market.IntervalString(interval)
	if err != nil {
		return nil, err
	}
	if symbol == "" || strings.Contains(symbol, ":") {
		return nil, fmt.Errorf("candlestore: invalid symbol %q", symbol)
	}
	return []byte(prefixCandle + strings.ToUpper(symbol) + ":" + iv + ":"), nil
}

func candleKey(prefix []byte, t time.Time) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(t.UnixMilli()))
	return key
}

func keyTime(prefix, key []byte) (time.Time, error) {
	if len(key) != len(prefix)+8 {
		return time.Time{}, fmt.Errorf("candlestore: invalid key length %d", len(key))
	}
	ms := binary.BigEndian.Uint64(key[len(prefix):])
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// keyUpperBound returns the smallest key greater than every key that
// starts with prefix.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
