package normalize

import "fmt"

// Intervals is the closed set of user-facing interval tokens.
var Intervals = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w", "1M"}

// Eastmoney has no 4h bar.
var eastmoneyKlt = map[string]int{
	"1m":  101,
	"5m":  102,
	"15m": 103,
	"30m": 104,
	"1h":  105,
	"1d":  106,
	"1w":  107,
	"1M":  108,
}

var binanceIntervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"4h":  "4h",
	"1d":  "1d",
	"1w":  "1w",
	"1M":  "1M",
}

// EastmoneyKlt maps an interval token to Eastmoney's klt code.
func EastmoneyKlt(interval string) (int, error) {
	klt, ok := eastmoneyKlt[interval]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedInterval, interval)
	}
	return klt, nil
}

// BinanceInterval maps an interval token to Binance's kline interval code.
func BinanceInterval(interval string) (string, error) {
	code, ok := binanceIntervals[interval]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInterval, interval)
	}
	return code, nil
}
