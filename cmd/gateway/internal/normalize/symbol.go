// Package normalize maps user-facing symbols and intervals to upstream identifiers and
// parses upstream-native records into canonical candles. Everything here is pure.
package normalize

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedSymbol   = errors.New("unsupported symbol")
	ErrUnsupportedInterval = errors.New("unsupported interval")
)

// Exchange suffixes for Shanghai and Shenzhen listed securities.
const (
	suffixShanghai = ".SH"
	suffixShenzhen = ".SZ"
)

// binanceQuotes are the quote assets accepted for Binance spot pairs.
var binanceQuotes = []string{"USDT", "USDC", "FDUSD", "BTC", "ETH", "BNB"}

// IsAshare reports whether the symbol is an exchange-suffixed A-share code.
func IsAshare(symbol string) bool {
	return strings.HasSuffix(symbol, suffixShanghai) || strings.HasSuffix(symbol, suffixShenzhen)
}

// EastmoneySecID maps "600000.SH" to "1.600000" and "000001.SZ" to "0.000001".
func EastmoneySecID(symbol string) (string, error) {
	var market, code string
	switch {
	case strings.HasSuffix(symbol, suffixShanghai):
		market, code = "1", strings.TrimSuffix(symbol, suffixShanghai)
	case strings.HasSuffix(symbol, suffixShenzhen):
		market, code = "0", strings.TrimSuffix(symbol, suffixShenzhen)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
	}
	if !isDigits(code, 6) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
	}
	return market + "." + code, nil
}

// BinanceSymbol validates a spot pair like "BTCUSDT" and returns the REST identifier.
func BinanceSymbol(symbol string) (string, error) {
	if len(symbol) < 5 || len(symbol) > 20 {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
		}
	}
	for _, quote := range binanceQuotes {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return symbol, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
}

// BinanceStreamName returns the raw trade stream name, e.g. "btcusdt@trade".
func BinanceStreamName(symbol string) (string, error) {
	id, err := BinanceSymbol(symbol)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id) + "@trade", nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
