package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/normalize"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

const binanceSource = "binance"

// Binance talks to the Binance spot REST API.
type Binance struct {
	baseURL string
	client  HTTPClient
	clock   Clock
}

func NewBinance(baseURL string, client HTTPClient, clock Clock) *Binance {
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		clock:   clock,
	}
}

type binanceTickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"` // Binance sends prices as strings
}

// FetchQuote calls GET /api/v3/ticker/price. The response carries no timestamp, so the tick
// is stamped with the local clock.
func (b *Binance) FetchQuote(ctx context.Context, symbol string) (models.PriceTick, error) {
	id, err := normalize.BinanceSymbol(symbol)
	if err != nil {
		return models.PriceTick{}, err
	}

	var dto binanceTickerPrice
	if err := getJSON(ctx, b.client, binanceSource, b.baseURL+"/api/v3/ticker/price", url.Values{"symbol": {id}}, &dto); err != nil {
		return models.PriceTick{}, err
	}

	price, err := strconv.ParseFloat(dto.Price, 64)
	if err != nil {
		return models.PriceTick{}, &UpstreamError{Source: binanceSource, Err: fmt.Errorf("invalid price %q: %w", dto.Price, err)}
	}
	if dto.Symbol == "" {
		dto.Symbol = symbol
	}

	return models.PriceTick{
		Symbol:       dto.Symbol,
		Price:        price,
		ObservedAtMs: b.clock.Now().UnixMilli(),
	}, nil
}

// FetchCandles calls GET /api/v3/klines.
func (b *Binance) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	id, err := normalize.BinanceSymbol(symbol)
	if err != nil {
		return nil, err
	}
	code, err := normalize.BinanceInterval(interval)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"symbol":   {id},
		"interval": {code},
		"limit":    {strconv.Itoa(clampLimit(limit))},
	}

	var records [][]json.RawMessage
	if err := getJSON(ctx, b.client, binanceSource, b.baseURL+"/api/v3/klines", params, &records); err != nil {
		return nil, err
	}
	return normalize.ParseBinanceKlines(records), nil
}

// BinanceStreamURL builds a combined trade stream URL, e.g.
// wss://stream.binance.com:9443/stream?streams=btcusdt@trade/ethusdt@trade.
func BinanceStreamURL(base string, symbols []string) (string, error) {
	if len(symbols) == 0 {
		return "", fmt.Errorf("%w: no symbols", normalize.ErrUnsupportedSymbol)
	}
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		name, err := normalize.BinanceStreamName(s)
		if err != nil {
			return "", err
		}
		streams = append(streams, name)
	}
	return strings.TrimRight(base, "/") + "?streams=" + strings.Join(streams, "/"), nil
}

type binanceCombined struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceTrade struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// DecodeBinanceTrade accepts raw or combined-stream trade events. Subscription acks, other
// event types and malformed frames are dropped.
func DecodeBinanceTrade(frame []byte) (models.PriceTick, bool) {
	var env binanceCombined
	if err := json.Unmarshal(frame, &env); err == nil && env.Stream != "" && len(env.Data) > 0 {
		frame = env.Data
	}

	var ev binanceTrade
	if err := json.Unmarshal(frame, &ev); err != nil {
		return models.PriceTick{}, false
	}
	if (ev.EventType != "trade" && ev.EventType != "aggTrade") || ev.Symbol == "" {
		return models.PriceTick{}, false
	}

	price, err := strconv.ParseFloat(ev.Price, 64)
	if err != nil {
		return models.PriceTick{}, false
	}

	ts := ev.TradeTime
	if ts == 0 {
		ts = ev.EventTime
	}
	return models.PriceTick{Symbol: ev.Symbol, Price: price, ObservedAtMs: ts}, true
}
