package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/normalize"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

const eastmoneySource = "eastmoney"

var errEmptyData = errors.New("empty data")

// Eastmoney serves A-share quotes (push2) and klines (push2his).
type Eastmoney struct {
	quoteURL string
	klineURL string
	client   HTTPClient
	clock    Clock
	parser   normalize.EastmoneyParser
}

func NewEastmoney(quoteURL, klineURL string, client HTTPClient, clock Clock) *Eastmoney {
	parser := normalize.NewEastmoneyParser()
	parser.Now = clock.Now
	return &Eastmoney{
		quoteURL: quoteURL,
		klineURL: klineURL,
		client:   client,
		clock:    clock,
		parser:   parser,
	}
}

type eastmoneyQuoteResp struct {
	Data *struct {
		// f43 is the last price in cents; "-" while suspended
		F43 json.RawMessage `json:"f43"`
		F57 string          `json:"f57"` // code
		F58 string          `json:"f58"` // name
		F86 int64           `json:"f86"` // quote time, unix seconds
	} `json:"data"`
}

// FetchQuote returns the latest price of an A-share symbol.
func (e *Eastmoney) FetchQuote(ctx context.Context, symbol string) (models.PriceTick, error) {
	secid, err := normalize.EastmoneySecID(symbol)
	if err != nil {
		return models.PriceTick{}, err
	}

	params := url.Values{
		"secid":  {secid},
		"fields": {"f43,f57,f58,f86"},
	}
	var dto eastmoneyQuoteResp
	if err := getJSON(ctx, e.client, eastmoneySource, e.quoteURL, params, &dto); err != nil {
		return models.PriceTick{}, err
	}
	if dto.Data == nil {
		return models.PriceTick{}, &UpstreamError{Source: eastmoneySource, Err: fmt.Errorf("quote %s: %w", symbol, errEmptyData)}
	}

	var cents float64
	if err := json.Unmarshal(dto.Data.F43, &cents); err != nil {
		return models.PriceTick{}, &UpstreamError{Source: eastmoneySource, Err: fmt.Errorf("quote %s: invalid f43 %s", symbol, dto.Data.F43)}
	}

	observed := e.clock.Now().UnixMilli()
	if dto.Data.F86 > 0 {
		observed = dto.Data.F86 * 1000
	}

	return models.PriceTick{
		Symbol:       symbol,
		Price:        cents / 100,
		ObservedAtMs: observed,
	}, nil
}

type eastmoneyKlineResp struct {
	Data *struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchCandles returns up to limit (max 500) bars, oldest first.
func (e *Eastmoney) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	secid, err := normalize.EastmoneySecID(symbol)
	if err != nil {
		return nil, err
	}
	klt, err := normalize.EastmoneyKlt(interval)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"secid":   {secid},
		"klt":     {strconv.Itoa(klt)},
		"fqt":     {"1"},
		"end":     {"20500101"},
		"lmt":     {strconv.Itoa(clampLimit(limit))},
		"fields1": {"f1,f2,f3,f4,f5"},
		"fields2": {"f51,f52,f53,f54,f55,f56,f57,f58"},
	}

	var dto eastmoneyKlineResp
	if err := getJSON(ctx, e.client, eastmoneySource, e.klineURL, params, &dto); err != nil {
		return nil, err
	}
	if dto.Data == nil {
		return nil, &UpstreamError{Source: eastmoneySource, Err: fmt.Errorf("klines %s: %w", symbol, errEmptyData)}
	}
	return e.parser.ParseRecords(dto.Data.Klines), nil
}
