package feed

import (
	"context"
	"fmt"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/normalize"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

// CandleRouter sends A-share symbols to Ashare and everything else to Crypto.
// A nil source makes its symbols unsupported.
type CandleRouter struct {
	Ashare CandleSource
	Crypto CandleSource
}

func (r *CandleRouter) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	src := r.Crypto
	if normalize.IsAshare(symbol) {
		src = r.Ashare
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %q", normalize.ErrUnsupportedSymbol, symbol)
	}
	return src.FetchCandles(ctx, symbol, interval, limit)
}
