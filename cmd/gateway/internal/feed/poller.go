package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poller fetches every tracked symbol on a fixed interval. A failed fetch is logged and
// skipped; it never delays the timer or the other symbols.
type Poller struct {
	name     string
	symbols  []string
	interval time.Duration
	fetcher  QuoteFetcher
	logger   *zap.Logger
}

func NewPoller(name string, fetcher QuoteFetcher, symbols []string, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		name:     name,
		symbols:  symbols,
		interval: interval,
		fetcher:  fetcher,
		logger:   logger.With(zap.String("source", name)),
	}
}

func (p *Poller) Name() string { return p.name }

// Start polls immediately and then once per interval until ctx is done.
func (p *Poller) Start(ctx context.Context, sink Sink) {
	p.logger.Info("Poller Started", zap.Strings("symbols", p.symbols), zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx, sink)

		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches all symbols concurrently and publishes every successful result.
// Each symbol has at most one fetch in flight, so per-symbol order follows fetch order.
func (p *Poller) PollOnce(ctx context.Context, sink Sink) {
	var wg sync.WaitGroup
	for _, symbol := range p.symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			tick, err := p.fetcher.FetchQuote(ctx, symbol)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("Quote fetch failed", zap.String("symbol", symbol), zap.Error(err))
				}
				return
			}
			sink.Publish(tick)
		}(symbol)
	}
	wg.Wait()
}
