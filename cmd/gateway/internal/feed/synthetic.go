package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

// Synthetic is an offline random-walk source for local development.
type Synthetic struct {
	logger   *zap.Logger
	symbols  []string
	prices   map[string]float64
	interval time.Duration
	rand     Rand
	clock    Clock
}

func NewSynthetic(
	logger *zap.Logger,
	symbols []string,
	basePrices map[string]float64,
	interval time.Duration,
	rnd Rand,
	clock Clock,
) *Synthetic {
	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		prices[s] = basePrices[s]
		if prices[s] <= 0 {
			prices[s] = 100
		}
	}
	return &Synthetic{
		logger:   logger,
		symbols:  symbols,
		prices:   prices,
		interval: interval,
		rand:     rnd,
		clock:    clock,
	}
}

func (sg *Synthetic) Name() string { return "synthetic" }

// Start emits one tick per interval for a randomly chosen symbol.
func (sg *Synthetic) Start(ctx context.Context, sink Sink) {
	sg.logger.Info("Synthetic feed Started", zap.Strings("symbols", sg.symbols))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(sg.symbols) == 0 {
				sg.clock.Sleep(1 * time.Second)
				continue
			}

			sink.Publish(sg.Next())
			sg.clock.Sleep(sg.interval)
		}
	}
}

// Next moves one symbol by up to +/-0.5% and returns the new tick.
func (sg *Synthetic) Next() models.PriceTick {
	symbol := sg.symbols[sg.rand.Intn(len(sg.symbols))]
	step := (sg.rand.Float64() - 0.5) * 0.01 * sg.prices[symbol]
	price := sg.prices[symbol] + step
	if price <= 0 {
		price = sg.prices[symbol]
	}
	sg.prices[symbol] = price

	return models.PriceTick{
		Symbol:       symbol,
		Price:        price,
		ObservedAtMs: sg.clock.Now().UnixMilli(),
	}
}
