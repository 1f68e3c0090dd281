// Package relay mirrors published ticks to external systems (Redis, Kafka). Relays are
// best-effort: a full queue drops the tick rather than slowing ingestion.
package relay

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

const (
	DefaultQueueSize = 100
	writeTimeout     = 2 * time.Second
)

// TickWriter delivers one tick to a backend.
type TickWriter interface {
	WriteTick(ctx context.Context, tick models.PriceTick) error
	Close() error
}

// Relay decouples a TickWriter from the ingestion path with bounded queues. Ticks are sharded
// by symbol across workers, so each symbol is written in publish order.
type Relay struct {
	name   string
	writer TickWriter
	queues []chan models.PriceTick
	logger *zap.Logger
}

func New(name string, writer TickWriter, queueSize, workers int, logger *zap.Logger) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = 1
	}
	queues := make([]chan models.PriceTick, workers)
	for i := range queues {
		queues[i] = make(chan models.PriceTick, queueSize)
	}
	return &Relay{
		name:   name,
		writer: writer,
		queues: queues,
		logger: logger.With(zap.String("relay", name)),
	}
}

// Publish enqueues without blocking. In real-time prices "latest" is better than "all".
func (r *Relay) Publish(tick models.PriceTick) {
	workerID := getWorkerID(tick.Symbol, len(r.queues))
	select {
	case r.queues[workerID] <- tick:
	default:
		r.logger.Warn("Dropping slow tick", zap.String("symbol", tick.Symbol), zap.Int("worker_id", workerID))
	}
}

// Run writes queued ticks until ctx is done, then closes the writer.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Relay Started", zap.Int("workers", len(r.queues)))

	var wg sync.WaitGroup
	for i, q := range r.queues {
		wg.Add(1)
		go r.worker(ctx, i, q, &wg)
	}
	wg.Wait()

	if err := r.writer.Close(); err != nil {
		r.logger.Error("Error closing relay writer", zap.Error(err))
	}
	r.logger.Info("Relay stopped")
}

func (r *Relay) worker(ctx context.Context, id int, queue <-chan models.PriceTick, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-queue:
			r.write(id, tick)
		}
	}
}

func (r *Relay) write(id int, tick models.PriceTick) {
	// Not derived from Run's ctx, so shutdown does not cut a write in half
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.writer.WriteTick(ctx, tick); err != nil {
		r.logger.Error("Relay write failed", zap.Error(err), zap.String("symbol", tick.Symbol))
		return
	}
	r.logger.Debug("Relayed", zap.String("symbol", tick.Symbol), zap.Int("worker_id", id), zap.Float64("price", tick.Price))
}

func getWorkerID(symbol string, numWorkers int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(numWorkers))
}
