package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

const (
	keyPrefix     = "stock:"
	channelPrefix = "prices."
)

// RedisClient abstracts the Redis connection
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Close() error
}

// Compile-time check to ensure RedisWriter implements TickWriter
var _ TickWriter = (*RedisWriter)(nil)

// RedisWriter keeps stock:<SYMBOL> at the latest tick and publishes it on prices.<SYMBOL>.
type RedisWriter struct {
	rdb RedisClient
	ttl time.Duration
}

func NewRedisWriter(rdb RedisClient, ttl time.Duration) *RedisWriter {
	return &RedisWriter{rdb: rdb, ttl: ttl}
}

// WriteTick sends SET and PUBLISH in one pipeline.
func (w *RedisWriter) WriteTick(ctx context.Context, tick models.PriceTick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}

	pipe := w.rdb.Pipeline()
	pipe.Set(ctx, keyPrefix+tick.Symbol, payload, w.ttl) // TTL prevents unbounded memory growth
	pipe.Publish(ctx, channelPrefix+tick.Symbol, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func (w *RedisWriter) Close() error { return w.rdb.Close() }

// GetSnapshots fetches the mirrored ticks for a list of symbols (MGET). Missing and
// undecodable entries are skipped.
func GetSnapshots(ctx context.Context, rdb RedisClient, symbols []string) ([]models.PriceTick, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = keyPrefix + sym
	}

	results, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []models.PriceTick
	for _, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			continue
		}
		var tick models.PriceTick
		if err := json.Unmarshal([]byte(payload), &tick); err != nil {
			continue
		}
		snapshots = append(snapshots, tick)
	}
	return snapshots, nil
}
