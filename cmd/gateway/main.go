package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/feed"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/relay"
	"github.com/shubham-shewale/showmarket/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	priceHub := hub.NewHub(cfg.Hub.QueueSize, logger)
	sinks := feed.Sinks{priceHub}

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, mirror will retry per write", zap.Error(err))
		} else if cfg.Redis.WarmStart {
			warmStart(ctx, logger, priceHub, rdb, append(append([]string{}, cfg.Binance.Symbols...), cfg.Ashare.Symbols...))
		}

		redisRelay := relay.New("redis", relay.NewRedisWriter(rdb, cfg.Redis.TTL), cfg.Relay.QueueSize, cfg.Relay.Workers, logger)
		sinks = append(sinks, redisRelay)
		run(redisRelay.Run)
	}

	if cfg.Kafka.Enabled {
		creator := relay.NewTopicCreator(logger, relay.DialKafka(&kafka.Dialer{Timeout: 10 * time.Second}), feed.RealClock{})
		topic := relay.TopicSpec{
			Name:              cfg.Kafka.Topic,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		}
		if err := creator.Ensure(ctx, cfg.Kafka.Brokers, topic); err != nil {
			logger.Error("Kafka topic unavailable, Kafka relay disabled", zap.Error(err))
		} else {
			writer := &kafka.Writer{
				Addr:     kafka.TCP(cfg.Kafka.Brokers...),
				Topic:    cfg.Kafka.Topic,
				Balancer: &kafka.Hash{}, // Same symbol, same partition
				// Send batches to reduce network IO
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				Async:        true,
			}
			kafkaRelay := relay.New("kafka", relay.NewKafkaTickWriter(writer), cfg.Relay.QueueSize, cfg.Relay.Workers, logger)
			sinks = append(sinks, kafkaRelay)
			run(kafkaRelay.Run)
		}
	}

	router := &feed.CandleRouter{}
	var adapters []feed.Adapter

	if cfg.Binance.Enabled {
		binance := feed.NewBinance(cfg.Binance.RestURL, &http.Client{Timeout: cfg.Binance.Timeout}, feed.RealClock{})
		router.Crypto = binance

		switch cfg.Binance.Mode {
		case "stream":
			url, err := feed.BinanceStreamURL(cfg.Binance.StreamURL, cfg.Binance.Symbols)
			if err != nil {
				logger.Fatal("Invalid binance symbols", zap.Error(err))
			}
			dialer := feed.WebsocketDialer{Dialer: &websocket.Dialer{HandshakeTimeout: cfg.Binance.Timeout}}
			opts := feed.StreamerOptions{
				ConnectRetryDelay: cfg.Binance.ConnectRetryDelay,
				ReconnectDelay:    cfg.Binance.ReconnectDelay,
				ReadTimeout:       cfg.Binance.ReadTimeout,
			}
			adapters = append(adapters, feed.NewStreamer("binance", url, dialer, feed.DecodeBinanceTrade, opts, logger))
		default:
			adapters = append(adapters, feed.NewPoller("binance", binance, cfg.Binance.Symbols, cfg.Binance.PollInterval, logger))
		}
	}

	if cfg.Ashare.Enabled {
		eastmoney := feed.NewEastmoney(cfg.Ashare.QuoteURL, cfg.Ashare.KlineURL, &http.Client{Timeout: cfg.Ashare.Timeout}, feed.RealClock{})
		router.Ashare = eastmoney
		adapters = append(adapters, feed.NewPoller("eastmoney", eastmoney, cfg.Ashare.Symbols, cfg.Ashare.PollInterval, logger))
	}

	if cfg.Synthetic.Enabled {
		rnd := feed.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
		adapters = append(adapters, feed.NewSynthetic(logger, cfg.Synthetic.Symbols, nil, cfg.Synthetic.Interval, rnd, feed.RealClock{}))
	}

	for _, a := range adapters {
		logger.Info("Starting feed", zap.String("source", a.Name()))
		run(func(ctx context.Context) { a.Start(ctx, sinks) })
	}

	srv := &http.Server{
		Addr:    cfg.App.Port,
		Handler: gateway.NewServer(priceHub, router, logger).Routes(ctx),
	}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("Shutdown Complete")
}

// warmStart seeds the hub from the Redis mirror so /price answers before the first upstream tick.
func warmStart(ctx context.Context, logger *zap.Logger, h *hub.Hub, rdb relay.RedisClient, symbols []string) {
	ticks, err := relay.GetSnapshots(ctx, rdb, symbols)
	if err != nil {
		logger.Warn("Warm start failed", zap.Error(err))
		return
	}
	for _, tick := range ticks {
		h.Publish(tick)
	}
	logger.Info("Warm start complete", zap.Int("ticks", len(ticks)))
}
