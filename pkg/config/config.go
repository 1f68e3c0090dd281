package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Hub       HubConfig       `mapstructure:"hub"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Ashare    AshareConfig    `mapstructure:"ashare"`
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"` // "json" or "console"
	Development bool   `mapstructure:"development"`
}

type HubConfig struct {
	// QueueSize is the number of pending ticks kept per subscriber before the oldest are dropped.
	QueueSize int `mapstructure:"queue_size"`
}

type BinanceConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Mode              string        `mapstructure:"mode"` // "stream" or "poll"
	RestURL           string        `mapstructure:"rest_url"`
	StreamURL         string        `mapstructure:"stream_url"`
	Symbols           []string      `mapstructure:"symbols"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	// ReadTimeout is how long a stream may stay silent (no frames, no pings) before reconnecting.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type AshareConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	QuoteURL     string        `mapstructure:"quote_url"`
	KlineURL     string        `mapstructure:"kline_url"`
	Symbols      []string      `mapstructure:"symbols"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SyntheticConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Symbols  []string      `mapstructure:"symbols"`
	Interval time.Duration `mapstructure:"interval"`
}

// RelayConfig sizes the Redis and Kafka mirrors.
type RelayConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	WarmStart bool          `mapstructure:"warm_start"`
}

type KafkaConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "app.port" -> "APP_PORT"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only maps flat env vars onto nested keys it has been told about
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding", "logger.development")
	bindEnv(v, "hub.queue_size")
	bindEnv(v, "binance.enabled", "binance.mode", "binance.rest_url", "binance.stream_url", "binance.symbols",
		"binance.poll_interval", "binance.timeout", "binance.connect_retry_delay", "binance.reconnect_delay", "binance.read_timeout")
	bindEnv(v, "ashare.enabled", "ashare.quote_url", "ashare.kline_url", "ashare.symbols", "ashare.poll_interval", "ashare.timeout")
	bindEnv(v, "synthetic.enabled", "synthetic.symbols", "synthetic.interval")
	bindEnv(v, "relay.queue_size", "relay.workers")
	bindEnv(v, "redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.ttl", "redis.warm_start")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic", "kafka.partitions", "kafka.replication_factor")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.development", false)

	v.SetDefault("hub.queue_size", 32)

	v.SetDefault("binance.enabled", true)
	v.SetDefault("binance.mode", "stream")
	v.SetDefault("binance.rest_url", "https://api.binance.com")
	v.SetDefault("binance.stream_url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("binance.symbols", []string{"BTCUSDT"})
	v.SetDefault("binance.poll_interval", 800*time.Millisecond)
	v.SetDefault("binance.timeout", 5*time.Second)
	v.SetDefault("binance.connect_retry_delay", 5*time.Second)
	v.SetDefault("binance.reconnect_delay", 2*time.Second)
	v.SetDefault("binance.read_timeout", 60*time.Second)

	v.SetDefault("ashare.enabled", true)
	v.SetDefault("ashare.quote_url", "https://push2.eastmoney.com/api/qt/stock/get")
	v.SetDefault("ashare.kline_url", "https://push2his.eastmoney.com/api/qt/stock/kline/get")
	v.SetDefault("ashare.symbols", []string{"000001.SH", "399001.SZ", "399006.SZ"})
	v.SetDefault("ashare.poll_interval", 2*time.Second)
	v.SetDefault("ashare.timeout", 5*time.Second)

	v.SetDefault("synthetic.enabled", false)
	v.SetDefault("synthetic.symbols", []string{"BTCUSDT"})
	v.SetDefault("synthetic.interval", time.Second)

	v.SetDefault("relay.queue_size", 100)
	v.SetDefault("relay.workers", 4)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)
	v.SetDefault("redis.warm_start", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("kafka.replication_factor", 1)
}

// Validate rejects combinations the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Hub.QueueSize <= 0 {
		return fmt.Errorf("hub queue size must be positive, got %d", c.Hub.QueueSize)
	}
	if c.Binance.Enabled {
		switch c.Binance.Mode {
		case "stream":
			if c.Binance.ConnectRetryDelay < 0 || c.Binance.ReconnectDelay < 0 {
				return fmt.Errorf("binance reconnect delays cannot be negative")
			}
			if c.Binance.ReadTimeout <= 0 {
				return fmt.Errorf("binance read timeout must be positive, got %v", c.Binance.ReadTimeout)
			}
		case "poll":
			if c.Binance.PollInterval <= 0 {
				return fmt.Errorf("binance poll interval must be positive, got %v", c.Binance.PollInterval)
			}
		default:
			return fmt.Errorf("binance mode must be \"stream\" or \"poll\", got %q", c.Binance.Mode)
		}
	}
	if c.Ashare.Enabled && c.Ashare.PollInterval <= 0 {
		return fmt.Errorf("ashare poll interval must be positive, got %v", c.Ashare.PollInterval)
	}
	if c.Synthetic.Enabled && c.Synthetic.Interval <= 0 {
		return fmt.Errorf("synthetic interval must be positive, got %v", c.Synthetic.Interval)
	}
	if c.Relay.Workers <= 0 {
		return fmt.Errorf("relay workers must be positive, got %d", c.Relay.Workers)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers cannot be empty")
		}
		if c.Kafka.Partitions <= 0 || c.Kafka.ReplicationFactor <= 0 {
			return fmt.Errorf("kafka partitions and replication factor must be positive")
		}
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
