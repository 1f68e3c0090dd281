package config_test

import (
	"testing"
	"time"

	"github.com/shubham-shewale/showmarket/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Hub.QueueSize != 32 {
		t.Errorf("Expected queue size 32, got %d", cfg.Hub.QueueSize)
	}
	if cfg.Binance.ConnectRetryDelay != 5*time.Second {
		t.Errorf("Expected 5s connect retry delay, got %v", cfg.Binance.ConnectRetryDelay)
	}
	if cfg.Binance.ReconnectDelay != 2*time.Second {
		t.Errorf("Expected 2s reconnect delay, got %v", cfg.Binance.ReconnectDelay)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("APP_PORT", ":9999")
	t.Setenv("BINANCE_MODE", "poll")
	t.Setenv("HUB_QUEUE_SIZE", "8")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Port != ":9999" {
		t.Errorf("Expected port :9999, got %s", cfg.App.Port)
	}
	if cfg.Binance.Mode != "poll" {
		t.Errorf("Expected poll mode, got %s", cfg.Binance.Mode)
	}
	if cfg.Hub.QueueSize != 8 {
		t.Errorf("Expected queue size 8, got %d", cfg.Hub.QueueSize)
	}
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	cfg := &config.Config{
		Hub:     config.HubConfig{QueueSize: 1},
		Binance: config.BinanceConfig{Enabled: true, Mode: "carrier-pigeon"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for unknown binance mode")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := config.NewLogger(config.LoggerConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid log level")
	}
}

func TestValidate_RelayWorkers(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Relay.Workers != 4 {
		t.Errorf("Expected 4 relay workers, got %d", cfg.Relay.Workers)
	}

	cfg.Relay.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for zero relay workers")
	}
}

func TestValidate_RejectsNonPositiveIntervals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"binance poll interval", func(cfg *config.Config) {
			cfg.Binance.Mode = "poll"
			cfg.Binance.PollInterval = 0
		}},
		{"binance read timeout", func(cfg *config.Config) {
			cfg.Binance.Mode = "stream"
			cfg.Binance.ReadTimeout = 0
		}},
		{"binance negative reconnect delay", func(cfg *config.Config) {
			cfg.Binance.ReconnectDelay = -time.Second
		}},
		{"ashare poll interval", func(cfg *config.Config) {
			cfg.Ashare.PollInterval = -time.Second
		}},
		{"synthetic interval", func(cfg *config.Config) {
			cfg.Synthetic.Enabled = true
			cfg.Synthetic.Interval = 0
		}},
		{"kafka partitions", func(cfg *config.Config) {
			cfg.Kafka.Enabled = true
			cfg.Kafka.Partitions = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestLoadConfig_ZeroPollIntervalFromEnv(t *testing.T) {
	t.Setenv("BINANCE_MODE", "poll")
	t.Setenv("BINANCE_POLL_INTERVAL", "0s")

	if _, err := config.LoadConfig(); err == nil {
		t.Error("Expected LoadConfig to reject a zero poll interval")
	}
}

func TestValidate_DisabledFeedsSkipIntervalChecks(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.Ashare.Enabled = false
	cfg.Ashare.PollInterval = 0
	cfg.Synthetic.Enabled = false
	cfg.Synthetic.Interval = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled feeds to be ignored, got %v", err)
	}
}
