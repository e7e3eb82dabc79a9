package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Data    DataConfig
	Alert   AlertConfig
	Notify  NotifyConfig
	Server  ServerConfig
	Worker  WorkerConfig
	Logging LoggingConfig
}

type DataConfig struct {
	HomeCSV      string
	MasterCSV    string
	LatestCSV    string
	MapHTML      string
	AlertState   string
	LedgerDB     string
	InboxDir     string
	ProcessedDir string
}

type AlertConfig struct {
	ThresholdM float64
}

type NotifyConfig struct {
	Enabled  bool
	SMTPAddr string
	From     string
	To       string
}

type ServerConfig struct {
	Host            string
	Port            int
	RateLimitRPS    int
	ShutdownTimeout time.Duration
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Data: DataConfig{
			HomeCSV:      getEnv("HOME_CSV_PATH", "./data/home_positions.csv"),
			MasterCSV:    getEnv("MASTER_CSV_PATH", "./data/drifters.csv"),
			LatestCSV:    getEnv("LATEST_CSV_PATH", "./data/latest_positions.csv"),
			MapHTML:      getEnv("MAP_HTML_PATH", "./data/drifters_map.html"),
			AlertState:   getEnv("ALERT_STATE_PATH", "./data/alerted.json"),
			LedgerDB:     getEnv("LEDGER_DB_PATH", "./data/batch-ledger.db"),
			InboxDir:     getEnv("INBOX_DIR", "./data/inbox"),
			ProcessedDir: getEnv("PROCESSED_DIR", "./data/processed"),
		},
		Alert: AlertConfig{
			ThresholdM: getEnvFloat("ALERT_THRESHOLD_M", 50.0),
		},
		Notify: NotifyConfig{
			Enabled:  getEnvBool("NOTIFY_ENABLED", false),
			SMTPAddr: getEnv("NOTIFY_SMTP_ADDR", "localhost:25"),
			From:     getEnv("NOTIFY_FROM", "driftwatch@localhost"),
			To:       getEnv("NOTIFY_TO", ""),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:    getEnvInt("SERVER_RATE_LIMIT_RPS", 5),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 rps, got %d", c.Server.RateLimitRPS)
	}
	if c.Alert.ThresholdM <= 0 {
		return fmt.Errorf("alert threshold must be positive, got %f", c.Alert.ThresholdM)
	}
	if c.Notify.Enabled && c.Notify.To == "" {
		return fmt.Errorf("NOTIFY_TO is required when notifications are enabled")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Worker.Count)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
