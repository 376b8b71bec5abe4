package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	HTTP       ServerConfig
	MySQL      MySQLConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Log        LogConfig
	Gateway    GatewayConfig
	Webhook    WebhookConfig
	Conversion ConversionConfig
	Poller     PollerConfig
	Jobs       JobsConfig
}

type AppConfig struct {
	ServiceName string
	MockMode    bool
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	StatusTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LogConfig struct {
	Level string
}

type GatewayConfig struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	HTTPTimeout time.Duration
	PixExpiry   time.Duration
}

type WebhookConfig struct {
	Secret           string
	SignatureHeaders []string
}

type ConversionConfig struct {
	URL         string
	APIToken    string
	MaxAttempts int
	HTTPTimeout time.Duration
}

type PollerConfig struct {
	Interval   time.Duration
	MaxBackoff time.Duration
}

type JobsConfig struct {
	ExpireGrace         time.Duration
	ExpireInterval      time.Duration
	ReconcileStaleAfter time.Duration
	ReconcileInterval   time.Duration
	BatchSize           int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "pix-service"),
			MockMode:    getBoolEnv("PIX_MOCK_MODE", false),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			StatusTTL: getSecondsEnv("PIX_STATUS_CACHE_TTL_SECONDS", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_PAYMENTS_TOPIC", "pix.payments"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Gateway: GatewayConfig{
			BaseURL:     getEnv("PIX_GATEWAY_BASE_URL", "https://api.pix-gateway.com.br"),
			APIKey:      getEnv("PIX_GATEWAY_API_KEY", ""),
			APISecret:   getEnv("PIX_GATEWAY_API_SECRET", ""),
			HTTPTimeout: getSecondsEnv("PIX_GATEWAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			PixExpiry:   getMinutesEnv("PIX_QR_EXPIRY_MINUTES", 30*time.Minute),
		},
		Webhook: WebhookConfig{
			Secret:           getEnv("PIX_WEBHOOK_SECRET", ""),
			SignatureHeaders: splitCSV(getEnv("PIX_WEBHOOK_SIGNATURE_HEADERS", "X-Signature,X-Webhook-Signature,X-Hub-Signature-256")),
		},
		Conversion: ConversionConfig{
			URL:         getEnv("CONVERSION_REPORT_URL", ""),
			APIToken:    getEnv("CONVERSION_REPORT_API_TOKEN", ""),
			MaxAttempts: getIntEnv("CONVERSION_REPORT_MAX_ATTEMPTS", 3),
			HTTPTimeout: getSecondsEnv("CONVERSION_REPORT_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Poller: PollerConfig{
			Interval:   getSecondsEnv("PIX_POLL_INTERVAL_SECONDS", 3*time.Second),
			MaxBackoff: getSecondsEnv("PIX_POLL_MAX_BACKOFF_SECONDS", 30*time.Second),
		},
		Jobs: JobsConfig{
			ExpireGrace:         getMinutesEnv("PIX_EXPIRE_GRACE_MINUTES", 5*time.Minute),
			ExpireInterval:      getMinutesEnv("PIX_EXPIRE_INTERVAL_MINUTES", 5*time.Minute),
			ReconcileStaleAfter: getMinutesEnv("PIX_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			ReconcileInterval:   getMinutesEnv("PIX_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			BatchSize:           int32(getIntEnv("PIX_JOB_BATCH_SIZE", 100)),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
