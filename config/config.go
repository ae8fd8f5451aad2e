package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Payment   PaymentConfig
	Kafka     KafkaConfig
	Scheduler SchedulerConfig
	Mail      MailConfig
	S3        S3Config
	Admin     AdminConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
	LogLevel    string
	LogFormat   string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	GuestCartTTL time.Duration
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type PaymentConfig struct {
	Gateway GatewayConfig
}

type GatewayConfig struct {
	BaseURL          string
	MerchantID       string
	APIKey           string
	Currency         string
	RedirectURL      string // where the buyer lands after paying
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type SchedulerConfig struct {
	ReconcileSpec      string
	PendingPaymentTTL  time.Duration
	OutboxPollInterval time.Duration
}

type MailConfig struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	Timeout   time.Duration // per message, dial to QUIT
	Workers   int
	QueueSize int
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

// AdminConfig is the account created on first start when no admin exists
type AdminConfig struct {
	Email    string
	Password string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", ""),
			LogFormat:   getEnv("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "admin"),
			Password:        getEnv("DB_PASSWORD", "1234"),
			DBName:          getEnv("DB_NAME", "marketplace"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    parseInt(getEnv("DB_MAX_IDLE_CONNS", "10"), 10),
			MaxOpenConns:    parseInt(getEnv("DB_MAX_OPEN_CONNS", "50"), 50),
			ConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		Session: SessionConfig{
			GuestCartTTL: parseDuration(getEnv("GUEST_CART_TTL", "168h"), 7*24*time.Hour),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 7*24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Payment: PaymentConfig{
			Gateway: GatewayConfig{
				BaseURL:          getEnv("PAYMENT_GATEWAY_BASE_URL", "https://payments.dpo.co.ug/v1"),
				MerchantID:       getEnv("PAYMENT_MERCHANT_ID", ""),
				APIKey:           getEnv("PAYMENT_API_KEY", ""),
				Currency:         getEnv("PAYMENT_CURRENCY", "UGX"),
				RedirectURL:      getEnv("PAYMENT_REDIRECT_URL", "http://localhost:8080/api/v1/payments/callback"),
				Timeout:          parseDuration(getEnv("PAYMENT_GATEWAY_TIMEOUT", "30s"), 30*time.Second),
				FailureThreshold: uint32(parseInt(getEnv("PAYMENT_BREAKER_FAILURES", "5"), 5)),
				OpenTimeout:      parseDuration(getEnv("PAYMENT_BREAKER_OPEN_TIMEOUT", "30s"), 30*time.Second),
			},
		},
		Kafka: KafkaConfig{
			Enabled: getEnv("KAFKA_ENABLED", "false") == "true",
			Brokers: parseSlice(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "marketplace-events"),
		},
		Scheduler: SchedulerConfig{
			ReconcileSpec:      getEnv("PAYMENT_RECONCILE_SPEC", "@every 5m"),
			PendingPaymentTTL:  parseDuration(getEnv("PAYMENT_PENDING_TTL", "30m"), 30*time.Minute),
			OutboxPollInterval: parseDuration(getEnv("OUTBOX_POLL_INTERVAL", "5s"), 5*time.Second),
		},
		Mail: MailConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnv("SMTP_PORT", "587"),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			From:      getEnv("MAIL_FROM", "no-reply@marketplace.local"),
			Timeout:   parseDuration(getEnv("SMTP_TIMEOUT", "10s"), 10*time.Second),
			Workers:   parseInt(getEnv("MAIL_WORKERS", "2"), 2),
			QueueSize: parseInt(getEnv("MAIL_QUEUE_SIZE", "100"), 100),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "af-south-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "marketplace-uploads"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@marketplace.local"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
		if config.Server.Environment == "development" {
			config.Server.LogLevel = "debug"
		}
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns host:port for the redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Enabled reports whether SMTP delivery is configured.
func (c *MailConfig) Enabled() bool {
	return c.Host != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
