package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingEnv = errors.New("environment variables not loaded properly")

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string
	AppPort    string
	AppEnv     string
	CORSOrigin string

	// InternalServiceKey lets trusted callers use the internal rate limit tier.
	InternalServiceKey string

	JWTSecret  string
	JWTTTL     time.Duration
	AnonJWTTTL time.Duration

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProductCacheTTL time.Duration

	KafkaBrokers     []string
	KafkaOrdersTopic string

	PaymentSuccessRate float64
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		InternalServiceKey: os.Getenv("INTERNAL_SERVICE_KEY"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTTTL:     getDuration("JWT_TTL", 7*24*time.Hour),
		AnonJWTTTL: getDuration("ANON_JWT_TTL", 24*time.Hour),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getInt("REDIS_DB", 0),
		ProductCacheTTL: getDuration("PRODUCT_CACHE_TTL", 30*time.Second),

		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrdersTopic: getEnv("KAFKA_TOPIC_ORDERS", "storefront.orders"),

		PaymentSuccessRate: getFloat("PAYMENT_SUCCESS_RATE", 0.95),
	}

	if cfg.DBHost == "" || cfg.JWTSecret == "" {
		return nil, ErrMissingEnv
	}
	if cfg.PaymentSuccessRate < 0 || cfg.PaymentSuccessRate > 1 {
		cfg.PaymentSuccessRate = 0.95
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getDuration accepts Go duration strings ("15m", "168h").
func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
