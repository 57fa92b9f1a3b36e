package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the application configuration
type AppConfig struct {
	Env         string
	Port        string
	LogLevel    string
	DBURL       string
	RedisURL    string
	BearerToken string

	// SymmetricKey decrypts session tokens. It must be 32 bytes long.
	SymmetricKey string

	BackendURL     string
	BackendToken   string
	BackendTimeout time.Duration

	BookingFee           float64
	Currency             string
	GatewayTimeout       time.Duration
	RazorpayKeySecret    string
	RescheduleWindowDays int
	DefaultTimeSlots     []string
	DirectoryCacheTTL    time.Duration
	SweepInterval        time.Duration

	SMTP     SMTPConfig
	RabbitMQ RabbitMQConfig
	Minio    MinioConfig

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether notification emails can be sent.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// GetBearerToken returns the BearerToken from the config
func (c *AppConfig) GetBearerToken() string {
	return c.BearerToken
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	required := map[string]string{}
	for _, name := range []string{"DB_URL", "REDIS_URL", "BEARER_TOKEN", "SYMMETRIC_KEY", "BACKEND_URL"} {
		value := os.Getenv(name)
		if value == "" {
			return nil, fmt.Errorf("missing %s environment variable", name)
		}
		required[name] = value
	}
	if len(required["SYMMETRIC_KEY"]) != 32 {
		return nil, fmt.Errorf("SYMMETRIC_KEY must be 32 bytes long, got %d", len(required["SYMMETRIC_KEY"]))
	}

	return &AppConfig{
		Env:          getEnv("ENV", "production"),
		Port:         getEnv("PORT", "8930"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DBURL:        required["DB_URL"],
		RedisURL:     required["REDIS_URL"],
		BearerToken:  required["BEARER_TOKEN"],
		SymmetricKey: required["SYMMETRIC_KEY"],

		BackendURL:     strings.TrimRight(required["BACKEND_URL"], "/"),
		BackendToken:   os.Getenv("BACKEND_TOKEN"),
		BackendTimeout: GetEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),

		BookingFee:           GetEnvAsFloat("BOOKING_FEE", 100),
		Currency:             getEnv("CURRENCY", "INR"),
		GatewayTimeout:       GetEnvAsDuration("GATEWAY_TIMEOUT", 15*time.Minute),
		RazorpayKeySecret:    os.Getenv("RAZORPAY_KEY_SECRET"),
		RescheduleWindowDays: GetEnvAsInt("RESCHEDULE_WINDOW_DAYS", 7),
		DefaultTimeSlots: getEnvAsList("DEFAULT_TIME_SLOTS", []string{
			"10:00-11:00", "11:00-12:00", "12:00-13:00", "14:00-15:00", "15:00-16:00", "16:00-17:00",
		}),
		DirectoryCacheTTL: GetEnvAsDuration("DIRECTORY_CACHE_TTL", 10*time.Minute),
		SweepInterval:     GetEnvAsDuration("SWEEP_INTERVAL", time.Minute),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     GetEnvAsInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     getEnv("SMTP_FROM", os.Getenv("SMTP_USER")),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "caredesk.appointments"),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "prescription-reports"),
			UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		},

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:   GetEnvAsFloat("RATE_LIMIT_RPS", 15),
		RateLimitBurst: GetEnvAsInt("RATE_LIMIT_BURST", 30),
	}, nil
}

func getEnv(name, defaultValue string) string {
	if value, exists := os.LookupEnv(name); exists && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the integer value of name, or defaultValue when unset or invalid.
func GetEnvAsInt(name string, defaultValue int) int {
	if value, exists := os.LookupEnv(name); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: Invalid integer value for %s, using default: %d", name, defaultValue)
	}
	return defaultValue
}

func GetEnvAsFloat(name string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(name); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Printf("Warning: Invalid number value for %s, using default: %v", name, defaultValue)
	}
	return defaultValue
}

// GetEnvAsDuration returns the duration value of name, or defaultValue when unset or invalid.
func GetEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(name); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
		log.Printf("Warning: Invalid duration value for %s, using default: %s", name, defaultValue.String())
	}
	return defaultValue
}

func getEnvAsList(name string, defaultValue []string) []string {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
