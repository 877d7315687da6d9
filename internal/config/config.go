package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Dues
	MonthlyFee            int64
	AdminUserID           string
	AllocationMaxAttempts int

	// Pipeline endpoints (manual entry, extraction results)
	PipelineAPIKey string

	// Payment gateway
	PayOSBaseURL     string
	PayOSClientID    string
	PayOSAPIKey      string
	PayOSChecksumKey string
	PaymentReturnURL string
	PaymentCancelURL string

	// Redis lock, disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka, disabled when KafkaBrokers is empty
	KafkaBrokers          []string
	KafkaAllocationsTopic string

	// Jobs
	StaleProcessingAfter time.Duration
	ExtractionQueueSize  int
}

var defaults = map[string]any{
	"PORT":                    "8080",
	"ENV":                     "development",
	"DB_DRIVER":               "postgres",
	"DB_HOST":                 "localhost",
	"DB_PORT":                 "5432",
	"DB_USER":                 "treasurer",
	"DB_PASSWORD":             "treasurer",
	"DB_NAME":                 "treasurer",
	"DB_SSLMODE":              "disable",
	"MONTHLY_FEE":             100000,
	"ADMIN_USER_ID":           "",
	"ALLOCATION_MAX_ATTEMPTS": 3,
	"PIPELINE_API_KEY":        "",
	"PAYOS_BASE_URL":          "https://api-merchant.payos.vn",
	"PAYOS_CLIENT_ID":         "",
	"PAYOS_API_KEY":           "",
	"PAYOS_CHECKSUM_KEY":      "",
	"PAYMENT_RETURN_URL":      "http://localhost:3000?status=success",
	"PAYMENT_CANCEL_URL":      "http://localhost:3000?status=cancelled",
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"KAFKA_BROKERS":           "",
	"KAFKA_TOPIC_ALLOCATIONS": "payment.allocated",
	"STALE_PROCESSING_AFTER":  "10m",
	"EXTRACTION_QUEUE_SIZE":   64,
}

// Load loads configuration from the environment, an optional .env file and an
// optional YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	config := &Config{
		Port: v.GetString("PORT"),
		Env:  v.GetString("ENV"),

		DBDriver:   v.GetString("DB_DRIVER"),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		MonthlyFee:            v.GetInt64("MONTHLY_FEE"),
		AdminUserID:           v.GetString("ADMIN_USER_ID"),
		AllocationMaxAttempts: v.GetInt("ALLOCATION_MAX_ATTEMPTS"),

		PipelineAPIKey: v.GetString("PIPELINE_API_KEY"),

		PayOSBaseURL:     v.GetString("PAYOS_BASE_URL"),
		PayOSClientID:    v.GetString("PAYOS_CLIENT_ID"),
		PayOSAPIKey:      v.GetString("PAYOS_API_KEY"),
		PayOSChecksumKey: v.GetString("PAYOS_CHECKSUM_KEY"),
		PaymentReturnURL: v.GetString("PAYMENT_RETURN_URL"),
		PaymentCancelURL: v.GetString("PAYMENT_CANCEL_URL"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		KafkaBrokers:          splitList(v.GetString("KAFKA_BROKERS")),
		KafkaAllocationsTopic: v.GetString("KAFKA_TOPIC_ALLOCATIONS"),

		ExtractionQueueSize: v.GetInt("EXTRACTION_QUEUE_SIZE"),
	}

	if config.MonthlyFee <= 0 {
		log.Printf("Warning: invalid MONTHLY_FEE %d, falling back to 100000\n", config.MonthlyFee)
		config.MonthlyFee = 100000
	}
	if config.AllocationMaxAttempts <= 0 {
		config.AllocationMaxAttempts = 3
	}
	if config.ExtractionQueueSize <= 0 {
		config.ExtractionQueueSize = 64
	}

	staleStr := v.GetString("STALE_PROCESSING_AFTER")
	stale, err := time.ParseDuration(staleStr)
	if err != nil || stale <= 0 {
		log.Printf("Warning: invalid STALE_PROCESSING_AFTER value '%s', falling back to 10m\n", staleStr)
		stale = 10 * time.Minute
	}
	config.StaleProcessingAfter = stale

	return config
}

// splitList splits a comma separated value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
