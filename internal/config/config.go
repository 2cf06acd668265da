package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	JWT       JWTConfig
	IMS       IMSConfig
	Kafka     KafkaConfig
	Otel      OtelConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogFile        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	Schema       string
	MaxOpenConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type JWTConfig struct {
	Secret string
}

// IMSConfig describes the counterpart inventory system and the retry policy
// applied to every order transition notification.
type IMSConfig struct {
	BaseURL        string
	ConfirmPath    string
	ToShipPath     string
	ShipPath       string
	MaxAttempts    int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type OtelConfig struct {
	Endpoint    string
	ServiceName string
}

// IsDevelopment reports whether the server runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_FILE", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("IMS_BASE_URL", "http://127.0.0.1:8000")
	viper.SetDefault("IMS_CONFIRM_PATH", "/ims/orders/confirm")
	viper.SetDefault("IMS_TOSHIP_PATH", "/ims/orders/ToShip")
	viper.SetDefault("IMS_SHIP_PATH", "/ims/variants/receive")
	viper.SetDefault("IMS_MAX_ATTEMPTS", 3)
	viper.SetDefault("IMS_RETRY_DELAY_SECONDS", 2)
	viper.SetDefault("IMS_ATTEMPT_TIMEOUT_SECONDS", 10)
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_ORDER_EVENTS_TOPIC", "vms.order-status")
	viper.SetDefault("OTEL_EXPORTER_ENDPOINT", "")
	viper.SetDefault("OTEL_SERVICE_NAME", "vms-inventory")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogFile:        viper.GetString("LOG_FILE"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:         viper.GetString("DB_HOST"),
			Port:         viper.GetString("DB_PORT"),
			User:         viper.GetString("DB_USER"),
			Password:     viper.GetString("DB_PASSWORD"),
			Database:     viper.GetString("DB_DATABASE"),
			Schema:       viper.GetString("DB_SCHEMA"),
			MaxOpenConns: viper.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		IMS: IMSConfig{
			BaseURL:        viper.GetString("IMS_BASE_URL"),
			ConfirmPath:    viper.GetString("IMS_CONFIRM_PATH"),
			ToShipPath:     viper.GetString("IMS_TOSHIP_PATH"),
			ShipPath:       viper.GetString("IMS_SHIP_PATH"),
			MaxAttempts:    viper.GetInt("IMS_MAX_ATTEMPTS"),
			RetryDelay:     time.Duration(viper.GetInt("IMS_RETRY_DELAY_SECONDS")) * time.Second,
			AttemptTimeout: time.Duration(viper.GetInt("IMS_ATTEMPT_TIMEOUT_SECONDS")) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_ORDER_EVENTS_TOPIC"),
		},
		Otel: OtelConfig{
			Endpoint:    viper.GetString("OTEL_EXPORTER_ENDPOINT"),
			ServiceName: viper.GetString("OTEL_SERVICE_NAME"),
		},
	}
}

// splitList parses a comma separated env value, dropping empty entries
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
