package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	PurpleAir struct {
		BaseURL string
		APIKey  string
	}
	Pipeline struct {
		SpikeThreshold float64
		RadiusMeters   float64
		PollInterval   time.Duration
		Timezone       string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Telegram struct {
		BotToken string
	}
	Contacts struct {
		BaseURL string
		Token   string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Telemetry API settings
	cfg.PurpleAir.BaseURL = os.Getenv("PURPLEAIR_API_URL")
	cfg.PurpleAir.APIKey = os.Getenv("PURPLEAIR_API_KEY")

	// Pipeline settings. Presence decides defaulting, not the zero
	// value: an explicit SPIKE_THRESHOLD=0 means "every clean reading
	// spikes" and must not turn into the default.
	cfg.Pipeline.SpikeThreshold = 35.0
	if raw, ok := os.LookupEnv("SPIKE_THRESHOLD"); ok && raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SPIKE_THRESHOLD %q: %w", raw, err)
		}
		cfg.Pipeline.SpikeThreshold = v
	}
	cfg.Pipeline.RadiusMeters = 1000
	if raw, ok := os.LookupEnv("ALERT_RADIUS_METERS"); ok && raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ALERT_RADIUS_METERS %q: %w", raw, err)
		}
		cfg.Pipeline.RadiusMeters = v
	}
	cfg.Pipeline.PollInterval = 10 * time.Minute
	if raw, ok := os.LookupEnv("POLL_INTERVAL"); ok && raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil || v <= 0 {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL %q", raw)
		}
		cfg.Pipeline.PollInterval = v
	}
	cfg.Pipeline.Timezone = os.Getenv("TIMEZONE")

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Twilio settings
	cfg.SMS.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")

	// Telegram settings
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	// Contact lookup settings
	cfg.Contacts.BaseURL = os.Getenv("CONTACTS_API_URL")
	cfg.Contacts.Token = os.Getenv("CONTACTS_API_TOKEN")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.PurpleAir.APIKey == "" {
		missing = append(missing, "PURPLEAIR_API_KEY")
	}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.SMS.AccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if cfg.SMS.AuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if cfg.SMS.FromNumber == "" {
		missing = append(missing, "TWILIO_FROM_NUMBER")
	}
	if cfg.Contacts.BaseURL == "" {
		missing = append(missing, "CONTACTS_API_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.PurpleAir.BaseURL == "" {
		cfg.PurpleAir.BaseURL = "https://api.purpleair.com"
	}
	if cfg.Pipeline.Timezone == "" {
		cfg.Pipeline.Timezone = "America/Chicago"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "alert_closed"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "airalert-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
