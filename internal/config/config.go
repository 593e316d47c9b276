// Package config loads application configuration from environment
// variables.  A .env file, when present, is read by the entrypoints
// before Load is called.
package config

import (
	"os"

	"github.com/labstack/gommon/log"
)

const defaultEventQueue = "booking.events"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env           string // APP_ENV (dev, test, prod)
	Port          string // APP_PORT
	DBDriver      string // DB_DRIVER: mysql (default) or sqlite
	DBUser        string // DB_USER, mysql only
	DBPass        string // DB_PASS, may be empty
	DBHost        string // DB_HOST, mysql only
	DBPort        string // DB_PORT, mysql only
	DBName        string // DB_NAME, mysql only
	DBPath        string // DB_PATH, sqlite only
	JWTSecret     string // JWT_SECRET
	RabbitURL     string // RABBITMQ_URL, empty disables booking events
	EventQueue    string // BOOKING_EVENT_QUEUE
}

// ConsumerConfig configures cmd/booking-consumer.
type ConsumerConfig struct {
	RabbitURL     string // RABBITMQ_URL, required
	EventQueue    string // BOOKING_EVENT_QUEUE
	BookingLogDir string // BOOKING_LOG_DIR, directory holding booking.log
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and missing values cause the program
// to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:           getenv("APP_ENV", "dev"),
		Port:          must("APP_PORT"),
		DBDriver:      getenv("DB_DRIVER", "mysql"),
		DBPass:        os.Getenv("DB_PASS"),
		JWTSecret:     must("JWT_SECRET"),
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		EventQueue:    getenv("BOOKING_EVENT_QUEUE", defaultEventQueue),
	}
	switch cfg.DBDriver {
	case "sqlite":
		cfg.DBPath = getenv("DB_PATH", "railway.db")
	default:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// LoadConsumer reads the booking consumer's configuration.  Unlike the
// server, the consumer cannot run without a broker.
func LoadConsumer() ConsumerConfig {
	return ConsumerConfig{
		RabbitURL:     must("RABBITMQ_URL"),
		EventQueue:    getenv("BOOKING_EVENT_QUEUE", defaultEventQueue),
		BookingLogDir: getenv("BOOKING_LOG_DIR", "logs"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
