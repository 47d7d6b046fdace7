package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"

	BusKafka = "kafka"
	BusNATS  = "nats"
	BusNone  = "none"
)

type Config struct {
	HTTP     HTTPConfig
	Log      LogConfig
	Store    StoreConfig
	Firebase FirebaseConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Mail     MailConfig
	Stripe   StripeConfig
	Events   EventsConfig
	Breaker  BreakerConfig
	Tracing  TracingConfig
	Feed     FeedConfig
}

type HTTPConfig struct {
	Port            string
	DiagnosticsPort int
	CallTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level string
}

type StoreConfig struct {
	Backend string
}

type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string
}

type MongoConfig struct {
	URI string
	DB  string
}

type PostgresConfig struct {
	DSN string
}

type MailConfig struct {
	SendGridAPIKey string
	FromAddress    string
	FromName       string
}

type StripeConfig struct {
	SecretKey       string
	DefaultCurrency string
}

type EventsConfig struct {
	Bus          string
	KafkaBrokers []string
	NatsURL      string
	Topic        string
}

type BreakerConfig struct {
	MaxFailures int
	Timeout     time.Duration
	MaxRequests int
}

type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string // empty exports spans to stdout
}

type FeedConfig struct {
	Port           string
	GroupID        string
	AllowedOrigins []string
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:            getEnv("PORT", "3000"),
			DiagnosticsPort: getEnvInt("DIAGNOSTICS_PORT", 9090),
			CallTimeout:     getEnvDuration("CALL_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", BackendFirestore)),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", "serviceAccountKey.json"),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		},
		Mongo: MongoConfig{
			URI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DB:  getEnv("MONGO_DB", "storefront"),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", "host=localhost port=5432 user=storefront password=storefront dbname=storefront sslmode=disable"),
		},
		Mail: MailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromAddress:    getEnv("MAIL_FROM_ADDRESS", "yourshop@example.com"),
			FromName:       getEnv("MAIL_FROM_NAME", ""),
		},
		Stripe: StripeConfig{
			SecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			DefaultCurrency: strings.ToLower(getEnv("DEFAULT_CURRENCY", "usd")),
		},
		Events: EventsConfig{
			Bus:          strings.ToLower(getEnv("EVENT_BUS", BusNone)),
			KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			NatsURL:      getEnv("NATS_URL", "nats://localhost:4222"),
			Topic:        getEnv("ORDER_EVENTS_TOPIC", "order.placed"),
		},
		Breaker: BreakerConfig{
			MaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 5),
			Timeout:     getEnvDuration("BREAKER_TIMEOUT", 30*time.Second),
			MaxRequests: getEnvInt("BREAKER_MAX_REQUESTS", 1),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "storefront-api"),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", ""),
		},
		Feed: FeedConfig{
			Port:           getEnv("FEED_PORT", "8085"),
			GroupID:        getEnv("FEED_GROUP_ID", "order-feed"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.HTTP.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch c.Store.Backend {
	case BackendFirestore, BackendMemory:
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.DB == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DB are required for the mongo backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Events.Bus {
	case BusNone:
	case BusKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka event bus")
		}
	case BusNATS:
		if c.Events.NatsURL == "" {
			return fmt.Errorf("NATS_URL is required for the nats event bus")
		}
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.Events.Bus)
	}

	if c.Events.Bus != BusNone && c.Events.Topic == "" {
		return fmt.Errorf("ORDER_EVENTS_TOPIC is required")
	}

	return nil
}

// NewLogger builds the JSON logger every command uses.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
