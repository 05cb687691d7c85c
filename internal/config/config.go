package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Event sinks.
const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkKafka = "kafka"
	SinkNATS  = "nats"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	NATS        NATSConfig
	Events      EventsConfig
	JWT         JWTConfig
	Admin       AdminConfig
	Cache       CacheConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type StorageConfig struct {
	Driver   string
	BoltPath string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	Stream       string
	StreamMaxLen int64
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

type EventsConfig struct {
	Sinks         []string
	RelayInterval time.Duration
	BatchSize     int
	ProbeInterval time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

// AdminConfig names the identity the admin capability is minted for at
// startup. An empty Identity leaves the ledger without an admin.
type AdminConfig struct {
	Identity   string
	BcryptCost int
}

type CacheConfig struct {
	MaxCost int64
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskledger"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Storage: StorageConfig{
			Driver:   strings.ToLower(getString("STORAGE_DRIVER", DriverMemory)),
			BoltPath: getString("BOLTDB_PATH", "./data/ledger.db"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskledger"),
			User:            getString("DB_USER", "taskledger"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:          getString("REDIS_URL", "redis://localhost:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           getInt("REDIS_DB", 0),
			Stream:       getString("REDIS_EVENT_STREAM", "ledger:events"),
			StreamMaxLen: int64(getInt("REDIS_EVENT_STREAM_MAXLEN", 100_000)),
		},
		Kafka: KafkaConfig{
			Brokers: getString("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getString("KAFKA_TOPIC", "ledger-events"),
		},
		NATS: NATSConfig{
			URL:           getString("NATS_URL", "nats://localhost:4222"),
			Stream:        getString("NATS_STREAM", "LEDGER"),
			SubjectPrefix: getString("NATS_SUBJECT_PREFIX", "ledger"),
		},
		Events: EventsConfig{
			Sinks:         getList("EVENT_SINKS", []string{SinkLog}),
			RelayInterval: getDuration("EVENT_RELAY_INTERVAL", 5*time.Second),
			BatchSize:     getInt("EVENT_RELAY_BATCH", 100),
			ProbeInterval: getDuration("HEALTH_PROBE_INTERVAL", 10*time.Second),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: os.Getenv("JWT_ISSUER"),
		},
		Admin: AdminConfig{
			Identity:   os.Getenv("ADMIN_IDENTITY"),
			BcryptCost: getInt("ADMIN_BCRYPT_COST", 0),
		},
		Cache: CacheConfig{
			MaxCost: int64(getInt("TASK_CACHE_MAX_COST", 1<<20)),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverBolt, DriverPostgres:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	for _, sink := range c.Events.Sinks {
		switch sink {
		case SinkLog, SinkRedis, SinkKafka, SinkNATS:
		default:
			return fmt.Errorf("config: unknown event sink %q", sink)
		}
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	return nil
}

// HasSink reports whether name is listed in EVENT_SINKS.
func (c *Config) HasSink(name string) bool {
	for _, sink := range c.Events.Sinks {
		if sink == name {
			return true
		}
	}
	return false
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getList splits a comma separated value, lower-cased and trimmed.
func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
