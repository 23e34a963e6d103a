package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "parkcard/backend/libs/config"
)

const (
	defaultPort           = "8085"
	defaultDriver         = DriverPostgres
	defaultTxTimeout      = 5
	defaultJWTExpiryHours = 168
	defaultRequestsPerMin = 120
	defaultBurst          = 30
	defaultCacheTTL       = 12 * time.Hour
	defaultBcryptCost     = 10
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// HTTP configures the listener.
type HTTP struct {
	Port            string        `yaml:"port" env:"PARKING_HTTP_PORT"`
	CORSOrigins     []string      `yaml:"corsOrigins" env:"PARKING_CORS_ORIGINS"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"PARKING_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"PARKING_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"PARKING_HTTP_SHUTDOWN_TIMEOUT"`
}

// Database configures the store.
type Database struct {
	Driver           string `yaml:"driver" env:"PARKING_DB_DRIVER"`
	DSN              string `yaml:"dsn" env:"PARKING_POSTGRES_DSN"`
	AutoMigrate      bool   `yaml:"autoMigrate" env:"PARKING_DB_AUTO_MIGRATE"`
	TxTimeoutSeconds int    `yaml:"txTimeoutSeconds" env:"PARKING_DB_TX_TIMEOUT_SECONDS"`
	MaxOpenConns     int    `yaml:"maxOpenConns" env:"PARKING_DB_MAX_OPEN_CONNS"`
}

// Redis configures the active session cache. An empty address disables it.
type Redis struct {
	Addr     string        `yaml:"addr" env:"PARKING_REDIS_ADDR"`
	Password string        `yaml:"password" env:"PARKING_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"PARKING_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"PARKING_REDIS_TTL"`
}

// NATS configures the optional event bus. An empty URL disables it.
type NATS struct {
	URL     string `yaml:"url" env:"PARKING_NATS_URL"`
	Token   string `yaml:"token" env:"PARKING_NATS_TOKEN"`
	Subject string `yaml:"subject" env:"PARKING_NATS_SUBJECT"`
}

// JWT configures token signing.
type JWT struct {
	Secret         string `yaml:"secret" env:"PARKING_JWT_SECRET"`
	ExpiresInHours int    `yaml:"expiresInHours" env:"PARKING_JWT_EXPIRES_IN_HOURS"`
	BcryptCost     int    `yaml:"bcryptCost" env:"PARKING_BCRYPT_COST"`
}

// Fees overrides the tariff.
type Fees struct {
	MotorbikeFlat int64 `yaml:"motorbikeFlat" env:"PARKING_FEE_MOTORBIKE_FLAT"`
	CarHourly     int64 `yaml:"carHourly" env:"PARKING_FEE_CAR_HOURLY"`
}

// RateLimit bounds requests per client IP.
type RateLimit struct {
	RequestsPerMinute int `yaml:"requestsPerMinute" env:"PARKING_RATE_LIMIT_RPM"`
	Burst             int `yaml:"burst" env:"PARKING_RATE_LIMIT_BURST"`
}

// WebSocket tunes the event feed.
type WebSocket struct {
	PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"PARKING_WS_PING_INTERVAL_SECONDS"`
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"PARKING_WS_WRITE_TIMEOUT_SECONDS"`
}

// Admin bootstraps the first administrator on startup. Empty values skip it.
type Admin struct {
	Name     string `yaml:"name" env:"PARKING_ADMIN_NAME"`
	Email    string `yaml:"email" env:"PARKING_ADMIN_EMAIL"`
	Password string `yaml:"password" env:"PARKING_ADMIN_PASSWORD"`
}

// Config defines parking service configuration.
type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	NATS      NATS      `yaml:"nats"`
	JWT       JWT       `yaml:"jwt"`
	Fees      Fees      `yaml:"fees"`
	RateLimit RateLimit `yaml:"rateLimit"`
	WebSocket WebSocket `yaml:"websocket"`
	Admin     Admin     `yaml:"admin"`
}

// Load configuration from file/env.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.HTTP.Port) == "" {
		c.HTTP.Port = defaultPort
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}
	if c.Database.TxTimeoutSeconds <= 0 {
		c.Database.TxTimeoutSeconds = defaultTxTimeout
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = defaultCacheTTL
	}
	if c.JWT.ExpiresInHours <= 0 {
		c.JWT.ExpiresInHours = defaultJWTExpiryHours
	}
	if c.JWT.BcryptCost <= 0 {
		c.JWT.BcryptCost = defaultBcryptCost
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = defaultRequestsPerMin
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultBurst
	}
}

// Validate checks required settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Fees.MotorbikeFlat < 0 || c.Fees.CarHourly < 0 {
		return errors.New("config: fees must not be negative")
	}
	return nil
}

// HTTPAddress returns :port style string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// WSPingInterval returns the WebSocket keepalive interval.
func (c *Config) WSPingInterval() time.Duration {
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WSWriteTimeout returns the WebSocket write deadline.
func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}

// TxTimeout returns the unit of work timeout.
func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.Database.TxTimeoutSeconds) * time.Second
}

// TokenTTL returns the JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpiresInHours) * time.Hour
}
