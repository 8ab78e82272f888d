package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Gateway    GatewayConfig
	GuestStore GuestStoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	Migration  MigrationConfig
	Notify     NotifyConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
	Profiling  ProfilingConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// GatewayConfig holds the backend REST API settings
type GatewayConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxResponseSize int64
}

// GuestStoreConfig selects and tunes the persistent guest store
type GuestStoreConfig struct {
	Driver                string        // memory, redis, sqlite, postgres
	TTL                   time.Duration // how long a guest snapshot survives without writes
	KeyPrefix             string
	SQLitePath            string
	AllowInMemoryFallback bool
}

// DatabaseConfig holds postgres connection settings for the SQL guest store
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig holds storefront session settings
type SessionConfig struct {
	CookieName   string
	CookieDomain string
	CookieSecure bool
	CookieMaxAge time.Duration
	IdleTimeout  time.Duration // storefronts idle longer than this are evicted from memory
	SweepEvery   time.Duration
}

// MigrationConfig paces the guest-to-account replay
type MigrationConfig struct {
	RatePerSecond float64
	Burst         int
}

// NotifyConfig holds toast notification settings
type NotifyConfig struct {
	Language string // ar, en
	Capacity int    // max pending notifications per session
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	// Mutex and block profiles are collected only when their rate is positive
	MutexProfileFraction int
	BlockProfileRate     int
	SpanProfiles         bool // link CPU profiles to trace spans
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g., STOREFRONT_GATEWAY_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Gateway: GatewayConfig{
			BaseURL:         v.GetString("gateway.base_url"),
			Timeout:         v.GetDuration("gateway.timeout"),
			MaxResponseSize: v.GetInt64("gateway.max_response_size"),
		},
		GuestStore: GuestStoreConfig{
			Driver:                v.GetString("guest_store.driver"),
			TTL:                   v.GetDuration("guest_store.ttl"),
			KeyPrefix:             v.GetString("guest_store.key_prefix"),
			SQLitePath:            v.GetString("guest_store.sqlite_path"),
			AllowInMemoryFallback: v.GetBool("guest_store.allow_in_memory_fallback"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Session: SessionConfig{
			CookieName:   v.GetString("session.cookie_name"),
			CookieDomain: v.GetString("session.cookie_domain"),
			CookieSecure: v.GetBool("session.cookie_secure"),
			CookieMaxAge: v.GetDuration("session.cookie_max_age"),
			IdleTimeout:  v.GetDuration("session.idle_timeout"),
			SweepEvery:   v.GetDuration("session.sweep_every"),
		},
		Migration: MigrationConfig{
			RatePerSecond: v.GetFloat64("migration.rate_per_second"),
			Burst:         v.GetInt("migration.burst"),
		},
		Notify: NotifyConfig{
			Language: v.GetString("notify.language"),
			Capacity: v.GetInt("notify.capacity"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
		Profiling: ProfilingConfig{
			Enabled:              v.GetBool("profiling.enabled"),
			ServerAddress:        v.GetString("profiling.server_address"),
			ApplicationName:      v.GetString("profiling.application_name"),
			BasicAuthUser:        v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword:    v.GetString("profiling.basic_auth_password"),
			MutexProfileFraction: v.GetInt("profiling.mutex_profile_fraction"),
			BlockProfileRate:     v.GetInt("profiling.block_profile_rate"),
			SpanProfiles:         v.GetBool("profiling.span_profiles"),
		},
	}

	// In-memory fallback is on unless explicitly disabled
	if !v.IsSet("guest_store.allow_in_memory_fallback") {
		cfg.GuestStore.AllowInMemoryFallback = true
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "http://localhost:5000/api"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 10 * time.Second
	}
	if cfg.Gateway.MaxResponseSize == 0 {
		cfg.Gateway.MaxResponseSize = 10 << 20 // 10MB
	}
	if cfg.GuestStore.Driver == "" {
		cfg.GuestStore.Driver = "memory"
	}
	if cfg.GuestStore.TTL == 0 {
		cfg.GuestStore.TTL = 30 * 24 * time.Hour
	}
	if cfg.GuestStore.KeyPrefix == "" {
		cfg.GuestStore.KeyPrefix = "storefront:guest:"
	}
	if cfg.GuestStore.SQLitePath == "" {
		cfg.GuestStore.SQLitePath = "guest_store.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storefront"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "sf_session"
	}
	if cfg.Session.CookieMaxAge == 0 {
		cfg.Session.CookieMaxAge = 30 * 24 * time.Hour
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 30 * time.Minute
	}
	if cfg.Session.SweepEvery == 0 {
		cfg.Session.SweepEvery = time.Minute
	}
	if cfg.Migration.RatePerSecond == 0 {
		cfg.Migration.RatePerSecond = 20
	}
	if cfg.Migration.Burst == 0 {
		cfg.Migration.Burst = 5
	}
	if cfg.Notify.Language == "" {
		cfg.Notify.Language = "ar"
	}
	if cfg.Notify.Capacity == 0 {
		cfg.Notify.Capacity = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	// CORS origins have no fallback: an empty list rejects cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Accept-Language"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storefront"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Profiling.ServerAddress == "" {
		cfg.Profiling.ServerAddress = "http://localhost:4040"
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.Telemetry.ServiceName
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.GuestStore.Driver {
	case "memory", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("guest_store.driver must be one of memory, redis, sqlite, postgres; got %q", c.GuestStore.Driver)
	}

	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gateway.base_url must be an absolute URL, got %q", c.Gateway.BaseURL)
	}

	if c.Notify.Language != "ar" && c.Notify.Language != "en" {
		return fmt.Errorf("notify.language must be ar or en, got %q", c.Notify.Language)
	}

	if c.Profiling.Enabled {
		pu, err := url.Parse(c.Profiling.ServerAddress)
		if err != nil || pu.Scheme == "" || pu.Host == "" {
			return fmt.Errorf("profiling.server_address must be an absolute URL, got %q", c.Profiling.ServerAddress)
		}
	}

	if c.Migration.RatePerSecond < 0 {
		return fmt.Errorf("migration.rate_per_second cannot be negative")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if u.Scheme != "https" {
			return fmt.Errorf("gateway.base_url must use https in production")
		}
		if !c.Session.CookieSecure {
			return fmt.Errorf("session.cookie_secure must be true in production")
		}
		if c.GuestStore.Driver == "memory" {
			return fmt.Errorf("guest_store.driver cannot be memory in production (guest carts would not survive restarts)")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
