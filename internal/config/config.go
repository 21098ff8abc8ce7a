// Package config собирает настройки сервера: значения по умолчанию,
// затем YAML файл, затем переменные окружения, затем флаги командной строки.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Небезопасные значения секретов по умолчанию.
// Сервер пишет предупреждение, если они не переопределены
const (
	InsecureJWTSecret     = "your-secret-key-change-this"
	InsecureSessionSecret = "mooday-secure-session-secret"
)

// Допустимые значения backend'ов
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// ConfigEnv - переменная окружения с путем к YAML файлу
const ConfigEnv = "MOODAY_CONFIG"

// Config - настройки сервера
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`

	// ShowVersion - флаг -version, только из командной строки
	ShowVersion bool `yaml:"-"`
}

// ServerConfig - HTTP сервер
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// TrustProxyHops - число reverse proxy перед сервером,
	// которым доверяем X-Forwarded-For
	TrustProxyHops  int           `yaml:"trust_proxy_hops"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	CookieSecure    bool          `yaml:"cookie_secure"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig - секреты и хеширование паролей
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	SessionSecret  string `yaml:"session_secret"`
	PasswordHasher string `yaml:"password_hasher"`
	BcryptCost     int    `yaml:"bcrypt_cost"`
}

// DatabaseConfig - хранилище учетных записей
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig - подключение к Redis для сессий и лимитера
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SessionConfig - хранилище сессий с ответами капчи
type SessionConfig struct {
	Backend  string `yaml:"backend"`
	BoltPath string `yaml:"bolt_path"`
}

// RateLimitConfig - лимит выдачи капчи
type RateLimitConfig struct {
	Backend       string        `yaml:"backend"`
	Limit         int           `yaml:"limit"`
	Window        time.Duration `yaml:"window"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// LogConfig - логирование
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			TrustProxyHops:  1,
			CORSOrigins:     []string{"*"},
			CookieSecure:    true,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:      InsecureJWTSecret,
			SessionSecret:  InsecureSessionSecret,
			PasswordHasher: "bcrypt",
			BcryptCost:     10,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "mooday.db",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "mooday",
		},
		Session: SessionConfig{
			Backend:  BackendMemory,
			BoltPath: "sessions.db",
		},
		RateLimit: RateLimitConfig{
			Backend:       BackendMemory,
			Limit:         30,
			Window:        time.Minute,
			SweepSchedule: "@every 5m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load строит конфигурацию из аргументов командной строки (без имени программы)
// и окружения. getenv обычно os.Getenv
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("mooday-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	addr := fs.String("addr", "", "HTTP listen address, e.g. :3000")
	dbDriver := fs.String("db-driver", "", "credential store driver: sqlite or postgres")
	dbDSN := fs.String("db-dsn", "", "credential store DSN or SQLite file path")
	sessionBackend := fs.String("session-backend", "", "session store: memory, redis or bolt")
	rateLimitBackend := fs.String("rate-limit-backend", "", "rate limiter: memory or redis")
	redisAddr := fs.String("redis-addr", "", "Redis address")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "log format: json or text")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := *configPath
	if path == "" {
		path = getenv(ConfigEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	// Флаги переопределяют все остальное, но только явно заданные
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "db-driver":
			cfg.Database.Driver = *dbDriver
		case "db-dsn":
			cfg.Database.DSN = *dbDSN
		case "session-backend":
			cfg.Session.Backend = *sessionBackend
		case "rate-limit-backend":
			cfg.RateLimit.Backend = *rateLimitBackend
		case "redis-addr":
			cfg.Redis.Addr = *redisAddr
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})

	if cfg.ShowVersion {
		return cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("SESSION_SECRET", &c.Auth.SessionSecret)
	setString("PASSWORD_HASHER", &c.Auth.PasswordHasher)
	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_DSN", &c.Database.DSN)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("SESSION_BACKEND", &c.Session.Backend)
	setString("SESSION_BOLT_PATH", &c.Session.BoltPath)
	setString("RATE_LIMIT_BACKEND", &c.RateLimit.Backend)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	if v := getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COOKIE_SECURE %q: %w", v, err)
		}
		c.Server.CookieSecure = b
	}
	if v := getenv("TRUST_PROXY_HOPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY_HOPS %q: %w", v, err)
		}
		c.Server.TrustProxyHops = n
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	return nil
}

// Validate проверяет, что значения допустимы
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Server.TrustProxyHops < 0 {
		errs = append(errs, errors.New("trust proxy hops must not be negative"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT secret is required"))
	}
	if c.Auth.SessionSecret == "" {
		errs = append(errs, errors.New("session secret is required"))
	}
	switch c.Auth.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("unsupported password hasher %q", c.Auth.PasswordHasher))
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	switch c.Session.Backend {
	case BackendMemory, BackendRedis:
	case BackendBolt:
		if c.Session.BoltPath == "" {
			errs = append(errs, errors.New("session bolt path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported session backend %q", c.Session.Backend))
	}

	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unsupported rate limit backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.SweepSchedule == "" {
		errs = append(errs, errors.New("sweep schedule is required"))
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis address is required for redis backends"))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// UsesRedis сообщает, нужен ли клиент Redis
func (c *Config) UsesRedis() bool {
	return c.Session.Backend == BackendRedis || c.RateLimit.Backend == BackendRedis
}

// UsesInsecureDefaults сообщает, остались ли секреты по умолчанию
func (c *Config) UsesInsecureDefaults() bool {
	return c.Auth.JWTSecret == InsecureJWTSecret || c.Auth.SessionSecret == InsecureSessionSecret
}

// SlogLevel разбирает уровень логирования
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
