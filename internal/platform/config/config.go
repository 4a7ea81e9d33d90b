package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	HTTP       HTTPConfig       `koanf:"http"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Auth       AuthConfig       `koanf:"auth"`
	Revocation RevocationConfig `koanf:"revocation"`
	Log        LogConfig        `koanf:"log"`
}

type HTTPConfig struct {
	Port            string        `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// URL wins over the individual connection fields when set.
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	SecretKey              string `koanf:"secret_key"`
	BcryptLogRounds        int    `koanf:"bcrypt_log_rounds"`
	TokenExpirationDays    int    `koanf:"token_expiration_days"`
	TokenExpirationSeconds int    `koanf:"token_expiration_seconds"`
}

type RevocationConfig struct {
	Backend       string        `koanf:"backend"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

var defaults = map[string]any{
	"http.port":             "8080",
	"http.read_timeout":     10 * time.Second,
	"http.write_timeout":    10 * time.Second,
	"http.idle_timeout":     120 * time.Second,
	"http.shutdown_timeout": 15 * time.Second,

	"database.url":               "",
	"database.host":              "localhost",
	"database.port":              "5432",
	"database.user":              "postgres",
	"database.password":          "postgres",
	"database.name":              "users",
	"database.sslmode":           "disable",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    25,
	"database.conn_max_lifetime": 5 * time.Minute,

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,

	"auth.secret_key":               "",
	"auth.bcrypt_log_rounds":        bcrypt.DefaultCost,
	"auth.token_expiration_days":    30,
	"auth.token_expiration_seconds": 0,

	"revocation.backend":        BackendPostgres,
	"revocation.sweep_interval": 10 * time.Minute,
	"revocation.lock_ttl":       time.Minute,

	"log.format": "json",
	"log.level":  "info",
}

// envKeys maps environment variables onto config keys.
var envKeys = map[string]string{
	"API_PORT":                  "http.port",
	"DATABASE_URL":              "database.url",
	"DB_HOST":                   "database.host",
	"DB_PORT":                   "database.port",
	"DB_USER":                   "database.user",
	"DB_PASSWORD":               "database.password",
	"DB_NAME":                   "database.name",
	"DB_SSLMODE":                "database.sslmode",
	"REDIS_ADDR":                "redis.addr",
	"REDIS_PASSWORD":            "redis.password",
	"REDIS_DB":                  "redis.db",
	"SECRET_KEY":                "auth.secret_key",
	"BCRYPT_LOG_ROUNDS":         "auth.bcrypt_log_rounds",
	"TOKEN_EXPIRATION_DAYS":     "auth.token_expiration_days",
	"TOKEN_EXPIRATION_SECONDS":  "auth.token_expiration_seconds",
	"REVOCATION_BACKEND":        "revocation.backend",
	"REVOCATION_SWEEP_INTERVAL": "revocation.sweep_interval",
	"LOG_FORMAT":                "log.format",
	"LOG_LEVEL":                 "log.level",
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"port":               "http.port",
	"database-url":       "database.url",
	"redis-addr":         "redis.addr",
	"revocation-backend": "revocation.backend",
	"log-format":         "log.format",
	"log-level":          "log.level",
}

// Load builds the configuration from defaults, the optional YAML file at
// path, the .env file and process environment, and finally any flag in
// flags the user changed. Later sources win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	for env, key := range envKeys {
		if value, ok := os.LookupEnv(env); ok {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set %s from %s: %w", key, env, err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that would keep the service from
// running correctly.
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return errors.New("auth.secret_key (SECRET_KEY) is required")
	}
	if c.Auth.BcryptLogRounds < bcrypt.MinCost || c.Auth.BcryptLogRounds > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_log_rounds must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptLogRounds)
	}
	if c.Database.ConnString() == "" {
		return errors.New("database connection settings are required")
	}
	switch c.Revocation.Backend {
	case BackendPostgres, BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("revocation.backend redis requires redis.addr (REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("revocation.backend must be postgres, redis or memory, got %q", c.Revocation.Backend)
	}
	if c.Revocation.SweepInterval <= 0 {
		return fmt.Errorf("revocation.sweep_interval must be positive, got %s", c.Revocation.SweepInterval)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// TokenTTL is the lifetime of issued tokens. A negative result is allowed and
// yields tokens that are already expired.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenExpirationDays)*24*time.Hour +
		time.Duration(a.TokenExpirationSeconds)*time.Second
}

// ConnString returns URL when set, otherwise a postgres URL built from the
// individual fields.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" || d.Name == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
