package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultPingTimeout bounds the initial database ping
const DefaultPingTimeout = 5 * time.Second

// EnvPrefix is prepended to every environment override, ACCOUNTS_SERVER_PORT
const EnvPrefix = "ACCOUNTS"

type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Database  DatabaseConfig      `mapstructure:"database"`
	Redis     RedisConfig         `mapstructure:"redis"`
	SMTP      accounts.SMTPConfig `mapstructure:"smtp"`
	RateLimit RateLimitConfig     `mapstructure:"rate_limit"`
	Accounts  accounts.Options    `mapstructure:"accounts"`
}

type ServerConfig struct {
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
	Log   string `mapstructure:"log_level"`
}

// DatabaseConfig selects the bun dialect, driver is "sqlite" or "postgres".
// It satisfies persistence.Config.
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	Debug          bool          `mapstructure:"debug"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout"`
	OtelIdentifier string        `mapstructure:"otel_identifier"`
}

func (d DatabaseConfig) GetDebug() bool    { return d.Debug }
func (d DatabaseConfig) GetDriver() string { return d.Driver }
func (d DatabaseConfig) GetServer() string { return d.DSN }
func (d DatabaseConfig) GetDSN() string    { return d.DSN }

func (d DatabaseConfig) GetOtelIdentifier() string { return d.OtelIdentifier }

// GetPingTimeout falls back to DefaultPingTimeout when unset
func (d DatabaseConfig) GetPingTimeout() time.Duration {
	if d.PingTimeout <= 0 {
		return DefaultPingTimeout
	}
	return d.PingTimeout
}

// RedisConfig enables the activity publisher when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// EverySeconds is the refill interval of one request
	EverySeconds int `mapstructure:"every_seconds"`
	Burst        int `mapstructure:"burst"`
}

// Load reads the optional .env file, then config.yaml from path (or the
// working directory and ./config), then environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := accounts.DefaultOptions()

	v.SetDefault("server.port", 8572)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:accounts.db?cache=shared")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.ping_timeout", "5s")
	v.SetDefault("database.otel_identifier", "accounts")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "accounts.activity")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", "25")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@localhost")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.every_seconds", 20)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("accounts.password_reset_token_expire", defaults.PasswordResetTokenExpire)
	v.SetDefault("accounts.force_strong_password", defaults.ForceStrongPassword)
	v.SetDefault("accounts.default_role", defaults.DefaultRole)
	v.SetDefault("accounts.app_name", defaults.AppName)
	v.SetDefault("accounts.base_url", defaults.BaseURL)
	v.SetDefault("accounts.bcrypt_cost", defaults.BcryptCost)
}
