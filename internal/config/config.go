package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`

	Store     StoreConfig     `mapstructure:"store"`
	Storage   StorageConfig   `mapstructure:"storage"`
	EventLog  EventLogConfig  `mapstructure:"eventlog"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Identity  IdentityConfig  `mapstructure:"identity"`
}

// StoreConfig selects the durable store: "memory" or "postgres".
type StoreConfig struct {
	Driver         string `mapstructure:"driver"`
	DSN            string `mapstructure:"dsn"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type StorageConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

type EventLogConfig struct {
	Capacity int           `mapstructure:"capacity"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type CleanupConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	IdleThreshold time.Duration `mapstructure:"idle_threshold"`
}

type RateLimitConfig struct {
	Mutations    int           `mapstructure:"mutations"`
	Interval     time.Duration `mapstructure:"interval"`
	Joins        int           `mapstructure:"joins"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
}

type NotifyConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Window    time.Duration `mapstructure:"window"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// IdentityConfig maps bearer tokens to user ids. Viper lowercases map
// keys, so tokens must be lowercase.
type IdentityConfig struct {
	Tokens map[string]string `mapstructure:"tokens"`
}

// Load reads config/config.<CONFIG_ENV>.yaml and lets SESH_* environment
// variables override it, e.g. SESH_STORE_DSN for store.dsn. A .env file in
// the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("SESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.migrations_path", "migrations")
	v.SetDefault("storage.timeout", "3s")
	v.SetDefault("storage.retries", 3)
	v.SetDefault("eventlog.capacity", 100)
	v.SetDefault("eventlog.max_age", "10m")
	v.SetDefault("cleanup.interval", "1h")
	v.SetDefault("cleanup.idle_threshold", "168h")
	v.SetDefault("rate_limit.mutations", 60)
	v.SetDefault("rate_limit.interval", "10s")
	v.SetDefault("rate_limit.joins", 10)
	v.SetDefault("rate_limit.join_interval", "10s")
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.window", "1m")
	v.SetDefault("catalog.path", "")
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Mode == "release" && c.Secret == "" {
		return fmt.Errorf("config: secret is required in release mode")
	}
	if c.Port <= 0 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
