// Package config loads settings from .env files, CRISPIES_* environment
// variables and an optional config file named by CRISPIES_CONFIG.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/adamspd/crispies/utils"
)

const (
	envPrefix     = "CRISPIES"
	configFileEnv = "CRISPIES_CONFIG"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Content ContentConfig `mapstructure:"content"`
	Engine  EngineConfig  `mapstructure:"engine"`
}

type StoreConfig struct {
	// Backend is one of sqlite, redis or memory
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ContentConfig struct {
	Dir    string `mapstructure:"dir"`
	Locale string `mapstructure:"locale"`
}

type EngineConfig struct {
	Debounce              time.Duration `mapstructure:"debounce"`
	CrossModuleNavigation bool          `mapstructure:"cross_module_navigation"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", "./crispies.db")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.key_prefix", "codeCrispies.")
	v.SetDefault("content.dir", "./lessons")
	v.SetDefault("content.locale", "en")
	v.SetDefault("engine.debounce", "800ms")
	v.SetDefault("engine.cross_module_navigation", true)
}

// Load reads the given .env files (default ".env"; missing files are
// ignored), then resolves settings with environment variables taking
// precedence over the config file and the defaults.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
		utils.LogStartup("Loaded environment from %s", f)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv(configFileEnv); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		utils.LogStartup("Using config file: %s", file)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	utils.LogStartup("Config: store=%s content=%s locale=%s debounce=%v",
		cfg.Store.Backend, cfg.Content.Dir, cfg.Content.Locale, cfg.Engine.Debounce)
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Engine.Debounce < 0 {
		return fmt.Errorf("engine.debounce must not be negative, got %v", c.Engine.Debounce)
	}
	return nil
}
