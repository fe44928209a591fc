package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/custom"
)

type Config struct {
	Server          ServerConfig        `mapstructure:"server"`
	Upstream        UpstreamConfig      `mapstructure:"upstream"`
	Usage           UsageConfig         `mapstructure:"usage"`
	Redis           RedisConfig         `mapstructure:"redis"`
	Discovery       DiscoveryConfig     `mapstructure:"discovery"`
	Providers       []ProviderConfig    `mapstructure:"providers"`
	CustomProviders []custom.Definition `mapstructure:"custom_providers"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type UpstreamConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type UsageConfig struct {
	// DSN for the sqlite usage database. Empty means log-only accounting.
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
	// KeyPrefix namespaces provider credentials stored in redis.
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DiscoveryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	SnapshotDir string        `mapstructure:"snapshot_dir"`
}

// ProviderConfig wires one built-in provider type into the registry.
type ProviderConfig struct {
	// Type selects the adapter implementation (openai, anthropic, google,
	// groq, openrouter). ID defaults to Type.
	Type     string          `mapstructure:"type"`
	Provider provider.Config `mapstructure:",squash"`
	APIKey   string          `mapstructure:"api_key"`
}

// Load reads configuration from config.yaml and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("upstream.timeout", "120s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.key_prefix", "relay:keys:")
	v.SetDefault("discovery.enabled", false)
	v.SetDefault("discovery.interval", "1h")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	for i, p := range cfg.Providers {
		cfg.Providers[i].APIKey = resolveKey(v, p.APIKey)
		if cfg.Providers[i].Provider.ID == "" {
			cfg.Providers[i].Provider.ID = p.Type
		}
	}

	return &cfg, nil
}

// resolveKey expands "ENV:VAR_NAME" indirections so secrets stay out of
// config files. The process environment wins over viper sources.
func resolveKey(v *viper.Viper, raw string) string {
	if !strings.HasPrefix(raw, "ENV:") {
		return raw
	}
	envVar := strings.TrimPrefix(raw, "ENV:")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v.GetString(envVar)
}

// StaticKeys collects the config-sourced credentials keyed by provider id.
func (c *Config) StaticKeys() map[string]string {
	out := make(map[string]string, len(c.Providers))
	for _, p := range c.Providers {
		if p.APIKey != "" {
			out[p.Provider.ID] = p.APIKey
		}
	}
	return out
}
