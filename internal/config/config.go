// Package config loads engine configuration from a YAML file with
// environment-variable overrides for deployment-specific knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// Duration parses YAML durations in Go syntax ("50ms", "2m") or as raw
// nanosecond integers.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: bad duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: bad duration node %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Config is the full process configuration.
type Config struct {
	RPC     RPCConfig     `yaml:"rpc"`
	Cache   CacheConfig   `yaml:"cache"`
	Redis   RedisConfig   `yaml:"redis"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type RPCConfig struct {
	Endpoints        []string      `yaml:"endpoints"`
	MinInterval      Duration `yaml:"min_interval"`
	AccountTTL       Duration `yaml:"account_ttl"`
	BlockhashTTL     Duration `yaml:"blockhash_ttl"`
	RateLimitBackoff Duration `yaml:"rate_limit_backoff"`
	CacheSize        int           `yaml:"cache_size"`
}

type CacheConfig struct {
	WarmTTL     Duration `yaml:"warm_ttl"`
	PrefetchTTL Duration `yaml:"prefetch_ttl"`
	Blacklist   []string      `yaml:"blacklist"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

type EngineConfig struct {
	SlippageBps      uint32        `yaml:"slippage_bps"`
	SafetyBufferBps  uint32        `yaml:"safety_buffer_bps"`
	ConfirmInterval  Duration `yaml:"confirm_interval"`
	ConfirmTimeout   Duration `yaml:"confirm_timeout"`
	ComputeUnitPrice uint64        `yaml:"compute_unit_price"`
	ComputeUnitLimit uint32        `yaml:"compute_unit_limit"`
}

type LoggingConfig struct {
	// Env selects the logger profile: "production" or "development".
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		RPC: RPCConfig{
			Endpoints:        []string{"https://api.mainnet-beta.solana.com"},
			MinInterval:      Duration(50 * time.Millisecond),
			AccountTTL:       Duration(5 * time.Minute),
			BlockhashTTL:     Duration(5 * time.Second),
			RateLimitBackoff: Duration(2 * time.Second),
			CacheSize:        4096,
		},
		Cache: CacheConfig{
			WarmTTL:     Duration(30 * time.Second),
			PrefetchTTL: Duration(30 * time.Second),
		},
		Engine: EngineConfig{
			SlippageBps:      100,
			SafetyBufferBps:  10,
			ConfirmInterval:  Duration(time.Second),
			ConfirmTimeout:   Duration(60 * time.Second),
			ComputeUnitPrice: 150_000,
			ComputeUnitLimit: 300_000,
		},
		Logging: LoggingConfig{Env: "production", Level: "info"},
		Metrics: MetricsConfig{ListenAddr: ":9091"},
	}
}

// Load reads path (when non-empty), overlays environment overrides, and
// validates the result. A missing file is not an error; env-only deployments
// run on defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RPC_ENDPOINT"); v != "" {
		cfg.RPC.Endpoints = []string{v}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_ENV"); v != "" {
		cfg.Logging.Env = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	loadDurationEnv("RPC_MIN_INTERVAL", &cfg.RPC.MinInterval)
	loadDurationEnv("CONFIRM_TIMEOUT", &cfg.Engine.ConfirmTimeout)
	loadUint32Env("SLIPPAGE_BPS", &cfg.Engine.SlippageBps)
}

func loadDurationEnv(key string, dst *Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = Duration(d)
	}
}

func loadUint32Env(key string, dst *uint32) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.ParseUint(v, 10, 32); err == nil {
		*dst = uint32(n)
	}
}

func (c Config) validate() error {
	if len(c.RPC.Endpoints) == 0 {
		return fmt.Errorf("config: at least one rpc endpoint required")
	}
	if c.Engine.SlippageBps >= 10_000 {
		return fmt.Errorf("config: slippage_bps %d out of range", c.Engine.SlippageBps)
	}
	for _, addr := range c.Cache.Blacklist {
		raw, err := base58.Decode(addr)
		if err != nil || len(raw) != 32 {
			return fmt.Errorf("config: invalid blacklist address %q", addr)
		}
	}
	return nil
}
