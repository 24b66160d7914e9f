package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"beanScope/internal/registry"
)

// Store backends selectable with --store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// StoreConfig selects and addresses the entity store.
type StoreConfig struct {
	Backend     string
	PGDSN       string
	RedisAddr   string
	RedisPrefix string
}

// ProcessConfig holds configuration for the process command.
type ProcessConfig struct {
	RPCURL             string
	Input              string
	Registry           registry.Config
	Store              StoreConfig
	HourlyBucket       string
	MaxTemperature     decimal.Decimal
	LiquidityTolerance decimal.Decimal
	Peg                decimal.Decimal
	OracleTimeout      time.Duration
	Resume             bool
	MetricsAddr        string
	LogLevel           string
	LogFile            string
}

// LoadProcess merges config file, environment variables, and flags into ProcessConfig.
func LoadProcess(cfgFile string, flags *pflag.FlagSet) (ProcessConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"store":               StoreMemory,
		"redis-prefix":        "beanscope",
		"hourly-bucket":       "season",
		"max-temperature":     "4294967295",
		"liquidity-tolerance": "0.01",
		"peg":                 "1",
		"oracle-timeout":      10 * time.Second,
		"log-level":           "info",
	})
	if err != nil {
		return ProcessConfig{}, err
	}

	cfg := ProcessConfig{
		RPCURL:        v.GetString("rpc"),
		Input:         v.GetString("in"),
		Registry:      loadRegistry(v),
		Store:         loadStore(v),
		HourlyBucket:  v.GetString("hourly-bucket"),
		OracleTimeout: v.GetDuration("oracle-timeout"),
		Resume:        v.GetBool("resume"),
		MetricsAddr:   v.GetString("metrics-addr"),
		LogLevel:      v.GetString("log-level"),
		LogFile:       v.GetString("log-file"),
	}

	if cfg.MaxTemperature, err = getDecimal(v, "max-temperature"); err != nil {
		return ProcessConfig{}, err
	}
	if cfg.LiquidityTolerance, err = getDecimal(v, "liquidity-tolerance"); err != nil {
		return ProcessConfig{}, err
	}
	if cfg.Peg, err = getDecimal(v, "peg"); err != nil {
		return ProcessConfig{}, err
	}

	return cfg, nil
}

func loadStore(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Backend:     v.GetString("store"),
		PGDSN:       v.GetString("pg-dsn"),
		RedisAddr:   v.GetString("redis-addr"),
		RedisPrefix: v.GetString("redis-prefix"),
	}
}

// Validate checks that the selected backend has its address.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	return nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := v.GetString(key)
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", key, raw, err)
	}
	return value, nil
}
