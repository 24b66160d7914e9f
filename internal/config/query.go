package config

import (
	"github.com/spf13/pflag"
)

// QueryConfig holds configuration for the query command.
type QueryConfig struct {
	Store    StoreConfig
	LogLevel string
	LogFile  string
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"store":        StorePostgres,
		"redis-prefix": "beanscope",
		"log-level":    "warn",
	})
	if err != nil {
		return QueryConfig{}, err
	}

	return QueryConfig{
		Store:    loadStore(v),
		LogLevel: v.GetString("log-level"),
		LogFile:  v.GetString("log-file"),
	}, nil
}
