package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"beanScope/internal/config"
	"beanScope/internal/model"
	"beanScope/internal/query"
	"beanScope/internal/registry"
)

// queryFunc runs one lookup against the service and returns the value to print.
type queryFunc func(ctx context.Context, svc *query.Service, args []string) (interface{}, error)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read aggregated entities from the store",
	}
	addStoreFlags(cmd.PersistentFlags(), config.StorePostgres)
	addLogFlags(cmd.PersistentFlags(), "warn")

	entity := func(use, short string, fn func(ctx context.Context, svc *query.Service, id string) (interface{}, error)) *cobra.Command {
		return queryCommand(use+" <address>", short, cobra.ExactArgs(1), func(ctx context.Context, svc *query.Service, args []string) (interface{}, error) {
			return fn(ctx, svc, registry.Normalize(args[0]))
		})
	}

	cmd.AddCommand(
		entity("pool", "Show a pool", func(ctx context.Context, svc *query.Service, id string) (interface{}, error) {
			return svc.Pool(ctx, id)
		}),
		entity("token", "Show a token", func(ctx context.Context, svc *query.Service, id string) (interface{}, error) {
			return svc.Token(ctx, id)
		}),
		entity("field", "Show the field of a Beanstalk deployment", func(ctx context.Context, svc *query.Service, id string) (interface{}, error) {
			return svc.Field(ctx, id)
		}),
		entity("silo", "Show a silo", func(ctx context.Context, svc *query.Service, id string) (interface{}, error) {
			return svc.Silo(ctx, id)
		}),
		entity("whitelist", "Show the whitelist settings of a token", func(ctx context.Context, svc *query.Service, id string) (interface{}, error) {
			return svc.WhitelistSetting(ctx, id)
		}),
		entity("crosses", "List the peg crosses of a token", func(ctx context.Context, svc *query.Service, id string) (interface{}, error) {
			return svc.Crosses(ctx, id)
		}),
		entity("germinating", "List the germinating records of an account", func(ctx context.Context, svc *query.Service, id string) (interface{}, error) {
			return svc.Germinating(ctx, id)
		}),
		queryCommand("season <number>", "Show a season", cobra.ExactArgs(1), func(ctx context.Context, svc *query.Service, args []string) (interface{}, error) {
			season, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parse season: %w", err)
			}
			return svc.Season(ctx, uint32(season))
		}),
		queryCommand("progress", "Show the last applied log position", cobra.NoArgs, func(ctx context.Context, svc *query.Service, _ []string) (interface{}, error) {
			return svc.Progress(ctx)
		}),
		seriesCommand("pool-series", "List the per-bucket closing values of a pool", func(ctx context.Context, svc *query.Service, id string, gran model.Granularity, from, to int64) (interface{}, error) {
			return svc.PoolSeries(ctx, id, gran, from, to)
		}),
		seriesCommand("token-series", "List the per-bucket closing values of a token", func(ctx context.Context, svc *query.Service, id string, gran model.Granularity, from, to int64) (interface{}, error) {
			return svc.TokenSeries(ctx, id, gran, from, to)
		}),
	)
	return cmd
}

func seriesCommand(use, short string, fn func(ctx context.Context, svc *query.Service, id string, gran model.Granularity, from, to int64) (interface{}, error)) *cobra.Command {
	var gran string
	var from, to int64
	cmd := queryCommand(use+" <address>", short, cobra.ExactArgs(1), func(ctx context.Context, svc *query.Service, args []string) (interface{}, error) {
		return fn(ctx, svc, registry.Normalize(args[0]), model.Granularity(gran), from, to)
	})
	cmd.Flags().StringVar(&gran, "granularity", string(model.Daily), "snapshot granularity (hourly or daily)")
	cmd.Flags().Int64Var(&from, "from", 0, "first bucket (inclusive)")
	cmd.Flags().Int64Var(&to, "to", 1<<62, "last bucket (inclusive)")
	return cmd
}

func queryCommand(use, short string, args cobra.PositionalArgs, fn queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := cfg.Store.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			backend, closeBackend, err := openBackend(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer closeBackend()

			svc, err := query.NewService(backend)
			if err != nil {
				return err
			}

			logger.Debug("query", zap.String("command", cmd.Name()), zap.Strings("args", args))
			value, err := fn(ctx, svc, args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(value)
		},
	}
}
