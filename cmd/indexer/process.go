package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"beanScope/internal/aggregate"
	"beanScope/internal/chain"
	"beanScope/internal/config"
	"beanScope/internal/dex"
	"beanScope/internal/oracle"
	"beanScope/internal/registry"
	"beanScope/internal/snapshot"
	"beanScope/internal/storage/postgres"
	redisstore "beanScope/internal/storage/redis"
	"beanScope/internal/store"
)

func runProcess(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProcess(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Registry.PriceContract == "" {
		return fmt.Errorf("price contract address is required")
	}
	if err := cfg.Store.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	if err := fillTokenMeta(ctx, chainClient, &cfg.Registry, logger); err != nil {
		return err
	}
	reg, err := registry.New(cfg.Registry)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	priceOracle, err := oracle.NewClient(chainClient, map[string]string{reg.Bean.Address: reg.PriceContract}, cfg.OracleTimeout, logger)
	if err != nil {
		return err
	}

	backend, closeBackend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeBackend()

	promReg := prometheus.NewRegistry()
	metrics, err := aggregate.NewMetrics(promReg)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, promReg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	engine, err := aggregate.NewEngine(aggregate.Config{
		Peg:                cfg.Peg,
		MaxTemperature:     cfg.MaxTemperature,
		LiquidityTolerance: cfg.LiquidityTolerance,
		HourlyMode:         snapshot.HourlyMode(cfg.HourlyBucket),
		Resume:             cfg.Resume,
	}, reg, priceOracle, backend, metrics, logger)
	if err != nil {
		return err
	}

	logger.Info("process start",
		zap.String("input", cfg.Input),
		zap.String("store", cfg.Store.Backend),
		zap.String("pg_dsn", redactDSN(cfg.Store.PGDSN)),
		zap.String("redis_addr", cfg.Store.RedisAddr),
		zap.String("hourly_bucket", cfg.HourlyBucket),
		zap.String("peg", cfg.Peg.String()),
		zap.Int("pools", len(reg.Pools())),
		zap.Bool("resume", cfg.Resume),
	)

	return engine.Run(ctx, cfg.Input)
}

// fillTokenMeta completes registry token entries that only appear in pool
// pairs by reading symbol and decimals on chain.
func fillTokenMeta(ctx context.Context, caller chain.Caller, cfg *registry.Config, logger *zap.Logger) error {
	missing, err := cfg.MissingTokens()
	if err != nil {
		return err
	}
	cache := dex.NewTokenMetaCache()
	for _, token := range missing {
		meta, err := dex.FetchTokenMeta(ctx, caller, common.HexToAddress(token), cache, logger)
		if err != nil {
			return fmt.Errorf("token meta %s: %w", token, err)
		}
		cfg.Tokens = append(cfg.Tokens, meta.Entry())
		logger.Info("token meta fetched", zap.String("token", token), zap.String("entry", meta.Entry()))
	}
	return nil
}

// openBackend connects the configured entity store. The returned func
// releases it.
func openBackend(ctx context.Context, cfg config.StoreConfig) (store.Backend, func(), error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return store.NewMemory(), func() {}, nil
	case config.StorePostgres:
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, pg.Close, nil
	case config.StoreRedis:
		rs, err := redisstore.Dial(ctx, cfg.RedisAddr, "", 0, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return server
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
