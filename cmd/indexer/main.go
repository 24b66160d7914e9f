package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"beanScope/internal/chain"
	"beanScope/internal/config"
	"beanScope/internal/dex"
	"beanScope/internal/indexer"
	"beanScope/internal/registry"
	"beanScope/internal/storage"
)

func main() {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Beanstalk event indexer and aggregator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch raw logs of the registry contracts",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().StringSlice("address", nil, "extra contract addresses (comma-separated)")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), default every decodable event")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	addRegistryFlags(runCmd)
	addLogFlags(runCmd.Flags(), "info")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	addRegistryFlags(decodeCmd)
	addLogFlags(decodeCmd.Flags(), "info")

	root.AddCommand(decodeCmd)

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Apply raw logs to the entity store",
		RunE:  runProcess,
	}

	processCmd.Flags().String("rpc", "", "archive RPC URL for price queries")
	processCmd.Flags().String("in", "", "input raw logs JSONL")
	processCmd.Flags().String("hourly-bucket", "season", "hourly snapshot index (season or clock)")
	processCmd.Flags().String("max-temperature", "4294967295", "upper bound of the field temperature")
	processCmd.Flags().String("liquidity-tolerance", "0.01", "largest negative liquidity accepted as rounding")
	processCmd.Flags().String("peg", "1", "price threshold for cross detection")
	processCmd.Flags().Duration("oracle-timeout", 10*time.Second, "deadline of one price query")
	processCmd.Flags().Bool("resume", false, "skip logs at or before the committed position")
	processCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	addRegistryFlags(processCmd)
	addStoreFlags(processCmd.Flags(), config.StoreMemory)
	addLogFlags(processCmd.Flags(), "info")

	root.AddCommand(processCmd)
	root.AddCommand(newQueryCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRegistryFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("bean-token", "", "bean ERC20 address")
	flags.String("beanstalk", "", "Beanstalk diamond address")
	flags.String("price-contract", "", "BeanstalkPrice contract address")
	flags.StringSlice("tokens", nil, "token entries address:SYMBOL:decimals (comma-separated)")
	flags.StringSlice("pools", nil, "Well entries address:token0/token1 (comma-separated)")
}

func addStoreFlags(flags *pflag.FlagSet, backend string) {
	flags.String("store", backend, "entity store backend (memory, postgres, redis)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("redis-addr", "", "Redis address host:port")
	flags.String("redis-prefix", "beanscope", "Redis key prefix")
}

func addLogFlags(flags *pflag.FlagSet, level string) {
	flags.String("log-level", level, "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file, rotated")
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	reg, err := registry.New(cfg.Registry)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	addresses, err := indexer.ParseAddresses(append(reg.Addresses(), cfg.Addresses...))
	if err != nil {
		return err
	}

	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}
	if len(topic0) == 0 {
		decoder, err := dex.NewDecoder(reg.Bean.Address)
		if err != nil {
			return err
		}
		topic0 = decoder.Topics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	storageSink := storage.NewJsonlStorage(cfg.Out)

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, storageSink, logger)

	logger.Info("indexer start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

// newLogger builds the production logger. With file set, entries are also
// written to a size-rotated file.
func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil || file == "" {
		return logger, err
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(rotator), cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}
