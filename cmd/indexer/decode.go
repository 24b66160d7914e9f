package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"beanScope/internal/config"
	"beanScope/internal/dex"
	"beanScope/internal/model"
	"beanScope/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}
	if cfg.Registry.BeanToken == "" {
		return fmt.Errorf("bean token address is required")
	}

	decoder, err := dex.NewDecoder(cfg.Registry.BeanToken)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outWriter, err := storage.OpenJSONL(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.OpenJSONL(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	var total, decoded, skipped, failed int
	err = storage.ReadLogs(ctx, cfg.In, func(line int, record model.LogRecord, parseErr error) error {
		total++
		if parseErr != nil {
			failed++
			logger.Debug("parse log record", zap.Int("line", line), zap.Error(parseErr))
			return errWriter.Write(model.DecodeFailure{Error: parseErr.Error()})
		}

		event, err := decoder.Decode(record)
		switch {
		case err == nil:
			decoded++
			return outWriter.Write(model.NewTypedEvent(record, event))
		case errors.Is(err, dex.ErrNotTracked) || !decoder.CanDecode(record.Topic0()):
			skipped++
			return nil
		default:
			failed++
			return errWriter.Write(decodeFailure(record, err))
		}
	})
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func decodeFailure(record model.LogRecord, err error) model.DecodeFailure {
	return model.DecodeFailure{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}
