package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"beanScope/internal/dex"
	"beanScope/internal/model"
	"beanScope/internal/oracle"
	"beanScope/internal/registry"
	"beanScope/internal/snapshot"
	"beanScope/internal/storage"
	"beanScope/internal/store"
)

const progressID = "engine"

// PriceOracle quotes the base asset at a pinned block.
type PriceOracle interface {
	QueryPrice(ctx context.Context, asset string, blockNumber uint64) (oracle.Quote, error)
}

// EventDecoder turns raw logs into typed events.
type EventDecoder interface {
	Decode(log model.LogRecord) (model.Event, error)
}

// Config controls engine behavior.
type Config struct {
	Peg                decimal.Decimal
	MaxTemperature     decimal.Decimal
	MaxRatio           decimal.Decimal
	LiquidityTolerance decimal.Decimal
	HourlyMode         snapshot.HourlyMode
	Resume             bool
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	return Config{
		Peg:                decimal.NewFromInt(1),
		MaxTemperature:     decimal.NewFromInt(4294967295),
		MaxRatio:           decimal.New(100, 18),
		LiquidityTolerance: decimal.RequireFromString("0.01"),
		HourlyMode:         snapshot.HourlyBySeason,
	}
}

// Stats counts event outcomes for one run.
type Stats struct {
	Total     int
	Applied   int
	Skipped   int
	Decode    int
	Oracle    int
	Invariant int
}

// Engine applies typed events to the entity store, one buffered
// transaction per event.
type Engine struct {
	cfg     Config
	reg     *registry.Registry
	decoder EventDecoder
	oracle  PriceOracle
	backend store.Backend
	snaps   *snapshot.Manager
	metrics *Metrics
	logger  *zap.Logger

	last  *model.Position
	stats Stats
}

func NewEngine(cfg Config, reg *registry.Registry, priceOracle PriceOracle, backend store.Backend, metrics *Metrics, logger *zap.Logger) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if priceOracle == nil {
		return nil, fmt.Errorf("price oracle is nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("store backend is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		var err error
		if metrics, err = NewMetrics(nil); err != nil {
			return nil, err
		}
	}
	if cfg.Peg.IsZero() {
		cfg.Peg = decimal.NewFromInt(1)
	}
	if cfg.MaxRatio.IsZero() {
		cfg.MaxRatio = decimal.New(100, 18)
	}
	if !cfg.MaxTemperature.IsPositive() {
		return nil, fmt.Errorf("max temperature must be > 0")
	}

	decoder, err := dex.NewDecoder(reg.Bean.Address)
	if err != nil {
		return nil, err
	}
	snaps, err := snapshot.NewManager(cfg.HourlyMode)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:     cfg,
		reg:     reg,
		decoder: decoder,
		oracle:  priceOracle,
		backend: backend,
		snaps:   snaps,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Stats returns the outcome counters so far.
func (e *Engine) Stats() Stats { return e.stats }

// Resume loads the last committed position so already applied logs are
// skipped by Run.
func (e *Engine) Resume(ctx context.Context) error {
	progress, found, err := store.Get[model.Progress](ctx, e.backend, model.KindProgress, progressID)
	if err != nil {
		return err
	}
	if found {
		pos := progress.Position
		e.last = &pos
		e.logger.Info("resume from progress", zap.String("position", pos.String()))
	}
	return nil
}

// Run processes a raw logs JSONL file in order. Only store failures and
// cancellation stop the run.
func (e *Engine) Run(ctx context.Context, inputPath string) error {
	if e.cfg.Resume {
		if err := e.Resume(ctx); err != nil {
			return err
		}
	}
	resumeAt := e.last

	var lines, replayed int
	err := storage.ReadLogs(ctx, inputPath, func(line int, record model.LogRecord, parseErr error) error {
		lines = line
		if parseErr != nil {
			e.stats.Decode++
			e.metrics.event("unknown", outcomeDecode)
			e.logger.Warn("parse log record", zap.Int("line", line), zap.Error(parseErr))
			return nil
		}
		if resumeAt != nil && !resumeAt.Less(record.Position()) {
			replayed++
			return nil
		}
		return e.Process(ctx, record)
	})
	if err != nil {
		return err
	}

	e.logger.Info("process complete",
		zap.Int("lines", lines),
		zap.Int("already_applied", replayed),
		zap.Int("total", e.stats.Total),
		zap.Int("applied", e.stats.Applied),
		zap.Int("skipped", e.stats.Skipped),
		zap.Int("decode_errors", e.stats.Decode),
		zap.Int("oracle_failures", e.stats.Oracle),
		zap.Int("invariant_violations", e.stats.Invariant),
	)
	return nil
}

// Process decodes and applies one log. Decode errors are logged and
// skipped.
func (e *Engine) Process(ctx context.Context, log model.LogRecord) error {
	e.stats.Total++
	event, err := e.decoder.Decode(log)
	if err != nil {
		var decodeErr *dex.DecodeError
		if !errors.As(err, &decodeErr) {
			return err
		}
		if errors.Is(err, dex.ErrNotTracked) {
			e.stats.Skipped++
			e.metrics.event("untracked", outcomeSkipped)
			e.logger.Debug("skip log", zap.String("tx", log.TxHash), zap.Uint64("log_index", log.LogIndex), zap.Error(err))
			return nil
		}
		e.stats.Decode++
		e.metrics.event("unknown", outcomeDecode)
		e.logger.Warn("decode log",
			zap.Uint64("block", log.BlockNumber),
			zap.String("tx", log.TxHash),
			zap.Uint64("log_index", log.LogIndex),
			zap.String("address", log.Address),
			zap.Error(err),
		)
		return nil
	}
	return e.apply(ctx, event)
}

// Apply applies one typed event inside its own transaction. It returns an
// error only for store failures and cancellation.
func (e *Engine) Apply(ctx context.Context, event model.Event) error {
	e.stats.Total++
	return e.apply(ctx, event)
}

func (e *Engine) apply(ctx context.Context, event model.Event) error {
	meta := event.Meta()
	pos := meta.Position()
	if e.last != nil && pos.Less(*e.last) {
		return e.classify(event, model.Invariant("stream", "position %s after %s", pos, e.last))
	}

	tx := store.Begin(e.backend)
	if err := e.dispatch(ctx, tx, event); err != nil {
		tx.Discard()
		var oracleErr *oracle.Failure
		if sunrise, ok := event.(model.SeasonAdvanced); ok && errors.As(err, &oracleErr) {
			if err := e.advanceSeason(ctx, sunrise); err != nil {
				return e.classify(event, err)
			}
		}
		return e.classify(event, err)
	}

	if err := e.commit(ctx, tx, meta); err != nil {
		return err
	}
	e.stats.Applied++
	e.metrics.event(event.Name(), outcomeApplied)
	return nil
}

// commit saves the progress of meta in tx and applies it.
func (e *Engine) commit(ctx context.Context, tx *store.Tx, meta model.EventMeta) error {
	pos := meta.Position()
	tx.Save(model.KindProgress, progressID, &model.Progress{ID: progressID, Position: pos, Timestamp: meta.Timestamp})
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	e.last = &pos
	return nil
}

func (e *Engine) classify(event model.Event, err error) error {
	meta := event.Meta()
	fields := []zap.Field{
		zap.String("event", event.Name()),
		zap.Uint64("block", meta.BlockNumber),
		zap.String("tx", meta.TxHash),
		zap.Uint64("log_index", meta.LogIndex),
		zap.Error(err),
	}

	var storeErr *store.Error
	var oracleErr *oracle.Failure
	var invariantErr *model.InvariantError
	switch {
	case errors.As(err, &storeErr):
		return err
	case errors.As(err, &oracleErr):
		e.stats.Oracle++
		e.metrics.event(event.Name(), outcomeOracle)
		e.logger.Warn("oracle failure, event discarded", append(fields, zap.Bool("timeout", oracleErr.Timeout()))...)
		return nil
	case errors.As(err, &invariantErr):
		e.stats.Invariant++
		e.metrics.event(event.Name(), outcomeInvariant)
		e.logger.Error("invariant violation, event discarded", fields...)
		return nil
	default:
		return err
	}
}

// dispatch routes an event to its handler.
func (e *Engine) dispatch(ctx context.Context, tx *store.Tx, event model.Event) error {
	switch ev := event.(type) {
	case model.AddLiquidity:
		return e.onLiquidity(ctx, tx, ev.EventMeta, ev.Amounts, false)
	case model.RemoveLiquidity:
		return e.onLiquidity(ctx, tx, ev.EventMeta, ev.Amounts, true)
	case model.RemoveLiquidityOneToken:
		return e.onRemoveOneToken(ctx, tx, ev)
	case model.Sync:
		return e.onSync(ctx, tx, ev)
	case model.Swap:
		return e.onSwap(ctx, tx, ev.EventMeta, ev.ToToken, ev.AmountIn, ev.AmountOut)
	case model.Shift:
		return e.onShift(ctx, tx, ev)
	case model.SeasonAdvanced:
		return e.onSunrise(ctx, tx, ev)
	case model.OracleUpdate:
		return e.onOracleUpdate(ctx, tx, ev)
	case model.TemperatureChange:
		return e.onTemperatureChange(ctx, tx, ev)
	case model.RatioChange:
		return e.onRatioChange(ctx, tx, ev)
	case model.GaugePointChange:
		return e.onGaugePointChange(ctx, tx, ev)
	case model.AverageGrownStalkUpdate:
		return e.onAverageGrownStalk(ctx, tx, ev)
	case model.WhitelistToken:
		return e.onWhitelistToken(ctx, tx, ev)
	case model.GaugeSettingsUpdate:
		return e.onGaugeSettings(ctx, tx, ev)
	case model.FarmerGerminatingChange:
		return e.onFarmerGerminating(ctx, tx, ev)
	case model.TotalGerminatingBalanceChange:
		return e.onTotalGerminatingBalance(ctx, tx, ev)
	case model.TotalGerminatingStalkChange:
		return e.onTotalGerminatingStalk(ctx, tx, ev)
	case model.SupplyChange:
		return e.onSupplyChange(ctx, tx, ev)
	default:
		return model.Invariant("dispatch", "unhandled event %T", event)
	}
}

// quote queries the oracle for the base asset at block.
func (e *Engine) quote(ctx context.Context, block uint64) (oracle.Quote, error) {
	start := time.Now()
	q, err := e.oracle.QueryPrice(ctx, e.reg.Bean.Address, block)
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.metrics.OracleQuery.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return q, err
}

// stamp builds the snapshot stamp of meta at the current season.
func stamp(meta model.EventMeta, season uint32) snapshot.Stamp {
	return snapshot.Stamp{Season: season, Timestamp: meta.Timestamp, Block: meta.BlockNumber}
}

func (e *Engine) loadToken(ctx context.Context, tx *store.Tx) (*model.Token, error) {
	return store.LoadOrCreate(ctx, tx, model.KindToken, e.reg.Bean.Address, func() *model.Token {
		return model.NewToken(e.reg.Bean.Address)
	})
}

// currentSeason is the season every snapshot of an event is stamped with:
// the latest of the last Sunrise and any season reported by an event since.
func (e *Engine) currentSeason(ctx context.Context, tx *store.Tx) (uint32, error) {
	return e.seasonOf(ctx, tx, 0)
}

// seasonOf folds a season reported by an event into the current season and
// returns the result. The season never moves backwards, so no handler opens
// a bucket older than one another handler already opened.
func (e *Engine) seasonOf(ctx context.Context, tx *store.Tx, reported uint32) (uint32, error) {
	token, err := e.loadToken(ctx, tx)
	if err != nil {
		return 0, err
	}
	if reported > token.LastSeason {
		token.LastSeason = reported
		tx.Save(model.KindToken, token.ID, token)
	}
	return token.LastSeason, nil
}
