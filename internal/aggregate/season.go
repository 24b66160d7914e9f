package aggregate

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"beanScope/internal/model"
	"beanScope/internal/registry"
	"beanScope/internal/snapshot"
	"beanScope/internal/store"
)

func (e *Engine) loadField(ctx context.Context, tx *store.Tx) (*model.Field, error) {
	return store.LoadOrCreate(ctx, tx, model.KindField, e.reg.Beanstalk, func() *model.Field {
		return model.NewField(e.reg.Beanstalk)
	})
}

func (e *Engine) loadSilo(ctx context.Context, tx *store.Tx, id string) (*model.Silo, error) {
	return store.LoadOrCreate(ctx, tx, model.KindSilo, id, func() *model.Silo {
		return model.NewSilo(id)
	})
}

// startSeason records the season change itself: the Season entity and the
// season of the token and the field. It needs no price.
func (e *Engine) startSeason(ctx context.Context, tx *store.Tx, ev model.SeasonAdvanced) (*model.Token, *model.Season, error) {
	token, err := e.loadToken(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	if ev.Season < token.LastSeason {
		return nil, nil, model.Invariant(model.SeasonID(ev.Season), "season %d after season %d", ev.Season, token.LastSeason)
	}

	season, err := store.LoadOrCreate(ctx, tx, model.KindSeason, model.SeasonID(ev.Season), func() *model.Season {
		return model.NewSeason(ev.Season)
	})
	if err != nil {
		return nil, nil, err
	}
	season.SunriseBlock = ev.BlockNumber
	season.Timestamp = ev.Timestamp
	tx.Save(model.KindSeason, season.ID, season)

	token.LastSeason = ev.Season
	tx.Save(model.KindToken, token.ID, token)

	field, err := e.loadField(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	field.Season = ev.Season
	tx.Save(model.KindField, field.ID, field)
	return token, season, nil
}

// advanceSeason commits only the season change of a sunrise whose price
// query failed. Pools, token prices and crosses wait for the next priced
// event.
func (e *Engine) advanceSeason(ctx context.Context, ev model.SeasonAdvanced) error {
	tx := store.Begin(e.backend)
	if _, _, err := e.startSeason(ctx, tx, ev); err != nil {
		tx.Discard()
		return err
	}
	if err := e.commit(ctx, tx, ev.EventMeta); err != nil {
		return err
	}
	e.logger.Warn("sunrise without price", zap.Uint32("season", ev.Season), zap.Uint64("block", ev.BlockNumber))
	return nil
}

// onSunrise rolls every entity into the new season and reprices all pools
// at the sunrise block. On an oracle failure the engine keeps only the
// season change, see advanceSeason.
func (e *Engine) onSunrise(ctx context.Context, tx *store.Tx, ev model.SeasonAdvanced) error {
	q, err := e.quote(ctx, ev.BlockNumber)
	if err != nil {
		return err
	}

	token, season, err := e.startSeason(ctx, tx, ev)
	if err != nil {
		return err
	}
	at := stamp(ev.EventMeta, ev.Season)
	tokenSnaps, err := e.snaps.Open(ctx, tx, token, at)
	if err != nil {
		return err
	}

	season.Price = q.Price
	season.DeltaB = q.DeltaB
	season.LiquidityUSD = q.LiquidityUSD

	totalDelta := decimal.Zero
	for _, info := range e.reg.Pools() {
		qp, ok := q.Pool(info.Address)
		if !ok {
			e.logger.Debug("pool absent from sunrise quote", zap.String("pool", info.Address))
			continue
		}
		pool, err := e.loadPool(ctx, tx, info, ev.EventMeta)
		if err != nil {
			return err
		}
		poolSnaps, err := e.snaps.Open(ctx, tx, pool, at)
		if err != nil {
			return err
		}

		deltaLiquidity := qp.LiquidityUSD.Sub(pool.LiquidityUSD)
		pool.Reserves = alignReserves(info, qp)
		e.applyPoolValues(pool, poolSnaps, ev.EventMeta, decimal.Zero, decimal.Zero, deltaLiquidity, qp.Price, qp.DeltaB)
		pool.LastSeason = ev.Season
		if err := e.checkLiquidity(pool.ID, pool.LiquidityUSD); err != nil {
			return err
		}
		tx.Save(model.KindPool, pool.ID, pool)

		token.AddPool(pool.ID)
		totalDelta = totalDelta.Add(deltaLiquidity)
	}

	oldPrice := token.Price
	e.applyTokenValues(token, tokenSnaps, ev.EventMeta, q.Price, decimal.Zero, decimal.Zero, totalDelta)
	if err := e.checkLiquidity(token.ID, token.LiquidityUSD); err != nil {
		return err
	}
	e.recordCross(tx, token, tokenSnaps, oldPrice, q.Price, ev.EventMeta)
	tx.Save(model.KindToken, token.ID, token)

	field, err := e.loadField(ctx, tx)
	if err != nil {
		return err
	}
	fieldSnaps, err := e.snaps.Open(ctx, tx, field, at)
	if err != nil {
		return err
	}
	e.updateRealRate(field, fieldSnaps, q.Price)
	tx.Save(model.KindField, field.ID, field)

	e.logger.Info("sunrise",
		zap.Uint32("season", ev.Season),
		zap.Uint64("block", ev.BlockNumber),
		zap.String("price", q.Price.String()),
		zap.String("delta_b", q.DeltaB.String()),
	)
	return nil
}

// updateRealRate sets the field's real rate of return for a season price.
// Without a positive price the previous value is kept.
func (e *Engine) updateRealRate(field *model.Field, snaps snapshot.Pair, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	rate := decimal.NewFromInt(1).Add(field.Temperature.Div(hundred)).Div(price)
	field.RealRateOfReturn = rate
	snaps.Track(model.MetricRealRateOfReturn, rate)
}

// onOracleUpdate stores a Well's time weighted deltaB for the season.
func (e *Engine) onOracleUpdate(ctx context.Context, tx *store.Tx, ev model.OracleUpdate) error {
	info, err := e.poolInfo(ev.Well)
	if err != nil {
		return err
	}
	pool, err := e.loadPool(ctx, tx, info, ev.EventMeta)
	if err != nil {
		return err
	}
	season, err := e.seasonOf(ctx, tx, ev.Season)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, pool, stamp(ev.EventMeta, season))
	if err != nil {
		return err
	}

	twa := toDecimal(ev.DeltaB, registry.BeanDecimals)
	pool.TwaDeltaB = twa
	snaps.Track(model.MetricTwaDeltaB, twa)
	pool.LastBlock = ev.BlockNumber
	pool.LastTimestamp = ev.Timestamp
	tx.Save(model.KindPool, pool.ID, pool)
	return nil
}
