package aggregate

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"beanScope/internal/cross"
	"beanScope/internal/model"
	"beanScope/internal/oracle"
	"beanScope/internal/registry"
	"beanScope/internal/snapshot"
	"beanScope/internal/store"
)

// volumeFunc derives the bean volume of an event from its pool quote.
type volumeFunc func(q oracle.PoolQuote) decimal.Decimal

func (e *Engine) poolInfo(address string) (registry.PoolInfo, error) {
	info, ok := e.reg.Pool(address)
	if !ok {
		return registry.PoolInfo{}, model.Invariant(address, "pool not in registry")
	}
	return info, nil
}

func (e *Engine) loadPool(ctx context.Context, tx *store.Tx, info registry.PoolInfo, meta model.EventMeta) (*model.Pool, error) {
	return store.LoadOrCreate(ctx, tx, model.KindPool, info.Address, func() *model.Pool {
		p := model.NewPool(info.Address)
		p.Tokens = append([]string(nil), info.Tokens...)
		p.CreatedBlock = meta.BlockNumber
		return p
	})
}

func (e *Engine) onLiquidity(ctx context.Context, tx *store.Tx, meta model.EventMeta, amounts []*big.Int, removal bool) error {
	info, err := e.poolInfo(meta.Address)
	if err != nil {
		return err
	}
	var volume volumeFunc
	if removal {
		volume = e.singleSidedVolume(info, amounts)
	}
	return e.updatePool(ctx, tx, meta, info, volume)
}

func (e *Engine) onRemoveOneToken(ctx context.Context, tx *store.Tx, ev model.RemoveLiquidityOneToken) error {
	info, err := e.poolInfo(ev.Address)
	if err != nil {
		return err
	}
	idx := indexOf(info.Tokens, ev.TokenOut)
	if idx < 0 {
		return model.Invariant(info.Address, "token out %s not in pool", ev.TokenOut)
	}
	amounts := make([]*big.Int, len(info.Tokens))
	for i := range amounts {
		amounts[i] = new(big.Int)
	}
	amounts[idx] = ev.AmountOut
	return e.updatePool(ctx, tx, ev.EventMeta, info, e.singleSidedVolume(info, amounts))
}

// onSync records a mint against unaccounted reserves. It carries no volume.
func (e *Engine) onSync(ctx context.Context, tx *store.Tx, ev model.Sync) error {
	info, err := e.poolInfo(ev.Address)
	if err != nil {
		return err
	}
	pool, err := e.loadPool(ctx, tx, info, ev.EventMeta)
	if err != nil {
		return err
	}
	if len(ev.Reserves) != len(info.Tokens) {
		return model.Invariant(info.Address, "sync reports %d reserves for %d tokens", len(ev.Reserves), len(info.Tokens))
	}
	e.logger.Debug("sync",
		zap.String("pool", info.Address),
		zap.Any("delta_reserves", deltaReserves(ev.Reserves, pool.Reserves)),
	)
	return e.updatePool(ctx, tx, ev.EventMeta, info, nil)
}

func (e *Engine) onSwap(ctx context.Context, tx *store.Tx, meta model.EventMeta, toToken string, amountIn, amountOut *big.Int) error {
	info, err := e.poolInfo(meta.Address)
	if err != nil {
		return err
	}
	raw := amountIn
	if e.reg.IsBean(toToken) {
		raw = amountOut
	}
	volumeBean := toDecimal(raw, registry.BeanDecimals)
	return e.updatePool(ctx, tx, meta, info, func(oracle.PoolQuote) decimal.Decimal { return volumeBean })
}

// onShift treats the reserve change of the token paid in as the swap input.
func (e *Engine) onShift(ctx context.Context, tx *store.Tx, ev model.Shift) error {
	info, err := e.poolInfo(ev.Address)
	if err != nil {
		return err
	}
	beanIdx, otherIdx := e.legs(info)
	if beanIdx < 0 || otherIdx < 0 {
		return model.Invariant(info.Address, "shift needs a bean pair")
	}
	pool, err := e.loadPool(ctx, tx, info, ev.EventMeta)
	if err != nil {
		return err
	}
	deltas := deltaReserves(ev.Reserves, pool.Reserves)
	if len(deltas) != len(info.Tokens) {
		return model.Invariant(info.Address, "shift reports %d reserves for %d tokens", len(deltas), len(info.Tokens))
	}

	in := deltas[beanIdx]
	if e.reg.IsBean(ev.ToToken) {
		in = deltas[otherIdx]
	}
	return e.onSwap(ctx, tx, ev.EventMeta, ev.ToToken, in.BigInt(), ev.AmountOut)
}

// legs returns the index of the bean token and of the first other token.
func (e *Engine) legs(info registry.PoolInfo) (int, int) {
	beanIdx, otherIdx := -1, -1
	for i, token := range info.Tokens {
		if e.reg.IsBean(token) {
			if beanIdx < 0 {
				beanIdx = i
			}
		} else if otherIdx < 0 {
			otherIdx = i
		}
	}
	return beanIdx, otherIdx
}

// singleSidedVolume counts half of a one-legged removal from a two token
// pool as bean volume. A bean leg is halved in raw units; an other leg is
// converted through the pool's bean per token rate first.
func (e *Engine) singleSidedVolume(info registry.PoolInfo, amounts []*big.Int) volumeFunc {
	return func(q oracle.PoolQuote) decimal.Decimal {
		beanIdx, otherIdx := e.legs(info)
		if len(info.Tokens) != 2 || beanIdx < 0 || otherIdx < 0 || len(amounts) != 2 {
			return decimal.Zero
		}
		beanAmt, otherAmt := amounts[beanIdx], amounts[otherIdx]
		if beanAmt == nil {
			beanAmt = new(big.Int)
		}
		if otherAmt == nil {
			otherAmt = new(big.Int)
		}
		if beanAmt.Sign() != 0 && otherAmt.Sign() != 0 {
			return decimal.Zero
		}
		if beanAmt.Sign() != 0 {
			return toDecimal(new(big.Int).Quo(beanAmt, big.NewInt(2)), registry.BeanDecimals)
		}
		if otherAmt.Sign() == 0 {
			return decimal.Zero
		}

		qBean := indexOf(q.Tokens, info.Tokens[beanIdx])
		qOther := indexOf(q.Tokens, info.Tokens[otherIdx])
		if qBean < 0 || qOther < 0 || qBean >= len(q.Balances) || qOther >= len(q.Balances) {
			return decimal.Zero
		}
		otherDecimals := e.reg.Decimals(info.Tokens[otherIdx])
		balOther := toDecimal(q.Balances[qOther], otherDecimals)
		if balOther.IsZero() {
			return decimal.Zero
		}
		rate := toDecimal(q.Balances[qBean], registry.BeanDecimals).Div(balOther)
		raw := toDecimal(otherAmt, otherDecimals).
			Mul(rate).
			Shift(registry.BeanDecimals).
			Div(two).
			Truncate(0)
		return raw.Shift(-registry.BeanDecimals)
	}
}

// alignReserves orders the quoted balances by the pool's token order.
func alignReserves(info registry.PoolInfo, q oracle.PoolQuote) []decimal.Decimal {
	out := make([]decimal.Decimal, len(info.Tokens))
	for i, token := range info.Tokens {
		idx := indexOf(q.Tokens, token)
		if idx >= 0 && idx < len(q.Balances) {
			out[i] = rawDecimal(q.Balances[idx])
		}
	}
	return out
}

// updatePool is the shared envelope of every Well event: price the pool at
// the event block, then move pool and token by the same liquidity delta.
func (e *Engine) updatePool(ctx context.Context, tx *store.Tx, meta model.EventMeta, info registry.PoolInfo, volume volumeFunc) error {
	q, err := e.quote(ctx, meta.BlockNumber)
	if err != nil {
		return err
	}
	qp, ok := q.Pool(info.Address)
	if !ok {
		return &oracle.Failure{Asset: e.reg.Bean.Address, Block: meta.BlockNumber, Reason: "pool not registered with oracle: " + info.Address}
	}

	token, err := e.loadToken(ctx, tx)
	if err != nil {
		return err
	}
	pool, err := e.loadPool(ctx, tx, info, meta)
	if err != nil {
		return err
	}
	at := stamp(meta, token.LastSeason)
	poolSnaps, err := e.snaps.Open(ctx, tx, pool, at)
	if err != nil {
		return err
	}
	tokenSnaps, err := e.snaps.Open(ctx, tx, token, at)
	if err != nil {
		return err
	}

	volumeBean := decimal.Zero
	if volume != nil {
		volumeBean = volume(qp)
	}
	volumeUSD := volumeBean.Mul(qp.Price)
	deltaLiquidity := qp.LiquidityUSD.Sub(pool.LiquidityUSD)

	pool.Reserves = alignReserves(info, qp)
	e.applyPoolValues(pool, poolSnaps, meta, volumeBean, volumeUSD, deltaLiquidity, qp.Price, qp.DeltaB)
	if err := e.checkLiquidity(pool.ID, pool.LiquidityUSD); err != nil {
		return err
	}

	oldPrice := token.Price
	token.AddPool(pool.ID)
	e.applyTokenValues(token, tokenSnaps, meta, q.Price, volumeBean, volumeUSD, deltaLiquidity)
	if err := e.checkLiquidity(token.ID, token.LiquidityUSD); err != nil {
		return err
	}
	e.recordCross(tx, token, tokenSnaps, oldPrice, q.Price, meta)

	tx.Save(model.KindPool, pool.ID, pool)
	tx.Save(model.KindToken, token.ID, token)
	return nil
}

func (e *Engine) applyPoolValues(pool *model.Pool, snaps snapshot.Pair, meta model.EventMeta, volumeBean, volumeUSD, deltaLiquidity, price, deltaB decimal.Decimal) {
	pool.Volume = pool.Volume.Add(volumeBean)
	snaps.Apply(model.MetricVolume, pool.Volume, volumeBean)
	pool.VolumeUSD = pool.VolumeUSD.Add(volumeUSD)
	snaps.Apply(model.MetricVolumeUSD, pool.VolumeUSD, volumeUSD)
	pool.LiquidityUSD = pool.LiquidityUSD.Add(deltaLiquidity)
	snaps.Apply(model.MetricLiquidityUSD, pool.LiquidityUSD, deltaLiquidity)
	pool.DeltaB = deltaB
	snaps.Track(model.MetricDeltaB, deltaB)
	pool.LastPrice = price
	snaps.Track(model.MetricPrice, price)
	pool.LastBlock = meta.BlockNumber
	pool.LastTimestamp = meta.Timestamp
}

func (e *Engine) applyTokenValues(token *model.Token, snaps snapshot.Pair, meta model.EventMeta, price, volumeBean, volumeUSD, deltaLiquidity decimal.Decimal) {
	token.Price = price
	snaps.Track(model.MetricPrice, price)
	token.Volume = token.Volume.Add(volumeBean)
	snaps.Apply(model.MetricVolume, token.Volume, volumeBean)
	token.VolumeUSD = token.VolumeUSD.Add(volumeUSD)
	snaps.Apply(model.MetricVolumeUSD, token.VolumeUSD, volumeUSD)
	token.LiquidityUSD = token.LiquidityUSD.Add(deltaLiquidity)
	snaps.Apply(model.MetricLiquidityUSD, token.LiquidityUSD, deltaLiquidity)
	token.LastBlock = meta.BlockNumber
	token.LastTimestamp = meta.Timestamp
}

func (e *Engine) checkLiquidity(id string, liquidity decimal.Decimal) error {
	if liquidity.LessThan(e.cfg.LiquidityTolerance.Neg()) {
		return model.Invariant(id, "liquidity %s below zero", liquidity)
	}
	return nil
}

// recordCross runs peg cross detection once the token has a prior price.
func (e *Engine) recordCross(tx *store.Tx, token *model.Token, snaps snapshot.Pair, oldPrice, newPrice decimal.Decimal, meta model.EventMeta) {
	if oldPrice.IsZero() {
		return
	}
	c := cross.Record(tx, token, oldPrice, newPrice, e.cfg.Peg, meta)
	if c == nil {
		return
	}
	snaps.Apply(model.MetricCrosses, decimal.NewFromInt(token.Crosses), decimal.NewFromInt(1))
	e.metrics.Crosses.Inc()
	e.logger.Info("peg cross",
		zap.String("token", token.ID),
		zap.String("direction", c.Direction),
		zap.String("price", newPrice.String()),
		zap.Uint64("block", meta.BlockNumber),
	)
}
