package aggregate

import (
	"context"

	"github.com/shopspring/decimal"

	"beanScope/internal/model"
	"beanScope/internal/store"
)

// onFarmerGerminating moves the germinating stalk of one account. New stalk
// always lands in the bucket of the current season; removals name the
// bucket they drain.
func (e *Engine) onFarmerGerminating(ctx context.Context, tx *store.Tx, ev model.FarmerGerminatingChange) error {
	season, err := e.currentSeason(ctx, tx)
	if err != nil {
		return err
	}
	delta := rawDecimal(ev.Delta)

	var germ *model.Germinating
	if delta.IsNegative() {
		id := model.GerminatingID(ev.Account, ev.State)
		var found bool
		germ, found, err = store.Load[model.Germinating](ctx, tx, model.KindGerminating, id)
		if err != nil {
			return err
		}
		if !found {
			return model.Invariant(id, "germinating stalk removed from missing record")
		}
	} else {
		germ, err = store.LoadOrCreate(ctx, tx, model.KindGerminating, model.GerminatingID(ev.Account, model.GerminationStateOf(season)), func() *model.Germinating {
			return model.NewGerminating(ev.Account, season)
		})
		if err != nil {
			return err
		}
	}

	germ.Stalk = germ.Stalk.Add(delta)
	switch {
	case germ.Stalk.IsNegative():
		return model.Invariant(germ.ID, "germinating stalk %s below zero", germ.Stalk)
	case delta.IsNegative() && germ.Stalk.IsZero():
		tx.Delete(model.KindGerminating, germ.ID)
	default:
		tx.Save(model.KindGerminating, germ.ID, germ)
	}

	return e.addSiloGerminating(ctx, tx, ev.Account, ev.EventMeta, season, delta)
}

// onTotalGerminatingBalance moves the germinating amount and bdv of a token.
func (e *Engine) onTotalGerminatingBalance(ctx context.Context, tx *store.Tx, ev model.TotalGerminatingBalanceChange) error {
	if _, err := e.seasonOf(ctx, tx, ev.Season); err != nil {
		return err
	}
	id := model.GerminatingID(ev.Token, model.GerminationStateOf(ev.Season))
	germ, err := store.LoadOrCreate(ctx, tx, model.KindGerminating, id, func() *model.Germinating {
		return model.NewGerminating(ev.Token, ev.Season)
	})
	if err != nil {
		return err
	}

	amount := rawDecimal(ev.DeltaAmount)
	bdv := rawDecimal(ev.DeltaBdv)
	germ.TokenAmount = germ.TokenAmount.Add(amount)
	germ.Bdv = germ.Bdv.Add(bdv)
	if germ.TokenAmount.IsNegative() {
		return model.Invariant(id, "germinating amount %s below zero", germ.TokenAmount)
	}
	if germ.TokenAmount.IsZero() {
		tx.Delete(model.KindGerminating, id)
	} else {
		tx.Save(model.KindGerminating, id, germ)
	}

	// Finished germination moves bdv into deposits; only additions are
	// visible here.
	if bdv.IsPositive() {
		silo, err := e.loadSilo(ctx, tx, e.reg.Beanstalk)
		if err != nil {
			return err
		}
		silo.DepositedBDV = silo.DepositedBDV.Add(bdv)
		tx.Save(model.KindSilo, silo.ID, silo)
	}
	return nil
}

// onTotalGerminatingStalk moves the protocol-wide germinating stalk. The
// record is kept at zero.
func (e *Engine) onTotalGerminatingStalk(ctx context.Context, tx *store.Tx, ev model.TotalGerminatingStalkChange) error {
	id := model.GerminatingID(e.reg.Beanstalk, model.GerminationStateOf(ev.Season))
	germ, err := store.LoadOrCreate(ctx, tx, model.KindGerminating, id, func() *model.Germinating {
		return model.NewGerminating(e.reg.Beanstalk, ev.Season)
	})
	if err != nil {
		return err
	}

	delta := rawDecimal(ev.Delta)
	germ.Stalk = germ.Stalk.Add(delta)
	if germ.Stalk.IsNegative() {
		return model.Invariant(id, "germinating stalk %s below zero", germ.Stalk)
	}
	tx.Save(model.KindGerminating, id, germ)

	season, err := e.seasonOf(ctx, tx, ev.Season)
	if err != nil {
		return err
	}
	return e.addSiloGerminating(ctx, tx, e.reg.Beanstalk, ev.EventMeta, season, delta)
}

func (e *Engine) addSiloGerminating(ctx context.Context, tx *store.Tx, id string, meta model.EventMeta, season uint32, delta decimal.Decimal) error {
	silo, err := e.loadSilo(ctx, tx, id)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, silo, stamp(meta, season))
	if err != nil {
		return err
	}
	silo.GerminatingStalk = silo.GerminatingStalk.Add(delta)
	snaps.Apply(model.MetricGerminatingStalk, silo.GerminatingStalk, delta)
	tx.Save(model.KindSilo, silo.ID, silo)
	return nil
}
