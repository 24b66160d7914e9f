package aggregate

import (
	"context"

	"beanScope/internal/model"
	"beanScope/internal/registry"
	"beanScope/internal/store"
)

// onSupplyChange applies a mint or burn of the base asset.
func (e *Engine) onSupplyChange(ctx context.Context, tx *store.Tx, ev model.SupplyChange) error {
	token, err := e.loadToken(ctx, tx)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, token, stamp(ev.EventMeta, token.LastSeason))
	if err != nil {
		return err
	}

	amount := toDecimal(ev.Value, registry.BeanDecimals)
	switch {
	case ev.IsMint():
	case ev.IsBurn():
		amount = amount.Neg()
	default:
		return model.Invariant(token.ID, "transfer %s -> %s is neither mint nor burn", ev.From, ev.To)
	}

	supply := token.Supply.Add(amount)
	if supply.IsNegative() {
		return model.Invariant(token.ID, "supply %s below zero", supply)
	}
	token.Supply = supply
	token.LastBlock = ev.BlockNumber
	token.LastTimestamp = ev.Timestamp
	snaps.Apply(model.MetricSupply, supply, amount)
	tx.Save(model.KindToken, token.ID, token)
	return nil
}
