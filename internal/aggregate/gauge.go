package aggregate

import (
	"context"

	"github.com/shopspring/decimal"

	"beanScope/internal/model"
	"beanScope/internal/store"
)

const (
	labelSelector   = "selector"
	labelGpSelector = "gp_selector"
	labelLwSelector = "lw_selector"
)

// onTemperatureChange moves the field temperature by a relative amount,
// saturating at the configured bounds.
func (e *Engine) onTemperatureChange(ctx context.Context, tx *store.Tx, ev model.TemperatureChange) error {
	season, err := e.seasonOf(ctx, tx, ev.Season)
	if err != nil {
		return err
	}
	field, err := e.loadField(ctx, tx)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, field, stamp(ev.EventMeta, season))
	if err != nil {
		return err
	}

	requested := decimal.NewFromInt(ev.AbsChange)
	next := clamp(field.Temperature.Add(requested), decimal.Zero, e.cfg.MaxTemperature)
	applied := next.Sub(field.Temperature)
	field.Temperature = next
	field.Season = ev.Season
	snaps.Apply(model.MetricTemperature, next, applied)
	snaps.Hourly.SetCaseID(ev.CaseID)

	record, found, err := store.Load[model.Season](ctx, tx, model.KindSeason, model.SeasonID(ev.Season))
	if err != nil {
		return err
	}
	if found {
		e.updateRealRate(field, snaps, record.Price)
	}

	e.saveRateChange(tx, field.ID, model.MetricTemperature, ev.EventMeta, ev.Season, ev.CaseID, requested, applied, next)
	tx.Save(model.KindField, field.ID, field)
	return nil
}

// onRatioChange moves the silo's bean to max LP gauge point ratio by a
// relative amount, saturating at the configured bounds.
func (e *Engine) onRatioChange(ctx context.Context, tx *store.Tx, ev model.RatioChange) error {
	season, err := e.seasonOf(ctx, tx, ev.Season)
	if err != nil {
		return err
	}
	silo, err := e.loadSilo(ctx, tx, e.reg.Beanstalk)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, silo, stamp(ev.EventMeta, season))
	if err != nil {
		return err
	}

	requested := rawDecimal(ev.AbsChange)
	next := clamp(silo.BeanToMaxLpGpPerBdvRatio.Add(requested), decimal.Zero, e.cfg.MaxRatio)
	applied := next.Sub(silo.BeanToMaxLpGpPerBdvRatio)
	silo.BeanToMaxLpGpPerBdvRatio = next
	snaps.Apply(model.MetricBeanToMaxLpGpPerBdvRatio, next, applied)
	snaps.Hourly.SetCaseID(ev.CaseID)

	e.saveRateChange(tx, silo.ID, model.MetricBeanToMaxLpGpPerBdvRatio, ev.EventMeta, ev.Season, ev.CaseID, requested, applied, next)
	tx.Save(model.KindSilo, silo.ID, silo)
	return nil
}

func (e *Engine) saveRateChange(tx *store.Tx, entity, parameter string, meta model.EventMeta, season uint32, caseID uint64, requested, applied, value decimal.Decimal) {
	rc := &model.RateChange{
		ID:        model.RateChangeID(entity, parameter, season),
		Entity:    entity,
		Parameter: parameter,
		Season:    season,
		CaseID:    caseID,
		Requested: requested,
		Applied:   applied,
		Value:     value,
		Block:     meta.BlockNumber,
		Timestamp: meta.Timestamp,
	}
	tx.Save(model.KindRateChange, rc.ID, rc)
}

func (e *Engine) loadSetting(ctx context.Context, tx *store.Tx, token string) (*model.WhitelistTokenSetting, error) {
	return store.LoadOrCreate(ctx, tx, model.KindWhitelistSetting, token, func() *model.WhitelistTokenSetting {
		return model.NewWhitelistTokenSetting(token)
	})
}

// onGaugePointChange sets the gauge points of a token to the reported value.
func (e *Engine) onGaugePointChange(ctx context.Context, tx *store.Tx, ev model.GaugePointChange) error {
	season, err := e.seasonOf(ctx, tx, ev.Season)
	if err != nil {
		return err
	}
	setting, err := e.loadSetting(ctx, tx, ev.Token)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, setting, stamp(ev.EventMeta, season))
	if err != nil {
		return err
	}

	points := rawDecimal(ev.GaugePoints)
	setting.GaugePoints = points
	setting.UpdatedAt = ev.Timestamp
	snaps.Track(model.MetricGaugePoints, points)
	tx.Save(model.KindWhitelistSetting, setting.ID, setting)
	return nil
}

func (e *Engine) onAverageGrownStalk(ctx context.Context, tx *store.Tx, ev model.AverageGrownStalkUpdate) error {
	season, err := e.currentSeason(ctx, tx)
	if err != nil {
		return err
	}
	silo, err := e.loadSilo(ctx, tx, e.reg.Beanstalk)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, silo, stamp(ev.EventMeta, season))
	if err != nil {
		return err
	}

	grown := silo.DepositedBDV.Mul(rawDecimal(ev.Value))
	silo.GrownStalkPerBdvPerSeason = grown
	snaps.Track(model.MetricGrownStalkPerBdvPerSeason, grown)
	tx.Save(model.KindSilo, silo.ID, silo)
	return nil
}

func (e *Engine) onWhitelistToken(ctx context.Context, tx *store.Tx, ev model.WhitelistToken) error {
	season, err := e.currentSeason(ctx, tx)
	if err != nil {
		return err
	}
	setting, err := e.loadSetting(ctx, tx, ev.Token)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, setting, stamp(ev.EventMeta, season))
	if err != nil {
		return err
	}

	setting.Selector = ev.Selector
	setting.GpSelector = ev.GpSelector
	setting.LwSelector = ev.LwSelector
	setting.StalkEarnedPerSeason = rawDecimal(ev.StalkEarnedPerSeason)
	setting.StalkIssuedPerBdv = rawDecimal(ev.StalkIssuedPerBdv)
	setting.GaugePoints = rawDecimal(ev.GaugePoints)
	setting.OptimalPercentDepositedBdv = rawDecimal(ev.OptimalPercentDepositedBdv)
	setting.UpdatedAt = ev.Timestamp

	snaps.Track(model.MetricStalkEarnedPerSeason, setting.StalkEarnedPerSeason)
	snaps.Track(model.MetricGaugePoints, setting.GaugePoints)
	snaps.Track(model.MetricOptimalPercentDepositedBdv, setting.OptimalPercentDepositedBdv)
	snaps.SetLabel(labelSelector, setting.Selector)
	snaps.SetLabel(labelGpSelector, setting.GpSelector)
	snaps.SetLabel(labelLwSelector, setting.LwSelector)
	tx.Save(model.KindWhitelistSetting, setting.ID, setting)
	return nil
}

func (e *Engine) onGaugeSettings(ctx context.Context, tx *store.Tx, ev model.GaugeSettingsUpdate) error {
	season, err := e.currentSeason(ctx, tx)
	if err != nil {
		return err
	}
	setting, err := e.loadSetting(ctx, tx, ev.Token)
	if err != nil {
		return err
	}
	snaps, err := e.snaps.Open(ctx, tx, setting, stamp(ev.EventMeta, season))
	if err != nil {
		return err
	}

	setting.GpSelector = ev.GpSelector
	setting.LwSelector = ev.LwSelector
	setting.OptimalPercentDepositedBdv = rawDecimal(ev.OptimalPercentDepositedBdv)
	setting.UpdatedAt = ev.Timestamp

	snaps.Track(model.MetricOptimalPercentDepositedBdv, setting.OptimalPercentDepositedBdv)
	snaps.SetLabel(labelGpSelector, setting.GpSelector)
	snaps.SetLabel(labelLwSelector, setting.LwSelector)
	tx.Save(model.KindWhitelistSetting, setting.ID, setting)
	return nil
}
