package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"beanScope/internal/model"
	"beanScope/internal/registry"
	"beanScope/internal/store"
)

// NotFoundError reports a lookup of an entity that was never written.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PoolPoint is one bucket of a pool series.
type PoolPoint struct {
	Bucket       int64           `json:"bucket"`
	Season       uint32          `json:"season"`
	Price        decimal.Decimal `json:"price"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	Volume       decimal.Decimal `json:"volume"`
	VolumeUSD    decimal.Decimal `json:"volume_usd"`
	DeltaB       decimal.Decimal `json:"delta_b"`
}

// TokenPoint is one bucket of a token series.
type TokenPoint struct {
	Bucket       int64           `json:"bucket"`
	Season       uint32          `json:"season"`
	Price        decimal.Decimal `json:"price"`
	Supply       decimal.Decimal `json:"supply"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	Crosses      int64           `json:"crosses"`
}

// Service is the read side of the entity store. Addresses are matched in
// lower case, the form the engine stores them in.
type Service struct {
	backend store.Backend
}

func NewService(backend store.Backend) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("store backend is nil")
	}
	return &Service{backend: backend}, nil
}

func get[T any](ctx context.Context, backend store.Backend, kind, id string) (*T, error) {
	v, found, err := store.Get[T](ctx, backend, kind, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: kind, ID: id}
	}
	return v, nil
}

func (s *Service) Pool(ctx context.Context, id string) (*model.Pool, error) {
	return get[model.Pool](ctx, s.backend, model.KindPool, registry.Normalize(id))
}

func (s *Service) Token(ctx context.Context, id string) (*model.Token, error) {
	return get[model.Token](ctx, s.backend, model.KindToken, registry.Normalize(id))
}

func (s *Service) Field(ctx context.Context, id string) (*model.Field, error) {
	return get[model.Field](ctx, s.backend, model.KindField, registry.Normalize(id))
}

func (s *Service) Silo(ctx context.Context, id string) (*model.Silo, error) {
	return get[model.Silo](ctx, s.backend, model.KindSilo, registry.Normalize(id))
}

func (s *Service) WhitelistSetting(ctx context.Context, token string) (*model.WhitelistTokenSetting, error) {
	return get[model.WhitelistTokenSetting](ctx, s.backend, model.KindWhitelistSetting, registry.Normalize(token))
}

func (s *Service) Season(ctx context.Context, season uint32) (*model.Season, error) {
	return get[model.Season](ctx, s.backend, model.KindSeason, model.SeasonID(season))
}

// snapshots returns the buckets of entityID in [from, to], ordered by
// bucket.
func (s *Service) snapshots(ctx context.Context, kind, entityID string, gran model.Granularity, from, to int64) ([]*model.Snapshot, error) {
	if gran != model.Hourly && gran != model.Daily {
		return nil, fmt.Errorf("unknown granularity %q", gran)
	}
	if from > to {
		return nil, fmt.Errorf("invalid bucket range [%d, %d]", from, to)
	}
	entityID = registry.Normalize(entityID)
	all, err := store.List[model.Snapshot](ctx, s.backend, model.SnapshotKind(kind, gran), entityID+"-")
	if err != nil {
		return nil, err
	}
	out := make([]*model.Snapshot, 0, len(all))
	for _, snap := range all {
		// A prefix match can hit another entity whose id extends this one.
		if snap.EntityID != entityID {
			continue
		}
		if snap.Bucket < from || snap.Bucket > to {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out, nil
}

// PoolSeries returns the closing values of a pool per bucket.
func (s *Service) PoolSeries(ctx context.Context, pool string, gran model.Granularity, from, to int64) ([]PoolPoint, error) {
	snaps, err := s.snapshots(ctx, model.KindPool, pool, gran, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]PoolPoint, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, PoolPoint{
			Bucket:       snap.Bucket,
			Season:       snap.Season,
			Price:        snap.Value(model.MetricPrice).Close,
			LiquidityUSD: snap.Value(model.MetricLiquidityUSD).Close,
			Volume:       snap.Value(model.MetricVolume).Close,
			VolumeUSD:    snap.Value(model.MetricVolumeUSD).Close,
			DeltaB:       snap.Value(model.MetricDeltaB).Close,
		})
	}
	return out, nil
}

// TokenSeries returns the closing values of a token per bucket.
func (s *Service) TokenSeries(ctx context.Context, token string, gran model.Granularity, from, to int64) ([]TokenPoint, error) {
	snaps, err := s.snapshots(ctx, model.KindToken, token, gran, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]TokenPoint, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, TokenPoint{
			Bucket:       snap.Bucket,
			Season:       snap.Season,
			Price:        snap.Value(model.MetricPrice).Close,
			Supply:       snap.Value(model.MetricSupply).Close,
			LiquidityUSD: snap.Value(model.MetricLiquidityUSD).Close,
			Crosses:      snap.Value(model.MetricCrosses).Close.IntPart(),
		})
	}
	return out, nil
}

// Crosses returns every recorded peg cross of token, oldest first.
func (s *Service) Crosses(ctx context.Context, token string) ([]*model.Cross, error) {
	token = registry.Normalize(token)
	all, err := store.List[model.Cross](ctx, s.backend, model.KindCross, token+"-")
	if err != nil {
		return nil, err
	}
	out := make([]*model.Cross, 0, len(all))
	for _, c := range all {
		if c.Token == token {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Germinating returns the open germinating records of address.
func (s *Service) Germinating(ctx context.Context, address string) ([]*model.Germinating, error) {
	address = registry.Normalize(address)
	all, err := store.List[model.Germinating](ctx, s.backend, model.KindGerminating, address+"-")
	if err != nil {
		return nil, err
	}
	out := make([]*model.Germinating, 0, len(all))
	for _, g := range all {
		if g.Address == address {
			out = append(out, g)
		}
	}
	return out, nil
}

// Progress returns the last position committed by the engine.
func (s *Service) Progress(ctx context.Context) (*model.Progress, error) {
	return get[model.Progress](ctx, s.backend, model.KindProgress, "engine")
}
