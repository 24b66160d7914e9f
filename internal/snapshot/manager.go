package snapshot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"beanScope/internal/model"
	"beanScope/internal/store"
)

// KindCursor is the store namespace of bucket cursors.
const KindCursor = "snapshot_cursor"

const (
	secondsPerHour = 3600
	secondsPerDay  = 86400
)

// HourlyMode selects how hourly bucket indexes are derived.
type HourlyMode string

const (
	// HourlyBySeason indexes hourly buckets by season number.
	HourlyBySeason HourlyMode = "season"
	// HourlyByClock indexes hourly buckets by unix hour.
	HourlyByClock HourlyMode = "clock"
)

// Source is an entity that owns snapshots.
type Source interface {
	SnapshotEntity() string
	SnapshotKind() string
	SnapshotValues() map[string]decimal.Decimal
}

// Stamp is the event context a bucket is opened or touched with.
type Stamp struct {
	Season    uint32
	Timestamp uint64
	Block     uint64
}

type cursor struct {
	ID     string `json:"id"`
	Bucket int64  `json:"bucket"`
}

// BucketKey is the snapshot id of entityID in bucket.
func BucketKey(entityID string, bucket int64) string {
	return entityID + "-" + strconv.FormatInt(bucket, 10)
}

func HourIndex(ts uint64) int64 { return int64(ts / secondsPerHour) }
func DayIndex(ts uint64) int64  { return int64(ts / secondsPerDay) }

// Manager opens hourly and daily buckets for entities.
type Manager struct {
	hourly HourlyMode
}

func NewManager(mode HourlyMode) (*Manager, error) {
	switch mode {
	case "":
		mode = HourlyBySeason
	case HourlyBySeason, HourlyByClock:
	default:
		return nil, fmt.Errorf("unknown hourly bucket mode %q", mode)
	}
	return &Manager{hourly: mode}, nil
}

// Bucket returns the bucket index of at for gran.
func (m *Manager) Bucket(gran model.Granularity, at Stamp) int64 {
	if gran == model.Daily {
		return DayIndex(at.Timestamp)
	}
	if m.hourly == HourlyByClock {
		return HourIndex(at.Timestamp)
	}
	return int64(at.Season)
}

// GetOrCreate returns the snapshot of src in bucket, creating it from the
// current entity values when missing. It must run before src is mutated for
// the event. The returned snapshot is buffered for write on tx, so later
// mutations in the same transaction are persisted.
func (m *Manager) GetOrCreate(ctx context.Context, tx *store.Tx, src Source, gran model.Granularity, bucket int64, at Stamp) (*model.Snapshot, error) {
	kind := model.SnapshotKind(src.SnapshotKind(), gran)
	entityID := src.SnapshotEntity()
	id := BucketKey(entityID, bucket)

	cursorID := kind + "/" + entityID
	cur, err := store.LoadOrCreate(ctx, tx, KindCursor, cursorID, func() *cursor {
		return &cursor{ID: cursorID, Bucket: -1}
	})
	if err != nil {
		return nil, err
	}
	if bucket < cur.Bucket {
		return nil, model.Invariant(id, "%s bucket %d opened after bucket %d", gran, bucket, cur.Bucket)
	}
	if bucket > cur.Bucket {
		cur.Bucket = bucket
		tx.Save(KindCursor, cursorID, cur)
	}

	snap, err := store.LoadOrCreate(ctx, tx, kind, id, func() *model.Snapshot {
		s := &model.Snapshot{
			ID:          id,
			EntityID:    entityID,
			Kind:        src.SnapshotKind(),
			Granularity: gran,
			Bucket:      bucket,
			Season:      at.Season,
			Metrics:     make(map[string]*model.Metric),
			CreatedAt:   at.Timestamp,
		}
		for name, value := range src.SnapshotValues() {
			s.Metrics[name] = &model.Metric{Open: value, Close: value}
		}
		return s
	})
	if err != nil {
		return nil, err
	}
	snap.Touch(at.Timestamp, at.Block)
	tx.Save(kind, id, snap)
	return snap, nil
}

// Open returns the hourly and daily buckets of src for at.
func (m *Manager) Open(ctx context.Context, tx *store.Tx, src Source, at Stamp) (Pair, error) {
	hourly, err := m.GetOrCreate(ctx, tx, src, model.Hourly, m.Bucket(model.Hourly, at), at)
	if err != nil {
		return Pair{}, err
	}
	daily, err := m.GetOrCreate(ctx, tx, src, model.Daily, m.Bucket(model.Daily, at), at)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Hourly: hourly, Daily: daily}, nil
}

// Pair is the hourly and daily bucket of one entity for one event.
type Pair struct {
	Hourly *model.Snapshot
	Daily  *model.Snapshot
}

func (p Pair) Apply(name string, value, increment decimal.Decimal) {
	p.Hourly.Apply(name, value, increment)
	p.Daily.Apply(name, value, increment)
}

func (p Pair) Track(name string, value decimal.Decimal) {
	p.Hourly.Track(name, value)
	p.Daily.Track(name, value)
}

func (p Pair) SetLabel(key, value string) {
	p.Hourly.SetLabel(key, value)
	p.Daily.SetLabel(key, value)
}
