package model

import "github.com/shopspring/decimal"

// Granularity is the width of a snapshot bucket.
type Granularity string

const (
	Hourly Granularity = "hourly"
	Daily  Granularity = "daily"
)

// SnapshotKind is the store namespace for snapshots of an entity kind.
func SnapshotKind(entityKind string, gran Granularity) string {
	return entityKind + "_" + string(gran)
}

// Metric holds the opening value, closing value and accumulated change of one
// tracked quantity within a bucket.
type Metric struct {
	Open  decimal.Decimal `json:"open"`
	Close decimal.Decimal `json:"close"`
	Delta decimal.Decimal `json:"delta"`
}

// Snapshot is one time bucket of an entity.
type Snapshot struct {
	ID           string             `json:"id"`
	EntityID     string             `json:"entity_id"`
	Kind         string             `json:"kind"`
	Granularity  Granularity        `json:"granularity"`
	Bucket       int64              `json:"bucket"`
	Season       uint32             `json:"season"`
	Metrics      map[string]*Metric `json:"metrics"`
	Labels       map[string]string  `json:"labels,omitempty"`
	CaseID       *uint64            `json:"case_id,omitempty"`
	CreatedAt    uint64             `json:"created_at"`
	UpdatedAt    uint64             `json:"updated_at"`
	UpdatedBlock uint64             `json:"updated_block"`
}

// Apply overwrites the closing value of name and adds increment to its delta.
func (s *Snapshot) Apply(name string, value, increment decimal.Decimal) {
	if s.Metrics == nil {
		s.Metrics = make(map[string]*Metric)
	}
	m, ok := s.Metrics[name]
	if !ok {
		m = &Metric{Open: value.Sub(increment)}
		s.Metrics[name] = m
	}
	m.Close = value
	m.Delta = m.Delta.Add(increment)
}

// Track overwrites the closing value of name and records the difference to
// the previous closing value as the increment.
func (s *Snapshot) Track(name string, value decimal.Decimal) {
	prev := s.Value(name).Close
	s.Apply(name, value, value.Sub(prev))
}

// Value returns the metric, or a zero metric when it is not tracked.
func (s *Snapshot) Value(name string) Metric {
	if m, ok := s.Metrics[name]; ok && m != nil {
		return *m
	}
	return Metric{}
}

// SetLabel records a non-numeric attribute on the bucket.
func (s *Snapshot) SetLabel(key, value string) {
	if s.Labels == nil {
		s.Labels = make(map[string]string)
	}
	s.Labels[key] = value
}

// SetCaseID records the governance case that drove the latest change.
func (s *Snapshot) SetCaseID(caseID uint64) {
	s.CaseID = &caseID
}

// Touch stamps the bucket with the event that last modified it.
func (s *Snapshot) Touch(timestamp, block uint64) {
	s.UpdatedAt = timestamp
	s.UpdatedBlock = block
}
