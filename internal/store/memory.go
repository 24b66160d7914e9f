package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Backend used for dry runs and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte

	// FailApply, when set, is returned by Apply without writing anything.
	FailApply error
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

func (m *Memory) Codec() Codec { return JSONCodec{} }

func (m *Memory) Get(_ context.Context, kind, id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[kind][id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *Memory) List(_ context.Context, kind, prefix string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0)
	for id := range m.data[kind] {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, append([]byte(nil), m.data[kind][id]...))
	}
	return out, nil
}

func (m *Memory) Apply(_ context.Context, ops []Op) error {
	if m.FailApply != nil {
		return m.FailApply
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			delete(m.data[op.Kind], op.ID)
			continue
		}
		bucket, ok := m.data[op.Kind]
		if !ok {
			bucket = make(map[string][]byte)
			m.data[op.Kind] = bucket
		}
		bucket[op.ID] = append([]byte(nil), op.Data...)
	}
	return nil
}

// Count returns the number of stored entities of kind.
func (m *Memory) Count(kind string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[kind])
}

// Dump returns a copy of every stored record keyed by "kind/id".
func (m *Memory) Dump() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for kind, bucket := range m.data {
		for id, data := range bucket {
			out[kind+"/"+id] = string(data)
		}
	}
	return out
}
