package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Op is one buffered write handed to a Backend.
type Op struct {
	Kind   string
	ID     string
	Data   []byte
	Delete bool
}

// Codec encodes entities for a Backend.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// JSONCodec encodes entities as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// Backend is a key-value document store addressed by (kind, id).
// Apply must land every op or none of them.
type Backend interface {
	Get(ctx context.Context, kind, id string) ([]byte, bool, error)
	List(ctx context.Context, kind, prefix string) ([][]byte, error)
	Apply(ctx context.Context, ops []Op) error
	Codec() Codec
}

// Error wraps a persistence failure. Callers must treat it as fatal for the
// batch because the outcome of the write is unknown.
type Error struct {
	Op   string
	Kind string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type opKind int

const (
	opNone opKind = iota
	opPut
	opDelete
)

type key struct {
	kind string
	id   string
}

type entry struct {
	value interface{}
	op    opKind
}

// Tx buffers every read and write of one event. Nothing reaches the Backend
// until Commit; an abandoned Tx leaves the Backend untouched.
type Tx struct {
	backend Backend
	entries map[key]*entry
	order   []key
	done    bool
}

// Begin opens a buffer over backend.
func Begin(backend Backend) *Tx {
	return &Tx{backend: backend, entries: make(map[key]*entry)}
}

// Load returns the entity stored under (kind, id). Reads observe earlier
// Save and Delete calls on the same Tx.
func Load[T any](ctx context.Context, tx *Tx, kind, id string) (*T, bool, error) {
	k := key{kind: kind, id: id}
	if e, ok := tx.entries[k]; ok {
		if e.value == nil {
			return nil, false, nil
		}
		v, ok := e.value.(*T)
		if !ok {
			return nil, false, &Error{Op: "load", Kind: kind, ID: id, Err: fmt.Errorf("buffered value has type %T", e.value)}
		}
		return v, true, nil
	}

	v, found, err := Get[T](ctx, tx.backend, kind, id)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	tx.entries[k] = &entry{value: v}
	return v, true, nil
}

// LoadOrCreate returns the stored entity or the zero-defaulted one built by
// init. A created entity is persisted only if it is saved.
func LoadOrCreate[T any](ctx context.Context, tx *Tx, kind, id string, init func() *T) (*T, error) {
	v, found, err := Load[T](ctx, tx, kind, id)
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}

	v = init()
	k := key{kind: kind, id: id}
	if e, ok := tx.entries[k]; ok {
		e.value = v
	} else {
		tx.entries[k] = &entry{value: v}
	}
	return v, nil
}

// Save buffers v as the new value of (kind, id).
func (tx *Tx) Save(kind, id string, v interface{}) {
	e := tx.touch(kind, id)
	e.value = v
	e.op = opPut
}

// Delete buffers removal of (kind, id).
func (tx *Tx) Delete(kind, id string) {
	e := tx.touch(kind, id)
	e.value = nil
	e.op = opDelete
}

func (tx *Tx) touch(kind, id string) *entry {
	k := key{kind: kind, id: id}
	e, ok := tx.entries[k]
	if !ok {
		e = &entry{}
		tx.entries[k] = e
	}
	if e.op == opNone {
		tx.order = append(tx.order, k)
	}
	return e
}

// Pending returns the number of buffered writes.
func (tx *Tx) Pending() int {
	return len(tx.order)
}

// Commit encodes the buffered writes in first-touch order and applies them
// as one batch.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return &Error{Op: "commit", Err: fmt.Errorf("transaction already finished")}
	}
	tx.done = true
	if len(tx.order) == 0 {
		return nil
	}

	codec := tx.backend.Codec()
	ops := make([]Op, 0, len(tx.order))
	for _, k := range tx.order {
		e := tx.entries[k]
		switch e.op {
		case opDelete:
			ops = append(ops, Op{Kind: k.kind, ID: k.id, Delete: true})
		case opPut:
			data, err := codec.Marshal(e.value)
			if err != nil {
				return &Error{Op: "encode", Kind: k.kind, ID: k.id, Err: err}
			}
			ops = append(ops, Op{Kind: k.kind, ID: k.id, Data: data})
		}
	}

	if err := tx.backend.Apply(ctx, ops); err != nil {
		return &Error{Op: "apply", Kind: fmt.Sprintf("%d ops", len(ops)), Err: err}
	}
	return nil
}

// Discard drops every buffered write.
func (tx *Tx) Discard() {
	tx.done = true
	tx.entries = make(map[key]*entry)
	tx.order = nil
}

// Get reads one entity directly from backend.
func Get[T any](ctx context.Context, backend Backend, kind, id string) (*T, bool, error) {
	data, found, err := backend.Get(ctx, kind, id)
	if err != nil {
		return nil, false, &Error{Op: "get", Kind: kind, ID: id, Err: err}
	}
	if !found {
		return nil, false, nil
	}
	v := new(T)
	if err := backend.Codec().Unmarshal(data, v); err != nil {
		return nil, false, &Error{Op: "decode", Kind: kind, ID: id, Err: err}
	}
	return v, true, nil
}

// List reads every entity of kind whose id starts with prefix, ordered by id.
func List[T any](ctx context.Context, backend Backend, kind, prefix string) ([]*T, error) {
	items, err := backend.List(ctx, kind, prefix)
	if err != nil {
		return nil, &Error{Op: "list", Kind: kind, ID: prefix, Err: err}
	}
	out := make([]*T, 0, len(items))
	for _, data := range items {
		v := new(T)
		if err := backend.Codec().Unmarshal(data, v); err != nil {
			return nil, &Error{Op: "decode", Kind: kind, ID: prefix, Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}
