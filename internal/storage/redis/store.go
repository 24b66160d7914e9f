package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"beanScope/internal/store"
)

// MsgpackCodec encodes entities with msgpack, reusing their json field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// Store keeps one hash per entity kind, keyed by entity id.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// NewStore wraps client. Every hash key is namespaced under prefix.
func NewStore(client goredis.UniversalClient, prefix string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if prefix == "" {
		prefix = "beanscope"
	}
	return &Store{client: client, prefix: prefix}, nil
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStore(client, prefix)
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Codec() store.Codec { return MsgpackCodec{} }

func (s *Store) key(kind string) string {
	return s.prefix + ":" + kind
}

func (s *Store) Get(ctx context.Context, kind, id string) ([]byte, bool, error) {
	data, err := s.client.HGet(ctx, s.key(kind), id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) List(ctx context.Context, kind, prefix string) ([][]byte, error) {
	all, err := s.client.HGetAll(ctx, s.key(kind)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, []byte(all[id]))
	}
	return out, nil
}

// Apply writes every op inside one MULTI/EXEC block.
func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, op := range ops {
			if op.Delete {
				pipe.HDel(ctx, s.key(op.Kind), op.ID)
				continue
			}
			pipe.HSet(ctx, s.key(op.Kind), op.ID, op.Data)
		}
		return nil
	})
	return err
}
