package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"beanScope/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
)`

// Store persists entities as JSONB documents keyed by (kind, id).
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the entities table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Codec() store.Codec { return store.JSONCodec{} }

func (s *Store) Get(ctx context.Context, kind, id string) ([]byte, bool, error) {
	var data string
	row := s.pool.QueryRow(ctx, `SELECT data::text FROM entities WHERE kind=$1 AND id=$2`, kind, id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(data), true, nil
}

func (s *Store) List(ctx context.Context, kind, prefix string) ([][]byte, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data::text FROM entities
		WHERE kind=$1 AND id LIKE $2 ESCAPE '\'
		ORDER BY id
	`, kind, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([][]byte, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, []byte(data))
	}
	return out, rows.Err()
}

// Apply writes every op inside one SQL transaction.
func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, op := range ops {
		if op.Delete {
			batch.Queue(`DELETE FROM entities WHERE kind=$1 AND id=$2`, op.Kind, op.ID)
			continue
		}
		batch.Queue(`
			INSERT INTO entities (kind, id, data, updated_at)
			VALUES ($1, $2, $3::jsonb, now())
			ON CONFLICT (kind, id)
			DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		`, op.Kind, op.ID, string(op.Data))
	}

	br := tx.SendBatch(ctx, batch)
	for _, op := range ops {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("%s/%s: %w", op.Kind, op.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
