package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	ID    string `json:"id"`
	Value int64  `json:"value"`
	Tags  []string
}

func newCounter(id string) func() *counter {
	return func() *counter { return &counter{ID: id, Tags: []string{}} }
}

func TestLoadOrCreateReturnsDefaults(t *testing.T) {
	ctx := context.Background()
	tx := Begin(NewMemory())

	c, err := LoadOrCreate(ctx, tx, "counter", "a", newCounter("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", c.ID)
	assert.Zero(t, c.Value)
	assert.NotNil(t, c.Tags)
	assert.Zero(t, tx.Pending(), "created entity is not persisted until saved")
}

func TestTxReadYourWrites(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	tx := Begin(mem)

	c, err := LoadOrCreate(ctx, tx, "counter", "a", newCounter("a"))
	require.NoError(t, err)
	c.Value = 5
	tx.Save("counter", "a", c)

	again, found, err := Load[counter](ctx, tx, "counter", "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(5), again.Value)

	_, found, err = Get[counter](ctx, mem, "counter", "a")
	require.NoError(t, err)
	assert.False(t, found, "backend must not see uncommitted writes")

	require.NoError(t, tx.Commit(ctx))
	stored, found, err := Get[counter](ctx, mem, "counter", "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(5), stored.Value)
}

func TestTxDeleteThenRecreate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	seed := Begin(mem)
	seed.Save("counter", "a", &counter{ID: "a", Value: 3})
	require.NoError(t, seed.Commit(ctx))

	tx := Begin(mem)
	tx.Delete("counter", "a")
	_, found, err := Load[counter](ctx, tx, "counter", "a")
	require.NoError(t, err)
	assert.False(t, found)

	fresh, err := LoadOrCreate(ctx, tx, "counter", "a", newCounter("a"))
	require.NoError(t, err)
	assert.Zero(t, fresh.Value)

	require.NoError(t, tx.Commit(ctx))
	assert.Zero(t, mem.Count("counter"), "pending delete survives an unsaved re-create")
}

func TestDiscardedTxLeavesBackendUntouched(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	seed := Begin(mem)
	seed.Save("counter", "a", &counter{ID: "a", Value: 1})
	require.NoError(t, seed.Commit(ctx))
	before := mem.Dump()

	tx := Begin(mem)
	c, found, err := Load[counter](ctx, tx, "counter", "a")
	require.NoError(t, err)
	require.True(t, found)
	c.Value = 99
	tx.Save("counter", "a", c)
	tx.Save("counter", "b", &counter{ID: "b"})
	tx.Discard()

	assert.Equal(t, before, mem.Dump())
	assert.Error(t, tx.Commit(ctx))
}

func TestCommitFailureIsStoreError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.FailApply = errors.New("disk full")

	tx := Begin(mem)
	tx.Save("counter", "a", &counter{ID: "a"})
	err := tx.Commit(ctx)

	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "apply", storeErr.Op)
	assert.Zero(t, mem.Count("counter"))
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	tx := Begin(mem)
	tx.Save("counter", "0xabc-2", &counter{ID: "0xabc-2", Value: 2})
	tx.Save("counter", "0xabc-1", &counter{ID: "0xabc-1", Value: 1})
	tx.Save("counter", "0xdef-1", &counter{ID: "0xdef-1", Value: 7})
	require.NoError(t, tx.Commit(ctx))

	items, err := List[counter](ctx, mem, "counter", "0xabc-")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "0xabc-1", items[0].ID)
	assert.Equal(t, "0xabc-2", items[1].ID)
}
