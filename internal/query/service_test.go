package query

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beanScope/internal/model"
	"beanScope/internal/store"
)

const (
	testBean   = "0xbea0000029ad1c77d3d5d23ba2d8893db9d1efab"
	testWell   = "0xbea0e11282e2bb5893bece110cf199501e872bad"
	testFarmer = "0x00000000000000000000000000000000000f4a2e"
)

type failingBackend struct {
	*store.Memory
	err error
}

func (f *failingBackend) List(context.Context, string, string) ([][]byte, error) {
	return nil, f.err
}

func poolSnapshot(entity string, bucket int64, price, liquidity string) *model.Snapshot {
	snap := &model.Snapshot{
		ID:          entity + "-" + strconv.FormatInt(bucket, 10),
		EntityID:    entity,
		Kind:        model.KindPool,
		Granularity: model.Hourly,
		Bucket:      bucket,
		Season:      uint32(bucket),
	}
	snap.Track(model.MetricPrice, decimal.RequireFromString(price))
	snap.Track(model.MetricLiquidityUSD, decimal.RequireFromString(liquidity))
	return snap
}

func seed(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	tx := store.Begin(mem)

	pool := model.NewPool(testWell)
	pool.LiquidityUSD = decimal.RequireFromString("1200")
	tx.Save(model.KindPool, pool.ID, pool)

	token := model.NewToken(testBean)
	token.Crosses = 2
	tx.Save(model.KindToken, token.ID, token)
	tx.Save(model.KindSeason, "7", model.NewSeason(7))

	hourly := model.SnapshotKind(model.KindPool, model.Hourly)
	for _, snap := range []*model.Snapshot{
		poolSnapshot(testWell, 10, "1.01", "1000"),
		poolSnapshot(testWell, 9, "0.99", "900"),
		poolSnapshot(testWell, 2, "0.90", "100"),
		poolSnapshot(testWell+"ff", 9, "5", "5"),
	} {
		tx.Save(hourly, snap.ID, snap)
	}

	for _, c := range []*model.Cross{
		{ID: model.CrossID(testBean, 2000), Token: testBean, Timestamp: 2000, Direction: "down"},
		{ID: model.CrossID(testBean, 1000), Token: testBean, Timestamp: 1000, Direction: "up"},
	} {
		tx.Save(model.KindCross, c.ID, c)
	}

	odd := model.NewGerminating(testFarmer, 3)
	odd.Stalk = decimal.NewFromInt(5)
	even := model.NewGerminating(testFarmer, 4)
	even.Stalk = decimal.NewFromInt(8)
	tx.Save(model.KindGerminating, odd.ID, odd)
	tx.Save(model.KindGerminating, even.ID, even)

	require.NoError(t, tx.Commit(ctx))
	return mem
}

func TestEntityLookups(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(seed(t))
	require.NoError(t, err)

	pool, err := svc.Pool(ctx, testWell)
	require.NoError(t, err)
	assert.Equal(t, "1200", pool.LiquidityUSD.String())

	token, err := svc.Token(ctx, testBean)
	require.NoError(t, err)
	assert.Equal(t, int64(2), token.Crosses)

	season, err := svc.Season(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), season.Season)

	_, err = svc.Field(ctx, "0xmissing")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, model.KindField, notFound.Kind)
}

func TestLookupsIgnoreAddressCase(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(seed(t))
	require.NoError(t, err)

	pool, err := svc.Pool(ctx, "0xBEA0e11282e2bB5893bEcE110cF199501e872bAd")
	require.NoError(t, err)
	assert.Equal(t, testWell, pool.ID)

	token, err := svc.Token(ctx, "0xBEA0000029AD1c77D3d5D23Ba2D8893dB9d1Efab")
	require.NoError(t, err)
	assert.Equal(t, testBean, token.ID)

	crosses, err := svc.Crosses(ctx, "0x"+strings.ToUpper(testBean[2:]))
	require.NoError(t, err)
	assert.Len(t, crosses, 2)

	records, err := svc.Germinating(ctx, "0x00000000000000000000000000000000000F4A2E")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	series, err := svc.PoolSeries(ctx, strings.ToUpper(testWell), model.Hourly, 0, 100)
	require.NoError(t, err)
	assert.Len(t, series, 3)
}

func TestPoolSeriesFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(seed(t))
	require.NoError(t, err)

	points, err := svc.PoolSeries(ctx, testWell, model.Hourly, 5, 20)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(9), points[0].Bucket)
	assert.Equal(t, int64(10), points[1].Bucket)
	assert.Equal(t, "1.01", points[1].Price.String())
	assert.Equal(t, "1000", points[1].LiquidityUSD.String())

	_, err = svc.PoolSeries(ctx, testWell, "weekly", 0, 1)
	assert.Error(t, err)
	_, err = svc.PoolSeries(ctx, testWell, model.Hourly, 5, 1)
	assert.Error(t, err)

	tokenPoints, err := svc.TokenSeries(ctx, testBean, model.Daily, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, tokenPoints)
}

func TestCrossesOrderedByTimestamp(t *testing.T) {
	svc, err := NewService(seed(t))
	require.NoError(t, err)

	crosses, err := svc.Crosses(context.Background(), testBean)
	require.NoError(t, err)
	require.Len(t, crosses, 2)
	assert.Equal(t, uint64(1000), crosses[0].Timestamp)
	assert.Equal(t, "down", crosses[1].Direction)
}

func TestGerminatingByAddress(t *testing.T) {
	svc, err := NewService(seed(t))
	require.NoError(t, err)

	records, err := svc.Germinating(context.Background(), testFarmer)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "EVEN", records[0].Type)
	assert.Equal(t, "ODD", records[1].Type)
}

func TestReadErrorsAreReturned(t *testing.T) {
	boom := errors.New("connection reset")
	svc, err := NewService(&failingBackend{Memory: store.NewMemory(), err: boom})
	require.NoError(t, err)

	_, err = svc.Crosses(context.Background(), testBean)
	assert.ErrorIs(t, err, boom)
	_, err = svc.PoolSeries(context.Background(), testWell, model.Hourly, 0, 10)
	assert.ErrorIs(t, err, boom)
}
