package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beanScope/internal/cross"
	"beanScope/internal/dex"
	"beanScope/internal/model"
	"beanScope/internal/oracle"
	"beanScope/internal/registry"
	"beanScope/internal/store"
)

const (
	testBean      = "0xbea0000029ad1c77d3d5d23ba2d8893db9d1efab"
	testBeanstalk = "0xc1e088fc1323b20bcbee9bd1b9fc9546db5624c5"
	testWeth      = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	testWell      = "0xbea0e11282e2bb5893bece110cf199501e872bad"
	testFarmer    = "0x00000000000000000000000000000000000f4a2e"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pow10(base int64, exp int) *big.Int {
	return new(big.Int).Mul(big.NewInt(base), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
}

// fakeOracle serves the quote registered for a block, or the last one set.
type fakeOracle struct {
	quotes map[uint64]oracle.Quote
	last   oracle.Quote
	err    error
	calls  int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{quotes: make(map[uint64]oracle.Quote)}
}

func (f *fakeOracle) set(block uint64, q oracle.Quote) {
	q.Block = block
	f.quotes[block] = q
	f.last = q
}

func (f *fakeOracle) QueryPrice(_ context.Context, _ string, block uint64) (oracle.Quote, error) {
	f.calls++
	if f.err != nil {
		return oracle.Quote{}, f.err
	}
	if q, ok := f.quotes[block]; ok {
		return q, nil
	}
	return f.last, nil
}

// quote builds a single-Well quote where the pool carries all liquidity.
func quote(price, liquidity string, balBean, balWeth *big.Int) oracle.Quote {
	return oracle.Quote{
		Asset:        testBean,
		Price:        dec(price),
		LiquidityUSD: dec(liquidity),
		Pools: []oracle.PoolQuote{{
			Pool:         testWell,
			Tokens:       []string{testBean, testWeth},
			Balances:     []*big.Int{balBean, balWeth},
			Price:        dec(price),
			LiquidityUSD: dec(liquidity),
		}},
	}
}

type fixture struct {
	ctx    context.Context
	engine *Engine
	oracle *fakeOracle
	mem    *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.New(registry.Config{
		BeanToken: testBean,
		Beanstalk: testBeanstalk,
		Tokens:    []string{testWeth + ":WETH:18"},
		Pools:     []string{testWell + ":" + testBean + "/" + testWeth},
	})
	require.NoError(t, err)

	fx := &fixture{ctx: context.Background(), oracle: newFakeOracle(), mem: store.NewMemory()}
	fx.engine, err = NewEngine(DefaultConfig(), reg, fx.oracle, fx.mem, nil, nil)
	require.NoError(t, err)
	return fx
}

func (fx *fixture) apply(t *testing.T, ev model.Event) {
	t.Helper()
	require.NoError(t, fx.engine.Apply(fx.ctx, ev))
}

func meta(address string, block, log uint64) model.EventMeta {
	return model.EventMeta{
		ChainID:     1,
		BlockNumber: block,
		LogIndex:    log,
		Address:     address,
		Timestamp:   1_700_000_000 + block*12,
	}
}

func addLiquidity(block uint64) model.AddLiquidity {
	return model.AddLiquidity{
		EventMeta: meta(testWell, block, 0),
		Amounts:   []*big.Int{pow10(1, 6), big.NewInt(0)},
	}
}

func getEntity[T any](t *testing.T, fx *fixture, kind, id string) *T {
	t.Helper()
	v, found, err := store.Get[T](fx.ctx, fx.mem, kind, id)
	require.NoError(t, err)
	require.True(t, found, "%s/%s missing", kind, id)
	return v
}

func TestLiquidityMovesPoolAndTokenTogether(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("1.0", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.oracle.set(11, quote("1.0", "1200", pow10(1100, 6), pow10(1, 18)))

	fx.apply(t, addLiquidity(10))
	fx.apply(t, addLiquidity(11))

	pool := getEntity[model.Pool](t, fx, model.KindPool, testWell)
	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.True(t, pool.LiquidityUSD.Equal(dec("1200")), "pool liquidity %s", pool.LiquidityUSD)
	assert.True(t, token.LiquidityUSD.Equal(pool.LiquidityUSD), "token liquidity %s", token.LiquidityUSD)
	assert.Equal(t, []string{testWell}, token.Pools)
	assert.Equal(t, "1100000000", pool.Reserves[0].String())
	assert.True(t, pool.Volume.IsZero(), "add liquidity carries no volume")

	snap := getEntity[model.Snapshot](t, fx, model.SnapshotKind(model.KindPool, model.Hourly), testWell+"-0")
	liq := snap.Value(model.MetricLiquidityUSD)
	assert.True(t, liq.Close.Sub(liq.Open).Equal(liq.Delta), "close-open %s delta %s", liq.Close.Sub(liq.Open), liq.Delta)
	assert.True(t, liq.Delta.Equal(dec("1200")))

	stats := fx.engine.Stats()
	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 2, fx.oracle.calls)
}

func TestOracleFailureLeavesStoreUntouched(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("1.0", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.apply(t, addLiquidity(10))
	before := fx.mem.Dump()

	fx.oracle.err = &oracle.Failure{Asset: testBean, Block: 11, Reason: "execution reverted"}
	fx.apply(t, addLiquidity(11))

	assert.Equal(t, before, fx.mem.Dump())
	assert.Equal(t, 1, fx.engine.Stats().Oracle)
	assert.Equal(t, 1, fx.engine.Stats().Applied)
}

func TestPoolMissingFromQuoteIsOracleFailure(t *testing.T) {
	fx := newFixture(t)
	q := quote("1.0", "1000", pow10(1000, 6), pow10(1, 18))
	q.Pools = nil
	fx.oracle.set(10, q)

	fx.apply(t, addLiquidity(10))
	assert.Equal(t, 1, fx.engine.Stats().Oracle)
	assert.Zero(t, fx.mem.Count(model.KindPool))
}

func TestSingleSidedRemovalVolume(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("1.0", "4000000", pow10(2, 12), pow10(1000, 18)))

	fx.apply(t, model.RemoveLiquidityOneToken{
		EventMeta: meta(testWell, 10, 0),
		TokenOut:  testWeth,
		AmountOut: pow10(1, 18),
	})
	pool := getEntity[model.Pool](t, fx, model.KindPool, testWell)
	assert.Equal(t, "1000", pool.Volume.String())
	assert.Equal(t, "1000", pool.VolumeUSD.String())

	fx.apply(t, model.RemoveLiquidity{
		EventMeta: meta(testWell, 11, 0),
		Amounts:   []*big.Int{big.NewInt(3), big.NewInt(0)},
	})
	pool = getEntity[model.Pool](t, fx, model.KindPool, testWell)
	assert.Equal(t, "1000.000001", pool.Volume.String())

	fx.apply(t, model.RemoveLiquidity{
		EventMeta: meta(testWell, 12, 0),
		Amounts:   []*big.Int{pow10(1, 6), pow10(1, 15)},
	})
	pool = getEntity[model.Pool](t, fx, model.KindPool, testWell)
	assert.Equal(t, "1000.000001", pool.Volume.String(), "balanced removal carries no volume")
}

func TestSwapAndShiftVolume(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("2.0", "1000", pow10(1000, 6), pow10(1, 18)))

	fx.apply(t, model.Swap{
		EventMeta: meta(testWell, 10, 0),
		FromToken: testWeth,
		ToToken:   testBean,
		AmountIn:  pow10(1, 17),
		AmountOut: pow10(50, 6),
	})
	pool := getEntity[model.Pool](t, fx, model.KindPool, testWell)
	assert.Equal(t, "50", pool.Volume.String())
	assert.Equal(t, "100", pool.VolumeUSD.String())

	// Reserves are now (1000e6, 1e18); 25 bean paid in for weth.
	fx.apply(t, model.Shift{
		EventMeta: meta(testWell, 11, 0),
		Reserves:  []*big.Int{pow10(1025, 6), pow10(9, 17)},
		ToToken:   testWeth,
		AmountOut: pow10(1, 17),
	})
	pool = getEntity[model.Pool](t, fx, model.KindPool, testWell)
	assert.Equal(t, "75", pool.Volume.String())
	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Equal(t, "75", token.Volume.String())
}

func TestSunriseRecordsCross(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("0.98", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.oracle.set(20, quote("1.02", "1000", pow10(1000, 6), pow10(1, 18)))

	fx.apply(t, addLiquidity(10))
	sunrise := model.SeasonAdvanced{EventMeta: meta(testBeanstalk, 20, 0), Season: 1}
	fx.apply(t, sunrise)

	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Equal(t, int64(1), token.Crosses)
	assert.Equal(t, uint32(1), token.LastSeason)
	assert.True(t, token.Price.Equal(dec("1.02")))

	c := getEntity[model.Cross](t, fx, model.KindCross, model.CrossID(testBean, sunrise.Timestamp))
	assert.Equal(t, string(cross.Up), c.Direction)
	assert.True(t, c.PreviousPrice.Equal(dec("0.98")))

	season := getEntity[model.Season](t, fx, model.KindSeason, "1")
	assert.Equal(t, uint64(20), season.SunriseBlock)
	assert.True(t, season.Price.Equal(dec("1.02")))

	pool := getEntity[model.Pool](t, fx, model.KindPool, testWell)
	assert.Equal(t, uint32(1), pool.LastSeason)

	field := getEntity[model.Field](t, fx, model.KindField, testBeanstalk)
	assert.Equal(t, uint32(1), field.Season)
	assert.False(t, field.RealRateOfReturn.IsZero())
}

func TestFirstPriceIsNotCross(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("1.05", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.apply(t, addLiquidity(10))

	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Zero(t, token.Crosses)
	assert.Zero(t, fx.mem.Count(model.KindCross))
}

func TestTemperatureSaturatesAtZero(t *testing.T) {
	fx := newFixture(t)
	changes := []int64{30, -40, -10}
	wantApplied := []string{"30", "-30", "0"}

	for i, change := range changes {
		season := uint32(i + 1)
		fx.apply(t, model.TemperatureChange{
			EventMeta: meta(testBeanstalk, uint64(100+i), 0),
			Season:    season,
			CaseID:    uint64(7 + i),
			AbsChange: change,
		})
		rc := getEntity[model.RateChange](t, fx, model.KindRateChange, model.RateChangeID(testBeanstalk, model.MetricTemperature, season))
		assert.Equal(t, wantApplied[i], rc.Applied.String(), "season %d", season)
		assert.Equal(t, change, rc.Requested.IntPart())
	}

	field := getEntity[model.Field](t, fx, model.KindField, testBeanstalk)
	assert.True(t, field.Temperature.IsZero())

	snap := getEntity[model.Snapshot](t, fx, model.SnapshotKind(model.KindField, model.Hourly), testBeanstalk+"-2")
	require.NotNil(t, snap.CaseID)
	assert.Equal(t, uint64(8), *snap.CaseID)
	assert.Equal(t, "-30", snap.Value(model.MetricTemperature).Delta.String())
}

func TestRatioChangeIsClamped(t *testing.T) {
	fx := newFixture(t)
	fx.apply(t, model.RatioChange{EventMeta: meta(testBeanstalk, 100, 0), Season: 1, AbsChange: pow10(150, 18)})

	silo := getEntity[model.Silo](t, fx, model.KindSilo, testBeanstalk)
	assert.True(t, silo.BeanToMaxLpGpPerBdvRatio.Equal(decimal.New(100, 18)))
	rc := getEntity[model.RateChange](t, fx, model.KindRateChange, model.RateChangeID(testBeanstalk, model.MetricBeanToMaxLpGpPerBdvRatio, 1))
	assert.True(t, rc.Applied.Equal(decimal.New(100, 18)))
}

func TestWhitelistAndGaugeSettings(t *testing.T) {
	fx := newFixture(t)
	fx.apply(t, model.WhitelistToken{
		EventMeta:                  meta(testBeanstalk, 100, 0),
		Token:                      testWell,
		Selector:                   "0xc84c7727",
		GpSelector:                 "0x9dcf7d4c",
		LwSelector:                 "0x00000000",
		StalkEarnedPerSeason:       big.NewInt(4),
		StalkIssuedPerBdv:          pow10(1, 10),
		GaugePoints:                pow10(1000, 18),
		OptimalPercentDepositedBdv: pow10(100, 6),
	})
	fx.apply(t, model.GaugePointChange{EventMeta: meta(testBeanstalk, 101, 0), Token: testWell, GaugePoints: pow10(1200, 18)})
	fx.apply(t, model.GaugeSettingsUpdate{
		EventMeta:                  meta(testBeanstalk, 102, 0),
		Token:                      testWell,
		GpSelector:                 "0x12345678",
		LwSelector:                 "0x87654321",
		OptimalPercentDepositedBdv: pow10(50, 6),
	})

	setting := getEntity[model.WhitelistTokenSetting](t, fx, model.KindWhitelistSetting, testWell)
	assert.Equal(t, "0xc84c7727", setting.Selector)
	assert.Equal(t, "0x12345678", setting.GpSelector)
	assert.True(t, setting.GaugePoints.Equal(decimal.New(1200, 18)))
	assert.True(t, setting.OptimalPercentDepositedBdv.Equal(decimal.New(50, 6)))

	snap := getEntity[model.Snapshot](t, fx, model.SnapshotKind(model.KindWhitelistSetting, model.Hourly), testWell+"-0")
	assert.Equal(t, "0x87654321", snap.Labels[labelLwSelector])
	assert.True(t, snap.Value(model.MetricGaugePoints).Delta.Equal(decimal.New(1200, 18)))
}

func TestFarmerGerminatingDeletedAtZero(t *testing.T) {
	fx := newFixture(t)
	id := model.GerminatingID(testFarmer, model.GerminationEven)

	fx.apply(t, model.FarmerGerminatingChange{EventMeta: meta(testBeanstalk, 100, 0), Account: testFarmer, Delta: big.NewInt(500)})
	germ := getEntity[model.Germinating](t, fx, model.KindGerminating, id)
	assert.Equal(t, "500", germ.Stalk.String())

	fx.apply(t, model.FarmerGerminatingChange{EventMeta: meta(testBeanstalk, 101, 0), Account: testFarmer, Delta: big.NewInt(-500), State: model.GerminationEven})
	_, found, err := store.Get[model.Germinating](fx.ctx, fx.mem, model.KindGerminating, id)
	require.NoError(t, err)
	assert.False(t, found, "record drained to zero must be deleted")

	silo := getEntity[model.Silo](t, fx, model.KindSilo, testFarmer)
	assert.True(t, silo.GerminatingStalk.IsZero())

	fx.apply(t, model.FarmerGerminatingChange{EventMeta: meta(testBeanstalk, 102, 0), Account: testFarmer, Delta: big.NewInt(-1), State: model.GerminationOdd})
	assert.Equal(t, 1, fx.engine.Stats().Invariant)
}

func TestTotalGerminating(t *testing.T) {
	fx := newFixture(t)
	tokenID := model.GerminatingID(testWell, model.GerminationOdd)

	fx.apply(t, model.TotalGerminatingBalanceChange{EventMeta: meta(testBeanstalk, 100, 0), Season: 3, Token: testWell, DeltaAmount: big.NewInt(10), DeltaBdv: big.NewInt(20)})
	germ := getEntity[model.Germinating](t, fx, model.KindGerminating, tokenID)
	assert.Equal(t, "20", germ.Bdv.String())

	fx.apply(t, model.TotalGerminatingBalanceChange{EventMeta: meta(testBeanstalk, 101, 0), Season: 3, Token: testWell, DeltaAmount: big.NewInt(-10), DeltaBdv: big.NewInt(-20)})
	_, found, err := store.Get[model.Germinating](fx.ctx, fx.mem, model.KindGerminating, tokenID)
	require.NoError(t, err)
	assert.False(t, found)

	protocolID := model.GerminatingID(testBeanstalk, model.GerminationEven)
	fx.apply(t, model.TotalGerminatingStalkChange{EventMeta: meta(testBeanstalk, 102, 0), Season: 4, Delta: big.NewInt(7)})
	fx.apply(t, model.TotalGerminatingStalkChange{EventMeta: meta(testBeanstalk, 103, 0), Season: 4, Delta: big.NewInt(-7)})
	germ = getEntity[model.Germinating](t, fx, model.KindGerminating, protocolID)
	assert.True(t, germ.Stalk.IsZero(), "protocol record is kept at zero")

	silo := getEntity[model.Silo](t, fx, model.KindSilo, testBeanstalk)
	assert.Equal(t, "20", silo.DepositedBDV.String())

	fx.apply(t, model.AverageGrownStalkUpdate{EventMeta: meta(testBeanstalk, 104, 0), Value: big.NewInt(3)})
	silo = getEntity[model.Silo](t, fx, model.KindSilo, testBeanstalk)
	assert.Equal(t, "60", silo.GrownStalkPerBdvPerSeason.String())
}

func TestSupplyMintAndBurn(t *testing.T) {
	fx := newFixture(t)
	fx.apply(t, model.SupplyChange{EventMeta: meta(testBean, 100, 0), From: model.ZeroAddress, To: testFarmer, Value: pow10(100, 6)})
	fx.apply(t, model.SupplyChange{EventMeta: meta(testBean, 101, 0), From: testFarmer, To: model.ZeroAddress, Value: pow10(40, 6)})

	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Equal(t, "60", token.Supply.String())

	fx.apply(t, model.SupplyChange{EventMeta: meta(testBean, 102, 0), From: testFarmer, To: model.ZeroAddress, Value: pow10(61, 6)})
	assert.Equal(t, 1, fx.engine.Stats().Invariant)
	token = getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Equal(t, "60", token.Supply.String())
}

func TestOutOfOrderEventIsDiscarded(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(20, quote("1.0", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.apply(t, addLiquidity(20))
	before := fx.mem.Dump()

	fx.apply(t, addLiquidity(10))
	assert.Equal(t, before, fx.mem.Dump())
	assert.Equal(t, 1, fx.engine.Stats().Invariant)
	assert.Equal(t, 1, fx.oracle.calls, "ordering is checked before the oracle")
}

func TestUnregisteredPoolIsInvariant(t *testing.T) {
	fx := newFixture(t)
	ev := addLiquidity(10)
	ev.Address = testWeth
	fx.apply(t, ev)
	assert.Equal(t, 1, fx.engine.Stats().Invariant)
	assert.Zero(t, fx.oracle.calls)
}

func TestStoreFailureIsFatal(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("1.0", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.mem.FailApply = errors.New("disk full")

	err := fx.engine.Apply(fx.ctx, addLiquidity(10))
	require.Error(t, err)
	var storeErr *store.Error
	assert.ErrorAs(t, err, &storeErr)
	assert.Zero(t, fx.engine.Stats().Applied)
}

func TestProcessSkipsUndecodableLogs(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.engine.Process(fx.ctx, model.LogRecord{Address: testWell, BlockNumber: 1, Removed: true, Topics: []string{"0x01"}}))
	require.NoError(t, fx.engine.Process(fx.ctx, model.LogRecord{Address: testWell, BlockNumber: 2}))

	stats := fx.engine.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Decode)
	assert.Zero(t, stats.Applied)
	assert.Empty(t, fx.mem.Dump())
}

func TestResumeRejectsCommittedPositions(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(20, quote("1.0", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.apply(t, addLiquidity(20))

	progress := getEntity[model.Progress](t, fx, model.KindProgress, progressID)
	assert.Equal(t, uint64(20), progress.Position.Block)

	restarted, err := NewEngine(DefaultConfig(), fx.engine.reg, fx.oracle, fx.mem, nil, nil)
	require.NoError(t, err)
	require.NoError(t, restarted.Resume(fx.ctx))
	require.NoError(t, restarted.Apply(fx.ctx, addLiquidity(10)))
	assert.Equal(t, 1, restarted.Stats().Invariant)
}

func sunriseLine(t *testing.T, block uint64, season int64) string {
	t.Helper()
	parsed, err := dex.BeanstalkABI()
	require.NoError(t, err)
	record := model.LogRecord{
		ChainID:     1,
		BlockNumber: block,
		Address:     testBeanstalk,
		Topics:      []string{parsed.Events["Sunrise"].ID.Hex(), common.BigToHash(big.NewInt(season)).Hex()},
		Data:        "0x",
		Timestamp:   1_700_000_000 + block*12,
	}
	line, err := json.Marshal(record)
	require.NoError(t, err)
	return string(line)
}

func TestRunAppliesFileAndResumes(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(100, quote("1.0", "1000", pow10(1000, 6), pow10(1, 18)))

	path := filepath.Join(t.TempDir(), "logs.jsonl")
	lines := []string{sunriseLine(t, 100, 1), "{broken", sunriseLine(t, 200, 2)}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	require.NoError(t, fx.engine.Run(fx.ctx, path))
	stats := fx.engine.Stats()
	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 1, stats.Decode)
	getEntity[model.Season](t, fx, model.KindSeason, "2")

	cfg := DefaultConfig()
	cfg.Resume = true
	restarted, err := NewEngine(cfg, fx.engine.reg, fx.oracle, fx.mem, nil, nil)
	require.NoError(t, err)
	require.NoError(t, restarted.Run(fx.ctx, path))
	assert.Zero(t, restarted.Stats().Applied, "committed positions are not replayed")
}

func TestCrossLandingOnPeg(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(10, quote("0.99", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.oracle.set(11, quote("1", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.oracle.set(12, quote("1.01", "1000", pow10(1000, 6), pow10(1, 18)))

	fx.apply(t, addLiquidity(10))
	fx.apply(t, addLiquidity(11))
	fx.apply(t, addLiquidity(12))

	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Equal(t, int64(1), token.Crosses, "a pass through the peg counts once")
	assert.Equal(t, 1, fx.mem.Count(model.KindCross))

	c := getEntity[model.Cross](t, fx, model.KindCross, model.CrossID(testBean, meta(testWell, 11, 0).Timestamp))
	assert.Equal(t, string(cross.Up), c.Direction)
	assert.True(t, c.Price.Equal(dec("1")))
	assert.True(t, c.PreviousPrice.Equal(dec("0.99")))
}

func TestSunriseWithoutPriceKeepsSeasonMoving(t *testing.T) {
	fx := newFixture(t)
	fx.oracle.set(50, quote("1.0", "1000", pow10(1000, 6), pow10(1, 18)))
	fx.apply(t, model.SeasonAdvanced{EventMeta: meta(testBeanstalk, 50, 0), Season: 5})

	fx.oracle.err = &oracle.Failure{Asset: testBean, Block: 60, Reason: "execution reverted"}
	fx.apply(t, model.SeasonAdvanced{EventMeta: meta(testBeanstalk, 60, 0), Season: 6})
	fx.oracle.err = nil

	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Equal(t, uint32(6), token.LastSeason)
	season := getEntity[model.Season](t, fx, model.KindSeason, "6")
	assert.Equal(t, uint64(60), season.SunriseBlock)
	assert.True(t, season.Price.IsZero(), "no price is recorded without a quote")

	fx.apply(t, model.OracleUpdate{EventMeta: meta(testWell, 61, 0), Season: 6, Well: testWell, DeltaB: pow10(5, 6)})
	for i := uint64(0); i < 5; i++ {
		block := 62 + i
		liquidity := decimal.NewFromInt(1020 + 20*int64(i)).String()
		fx.oracle.set(block, quote("1.0", liquidity, pow10(1000, 6), pow10(1, 18)))
		fx.apply(t, addLiquidity(block))
	}

	stats := fx.engine.Stats()
	assert.Zero(t, stats.Invariant)
	assert.Equal(t, 1, stats.Oracle)
	assert.Equal(t, 7, stats.Applied)

	pool := getEntity[model.Pool](t, fx, model.KindPool, testWell)
	assert.Equal(t, "1100", pool.LiquidityUSD.String())
	assert.Equal(t, "5", pool.TwaDeltaB.String())
	getEntity[model.Snapshot](t, fx, model.SnapshotKind(model.KindPool, model.Hourly), testWell+"-6")
}

func TestSeasonReportedByGaugeReachesGerminating(t *testing.T) {
	fx := newFixture(t)
	fx.apply(t, model.RatioChange{EventMeta: meta(testBeanstalk, 100, 0), Season: 2, AbsChange: pow10(1, 18)})
	fx.apply(t, model.FarmerGerminatingChange{EventMeta: meta(testBeanstalk, 101, 0), Account: testFarmer, Delta: big.NewInt(500)})
	fx.apply(t, model.TotalGerminatingStalkChange{EventMeta: meta(testBeanstalk, 102, 0), Season: 1, Delta: big.NewInt(7)})

	stats := fx.engine.Stats()
	assert.Zero(t, stats.Invariant)
	assert.Equal(t, 3, stats.Applied)

	token := getEntity[model.Token](t, fx, model.KindToken, testBean)
	assert.Equal(t, uint32(2), token.LastSeason, "an older germination season does not move the season back")

	farmer := getEntity[model.Germinating](t, fx, model.KindGerminating, model.GerminatingID(testFarmer, model.GerminationEven))
	assert.Equal(t, uint32(2), farmer.Season)

	snapKind := model.SnapshotKind(model.KindSilo, model.Hourly)
	snap := getEntity[model.Snapshot](t, fx, snapKind, testFarmer+"-2")
	assert.Equal(t, "500", snap.Value(model.MetricGerminatingStalk).Delta.String())
	snap = getEntity[model.Snapshot](t, fx, snapKind, testBeanstalk+"-2")
	assert.Equal(t, "7", snap.Value(model.MetricGerminatingStalk).Delta.String())
}
