package model

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Entity kinds used as store namespaces.
const (
	KindPool             = "pool"
	KindToken            = "token"
	KindField            = "field"
	KindSilo             = "silo"
	KindSeason           = "season"
	KindGerminating      = "germinating"
	KindWhitelistSetting = "whitelist_token_setting"
	KindCross            = "cross"
	KindRateChange       = "rate_change"
	KindProgress         = "progress"
)

// Metric names tracked on snapshots.
const (
	MetricPrice                      = "price"
	MetricVolume                     = "volume"
	MetricVolumeUSD                  = "volume_usd"
	MetricLiquidityUSD               = "liquidity_usd"
	MetricDeltaB                     = "delta_b"
	MetricTwaDeltaB                  = "twa_delta_b"
	MetricSupply                     = "supply"
	MetricCrosses                    = "crosses"
	MetricTemperature                = "temperature"
	MetricRealRateOfReturn           = "real_rate_of_return"
	MetricGerminatingStalk           = "germinating_stalk"
	MetricBeanToMaxLpGpPerBdvRatio   = "bean_to_max_lp_gp_per_bdv_ratio"
	MetricGrownStalkPerBdvPerSeason  = "grown_stalk_per_bdv_per_season"
	MetricGaugePoints                = "gauge_points"
	MetricStalkEarnedPerSeason       = "stalk_earned_per_season"
	MetricOptimalPercentDepositedBdv = "optimal_percent_deposited_bdv"
)

// Pool is one Well tracked by the engine.
type Pool struct {
	ID            string            `json:"id"`
	Tokens        []string          `json:"tokens"`
	Reserves      []decimal.Decimal `json:"reserves"`
	Volume        decimal.Decimal   `json:"volume"`
	VolumeUSD     decimal.Decimal   `json:"volume_usd"`
	LiquidityUSD  decimal.Decimal   `json:"liquidity_usd"`
	LastPrice     decimal.Decimal   `json:"last_price"`
	DeltaB        decimal.Decimal   `json:"delta_b"`
	TwaDeltaB     decimal.Decimal   `json:"twa_delta_b"`
	LastSeason    uint32            `json:"last_season"`
	CreatedBlock  uint64            `json:"created_block"`
	LastBlock     uint64            `json:"last_block"`
	LastTimestamp uint64            `json:"last_timestamp"`
}

func NewPool(id string) *Pool {
	return &Pool{ID: id, Tokens: []string{}, Reserves: []decimal.Decimal{}}
}

func (p *Pool) SnapshotEntity() string { return p.ID }
func (p *Pool) SnapshotKind() string   { return KindPool }

func (p *Pool) SnapshotValues() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		MetricPrice:        p.LastPrice,
		MetricVolume:       p.Volume,
		MetricVolumeUSD:    p.VolumeUSD,
		MetricLiquidityUSD: p.LiquidityUSD,
		MetricDeltaB:       p.DeltaB,
		MetricTwaDeltaB:    p.TwaDeltaB,
	}
}

// Token is the base asset aggregated across every pool.
type Token struct {
	ID            string          `json:"id"`
	Price         decimal.Decimal `json:"price"`
	Supply        decimal.Decimal `json:"supply"`
	LiquidityUSD  decimal.Decimal `json:"liquidity_usd"`
	Volume        decimal.Decimal `json:"volume"`
	VolumeUSD     decimal.Decimal `json:"volume_usd"`
	Pools         []string        `json:"pools"`
	Crosses       int64           `json:"crosses"`
	LastCross     uint64          `json:"last_cross"`
	LastSeason    uint32          `json:"last_season"`
	LastBlock     uint64          `json:"last_block"`
	LastTimestamp uint64          `json:"last_timestamp"`
}

func NewToken(id string) *Token {
	return &Token{ID: id, Pools: []string{}}
}

// AddPool links a pool id once.
func (t *Token) AddPool(pool string) {
	for _, existing := range t.Pools {
		if existing == pool {
			return
		}
	}
	t.Pools = append(t.Pools, pool)
}

func (t *Token) SnapshotEntity() string { return t.ID }
func (t *Token) SnapshotKind() string   { return KindToken }

func (t *Token) SnapshotValues() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		MetricPrice:        t.Price,
		MetricSupply:       t.Supply,
		MetricLiquidityUSD: t.LiquidityUSD,
		MetricVolume:       t.Volume,
		MetricVolumeUSD:    t.VolumeUSD,
		MetricCrosses:      decimal.NewFromInt(t.Crosses),
	}
}

// Field holds the soil lending rate of the protocol.
type Field struct {
	ID               string          `json:"id"`
	Season           uint32          `json:"season"`
	Temperature      decimal.Decimal `json:"temperature"`
	RealRateOfReturn decimal.Decimal `json:"real_rate_of_return"`
}

func NewField(id string) *Field { return &Field{ID: id} }

func (f *Field) SnapshotEntity() string { return f.ID }
func (f *Field) SnapshotKind() string   { return KindField }

func (f *Field) SnapshotValues() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		MetricTemperature:      f.Temperature,
		MetricRealRateOfReturn: f.RealRateOfReturn,
	}
}

// Silo holds the protocol or farmer silo totals.
type Silo struct {
	ID                        string          `json:"id"`
	GerminatingStalk          decimal.Decimal `json:"germinating_stalk"`
	BeanToMaxLpGpPerBdvRatio  decimal.Decimal `json:"bean_to_max_lp_gp_per_bdv_ratio"`
	GrownStalkPerBdvPerSeason decimal.Decimal `json:"grown_stalk_per_bdv_per_season"`
	DepositedBDV              decimal.Decimal `json:"deposited_bdv"`
}

func NewSilo(id string) *Silo { return &Silo{ID: id} }

func (s *Silo) SnapshotEntity() string { return s.ID }
func (s *Silo) SnapshotKind() string   { return KindSilo }

func (s *Silo) SnapshotValues() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		MetricGerminatingStalk:          s.GerminatingStalk,
		MetricBeanToMaxLpGpPerBdvRatio:  s.BeanToMaxLpGpPerBdvRatio,
		MetricGrownStalkPerBdvPerSeason: s.GrownStalkPerBdvPerSeason,
	}
}

// Season is written once per Sunrise.
type Season struct {
	ID           string          `json:"id"`
	Season       uint32          `json:"season"`
	SunriseBlock uint64          `json:"sunrise_block"`
	Timestamp    uint64          `json:"timestamp"`
	Price        decimal.Decimal `json:"price"`
	DeltaB       decimal.Decimal `json:"delta_b"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
}

func SeasonID(season uint32) string { return strconv.FormatUint(uint64(season), 10) }

func NewSeason(season uint32) *Season {
	return &Season{ID: SeasonID(season), Season: season}
}

// WhitelistTokenSetting holds the silo settings of one whitelisted token.
type WhitelistTokenSetting struct {
	ID                         string          `json:"id"`
	Selector                   string          `json:"selector"`
	GpSelector                 string          `json:"gp_selector"`
	LwSelector                 string          `json:"lw_selector"`
	StalkEarnedPerSeason       decimal.Decimal `json:"stalk_earned_per_season"`
	StalkIssuedPerBdv          decimal.Decimal `json:"stalk_issued_per_bdv"`
	GaugePoints                decimal.Decimal `json:"gauge_points"`
	OptimalPercentDepositedBdv decimal.Decimal `json:"optimal_percent_deposited_bdv"`
	UpdatedAt                  uint64          `json:"updated_at"`
}

func NewWhitelistTokenSetting(id string) *WhitelistTokenSetting {
	return &WhitelistTokenSetting{ID: id}
}

func (w *WhitelistTokenSetting) SnapshotEntity() string { return w.ID }
func (w *WhitelistTokenSetting) SnapshotKind() string   { return KindWhitelistSetting }

func (w *WhitelistTokenSetting) SnapshotValues() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		MetricGaugePoints:                w.GaugePoints,
		MetricStalkEarnedPerSeason:       w.StalkEarnedPerSeason,
		MetricOptimalPercentDepositedBdv: w.OptimalPercentDepositedBdv,
	}
}

// GerminationState is the parity bucket of a germinating deposit.
type GerminationState uint8

const (
	GerminationOdd GerminationState = iota
	GerminationEven
)

func (g GerminationState) String() string {
	if g == GerminationEven {
		return "EVEN"
	}
	return "ODD"
}

// GerminationStateOf returns the parity bucket of season.
func GerminationStateOf(season uint32) GerminationState {
	if season%2 == 0 {
		return GerminationEven
	}
	return GerminationOdd
}

// Germinating is a pending balance for an account or token.
type Germinating struct {
	ID          string          `json:"id"`
	Address     string          `json:"address"`
	Type        string          `json:"type"`
	Season      uint32          `json:"season"`
	Stalk       decimal.Decimal `json:"stalk"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	Bdv         decimal.Decimal `json:"bdv"`
}

func GerminatingID(address string, state GerminationState) string {
	return address + "-" + state.String()
}

func NewGerminating(address string, season uint32) *Germinating {
	state := GerminationStateOf(season)
	return &Germinating{
		ID:      GerminatingID(address, state),
		Address: address,
		Type:    state.String(),
		Season:  season,
	}
}

// Cross is a recorded flip of the base asset price around the peg.
type Cross struct {
	ID                 string          `json:"id"`
	Token              string          `json:"token"`
	Direction          string          `json:"direction"`
	Above              bool            `json:"above"`
	Price              decimal.Decimal `json:"price"`
	PreviousPrice      decimal.Decimal `json:"previous_price"`
	Block              uint64          `json:"block"`
	Timestamp          uint64          `json:"timestamp"`
	TimeSinceLastCross uint64          `json:"time_since_last_cross"`
	CrossNumber        int64           `json:"cross_number"`
}

func CrossID(token string, timestamp uint64) string {
	return token + "-" + strconv.FormatUint(timestamp, 10)
}

// RateChange is the change actually applied to a clamped rate parameter.
type RateChange struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Parameter string          `json:"parameter"`
	Season    uint32          `json:"season"`
	CaseID    uint64          `json:"case_id"`
	Requested decimal.Decimal `json:"requested"`
	Applied   decimal.Decimal `json:"applied"`
	Value     decimal.Decimal `json:"value"`
	Block     uint64          `json:"block"`
	Timestamp uint64          `json:"timestamp"`
}

func RateChangeID(entity, parameter string, season uint32) string {
	return entity + "-" + parameter + "-" + SeasonID(season)
}

// Progress is the last event position committed by the engine.
type Progress struct {
	ID        string   `json:"id"`
	Position  Position `json:"position"`
	Timestamp uint64   `json:"timestamp"`
}
