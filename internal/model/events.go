package model

import "math/big"

// Event is a decoded protocol log. The set of implementations is closed to
// this package; consumers dispatch with a type switch.
type Event interface {
	Meta() EventMeta
	Name() string
	sealed()
}

// EventMeta carries the block context of a decoded log.
type EventMeta struct {
	ChainID     uint64 `json:"-"`
	BlockNumber uint64 `json:"-"`
	BlockHash   string `json:"-"`
	TxHash      string `json:"-"`
	TxIndex     uint64 `json:"-"`
	LogIndex    uint64 `json:"-"`
	Address     string `json:"-"`
	Timestamp   uint64 `json:"-"`
}

func (m EventMeta) Meta() EventMeta { return m }

func (EventMeta) sealed() {}

// Position returns the chain ordering key of the event.
func (m EventMeta) Position() Position {
	return Position{Block: m.BlockNumber, Tx: m.TxIndex, Log: m.LogIndex}
}

// MetaFromLog copies the block context of a raw log.
func MetaFromLog(log LogRecord, address string) EventMeta {
	return EventMeta{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.LogIndex,
		Address:     address,
		Timestamp:   log.Timestamp,
	}
}

// AddLiquidity is emitted by a Well when tokens are deposited for LP.
type AddLiquidity struct {
	EventMeta
	Amounts     []*big.Int `json:"token_amounts_in"`
	LPAmountOut *big.Int   `json:"lp_amount_out"`
	Recipient   string     `json:"recipient"`
}

func (AddLiquidity) Name() string { return "AddLiquidity" }

// RemoveLiquidity is emitted by a Well when LP is burned for every token.
type RemoveLiquidity struct {
	EventMeta
	LPAmountIn *big.Int   `json:"lp_amount_in"`
	Amounts    []*big.Int `json:"token_amounts_out"`
	Recipient  string     `json:"recipient"`
}

func (RemoveLiquidity) Name() string { return "RemoveLiquidity" }

// RemoveLiquidityOneToken is emitted when LP is burned for a single token.
type RemoveLiquidityOneToken struct {
	EventMeta
	LPAmountIn *big.Int `json:"lp_amount_in"`
	TokenOut   string   `json:"token_out"`
	AmountOut  *big.Int `json:"token_amount_out"`
	Recipient  string   `json:"recipient"`
}

func (RemoveLiquidityOneToken) Name() string { return "RemoveLiquidityOneToken" }

// Swap is emitted by a Well on an exact-in or exact-out trade.
type Swap struct {
	EventMeta
	FromToken string   `json:"from_token"`
	ToToken   string   `json:"to_token"`
	AmountIn  *big.Int `json:"amount_in"`
	AmountOut *big.Int `json:"amount_out"`
	Recipient string   `json:"recipient"`
}

func (Swap) Name() string { return "Swap" }

// Shift is emitted when a Well pays out the surplus of one token.
type Shift struct {
	EventMeta
	Reserves  []*big.Int `json:"reserves"`
	ToToken   string     `json:"to_token"`
	AmountOut *big.Int   `json:"amount_out"`
	Recipient string     `json:"recipient"`
}

func (Shift) Name() string { return "Shift" }

// Sync is emitted when a Well mints LP against unaccounted reserves.
type Sync struct {
	EventMeta
	Reserves    []*big.Int `json:"reserves"`
	LPAmountOut *big.Int   `json:"lp_amount_out"`
	Recipient   string     `json:"recipient"`
}

func (Sync) Name() string { return "Sync" }

// SeasonAdvanced is the protocol Sunrise.
type SeasonAdvanced struct {
	EventMeta
	Season uint32 `json:"season"`
}

func (SeasonAdvanced) Name() string { return "SeasonAdvanced" }

// OracleUpdate is the per-season time weighted deltaB of a Well.
type OracleUpdate struct {
	EventMeta
	Season             uint32   `json:"season"`
	Well               string   `json:"well"`
	DeltaB             *big.Int `json:"delta_b"`
	CumulativeReserves string   `json:"cumulative_reserves"`
}

func (OracleUpdate) Name() string { return "OracleUpdate" }

// TemperatureChange adjusts the Field temperature by a signed amount.
type TemperatureChange struct {
	EventMeta
	Season    uint32 `json:"season"`
	CaseID    uint64 `json:"case_id"`
	AbsChange int64  `json:"abs_change"`
}

func (TemperatureChange) Name() string { return "TemperatureChange" }

// RatioChange adjusts the silo bean to max LP gauge point ratio.
type RatioChange struct {
	EventMeta
	Season    uint32   `json:"season"`
	CaseID    uint64   `json:"case_id"`
	AbsChange *big.Int `json:"abs_change"`
}

func (RatioChange) Name() string { return "BeanToMaxLpGpPerBdvRatioChange" }

// GaugePointChange sets the gauge points of a whitelisted LP token.
type GaugePointChange struct {
	EventMeta
	Season      uint32   `json:"season"`
	Token       string   `json:"token"`
	GaugePoints *big.Int `json:"gauge_points"`
}

func (GaugePointChange) Name() string { return "GaugePointChange" }

// AverageGrownStalkUpdate sets the average grown stalk per BDV per season.
type AverageGrownStalkUpdate struct {
	EventMeta
	Value *big.Int `json:"new_stalk_per_bdv_per_season"`
}

func (AverageGrownStalkUpdate) Name() string { return "UpdateAverageStalkPerBdvPerSeason" }

// WhitelistToken adds a token to the silo whitelist.
type WhitelistToken struct {
	EventMeta
	Token                      string   `json:"token"`
	Selector                   string   `json:"selector"`
	StalkEarnedPerSeason       *big.Int `json:"stalk_earned_per_season"`
	StalkIssuedPerBdv          *big.Int `json:"stalk_issued_per_bdv"`
	GpSelector                 string   `json:"gp_selector"`
	LwSelector                 string   `json:"lw_selector"`
	GaugePoints                *big.Int `json:"gauge_points"`
	OptimalPercentDepositedBdv *big.Int `json:"optimal_percent_deposited_bdv"`
}

func (WhitelistToken) Name() string { return "WhitelistToken" }

// GaugeSettingsUpdate replaces the gauge settings of a whitelisted token.
type GaugeSettingsUpdate struct {
	EventMeta
	Token                      string   `json:"token"`
	GpSelector                 string   `json:"gp_selector"`
	LwSelector                 string   `json:"lw_selector"`
	OptimalPercentDepositedBdv *big.Int `json:"optimal_percent_deposited_bdv"`
}

func (GaugeSettingsUpdate) Name() string { return "UpdateGaugeSettings" }

// FarmerGerminatingChange moves a farmer's germinating stalk.
type FarmerGerminatingChange struct {
	EventMeta
	Account string           `json:"account"`
	Delta   *big.Int         `json:"delta_germinating_stalk"`
	State   GerminationState `json:"germination_state"`
}

func (FarmerGerminatingChange) Name() string { return "FarmerGerminatingStalkBalanceChanged" }

// TotalGerminatingBalanceChange moves the germinating total of a token.
type TotalGerminatingBalanceChange struct {
	EventMeta
	Season      uint32   `json:"germination_season"`
	Token       string   `json:"token"`
	DeltaAmount *big.Int `json:"delta_amount"`
	DeltaBdv    *big.Int `json:"delta_bdv"`
}

func (TotalGerminatingBalanceChange) Name() string { return "TotalGerminatingBalanceChanged" }

// TotalGerminatingStalkChange moves the protocol-wide germinating stalk.
type TotalGerminatingStalkChange struct {
	EventMeta
	Season uint32   `json:"germination_season"`
	Delta  *big.Int `json:"delta_germinating_stalk"`
}

func (TotalGerminatingStalkChange) Name() string { return "TotalGerminatingStalkChanged" }

// SupplyChange is a mint or burn of the base asset.
type SupplyChange struct {
	EventMeta
	From  string   `json:"from"`
	To    string   `json:"to"`
	Value *big.Int `json:"value"`
}

func (SupplyChange) Name() string { return "Transfer" }

// IsMint reports whether the transfer originates from the zero address.
func (s SupplyChange) IsMint() bool { return s.From == ZeroAddress }

// IsBurn reports whether the transfer targets the zero address.
func (s SupplyChange) IsBurn() bool { return s.To == ZeroAddress }

// ZeroAddress is the lowercase hex zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"
