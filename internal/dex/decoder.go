package dex

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"beanScope/internal/model"
)

// ErrNotTracked marks logs that decode fine but carry nothing the engine
// aggregates (plain bean transfers, logs removed by a reorg).
var ErrNotTracked = errors.New("log not tracked")

// DecodeError reports a log that could not be turned into a typed event.
type DecodeError struct {
	Address string
	Topic0  string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s topic0=%s: %v", e.Address, e.Topic0, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type decodeFunc func(meta model.EventMeta, f fields) (model.Event, error)

type eventSpec struct {
	event  abi.Event
	decode decodeFunc
}

// Decoder turns Well, Beanstalk and bean ERC20 logs into model events.
type Decoder struct {
	bean  string
	specs map[string]eventSpec
}

// NewDecoder builds a decoder; bean is the base asset whose mint and burn
// transfers are tracked.
func NewDecoder(bean string) (*Decoder, error) {
	well, err := WellABI()
	if err != nil {
		return nil, fmt.Errorf("parse well abi: %w", err)
	}
	beanstalk, err := BeanstalkABI()
	if err != nil {
		return nil, fmt.Errorf("parse beanstalk abi: %w", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	d := &Decoder{bean: strings.ToLower(bean), specs: make(map[string]eventSpec)}
	register := func(parsed abi.ABI, name string, fn decodeFunc) {
		event := parsed.Events[name]
		d.specs[strings.ToLower(event.ID.Hex())] = eventSpec{event: event, decode: fn}
	}

	register(well, "AddLiquidity", decodeAddLiquidity)
	register(well, "RemoveLiquidity", decodeRemoveLiquidity)
	register(well, "RemoveLiquidityOneToken", decodeRemoveLiquidityOneToken)
	register(well, "Swap", decodeSwap)
	register(well, "Shift", decodeShift)
	register(well, "Sync", decodeSync)
	register(beanstalk, "Sunrise", decodeSunrise)
	register(beanstalk, "WellOracle", decodeWellOracle)
	register(beanstalk, "TemperatureChange", decodeTemperatureChange)
	register(beanstalk, "BeanToMaxLpGpPerBdvRatioChange", decodeRatioChange)
	register(beanstalk, "GaugePointChange", decodeGaugePointChange)
	register(beanstalk, "UpdateAverageStalkPerBdvPerSeason", decodeAverageGrownStalk)
	register(beanstalk, "WhitelistToken", decodeWhitelistToken)
	register(beanstalk, "UpdateGaugeSettings", decodeGaugeSettings)
	register(beanstalk, "FarmerGerminatingStalkBalanceChanged", decodeFarmerGerminating)
	register(beanstalk, "TotalGerminatingBalanceChanged", decodeTotalGerminatingBalance)
	register(beanstalk, "TotalGerminatingStalkChanged", decodeTotalGerminatingStalk)
	register(erc20, "Transfer", d.decodeTransfer)

	return d, nil
}

// Topics returns every topic0 the decoder understands.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.specs))
	for _, spec := range d.specs {
		out = append(out, spec.event.ID)
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.specs[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into exactly one typed event. Every failure is
// a *DecodeError.
func (d *Decoder) Decode(log model.LogRecord) (model.Event, error) {
	fail := func(err error) (model.Event, error) {
		return nil, &DecodeError{Address: log.Address, Topic0: log.Topic0(), Err: err}
	}

	if log.Removed {
		return fail(fmt.Errorf("removed by reorg: %w", ErrNotTracked))
	}
	if len(log.Topics) == 0 {
		return fail(fmt.Errorf("missing topic0"))
	}
	spec, ok := d.specs[strings.ToLower(log.Topics[0])]
	if !ok {
		return fail(fmt.Errorf("unsupported topic0"))
	}
	if !common.IsHexAddress(log.Address) {
		return fail(fmt.Errorf("invalid address: %s", log.Address))
	}

	f, err := unpackFields(spec.event, log)
	if err != nil {
		return fail(err)
	}

	meta := model.MetaFromLog(log, lowerHex(common.HexToAddress(log.Address)))
	event, err := spec.decode(meta, f)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", spec.event.Name, err))
	}
	return event, nil
}

func unpackFields(event abi.Event, log model.LogRecord) (fields, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	out := make(fields)
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(out, indexed, topics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
	}

	data, err := hexutil.Decode(normalizeHex(log.Data))
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(out, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return out, nil
}

func decodeAddLiquidity(meta model.EventMeta, f fields) (model.Event, error) {
	amounts, err := f.bigInts("tokenAmountsIn")
	if err != nil {
		return nil, err
	}
	lp, err := f.bigInt("lpAmountOut")
	if err != nil {
		return nil, err
	}
	recipient, err := f.address("recipient")
	if err != nil {
		return nil, err
	}
	return model.AddLiquidity{EventMeta: meta, Amounts: amounts, LPAmountOut: lp, Recipient: recipient}, nil
}

func decodeRemoveLiquidity(meta model.EventMeta, f fields) (model.Event, error) {
	lp, err := f.bigInt("lpAmountIn")
	if err != nil {
		return nil, err
	}
	amounts, err := f.bigInts("tokenAmountsOut")
	if err != nil {
		return nil, err
	}
	recipient, err := f.address("recipient")
	if err != nil {
		return nil, err
	}
	return model.RemoveLiquidity{EventMeta: meta, LPAmountIn: lp, Amounts: amounts, Recipient: recipient}, nil
}

func decodeRemoveLiquidityOneToken(meta model.EventMeta, f fields) (model.Event, error) {
	lp, err := f.bigInt("lpAmountIn")
	if err != nil {
		return nil, err
	}
	tokenOut, err := f.address("tokenOut")
	if err != nil {
		return nil, err
	}
	amountOut, err := f.bigInt("tokenAmountOut")
	if err != nil {
		return nil, err
	}
	recipient, err := f.address("recipient")
	if err != nil {
		return nil, err
	}
	return model.RemoveLiquidityOneToken{
		EventMeta:  meta,
		LPAmountIn: lp,
		TokenOut:   tokenOut,
		AmountOut:  amountOut,
		Recipient:  recipient,
	}, nil
}

func decodeSwap(meta model.EventMeta, f fields) (model.Event, error) {
	from, err := f.address("fromToken")
	if err != nil {
		return nil, err
	}
	to, err := f.address("toToken")
	if err != nil {
		return nil, err
	}
	amountIn, err := f.bigInt("amountIn")
	if err != nil {
		return nil, err
	}
	amountOut, err := f.bigInt("amountOut")
	if err != nil {
		return nil, err
	}
	recipient, err := f.address("recipient")
	if err != nil {
		return nil, err
	}
	return model.Swap{
		EventMeta: meta,
		FromToken: from,
		ToToken:   to,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Recipient: recipient,
	}, nil
}

func decodeShift(meta model.EventMeta, f fields) (model.Event, error) {
	reserves, err := f.bigInts("reserves")
	if err != nil {
		return nil, err
	}
	to, err := f.address("toToken")
	if err != nil {
		return nil, err
	}
	amountOut, err := f.bigInt("amountOut")
	if err != nil {
		return nil, err
	}
	recipient, err := f.address("recipient")
	if err != nil {
		return nil, err
	}
	return model.Shift{EventMeta: meta, Reserves: reserves, ToToken: to, AmountOut: amountOut, Recipient: recipient}, nil
}

func decodeSync(meta model.EventMeta, f fields) (model.Event, error) {
	reserves, err := f.bigInts("reserves")
	if err != nil {
		return nil, err
	}
	lp, err := f.bigInt("lpAmountOut")
	if err != nil {
		return nil, err
	}
	recipient, err := f.address("recipient")
	if err != nil {
		return nil, err
	}
	return model.Sync{EventMeta: meta, Reserves: reserves, LPAmountOut: lp, Recipient: recipient}, nil
}

func decodeSunrise(meta model.EventMeta, f fields) (model.Event, error) {
	season, err := f.season("season")
	if err != nil {
		return nil, err
	}
	return model.SeasonAdvanced{EventMeta: meta, Season: season}, nil
}

func decodeWellOracle(meta model.EventMeta, f fields) (model.Event, error) {
	season, err := f.season("season")
	if err != nil {
		return nil, err
	}
	well, err := f.address("well")
	if err != nil {
		return nil, err
	}
	deltaB, err := f.bigInt("deltaB")
	if err != nil {
		return nil, err
	}
	reserves, _ := f["cumulativeReserves"].([]byte)
	return model.OracleUpdate{
		EventMeta:          meta,
		Season:             season,
		Well:               well,
		DeltaB:             deltaB,
		CumulativeReserves: hexutil.Encode(reserves),
	}, nil
}

func decodeTemperatureChange(meta model.EventMeta, f fields) (model.Event, error) {
	season, err := f.season("season")
	if err != nil {
		return nil, err
	}
	caseID, err := f.bigInt("caseId")
	if err != nil {
		return nil, err
	}
	change, err := f.bigInt("absChange")
	if err != nil {
		return nil, err
	}
	return model.TemperatureChange{
		EventMeta: meta,
		Season:    season,
		CaseID:    caseID.Uint64(),
		AbsChange: change.Int64(),
	}, nil
}

func decodeRatioChange(meta model.EventMeta, f fields) (model.Event, error) {
	season, err := f.season("season")
	if err != nil {
		return nil, err
	}
	caseID, err := f.bigInt("caseId")
	if err != nil {
		return nil, err
	}
	change, err := f.bigInt("absChange")
	if err != nil {
		return nil, err
	}
	return model.RatioChange{EventMeta: meta, Season: season, CaseID: caseID.Uint64(), AbsChange: change}, nil
}

func decodeGaugePointChange(meta model.EventMeta, f fields) (model.Event, error) {
	season, err := f.season("season")
	if err != nil {
		return nil, err
	}
	token, err := f.address("token")
	if err != nil {
		return nil, err
	}
	points, err := f.bigInt("gaugePoints")
	if err != nil {
		return nil, err
	}
	return model.GaugePointChange{EventMeta: meta, Season: season, Token: token, GaugePoints: points}, nil
}

func decodeAverageGrownStalk(meta model.EventMeta, f fields) (model.Event, error) {
	value, err := f.bigInt("newStalkPerBdvPerSeason")
	if err != nil {
		return nil, err
	}
	return model.AverageGrownStalkUpdate{EventMeta: meta, Value: value}, nil
}

func decodeWhitelistToken(meta model.EventMeta, f fields) (model.Event, error) {
	token, err := f.address("token")
	if err != nil {
		return nil, err
	}
	selector, err := f.selector("selector")
	if err != nil {
		return nil, err
	}
	stalkEarned, err := f.bigInt("stalkEarnedPerSeason")
	if err != nil {
		return nil, err
	}
	stalkIssued, err := f.bigInt("stalkIssuedPerBdv")
	if err != nil {
		return nil, err
	}
	gpSelector, err := f.selector("gpSelector")
	if err != nil {
		return nil, err
	}
	lwSelector, err := f.selector("lwSelector")
	if err != nil {
		return nil, err
	}
	points, err := f.bigInt("gaugePoints")
	if err != nil {
		return nil, err
	}
	optimal, err := f.bigInt("optimalPercentDepositedBdv")
	if err != nil {
		return nil, err
	}
	return model.WhitelistToken{
		EventMeta:                  meta,
		Token:                      token,
		Selector:                   selector,
		StalkEarnedPerSeason:       stalkEarned,
		StalkIssuedPerBdv:          stalkIssued,
		GpSelector:                 gpSelector,
		LwSelector:                 lwSelector,
		GaugePoints:                points,
		OptimalPercentDepositedBdv: optimal,
	}, nil
}

func decodeGaugeSettings(meta model.EventMeta, f fields) (model.Event, error) {
	token, err := f.address("token")
	if err != nil {
		return nil, err
	}
	gpSelector, err := f.selector("gpSelector")
	if err != nil {
		return nil, err
	}
	lwSelector, err := f.selector("lwSelector")
	if err != nil {
		return nil, err
	}
	optimal, err := f.bigInt("optimalPercentDepositedBdv")
	if err != nil {
		return nil, err
	}
	return model.GaugeSettingsUpdate{
		EventMeta:                  meta,
		Token:                      token,
		GpSelector:                 gpSelector,
		LwSelector:                 lwSelector,
		OptimalPercentDepositedBdv: optimal,
	}, nil
}

func decodeFarmerGerminating(meta model.EventMeta, f fields) (model.Event, error) {
	account, err := f.address("account")
	if err != nil {
		return nil, err
	}
	delta, err := f.bigInt("deltaGerminatingStalk")
	if err != nil {
		return nil, err
	}
	state, err := f.bigInt("germinationState")
	if err != nil {
		return nil, err
	}
	if state.Cmp(big.NewInt(int64(model.GerminationEven))) > 0 {
		return nil, fmt.Errorf("unexpected germination state %s", state)
	}
	return model.FarmerGerminatingChange{
		EventMeta: meta,
		Account:   account,
		Delta:     delta,
		State:     model.GerminationState(state.Uint64()),
	}, nil
}

func decodeTotalGerminatingBalance(meta model.EventMeta, f fields) (model.Event, error) {
	season, err := f.season("germinationSeason")
	if err != nil {
		return nil, err
	}
	token, err := f.address("token")
	if err != nil {
		return nil, err
	}
	amount, err := f.bigInt("deltaAmount")
	if err != nil {
		return nil, err
	}
	bdv, err := f.bigInt("deltaBdv")
	if err != nil {
		return nil, err
	}
	return model.TotalGerminatingBalanceChange{
		EventMeta:   meta,
		Season:      season,
		Token:       token,
		DeltaAmount: amount,
		DeltaBdv:    bdv,
	}, nil
}

func decodeTotalGerminatingStalk(meta model.EventMeta, f fields) (model.Event, error) {
	season, err := f.season("germinationSeason")
	if err != nil {
		return nil, err
	}
	delta, err := f.bigInt("deltaGerminatingStalk")
	if err != nil {
		return nil, err
	}
	return model.TotalGerminatingStalkChange{EventMeta: meta, Season: season, Delta: delta}, nil
}

func (d *Decoder) decodeTransfer(meta model.EventMeta, f fields) (model.Event, error) {
	if meta.Address != d.bean {
		return nil, fmt.Errorf("transfer of %s: %w", meta.Address, ErrNotTracked)
	}
	from, err := f.address("from")
	if err != nil {
		return nil, err
	}
	to, err := f.address("to")
	if err != nil {
		return nil, err
	}
	value, err := f.bigInt("value")
	if err != nil {
		return nil, err
	}
	ev := model.SupplyChange{EventMeta: meta, From: from, To: to, Value: value}
	if !ev.IsMint() && !ev.IsBurn() {
		return nil, fmt.Errorf("plain transfer: %w", ErrNotTracked)
	}
	return ev, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// normalizeHex maps the empty payload some RPCs return to "0x".
func normalizeHex(data string) string {
	if data == "" {
		return "0x"
	}
	return data
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
