package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"beanScope/internal/chain"
)

// PriceDecimals is the fixed precision of prices, liquidity and deltaB
// returned by BeanstalkPrice.
const PriceDecimals int32 = 6

// Failure is the failure branch of a price query: a revert, RPC error,
// timeout or undecodable response. It never carries partial data.
type Failure struct {
	Asset  string
	Block  uint64
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("oracle %s at block %d: %s: %v", f.Asset, f.Block, f.Reason, f.Err)
	}
	return fmt.Sprintf("oracle %s at block %d: %s", f.Asset, f.Block, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Timeout reports whether the query hit its deadline.
func (f *Failure) Timeout() bool { return errors.Is(f.Err, context.DeadlineExceeded) }

// PoolQuote is one pool's entry in a quote.
type PoolQuote struct {
	Pool         string
	Tokens       []string
	Balances     []*big.Int
	Price        decimal.Decimal
	LiquidityUSD decimal.Decimal
	DeltaB       decimal.Decimal
	LpUSD        decimal.Decimal
	LpBdv        decimal.Decimal
}

// Quote is the success branch of a price query.
type Quote struct {
	Asset        string
	Block        uint64
	Price        decimal.Decimal
	LiquidityUSD decimal.Decimal
	DeltaB       decimal.Decimal
	Pools        []PoolQuote
}

// Pool returns the entry for address.
func (q Quote) Pool(address string) (PoolQuote, bool) {
	for _, p := range q.Pools {
		if strings.EqualFold(p.Pool, address) {
			return p, true
		}
	}
	return PoolQuote{}, false
}

// Client queries BeanstalkPrice-style contracts at pinned blocks.
type Client struct {
	caller    chain.Caller
	contracts map[string]common.Address
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient builds a Client. contracts maps an asset address to the price
// contract that quotes it.
func NewClient(caller chain.Caller, contracts map[string]string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := PriceABI(); err != nil {
		return nil, fmt.Errorf("parse price abi: %w", err)
	}

	resolved := make(map[string]common.Address, len(contracts))
	for asset, contract := range contracts {
		if !common.IsHexAddress(asset) || !common.IsHexAddress(contract) {
			return nil, fmt.Errorf("invalid price contract mapping %s=%s", asset, contract)
		}
		resolved[strings.ToLower(asset)] = common.HexToAddress(contract)
	}

	return &Client{caller: caller, contracts: resolved, timeout: timeout, logger: logger}, nil
}

// QueryPrice reads the price of asset at blockNumber. Every error except
// cancellation of ctx itself is a *Failure; no retries are attempted.
func (c *Client) QueryPrice(ctx context.Context, asset string, blockNumber uint64) (Quote, error) {
	fail := func(reason string, err error) (Quote, error) {
		return Quote{}, &Failure{Asset: asset, Block: blockNumber, Reason: reason, Err: err}
	}

	contract, ok := c.contracts[strings.ToLower(asset)]
	if !ok {
		return fail("no price contract for asset", nil)
	}

	parsed, err := PriceABI()
	if err != nil {
		return fail("parse price abi", err)
	}
	data, err := parsed.Pack("price")
	if err != nil {
		return fail("pack price", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := c.caller.CallContract(callCtx, msg, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		if ctx.Err() != nil {
			return Quote{}, ctx.Err()
		}
		c.logger.Debug("price call failed", zap.String("asset", asset), zap.Uint64("block", blockNumber), zap.Error(err))
		return fail("call price", err)
	}
	if len(resp) == 0 {
		return fail("empty response", nil)
	}

	raw, err := unpackPrices(parsed, resp)
	if err != nil {
		return fail("unpack price", err)
	}
	return buildQuote(asset, blockNumber, raw), nil
}

func unpackPrices(parsed abi.ABI, resp []byte) (out *rawPrices, err error) {
	values, err := parsed.Unpack("price", resp)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected price values: %d", len(values))
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("convert price tuple: %v", r)
		}
	}()
	return abi.ConvertType(values[0], new(rawPrices)).(*rawPrices), nil
}

func buildQuote(asset string, block uint64, raw *rawPrices) Quote {
	q := Quote{
		Asset:        strings.ToLower(asset),
		Block:        block,
		Price:        toDecimal(raw.Price, PriceDecimals),
		LiquidityUSD: toDecimal(raw.Liquidity, PriceDecimals),
		DeltaB:       toDecimal(raw.DeltaB, PriceDecimals),
		Pools:        make([]PoolQuote, 0, len(raw.Ps)),
	}
	for _, p := range raw.Ps {
		balances := make([]*big.Int, 0, len(p.Balances))
		for _, b := range p.Balances {
			if b == nil {
				b = new(big.Int)
			}
			balances = append(balances, new(big.Int).Set(b))
		}
		q.Pools = append(q.Pools, PoolQuote{
			Pool:         strings.ToLower(p.Pool.Hex()),
			Tokens:       []string{strings.ToLower(p.Tokens[0].Hex()), strings.ToLower(p.Tokens[1].Hex())},
			Balances:     balances,
			Price:        toDecimal(p.Price, PriceDecimals),
			LiquidityUSD: toDecimal(p.Liquidity, PriceDecimals),
			DeltaB:       toDecimal(p.DeltaB, PriceDecimals),
			LpUSD:        toDecimal(p.LpUsd, PriceDecimals),
			LpBdv:        toDecimal(p.LpBdv, PriceDecimals),
		})
	}
	return q
}

func toDecimal(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}
