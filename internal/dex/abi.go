package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const wellABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256[]", "name": "tokenAmountsIn", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256", "name": "lpAmountOut", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "AddLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "lpAmountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256[]", "name": "tokenAmountsOut", "type": "uint256[]"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "RemoveLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "lpAmountIn", "type": "uint256"},
      {"indexed": false, "internalType": "contract IERC20", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "tokenAmountOut", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "RemoveLiquidityOneToken",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "contract IERC20", "name": "fromToken", "type": "address"},
      {"indexed": false, "internalType": "contract IERC20", "name": "toToken", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256[]", "name": "reserves", "type": "uint256[]"},
      {"indexed": false, "internalType": "contract IERC20", "name": "toToken", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "Shift",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256[]", "name": "reserves", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256", "name": "lpAmountOut", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "Sync",
    "type": "event"
  }
]`

const beanstalkABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "season", "type": "uint256"}
    ],
    "name": "Sunrise",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint32", "name": "season", "type": "uint32"},
      {"indexed": false, "internalType": "address", "name": "well", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "deltaB", "type": "int256"},
      {"indexed": false, "internalType": "bytes", "name": "cumulativeReserves", "type": "bytes"}
    ],
    "name": "WellOracle",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "season", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "caseId", "type": "uint256"},
      {"indexed": false, "internalType": "int8", "name": "absChange", "type": "int8"}
    ],
    "name": "TemperatureChange",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "season", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "caseId", "type": "uint256"},
      {"indexed": false, "internalType": "int80", "name": "absChange", "type": "int80"}
    ],
    "name": "BeanToMaxLpGpPerBdvRatioChange",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "season", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "gaugePoints", "type": "uint256"}
    ],
    "name": "GaugePointChange",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "newStalkPerBdvPerSeason", "type": "uint256"}
    ],
    "name": "UpdateAverageStalkPerBdvPerSeason",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "bytes4", "name": "selector", "type": "bytes4"},
      {"indexed": false, "internalType": "uint32", "name": "stalkEarnedPerSeason", "type": "uint32"},
      {"indexed": false, "internalType": "uint256", "name": "stalkIssuedPerBdv", "type": "uint256"},
      {"indexed": false, "internalType": "bytes4", "name": "gpSelector", "type": "bytes4"},
      {"indexed": false, "internalType": "bytes4", "name": "lwSelector", "type": "bytes4"},
      {"indexed": false, "internalType": "uint128", "name": "gaugePoints", "type": "uint128"},
      {"indexed": false, "internalType": "uint64", "name": "optimalPercentDepositedBdv", "type": "uint64"}
    ],
    "name": "WhitelistToken",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "bytes4", "name": "gpSelector", "type": "bytes4"},
      {"indexed": false, "internalType": "bytes4", "name": "lwSelector", "type": "bytes4"},
      {"indexed": false, "internalType": "uint64", "name": "optimalPercentDepositedBdv", "type": "uint64"}
    ],
    "name": "UpdateGaugeSettings",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "account", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "deltaGerminatingStalk", "type": "int256"},
      {"indexed": false, "internalType": "enum LibGerminate.Germinate", "name": "germinationState", "type": "uint8"}
    ],
    "name": "FarmerGerminatingStalkBalanceChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "germinationSeason", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "deltaAmount", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "deltaBdv", "type": "int256"}
    ],
    "name": "TotalGerminatingBalanceChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "germinationSeason", "type": "uint256"},
      {"indexed": false, "internalType": "int256", "name": "deltaGerminatingStalk", "type": "int256"}
    ],
    "name": "TotalGerminatingStalkChanged",
    "type": "event"
  }
]`

var (
	wellABI     abi.ABI
	wellABIOnce sync.Once
	wellABIErr  error

	beanstalkABI     abi.ABI
	beanstalkABIOnce sync.Once
	beanstalkABIErr  error
)

// WellABI returns the parsed Basin Well event ABI.
func WellABI() (abi.ABI, error) {
	wellABIOnce.Do(func() {
		wellABI, wellABIErr = abi.JSON(strings.NewReader(wellABIJSON))
	})
	return wellABI, wellABIErr
}

// BeanstalkABI returns the parsed Beanstalk diamond event ABI.
func BeanstalkABI() (abi.ABI, error) {
	beanstalkABIOnce.Do(func() {
		beanstalkABI, beanstalkABIErr = abi.JSON(strings.NewReader(beanstalkABIJSON))
	})
	return beanstalkABI, beanstalkABIErr
}
