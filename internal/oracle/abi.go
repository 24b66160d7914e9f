package oracle

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const beanstalkPriceABIJSON = `[
  {
    "inputs": [],
    "name": "price",
    "outputs": [
      {
        "components": [
          {"internalType": "uint256", "name": "price", "type": "uint256"},
          {"internalType": "uint256", "name": "liquidity", "type": "uint256"},
          {"internalType": "int256", "name": "deltaB", "type": "int256"},
          {
            "components": [
              {"internalType": "address", "name": "pool", "type": "address"},
              {"internalType": "address[2]", "name": "tokens", "type": "address[2]"},
              {"internalType": "uint256[2]", "name": "balances", "type": "uint256[2]"},
              {"internalType": "uint256", "name": "price", "type": "uint256"},
              {"internalType": "uint256", "name": "liquidity", "type": "uint256"},
              {"internalType": "int256", "name": "deltaB", "type": "int256"},
              {"internalType": "uint256", "name": "lpUsd", "type": "uint256"},
              {"internalType": "uint256", "name": "lpBdv", "type": "uint256"}
            ],
            "internalType": "struct P.Pool[]",
            "name": "ps",
            "type": "tuple[]"
          }
        ],
        "internalType": "struct BeanstalkPrice.Prices",
        "name": "p",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	priceABI     abi.ABI
	priceABIOnce sync.Once
	priceABIErr  error
)

// PriceABI returns the parsed BeanstalkPrice ABI.
func PriceABI() (abi.ABI, error) {
	priceABIOnce.Do(func() {
		priceABI, priceABIErr = abi.JSON(strings.NewReader(beanstalkPriceABIJSON))
	})
	return priceABI, priceABIErr
}

// rawPrices mirrors BeanstalkPrice.Prices; field names follow the ABI
// component names so abi.ConvertType can fill it.
type rawPrices struct {
	Price     *big.Int
	Liquidity *big.Int
	DeltaB    *big.Int
	Ps        []rawPool
}

type rawPool struct {
	Pool      common.Address
	Tokens    [2]common.Address
	Balances  [2]*big.Int
	Price     *big.Int
	Liquidity *big.Int
	DeltaB    *big.Int
	LpUsd     *big.Int
	LpBdv     *big.Int
}
