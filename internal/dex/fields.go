package dex

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// fields holds the named values of one unpacked log, indexed and not.
type fields map[string]interface{}

func (f fields) value(name string) (interface{}, error) {
	v, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("missing field %s", name)
	}
	return v, nil
}

func (f fields) bigInt(name string) (*big.Int, error) {
	v, err := f.value(name)
	if err != nil {
		return nil, err
	}
	out, err := asBigInt(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (f fields) bigInts(name string) ([]*big.Int, error) {
	v, err := f.value(name)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported array type %T", name, v)
	}
	out := make([]*big.Int, 0, len(items))
	for _, item := range items {
		out = append(out, new(big.Int).Set(item))
	}
	return out, nil
}

func (f fields) address(name string) (string, error) {
	v, err := f.value(name)
	if err != nil {
		return "", err
	}
	addr, err := asAddress(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return lowerHex(addr), nil
}

// season reads a uint32 or uint256 season number.
func (f fields) season(name string) (uint32, error) {
	n, err := f.bigInt(name)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || !n.IsUint64() || n.Uint64() > math.MaxUint32 {
		return 0, fmt.Errorf("%s out of range: %s", name, n)
	}
	return uint32(n.Uint64()), nil
}

func (f fields) selector(name string) (string, error) {
	v, err := f.value(name)
	if err != nil {
		return "", err
	}
	sel, ok := v.([4]byte)
	if !ok {
		return "", fmt.Errorf("%s: unsupported selector type %T", name, v)
	}
	return hexutil.Encode(sel[:]), nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
