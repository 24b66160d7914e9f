package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// BeanDecimals is the precision of the base asset.
const BeanDecimals int32 = 6

// TokenInfo describes an ERC20 the engine prices or converts.
type TokenInfo struct {
	Address  string
	Symbol   string
	Decimals int32
}

// PoolInfo describes a Well and its token order.
type PoolInfo struct {
	Address string
	Tokens  []string
}

// Registry is the read-only address book handed to the engine at startup.
type Registry struct {
	Bean          TokenInfo
	Beanstalk     string
	PriceContract string

	tokens map[string]TokenInfo
	pools  map[string]PoolInfo
}

// Config lists the raw registry entries.
type Config struct {
	BeanToken     string
	Beanstalk     string
	PriceContract string
	// Tokens are "address:SYMBOL:decimals".
	Tokens []string
	// Pools are "address:token0/token1".
	Pools []string
}

// New validates cfg and builds a Registry.
func New(cfg Config) (*Registry, error) {
	bean, err := normalize(cfg.BeanToken)
	if err != nil {
		return nil, fmt.Errorf("bean token: %w", err)
	}
	beanstalk, err := normalize(cfg.Beanstalk)
	if err != nil {
		return nil, fmt.Errorf("beanstalk: %w", err)
	}
	price := ""
	if cfg.PriceContract != "" {
		if price, err = normalize(cfg.PriceContract); err != nil {
			return nil, fmt.Errorf("price contract: %w", err)
		}
	}

	r := &Registry{
		Bean:          TokenInfo{Address: bean, Symbol: "BEAN", Decimals: BeanDecimals},
		Beanstalk:     beanstalk,
		PriceContract: price,
		tokens:        make(map[string]TokenInfo),
		pools:         make(map[string]PoolInfo),
	}
	r.tokens[bean] = r.Bean

	for _, entry := range cfg.Tokens {
		info, err := parseToken(entry)
		if err != nil {
			return nil, err
		}
		if info.Address == bean {
			continue
		}
		r.tokens[info.Address] = info
	}

	for _, entry := range cfg.Pools {
		info, err := parsePool(entry)
		if err != nil {
			return nil, err
		}
		for _, token := range info.Tokens {
			if _, ok := r.tokens[token]; !ok {
				return nil, fmt.Errorf("pool %s references unknown token %s", info.Address, token)
			}
		}
		r.pools[info.Address] = info
	}

	return r, nil
}

// Token returns metadata for address.
func (r *Registry) Token(address string) (TokenInfo, bool) {
	info, ok := r.tokens[strings.ToLower(address)]
	return info, ok
}

// Decimals returns the decimals of address, defaulting to 18.
func (r *Registry) Decimals(address string) int32 {
	if info, ok := r.Token(address); ok {
		return info.Decimals
	}
	return 18
}

// IsBean reports whether address is the base asset.
func (r *Registry) IsBean(address string) bool {
	return strings.EqualFold(address, r.Bean.Address)
}

// Pool returns the Well configuration for address.
func (r *Registry) Pool(address string) (PoolInfo, bool) {
	info, ok := r.pools[strings.ToLower(address)]
	return info, ok
}

// Pools returns every configured Well ordered by address.
func (r *Registry) Pools() []PoolInfo {
	out := make([]PoolInfo, 0, len(r.pools))
	for _, info := range r.pools {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Addresses returns every contract whose logs the engine consumes.
func (r *Registry) Addresses() []string {
	out := []string{r.Beanstalk, r.Bean.Address}
	for _, info := range r.Pools() {
		out = append(out, info.Address)
	}
	return out
}

func parseToken(entry string) (TokenInfo, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 3 {
		return TokenInfo{}, fmt.Errorf("invalid token entry %q (want address:SYMBOL:decimals)", entry)
	}
	addr, err := normalize(parts[0])
	if err != nil {
		return TokenInfo{}, err
	}
	decimals, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 32)
	if err != nil || decimals < 0 || decimals > 36 {
		return TokenInfo{}, fmt.Errorf("invalid decimals in token entry %q", entry)
	}
	return TokenInfo{Address: addr, Symbol: strings.TrimSpace(parts[1]), Decimals: int32(decimals)}, nil
}

func parsePool(entry string) (PoolInfo, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 2 {
		return PoolInfo{}, fmt.Errorf("invalid pool entry %q (want address:token0/token1)", entry)
	}
	addr, err := normalize(parts[0])
	if err != nil {
		return PoolInfo{}, err
	}
	rawTokens := strings.Split(parts[1], "/")
	if len(rawTokens) < 2 {
		return PoolInfo{}, fmt.Errorf("pool %s needs at least two tokens", addr)
	}
	tokens := make([]string, 0, len(rawTokens))
	for _, raw := range rawTokens {
		token, err := normalize(raw)
		if err != nil {
			return PoolInfo{}, err
		}
		tokens = append(tokens, token)
	}
	return PoolInfo{Address: addr, Tokens: tokens}, nil
}

func normalize(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address: %q", address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// Normalize lowercases a hex address the way registry keys are stored.
func Normalize(address string) string {
	return strings.ToLower(address)
}

// MissingTokens returns the pool tokens that have no token entry, so their
// metadata can be fetched before New is called.
func (c Config) MissingTokens() ([]string, error) {
	bean, err := normalize(c.BeanToken)
	if err != nil {
		return nil, fmt.Errorf("bean token: %w", err)
	}
	known := map[string]bool{bean: true}
	for _, entry := range c.Tokens {
		info, err := parseToken(entry)
		if err != nil {
			return nil, err
		}
		known[info.Address] = true
	}

	var missing []string
	for _, entry := range c.Pools {
		info, err := parsePool(entry)
		if err != nil {
			return nil, err
		}
		for _, token := range info.Tokens {
			if !known[token] {
				known[token] = true
				missing = append(missing, token)
			}
		}
	}
	return missing, nil
}
