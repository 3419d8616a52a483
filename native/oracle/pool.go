package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var ErrEmptyPool = errors.New("oracle: pool has no liquidity supply")

// Pool describes a two-asset liquidity pool whose share token is used as bond
// principal.
type Pool struct {
	LPToken       string
	LPDecimals    uint8
	Base          string
	BaseDecimals  uint8
	Quote         string
	QuoteDecimals uint8
}

// PoolState is a snapshot of reserves and share supply.
type PoolState struct {
	BaseReserve  *big.Int
	QuoteReserve *big.Int
	LPSupply     *big.Int
	Height       uint64
}

// PoolValuation prices LP tokens at the USD value of the reserves backing one
// whole share. Component prices come from an upstream source.
type PoolValuation struct {
	mu       sync.RWMutex
	pools    map[string]Pool
	states   map[string]PoolState
	upstream Source
}

// NewPoolValuation constructs a valuation source backed by upstream.
func NewPoolValuation(upstream Source) *PoolValuation {
	return &PoolValuation{
		pools:    make(map[string]Pool),
		states:   make(map[string]PoolState),
		upstream: upstream,
	}
}

// AddPool registers an LP token.
func (p *PoolValuation) AddPool(pool Pool) error {
	if p == nil {
		return fmt.Errorf("pool valuation not configured")
	}
	pool.LPToken = normaliseSymbol(pool.LPToken)
	pool.Base = normaliseSymbol(pool.Base)
	pool.Quote = normaliseSymbol(pool.Quote)
	if pool.LPToken == "" || pool.Base == "" || pool.Quote == "" {
		return fmt.Errorf("pool valuation: lp, base and quote symbols required")
	}
	p.mu.Lock()
	p.pools[pool.LPToken] = pool
	p.mu.Unlock()
	return nil
}

// Update records the latest reserves for an LP token.
func (p *PoolValuation) Update(lpToken string, state PoolState) error {
	if p == nil {
		return fmt.Errorf("pool valuation not configured")
	}
	sym := normaliseSymbol(lpToken)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pools[sym]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, sym)
	}
	p.states[sym] = PoolState{
		BaseReserve:  cloneOrZero(state.BaseReserve),
		QuoteReserve: cloneOrZero(state.QuoteReserve),
		LPSupply:     cloneOrZero(state.LPSupply),
		Height:       state.Height,
	}
	return nil
}

// Observe values one whole LP share in USD. The observation height is the
// oldest of the reserve snapshot and both component quotes.
func (p *PoolValuation) Observe(symbol string) (Observation, error) {
	if p == nil || p.upstream == nil {
		return Observation{}, fmt.Errorf("pool valuation not configured")
	}
	sym := normaliseSymbol(symbol)
	p.mu.RLock()
	pool, ok := p.pools[sym]
	state, hasState := p.states[sym]
	p.mu.RUnlock()
	if !ok || !hasState {
		return Observation{}, fmt.Errorf("%w: %s", ErrUnknownAsset, sym)
	}
	if state.LPSupply.Sign() <= 0 {
		return Observation{}, ErrEmptyPool
	}
	base, err := p.upstream.Observe(pool.Base)
	if err != nil {
		return Observation{}, err
	}
	quote, err := p.upstream.Observe(pool.Quote)
	if err != nil {
		return Observation{}, err
	}

	tvl := reserveValue(state.BaseReserve, base.Price, pool.BaseDecimals)
	tvl.Add(tvl, reserveValue(state.QuoteReserve, quote.Price, pool.QuoteDecimals))
	price := tvl.Mul(tvl, pow10(pool.LPDecimals))
	price.Quo(price, state.LPSupply)

	height := state.Height
	for _, h := range []uint64{base.Height, quote.Height} {
		if h < height {
			height = h
		}
	}
	return Observation{Price: price, Height: height, Source: "pool"}, nil
}

// reserveValue converts a reserve in token units to an 18 decimal USD value.
func reserveValue(reserve, usdPrice *big.Int, decimals uint8) *big.Int {
	value := new(big.Int).Mul(reserve, usdPrice)
	return value.Quo(value, pow10(decimals))
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
