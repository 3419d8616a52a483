package oracle

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func e18(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestAggregatorPriorityAndFreshness(t *testing.T) {
	primary := NewStaticSource()
	fallback := NewStaticSource()
	primary.Set("karma", e18(2), 100)
	fallback.Set("KARMA", e18(3), 195)

	agg := NewAggregator([]string{"primary"}, 50)
	agg.Register("primary", primary)
	agg.Register("fallback", fallback)

	agg.SetBlockHeight(120)
	obs, err := agg.Observe("Karma")
	require.NoError(t, err)
	require.Equal(t, 0, obs.Price.Cmp(e18(2)))
	require.Equal(t, "static", obs.Source)

	agg.SetBlockHeight(200)
	price, err := agg.USDPrice("KARMA")
	require.NoError(t, err)
	require.Equal(t, 0, price.Cmp(e18(3)), "stale primary should fall through to fallback")

	agg.SetBlockHeight(400)
	_, err = agg.USDPrice("KARMA")
	require.ErrorIs(t, err, ErrNoFreshQuote)

	agg.SetMaxAge(0)
	_, err = agg.USDPrice("KARMA")
	require.NoError(t, err)

	_, err = agg.USDPrice("OTHER")
	require.True(t, errors.Is(err, ErrUnknownAsset))
}

func TestStaticSourceSetDecimal(t *testing.T) {
	src := NewStaticSource()
	require.NoError(t, src.SetDecimal("usdc", "1.0325", 7))
	obs, err := src.Observe("USDC")
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1032500000000000000", 10)
	require.Equal(t, 0, obs.Price.Cmp(want))
	require.Equal(t, uint64(7), obs.Height)
	require.Equal(t, "1.0325", FormatPrice(obs.Price))

	require.Error(t, src.SetDecimal("usdc", "-1", 1))
	require.Error(t, src.SetDecimal("usdc", "abc", 1))
	require.Error(t, src.SetDecimal("usdc", "0.0000000000000000001", 1))
}

func TestPoolValuation(t *testing.T) {
	components := NewStaticSource()
	components.Set("KARMA", e18(2), 10)
	components.Set("USDC", e18(1), 12)

	pools := NewPoolValuation(components)
	require.NoError(t, pools.AddPool(Pool{
		LPToken: "karma-usdc-lp", LPDecimals: 18,
		Base: "karma", BaseDecimals: 9,
		Quote: "usdc", QuoteDecimals: 6,
	}))

	_, err := pools.Observe("KARMA-USDC-LP")
	require.ErrorIs(t, err, ErrUnknownAsset)

	// 1000 KARMA and 2000 USDC backing 100 shares: 4000 USD / 100 = 40 USD.
	require.NoError(t, pools.Update("KARMA-USDC-LP", PoolState{
		BaseReserve:  big.NewInt(1_000_000_000_000),
		QuoteReserve: big.NewInt(2_000_000_000),
		LPSupply:     e18(100),
		Height:       15,
	}))
	obs, err := pools.Observe("karma-usdc-lp")
	require.NoError(t, err)
	require.Equal(t, 0, obs.Price.Cmp(e18(40)))
	require.Equal(t, uint64(10), obs.Height)

	require.NoError(t, pools.Update("KARMA-USDC-LP", PoolState{LPSupply: big.NewInt(0)}))
	_, err = pools.Observe("KARMA-USDC-LP")
	require.ErrorIs(t, err, ErrEmptyPool)

	require.Error(t, pools.Update("UNKNOWN", PoolState{}))
}
