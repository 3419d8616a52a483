package main

import (
	"fmt"

	"bondchain/config"
	"bondchain/native/oracle"
)

// buildOracle assembles the USD price aggregator from configuration. LP
// tokens listed as pools are valued from their reserves; the rest use the
// configured prices.
func buildOracle(cfg config.Oracle, height uint64) (*oracle.Aggregator, error) {
	static := oracle.NewStaticSource()
	for symbol, price := range cfg.Prices {
		if err := static.SetDecimal(symbol, price, height); err != nil {
			return nil, fmt.Errorf("oracle price %s: %w", symbol, err)
		}
	}
	agg := oracle.NewAggregator([]string{"static", "pool"}, cfg.MaxAgeBlocks)
	agg.Register("static", static)
	if len(cfg.Pools) > 0 {
		pools := oracle.NewPoolValuation(static)
		for _, pool := range cfg.Pools {
			if err := addPool(pools, pool, height); err != nil {
				return nil, fmt.Errorf("oracle pool %s: %w", pool.LPToken, err)
			}
		}
		agg.Register("pool", pools)
	}
	agg.SetBlockHeight(height)
	return agg, nil
}

func addPool(pools *oracle.PoolValuation, pool config.Pool, height uint64) error {
	if err := pools.AddPool(oracle.Pool{
		LPToken:       pool.LPToken,
		LPDecimals:    pool.LPDecimals,
		Base:          pool.Base,
		BaseDecimals:  pool.BaseDecimals,
		Quote:         pool.Quote,
		QuoteDecimals: pool.QuoteDecimals,
	}); err != nil {
		return err
	}
	baseReserve, err := config.ParseAmount(pool.BaseReserve)
	if err != nil {
		return err
	}
	quoteReserve, err := config.ParseAmount(pool.QuoteReserve)
	if err != nil {
		return err
	}
	lpSupply, err := config.ParseAmount(pool.LPSupply)
	if err != nil {
		return err
	}
	return pools.Update(pool.LPToken, oracle.PoolState{
		BaseReserve:  baseReserve,
		QuoteReserve: quoteReserve,
		LPSupply:     lpSupply,
		Height:       height,
	})
}
