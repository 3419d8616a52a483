package bond

import (
	"fmt"
	"math/big"
	"strings"

	"bondchain/crypto"
)

// MarketConfig describes a market at registration time. Terms are set
// separately through InitializeBond.
type MarketConfig struct {
	ID             string
	PrincipalToken string
	PayoutToken    string
	Treasury       crypto.Address
	FeeTreasury    crypto.Address
	Policy         crypto.Address
	DAO            crypto.Address
	SubsidyRouter  crypto.Address
	TierCeilings   []*big.Int
	FeeRates       []*big.Int
}

// RegisterMarket creates an uninitialised market and selects it.
func (e *Engine) RegisterMarket(cfg MarketConfig) (*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return nil, errMarketNotSet
	}
	principal := strings.ToUpper(strings.TrimSpace(cfg.PrincipalToken))
	payout := strings.ToUpper(strings.TrimSpace(cfg.PayoutToken))
	if principal == "" || payout == "" || principal == payout {
		return nil, fmt.Errorf("%w: principal and payout tokens must differ", ErrInvalidParameter)
	}
	for name, addr := range map[string]crypto.Address{
		"treasury":       cfg.Treasury,
		"fee treasury":   cfg.FeeTreasury,
		"policy":         cfg.Policy,
		"dao":            cfg.DAO,
		"subsidy router": cfg.SubsidyRouter,
	} {
		if addr.IsZero() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, name)
		}
	}
	schedule, err := NewFeeSchedule(cfg.TierCeilings, cfg.FeeRates)
	if err != nil {
		return nil, err
	}
	if e.bank == nil {
		return nil, errNilBank
	}
	decimals, err := e.bank.Decimals(payout)
	if err != nil {
		return nil, err
	}
	if decimals < priceDecimalsOffset {
		return nil, ErrPayoutDecimals
	}
	if _, err := e.bank.Decimals(principal); err != nil {
		return nil, err
	}
	existing, err := e.state.BondMarket(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMarketExists
	}

	market := &Market{
		ID:             id,
		PrincipalToken: principal,
		PayoutToken:    payout,
		Treasury:       cfg.Treasury,
		FeeTreasury:    cfg.FeeTreasury,
		Policy:         cfg.Policy,
		DAO:            cfg.DAO,
		SubsidyRouter:  cfg.SubsidyRouter,
		FeeTiers:       schedule,
	}
	market.ensureDefaults()
	if err := e.state.PutBondMarket(market); err != nil {
		return nil, err
	}
	e.marketID = id
	return market.Clone(), nil
}
