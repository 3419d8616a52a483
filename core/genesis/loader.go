package genesis

import (
	"errors"
	"fmt"
	"strings"

	"bondchain/core/state"
	"bondchain/crypto"
	"bondchain/native/bond"
	"bondchain/native/treasury"
)

var ErrNilManager = errors.New("genesis: state manager required")

// Apply writes the genesis ledger into manager at height. The caller commits
// the manager on success and discards it otherwise.
func Apply(spec *Spec, manager *state.Manager, height, minVestingBlocks uint64) error {
	if spec == nil {
		return fmt.Errorf("genesis: spec required")
	}
	if manager == nil {
		return ErrNilManager
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	for _, token := range spec.sortedTokens() {
		if err := manager.RegisterToken(normalise(token.Symbol), token.Name, token.Decimals); err != nil {
			return fmt.Errorf("genesis token %s: %w", token.Symbol, err)
		}
	}

	treasuries := treasury.NewEngine()
	treasuries.SetState(manager)
	treasuries.SetBank(manager)
	policies := make(map[string]crypto.Address, len(spec.Treasuries))
	for _, tr := range spec.Treasuries {
		policy, _ := parseAddress("policy", tr.Policy)
		if _, err := treasuries.Register(strings.TrimSpace(tr.ID), tr.PayoutToken, policy); err != nil {
			return fmt.Errorf("genesis treasury %s: %w", tr.ID, err)
		}
		policies[strings.TrimSpace(tr.ID)] = policy
	}

	for i, alloc := range spec.Alloc {
		amount, _ := parseAmount("amount", alloc.Amount)
		if amount.Sign() == 0 {
			continue
		}
		var dst crypto.Address
		if id := strings.TrimSpace(alloc.Treasury); id != "" {
			dst = TreasuryAddress(id)
		} else {
			dst, _ = parseAddress("address", alloc.Address)
		}
		if err := manager.Mint(normalise(alloc.Token), dst, amount); err != nil {
			return fmt.Errorf("genesis alloc %d: %w", i, err)
		}
	}

	bonds := bond.NewEngine(minVestingBlocks)
	bonds.SetState(manager)
	bonds.SetBank(manager)
	bonds.SetTreasury(treasuries)
	bonds.SetBlockHeight(height)
	for _, m := range spec.Markets {
		cfg, _ := m.config()
		market, err := bonds.RegisterMarket(cfg)
		if err != nil {
			return fmt.Errorf("genesis market %s: %w", cfg.ID, err)
		}
		treasuryID := strings.TrimSpace(m.Treasury)
		approved, err := treasuries.ToggleBondContract(policies[treasuryID], cfg.Treasury, market.ModuleAddress())
		if err != nil {
			return fmt.Errorf("genesis market %s: approve: %w", cfg.ID, err)
		}
		if !approved {
			return fmt.Errorf("genesis market %s: bond contract already approved", cfg.ID)
		}
		terms, _ := m.Terms.initTerms()
		if err := bonds.InitializeBond(cfg.Policy, terms); err != nil {
			return fmt.Errorf("genesis market %s: initialize: %w", cfg.ID, err)
		}
		if m.Adjustment != nil {
			rate, target, _ := m.Adjustment.values()
			if err := bonds.SetAdjustment(cfg.Policy, m.Adjustment.Add, rate, target, m.Adjustment.Buffer); err != nil {
				return fmt.Errorf("genesis market %s: adjustment: %w", cfg.ID, err)
			}
		}
	}
	return nil
}
