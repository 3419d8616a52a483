package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"bondchain/crypto"
	"bondchain/native/bond"
)

// Spec describes the initial ledger: tokens, balances, treasuries and bond
// markets. It is embedded in the node configuration file.
type Spec struct {
	GenesisTime string         `toml:"genesis_time"`
	Tokens      []TokenSpec    `toml:"tokens"`
	Alloc       []AllocSpec    `toml:"alloc"`
	Treasuries  []TreasurySpec `toml:"treasuries"`
	Markets     []MarketSpec   `toml:"markets"`
}

type TokenSpec struct {
	Symbol   string `toml:"symbol"`
	Name     string `toml:"name"`
	Decimals uint8  `toml:"decimals"`
}

// AllocSpec credits Amount of Token to either an account address or the
// treasury registered under Treasury.
type AllocSpec struct {
	Address  string `toml:"address"`
	Treasury string `toml:"treasury"`
	Token    string `toml:"token"`
	Amount   string `toml:"amount"`
}

type TreasurySpec struct {
	ID          string `toml:"id"`
	PayoutToken string `toml:"payout_token"`
	Policy      string `toml:"policy"`
}

type MarketSpec struct {
	ID             string          `toml:"id"`
	PrincipalToken string          `toml:"principal_token"`
	PayoutToken    string          `toml:"payout_token"`
	Treasury       string          `toml:"treasury"`
	FeeTreasury    string          `toml:"fee_treasury"`
	Policy         string          `toml:"policy"`
	DAO            string          `toml:"dao"`
	SubsidyRouter  string          `toml:"subsidy_router"`
	TierCeilings   []string        `toml:"tier_ceilings"`
	FeeRates       []string        `toml:"fee_rates"`
	Terms          TermsSpec       `toml:"terms"`
	Adjustment     *AdjustmentSpec `toml:"adjustment"`
}

type TermsSpec struct {
	ControlVariable string `toml:"control_variable"`
	VestingTerm     uint64 `toml:"vesting_term"`
	MinimumPrice    string `toml:"minimum_price"`
	MaxPayout       string `toml:"max_payout"`
	MaxDebt         string `toml:"max_debt"`
	InitialDebt     string `toml:"initial_debt"`
	MaxDiscount     string `toml:"max_discount"`
}

type AdjustmentSpec struct {
	Add    bool   `toml:"add"`
	Rate   string `toml:"rate"`
	Target string `toml:"target"`
	Buffer uint64 `toml:"buffer"`
}

// Time parses GenesisTime. An empty value yields the zero time.
func (s *Spec) Time() (time.Time, error) {
	raw := strings.TrimSpace(s.GenesisTime)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesis_time: %w", err)
	}
	return ts.UTC(), nil
}

// Validate checks that every address and amount parses and that references
// between sections resolve.
func (s *Spec) Validate() error {
	if _, err := s.Time(); err != nil {
		return err
	}
	tokens := make(map[string]struct{}, len(s.Tokens))
	for _, token := range s.Tokens {
		sym := normalise(token.Symbol)
		if sym == "" {
			return fmt.Errorf("genesis token: symbol required")
		}
		if _, dup := tokens[sym]; dup {
			return fmt.Errorf("genesis token %s: duplicate", sym)
		}
		tokens[sym] = struct{}{}
	}
	treasuries := make(map[string]struct{}, len(s.Treasuries))
	for _, tr := range s.Treasuries {
		if strings.TrimSpace(tr.ID) == "" {
			return fmt.Errorf("genesis treasury: id required")
		}
		if _, ok := tokens[normalise(tr.PayoutToken)]; !ok {
			return fmt.Errorf("genesis treasury %s: unknown payout token %s", tr.ID, tr.PayoutToken)
		}
		if _, err := parseAddress("policy", tr.Policy); err != nil {
			return fmt.Errorf("genesis treasury %s: %w", tr.ID, err)
		}
		treasuries[strings.TrimSpace(tr.ID)] = struct{}{}
	}
	for i, alloc := range s.Alloc {
		if _, ok := tokens[normalise(alloc.Token)]; !ok {
			return fmt.Errorf("genesis alloc %d: unknown token %s", i, alloc.Token)
		}
		if _, err := parseAmount("amount", alloc.Amount); err != nil {
			return fmt.Errorf("genesis alloc %d: %w", i, err)
		}
		switch {
		case strings.TrimSpace(alloc.Treasury) != "":
			if _, ok := treasuries[strings.TrimSpace(alloc.Treasury)]; !ok {
				return fmt.Errorf("genesis alloc %d: unknown treasury %s", i, alloc.Treasury)
			}
		default:
			if _, err := parseAddress("address", alloc.Address); err != nil {
				return fmt.Errorf("genesis alloc %d: %w", i, err)
			}
		}
	}
	for _, market := range s.Markets {
		if _, err := market.config(); err != nil {
			return err
		}
		if _, ok := treasuries[strings.TrimSpace(market.Treasury)]; !ok {
			return fmt.Errorf("genesis market %s: unknown treasury %s", market.ID, market.Treasury)
		}
		if _, err := market.Terms.initTerms(); err != nil {
			return fmt.Errorf("genesis market %s: %w", market.ID, err)
		}
		if market.Adjustment != nil {
			if _, _, err := market.Adjustment.values(); err != nil {
				return fmt.Errorf("genesis market %s: %w", market.ID, err)
			}
		}
	}
	return nil
}

// config resolves the registration parameters of a market. The treasury
// address is derived from the treasury id.
func (m MarketSpec) config() (bond.MarketConfig, error) {
	cfg := bond.MarketConfig{
		ID:             strings.TrimSpace(m.ID),
		PrincipalToken: m.PrincipalToken,
		PayoutToken:    m.PayoutToken,
		Treasury:       TreasuryAddress(m.Treasury),
	}
	if cfg.ID == "" {
		return cfg, fmt.Errorf("genesis market: id required")
	}
	var err error
	for _, field := range []struct {
		name string
		raw  string
		dst  *crypto.Address
	}{
		{"fee_treasury", m.FeeTreasury, &cfg.FeeTreasury},
		{"policy", m.Policy, &cfg.Policy},
		{"dao", m.DAO, &cfg.DAO},
		{"subsidy_router", m.SubsidyRouter, &cfg.SubsidyRouter},
	} {
		if *field.dst, err = parseAddress(field.name, field.raw); err != nil {
			return cfg, fmt.Errorf("genesis market %s: %w", cfg.ID, err)
		}
	}
	if cfg.TierCeilings, err = parseAmounts("tier_ceilings", m.TierCeilings); err != nil {
		return cfg, fmt.Errorf("genesis market %s: %w", cfg.ID, err)
	}
	if cfg.FeeRates, err = parseAmounts("fee_rates", m.FeeRates); err != nil {
		return cfg, fmt.Errorf("genesis market %s: %w", cfg.ID, err)
	}
	return cfg, nil
}

func (t TermsSpec) initTerms() (bond.InitTerms, error) {
	out := bond.InitTerms{VestingTerm: t.VestingTerm}
	var err error
	for _, field := range []struct {
		name     string
		raw      string
		dst      **big.Int
		optional bool
	}{
		{"control_variable", t.ControlVariable, &out.ControlVariable, false},
		{"minimum_price", t.MinimumPrice, &out.MinimumPrice, true},
		{"max_payout", t.MaxPayout, &out.MaxPayout, false},
		{"max_debt", t.MaxDebt, &out.MaxDebt, false},
		{"initial_debt", t.InitialDebt, &out.InitialDebt, true},
		{"max_discount", t.MaxDiscount, &out.MaxDiscount, true},
	} {
		if field.optional && strings.TrimSpace(field.raw) == "" {
			*field.dst = big.NewInt(0)
			continue
		}
		if *field.dst, err = parseAmount(field.name, field.raw); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (a AdjustmentSpec) values() (*big.Int, *big.Int, error) {
	rate, err := parseAmount("adjustment.rate", a.Rate)
	if err != nil {
		return nil, nil, err
	}
	target, err := parseAmount("adjustment.target", a.Target)
	if err != nil {
		return nil, nil, err
	}
	return rate, target, nil
}

// sortedTokens returns the tokens ordered by symbol so replays are
// deterministic.
func (s *Spec) sortedTokens() []TokenSpec {
	tokens := append([]TokenSpec(nil), s.Tokens...)
	sort.Slice(tokens, func(i, j int) bool {
		return normalise(tokens[i].Symbol) < normalise(tokens[j].Symbol)
	})
	return tokens
}

func normalise(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
