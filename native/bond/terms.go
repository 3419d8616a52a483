package bond

import (
	"fmt"
	"math/big"
	"strings"

	"bondchain/crypto"
)

// TermsParameter selects the field updated by SetBondTerms.
type TermsParameter uint8

const (
	ParamVesting TermsParameter = iota
	ParamPayout
	ParamDebt
)

// maxPayoutLimit is 1% of supply in thousandths of a percent.
var maxPayoutLimit = big.NewInt(1000)

func (p TermsParameter) String() string {
	switch p {
	case ParamVesting:
		return "VESTING"
	case ParamPayout:
		return "PAYOUT"
	case ParamDebt:
		return "DEBT"
	default:
		return fmt.Sprintf("PARAM(%d)", uint8(p))
	}
}

// ParseTermsParameter resolves VESTING, PAYOUT or DEBT case-insensitively.
func ParseTermsParameter(raw string) (TermsParameter, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "VESTING":
		return ParamVesting, nil
	case "PAYOUT":
		return ParamPayout, nil
	case "DEBT":
		return ParamDebt, nil
	default:
		return 0, ErrInvalidParameter
	}
}

// InitTerms carries the arguments of InitializeBond.
type InitTerms struct {
	ControlVariable *big.Int
	VestingTerm     uint64
	MinimumPrice    *big.Int
	MaxPayout       *big.Int
	MaxDebt         *big.Int
	InitialDebt     *big.Int
	MaxDiscount     *big.Int
}

func (t InitTerms) validate() error {
	for _, v := range []*big.Int{t.ControlVariable, t.MinimumPrice, t.MaxPayout, t.MaxDebt, t.InitialDebt, t.MaxDiscount} {
		if v != nil && !FitsUint256(v) {
			return ErrInvalidParameter
		}
	}
	if t.ControlVariable == nil || t.ControlVariable.Sign() <= 0 {
		return ErrInvalidParameter
	}
	if t.VestingTerm == 0 {
		return ErrVestingNotSet
	}
	if t.MaxDiscount != nil && t.MaxDiscount.Cmp(discountDenominator) > 0 {
		return ErrInvalidParameter
	}
	return nil
}

// InitializeBond sets the market terms and seeds its debt. It may only run
// while the market carries no outstanding debt.
func (e *Engine) InitializeBond(caller crypto.Address, terms InitTerms) error {
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if !caller.Equal(market.Policy) {
		return ErrUnauthorized
	}
	if err := terms.validate(); err != nil {
		return err
	}
	if market.Initialised() {
		debt, err := market.currentDebt(e.blockHeight)
		if err != nil {
			return err
		}
		if debt.Sign() != 0 {
			return ErrDebtOutstanding
		}
	} else if market.TotalDebt.Sign() != 0 {
		return ErrDebtOutstanding
	}

	market.Terms = Terms{
		ControlVariable: cloneBig(terms.ControlVariable),
		VestingTerm:     terms.VestingTerm,
		MinimumPrice:    cloneBig(terms.MinimumPrice),
		MaxPayout:       cloneBig(terms.MaxPayout),
		MaxDebt:         cloneBig(terms.MaxDebt),
		MaxDiscount:     cloneBig(terms.MaxDiscount),
	}
	market.TotalDebt = cloneBig(terms.InitialDebt)
	market.LastDecay = e.blockHeight
	return e.state.PutBondMarket(market)
}

// SetBondTerms updates a single term of an initialised market.
func (e *Engine) SetBondTerms(caller crypto.Address, param TermsParameter, value *big.Int) error {
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if !caller.Equal(market.Policy) {
		return ErrUnauthorized
	}
	if value == nil || !FitsUint256(value) {
		return ErrInvalidParameter
	}
	switch param {
	case ParamVesting:
		if !value.IsUint64() || value.Uint64() < e.minVestingBlocks || value.Sign() == 0 {
			return ErrVestingTooShort
		}
		market.Terms.VestingTerm = value.Uint64()
	case ParamPayout:
		if value.Cmp(maxPayoutLimit) > 0 {
			return ErrPayoutTooHigh
		}
		market.Terms.MaxPayout = cloneBig(value)
	case ParamDebt:
		market.Terms.MaxDebt = cloneBig(value)
	default:
		return ErrInvalidParameter
	}
	return e.state.PutBondMarket(market)
}

// SetAdjustment schedules a control variable walk. The step may not exceed
// 3% of the current control variable.
func (e *Engine) SetAdjustment(caller crypto.Address, add bool, rate, target *big.Int, buffer uint64) error {
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if !caller.Equal(market.Policy) {
		return ErrUnauthorized
	}
	if rate == nil || rate.Sign() < 0 || target == nil || target.Sign() < 0 {
		return ErrInvalidParameter
	}
	if rate.Cmp(maxAdjustment(market.Terms.ControlVariable)) > 0 {
		return ErrIncrementTooLarge
	}
	market.Adjustment = Adjustment{
		Add:       add,
		Rate:      cloneBig(rate),
		Target:    cloneBig(target),
		Buffer:    buffer,
		LastBlock: e.blockHeight,
	}
	return e.state.PutBondMarket(market)
}

// ResetSubsidyCounter returns the payout accumulated since the previous reset
// and zeroes the counter. Only the subsidy router may call it.
func (e *Engine) ResetSubsidyCounter(caller crypto.Address) (*big.Int, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	if !caller.Equal(market.SubsidyRouter) {
		return nil, ErrUnauthorized
	}
	previous := cloneBig(market.PayoutSinceLastSubsidy)
	market.PayoutSinceLastSubsidy = big.NewInt(0)
	if err := e.state.PutBondMarket(market); err != nil {
		return nil, err
	}
	return previous, nil
}

// SetFeeTreasury redirects protocol fees. Only the DAO may call it.
func (e *Engine) SetFeeTreasury(caller, feeTreasury crypto.Address) error {
	market, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if !caller.Equal(market.DAO) {
		return ErrUnauthorized
	}
	if feeTreasury.IsZero() {
		return ErrInvalidAddress
	}
	market.FeeTreasury = feeTreasury
	return e.state.PutBondMarket(market)
}
