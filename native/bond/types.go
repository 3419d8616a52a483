package bond

import (
	"math/big"

	"bondchain/crypto"
)

// Terms captures the operator controlled configuration of a market.
type Terms struct {
	// ControlVariable scales the debt ratio into a price.
	ControlVariable *big.Int
	// VestingTerm is the number of blocks a bond takes to fully vest.
	VestingTerm uint64
	// MinimumPrice is a one-shot floor, cleared the first time the organic
	// price reaches it.
	MinimumPrice *big.Int
	// MaxPayout caps a single bond in thousandths of a percent of supply.
	MaxPayout *big.Int
	// MaxDebt caps outstanding debt in payout token units.
	MaxDebt *big.Int
	// MaxDiscount caps the oracle-observed discount (1e5 = 100%). Zero
	// disables the cap.
	MaxDiscount *big.Int
}

// Clone returns a deep copy of the terms.
func (t Terms) Clone() Terms {
	return Terms{
		ControlVariable: cloneBig(t.ControlVariable),
		VestingTerm:     t.VestingTerm,
		MinimumPrice:    cloneBig(t.MinimumPrice),
		MaxPayout:       cloneBig(t.MaxPayout),
		MaxDebt:         cloneBig(t.MaxDebt),
		MaxDiscount:     cloneBig(t.MaxDiscount),
	}
}

// Adjustment describes an in-flight walk of the control variable.
type Adjustment struct {
	Add       bool
	Rate      *big.Int
	Target    *big.Int
	Buffer    uint64
	LastBlock uint64
}

// Clone returns a deep copy of the adjustment.
func (a Adjustment) Clone() Adjustment {
	return Adjustment{
		Add:       a.Add,
		Rate:      cloneBig(a.Rate),
		Target:    cloneBig(a.Target),
		Buffer:    a.Buffer,
		LastBlock: a.LastBlock,
	}
}

// Active reports whether the adjustment still has a non-zero step.
func (a Adjustment) Active() bool {
	return a.Rate != nil && a.Rate.Sign() > 0
}

// Market is the complete persisted state of one bond market.
type Market struct {
	ID             string
	PrincipalToken string
	PayoutToken    string
	Treasury       crypto.Address
	FeeTreasury    crypto.Address
	Policy         crypto.Address
	DAO            crypto.Address
	SubsidyRouter  crypto.Address

	Terms      Terms
	Adjustment Adjustment
	FeeTiers   FeeSchedule

	TotalDebt              *big.Int
	LastDecay              uint64
	TotalPrincipalBonded   *big.Int
	TotalPayoutGiven       *big.Int
	PayoutSinceLastSubsidy *big.Int
}

// ModuleAddress returns the account that custodies vesting payouts for the
// market.
func (m *Market) ModuleAddress() crypto.Address {
	return crypto.ModuleAddress(moduleName, m.ID)
}

// Initialised reports whether InitializeBond has run.
func (m *Market) Initialised() bool {
	return m != nil && m.Terms.VestingTerm > 0
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Terms = m.Terms.Clone()
	clone.Adjustment = m.Adjustment.Clone()
	clone.FeeTiers = m.FeeTiers.Clone()
	clone.TotalDebt = cloneBig(m.TotalDebt)
	clone.TotalPrincipalBonded = cloneBig(m.TotalPrincipalBonded)
	clone.TotalPayoutGiven = cloneBig(m.TotalPayoutGiven)
	clone.PayoutSinceLastSubsidy = cloneBig(m.PayoutSinceLastSubsidy)
	return &clone
}

func (m *Market) ensureDefaults() {
	m.Terms = m.Terms.Clone()
	m.Adjustment = m.Adjustment.Clone()
	if m.TotalDebt == nil {
		m.TotalDebt = big.NewInt(0)
	}
	if m.TotalPrincipalBonded == nil {
		m.TotalPrincipalBonded = big.NewInt(0)
	}
	if m.TotalPayoutGiven == nil {
		m.TotalPayoutGiven = big.NewInt(0)
	}
	if m.PayoutSinceLastSubsidy == nil {
		m.PayoutSinceLastSubsidy = big.NewInt(0)
	}
}

// Position is a depositor's vesting bond within a market.
type Position struct {
	Owner     crypto.Address
	Payout    *big.Int
	Vesting   uint64
	LastBlock uint64
	PricePaid *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Payout = cloneBig(p.Payout)
	clone.PricePaid = cloneBig(p.PricePaid)
	return &clone
}

// DepositResult summarises a settled deposit.
type DepositResult struct {
	Value     *big.Int
	Payout    *big.Int
	Fee       *big.Int
	Credited  *big.Int
	PricePaid *big.Int
	MaturesAt uint64
}

// RedeemResult summarises a redemption.
type RedeemResult struct {
	Paid      *big.Int
	Remaining *big.Int
	Closed    bool
}
