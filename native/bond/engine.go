package bond

import (
	"math/big"
	"strings"

	"bondchain/crypto"
	nativecommon "bondchain/native/common"
)

// ModuleName identifies the bond module for pause controls and module
// account derivation.
const ModuleName = "bond"

const moduleName = ModuleName

type engineState interface {
	BondMarket(id string) (*Market, error)
	PutBondMarket(market *Market) error
	BondPosition(id string, owner crypto.Address) (*Position, error)
	PutBondPosition(id string, pos *Position) error
	DeleteBondPosition(id string, owner crypto.Address) error
}

// Bank exposes the token ledger to the engine.
type Bank interface {
	Decimals(symbol string) (uint8, error)
	TotalSupply(symbol string) (*big.Int, error)
	Transfer(symbol string, from, to crypto.Address, amount *big.Int) error
}

// Treasury values principal and swaps it for payout tokens.
type Treasury interface {
	ValueOfToken(treasury crypto.Address, principal string, amount *big.Int) (*big.Int, error)
	Deposit(treasury, bond crypto.Address, principal string, amount, payout *big.Int) error
}

// PriceOracle returns USD prices carrying 18 decimals.
type PriceOracle interface {
	USDPrice(symbol string) (*big.Int, error)
}

// Engine executes bond market state transitions for one market at a time.
type Engine struct {
	state            engineState
	bank             Bank
	treasury         Treasury
	oracle           PriceOracle
	pauses           nativecommon.PauseView
	blockHeight      uint64
	marketID         string
	minVestingBlocks uint64
}

// NewEngine constructs a bond engine. minVestingBlocks is the shortest
// vesting term SetBondTerms accepts.
func NewEngine(minVestingBlocks uint64) *Engine {
	return &Engine{minVestingBlocks: minVestingBlocks}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank wires the token ledger.
func (e *Engine) SetBank(bank Bank) {
	if e == nil {
		return
	}
	e.bank = bank
}

// SetTreasury wires the custom treasury implementation.
func (e *Engine) SetTreasury(treasury Treasury) {
	if e == nil {
		return
	}
	e.treasury = treasury
}

// SetOracle wires the USD price source used by discount-capped markets.
func (e *Engine) SetOracle(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetBlockHeight records the block height used for decay, vesting and
// adjustment.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// BlockHeight returns the configured block height.
func (e *Engine) BlockHeight() uint64 {
	if e == nil {
		return 0
	}
	return e.blockHeight
}

// SetMarketID selects the market subsequent operations act on.
func (e *Engine) SetMarketID(id string) {
	if e == nil {
		return
	}
	e.marketID = strings.TrimSpace(id)
}

// MarketID returns the currently selected market.
func (e *Engine) MarketID() string {
	if e == nil {
		return ""
	}
	return e.marketID
}

// Deposit sells a bond to depositor for amount of principal, provided the
// fee-inclusive price does not exceed maxPrice. Callers must discard all
// state writes when an error is returned.
func (e *Engine) Deposit(depositor crypto.Address, amount, maxPrice *big.Int) (*DepositResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 || !FitsUint256(amount) {
		return nil, ErrInvalidAmount
	}
	if maxPrice == nil || maxPrice.Sign() < 0 {
		return nil, ErrInvalidMaxPrice
	}
	if depositor.IsZero() {
		return nil, ErrInvalidDepositor
	}
	if e.treasury == nil {
		return nil, errNilTreasury
	}

	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := market.decayDebt(e.blockHeight); err != nil {
		return nil, err
	}

	q, err := e.quote(market)
	if err != nil {
		return nil, err
	}
	if maxPrice.Cmp(q.TruePrice) < 0 {
		return nil, ErrSlippage
	}

	value, err := e.treasury.ValueOfToken(market.Treasury, market.PrincipalToken, amount)
	if err != nil {
		return nil, err
	}
	payout, err := PayoutFor(value, q.Price)
	if err != nil {
		return nil, err
	}

	if new(big.Int).Add(market.TotalDebt, value).Cmp(market.Terms.MaxDebt) > 0 {
		return nil, ErrMaxCapacity
	}
	supply, decimals, err := e.payoutSupply(market)
	if err != nil {
		return nil, err
	}
	if payout.Cmp(DustFloor(decimals)) < 0 {
		return nil, ErrBondTooSmall
	}
	if payout.Cmp(MaxPayoutFor(supply, market.Terms.MaxPayout)) > 0 {
		return nil, ErrBondTooLarge
	}

	fee := applyFee(payout, q.FeeRate)

	moduleAddr := market.ModuleAddress()
	if err := e.bank.Transfer(market.PrincipalToken, depositor, moduleAddr, amount); err != nil {
		return nil, err
	}
	if err := e.treasury.Deposit(market.Treasury, moduleAddr, market.PrincipalToken, amount, payout); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.bank.Transfer(market.PayoutToken, moduleAddr, market.FeeTreasury, fee); err != nil {
			return nil, err
		}
	}

	market.TotalDebt = new(big.Int).Add(market.TotalDebt, value)

	pos, err := e.positionOrDefault(market.ID, depositor)
	if err != nil {
		return nil, err
	}
	paid, err := e.quote(market)
	if err != nil {
		return nil, err
	}
	credited := new(big.Int).Sub(payout, fee)
	pos = mergeDeposit(pos, credited, market.Terms.VestingTerm, e.blockHeight, paid.TruePrice)

	if _, err := e.settleFloor(market); err != nil {
		return nil, err
	}

	market.TotalPrincipalBonded = new(big.Int).Add(market.TotalPrincipalBonded, amount)
	market.TotalPayoutGiven = new(big.Int).Add(market.TotalPayoutGiven, payout)
	market.PayoutSinceLastSubsidy = new(big.Int).Add(market.PayoutSinceLastSubsidy, payout)

	market.adjust(e.blockHeight)

	if err := e.state.PutBondPosition(market.ID, pos); err != nil {
		return nil, err
	}
	if err := e.state.PutBondMarket(market); err != nil {
		return nil, err
	}

	return &DepositResult{
		Value:     value,
		Payout:    payout,
		Fee:       fee,
		Credited:  credited,
		PricePaid: cloneBig(paid.TruePrice),
		MaturesAt: e.blockHeight + market.Terms.VestingTerm,
	}, nil
}

// Redeem releases the vested part of depositor's bond. A fully vested bond is
// paid out in full and removed.
func (e *Engine) Redeem(depositor crypto.Address) (*RedeemResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.bank == nil {
		return nil, errNilBank
	}
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	pos, err := e.positionOrFail(market.ID, depositor)
	if err != nil {
		return nil, err
	}

	paid, next := redeemPosition(pos, e.blockHeight)
	result := &RedeemResult{Paid: paid, Remaining: big.NewInt(0), Closed: next == nil}
	if next == nil {
		if err := e.state.DeleteBondPosition(market.ID, depositor); err != nil {
			return nil, err
		}
	} else {
		if err := e.state.PutBondPosition(market.ID, next); err != nil {
			return nil, err
		}
		result.Remaining = cloneBig(next.Payout)
	}
	if paid.Sign() > 0 {
		if err := e.bank.Transfer(market.PayoutToken, market.ModuleAddress(), depositor, paid); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Market returns a copy of the selected market.
func (e *Engine) Market() (*Market, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return market.Clone(), nil
}

// Terms returns the current terms of the selected market.
func (e *Engine) Terms() (Terms, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return Terms{}, err
	}
	return market.Terms.Clone(), nil
}

// Adjustment returns the pending control variable adjustment.
func (e *Engine) Adjustment() (Adjustment, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return Adjustment{}, err
	}
	return market.Adjustment.Clone(), nil
}

// Totals reports the lifetime counters of the selected market.
type Totals struct {
	PrincipalBonded        *big.Int
	PayoutGiven            *big.Int
	PayoutSinceLastSubsidy *big.Int
}

// Totals returns the lifetime counters of the selected market.
func (e *Engine) Totals() (Totals, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		PrincipalBonded:        cloneBig(market.TotalPrincipalBonded),
		PayoutGiven:            cloneBig(market.TotalPayoutGiven),
		PayoutSinceLastSubsidy: cloneBig(market.PayoutSinceLastSubsidy),
	}, nil
}

// Quote prices the selected market without mutating state.
func (e *Engine) Quote() (*Quote, error) {
	market, err := e.initialisedMarket()
	if err != nil {
		return nil, err
	}
	return e.quote(market)
}

// BondPrice returns the pre-fee price, floor and cap applied.
func (e *Engine) BondPrice() (*big.Int, error) {
	q, err := e.Quote()
	if err != nil {
		return nil, err
	}
	return q.Price, nil
}

// TrueBondPrice returns the fee-inclusive price.
func (e *Engine) TrueBondPrice() (*big.Int, error) {
	q, err := e.Quote()
	if err != nil {
		return nil, err
	}
	return q.TruePrice, nil
}

// DebtRatio returns the current debt relative to payout token supply.
func (e *Engine) DebtRatio() (*big.Int, error) {
	q, err := e.Quote()
	if err != nil {
		return nil, err
	}
	return q.DebtRatio, nil
}

// CurrentDebt returns total debt net of decay at the current height.
func (e *Engine) CurrentDebt() (*big.Int, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return market.currentDebt(e.blockHeight)
}

// DebtDecay returns the debt matured since the last decay.
func (e *Engine) DebtDecay() (*big.Int, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return market.debtDecay(e.blockHeight)
}

// MaxPayout returns the largest payout a single bond may receive.
func (e *Engine) MaxPayout() (*big.Int, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	supply, _, err := e.payoutSupply(market)
	if err != nil {
		return nil, err
	}
	return MaxPayoutFor(supply, market.Terms.MaxPayout), nil
}

// PayoutFor returns the payout a depositor would be credited for value, net
// of the protocol fee.
func (e *Engine) PayoutFor(value *big.Int) (*big.Int, error) {
	if value == nil || value.Sign() < 0 || !FitsUint256(value) {
		return nil, ErrInvalidAmount
	}
	q, err := e.Quote()
	if err != nil {
		return nil, err
	}
	total, err := PayoutFor(value, q.Price)
	if err != nil {
		return nil, err
	}
	return NetOfFee(total, q.FeeRate), nil
}

// CurrentFeeRate returns the fee rate in millionths for the next deposit.
func (e *Engine) CurrentFeeRate() (*big.Int, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return market.FeeTiers.Rate(market.TotalPrincipalBonded), nil
}

// BondDiscount returns the oracle-observed discount of the organic price in
// units of 1e5.
func (e *Engine) BondDiscount() (*big.Int, error) {
	market, err := e.initialisedMarket()
	if err != nil {
		return nil, err
	}
	q, err := e.quote(market)
	if err != nil {
		return nil, err
	}
	if q.Discount != nil {
		return q.Discount, nil
	}
	payoutUSD, principalUSD, err := e.usdPrices(market)
	if err != nil {
		return nil, err
	}
	return Discount(BondPriceUSD(q.TruePrice, principalUSD), payoutUSD)
}

// Position returns depositor's bond.
func (e *Engine) Position(depositor crypto.Address) (*Position, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return e.positionOrFail(market.ID, depositor)
}

// PercentVestedFor returns how far depositor's bond has vested (10 000 = 100%).
func (e *Engine) PercentVestedFor(depositor crypto.Address) (*big.Int, error) {
	pos, err := e.Position(depositor)
	if err != nil {
		return nil, err
	}
	return PercentVested(pos, e.blockHeight), nil
}

// PendingPayoutFor returns the amount depositor could redeem now.
func (e *Engine) PendingPayoutFor(depositor crypto.Address) (*big.Int, error) {
	pos, err := e.Position(depositor)
	if err != nil {
		return nil, err
	}
	return PendingPayout(pos, e.blockHeight), nil
}

func (e *Engine) ensureMarket() (*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.marketID == "" {
		return nil, errMarketNotSet
	}
	market, err := e.state.BondMarket(e.marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, ErrMarketNotFound
	}
	market.ensureDefaults()
	return market, nil
}

func (e *Engine) initialisedMarket() (*Market, error) {
	market, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	if !market.Initialised() {
		return nil, ErrVestingNotSet
	}
	return market, nil
}

// positionOrDefault is the deposit path: a missing bond is a zero position.
func (e *Engine) positionOrDefault(id string, owner crypto.Address) (*Position, error) {
	pos, err := e.state.BondPosition(id, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Owner: owner}
	}
	if pos.Payout == nil {
		pos.Payout = big.NewInt(0)
	}
	if pos.PricePaid == nil {
		pos.PricePaid = big.NewInt(0)
	}
	return pos, nil
}

// positionOrFail is the redeem path: a missing bond is an error.
func (e *Engine) positionOrFail(id string, owner crypto.Address) (*Position, error) {
	pos, err := e.state.BondPosition(id, owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrNoBond
	}
	if pos.Payout == nil {
		pos.Payout = big.NewInt(0)
	}
	if pos.PricePaid == nil {
		pos.PricePaid = big.NewInt(0)
	}
	return pos, nil
}
