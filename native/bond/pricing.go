package bond

import "math/big"

const priceDecimalsOffset = 5

var (
	debtRatioScale       = Pow10(18)
	payoutScale          = Pow10(11)
	bondPriceUSDScale    = Pow10(7)
	maxPayoutDenominator = big.NewInt(100_000)
	discountDenominator  = big.NewInt(100_000)
)

// Quote is a point-in-time pricing snapshot for a market.
type Quote struct {
	DebtRatio *big.Int
	RawPrice  *big.Int
	Price     *big.Int
	TruePrice *big.Int
	FeeRate   *big.Int
	// Floored is set when the minimum price replaced the organic price.
	Floored bool
	// Capped is set when the discount cap raised the price.
	Capped bool
	// Discount is the oracle-observed discount of the organic price, only
	// populated for markets with a discount cap.
	Discount *big.Int
}

// DebtRatio expresses currentDebt relative to the payout token supply, carrying
// payoutDecimals of precision.
func DebtRatio(currentDebt, supply *big.Int, payoutDecimals uint8) (*big.Int, error) {
	if supply == nil || supply.Sign() <= 0 {
		return nil, ErrZeroSupply
	}
	scaled := new(big.Int).Mul(cloneBig(currentDebt), Pow10(uint(payoutDecimals)))
	frac, err := Fraction(scaled, supply)
	if err != nil {
		return nil, err
	}
	ratio := frac.Decode112With18()
	return ratio.Quo(ratio, debtRatioScale), nil
}

// RawPrice is controlVariable * debtRatio / 10^(payoutDecimals-5).
func RawPrice(controlVariable, debtRatio *big.Int, payoutDecimals uint8) (*big.Int, error) {
	if payoutDecimals < priceDecimalsOffset {
		return nil, ErrPayoutDecimals
	}
	return MulDivFloor(cloneBig(controlVariable), cloneBig(debtRatio), Pow10(uint(payoutDecimals-priceDecimalsOffset)))
}

// ComputePrice applies the floor without mutating anything.
func ComputePrice(raw, minimum *big.Int) (*big.Int, bool) {
	if minimum != nil && raw.Cmp(minimum) < 0 {
		return new(big.Int).Set(minimum), true
	}
	return new(big.Int).Set(raw), false
}

// TruePrice adds the protocol fee to price.
func TruePrice(price, feeRate *big.Int) *big.Int {
	out := new(big.Int).Set(price)
	return out.Add(out, applyFee(price, feeRate))
}

// PayoutFor converts a payout-denominated value into the payout owed at
// price, before fees.
func PayoutFor(value, price *big.Int) (*big.Int, error) {
	frac, err := Fraction(cloneBig(value), price)
	if err != nil {
		return nil, err
	}
	payout := frac.Decode112With18()
	return payout.Quo(payout, payoutScale), nil
}

// NetOfFee subtracts the fee at feeRate from total.
func NetOfFee(total, feeRate *big.Int) *big.Int {
	return new(big.Int).Sub(total, applyFee(total, feeRate))
}

// MaxPayoutFor is supply * maxPayout / 1e5.
func MaxPayoutFor(supply, maxPayout *big.Int) *big.Int {
	out := new(big.Int).Mul(cloneBig(supply), cloneBig(maxPayout))
	return out.Quo(out, maxPayoutDenominator)
}

// DustFloor is one hundredth of a whole payout token.
func DustFloor(payoutDecimals uint8) *big.Int {
	floor := Pow10(uint(payoutDecimals))
	return floor.Quo(floor, big.NewInt(100))
}

// BondPriceUSD values a true price in USD given the principal's USD price.
func BondPriceUSD(truePrice, principalUSD *big.Int) *big.Int {
	out := new(big.Int).Mul(truePrice, principalUSD)
	return out.Quo(out, bondPriceUSDScale)
}

// Discount is (payoutUSD - bondPriceUSD) / payoutUSD in units of 1e5. A bond
// priced at or above market carries no discount.
func Discount(bondPriceUSD, payoutUSD *big.Int) (*big.Int, error) {
	if payoutUSD == nil || payoutUSD.Sign() <= 0 {
		return nil, ErrOraclePrice
	}
	if bondPriceUSD.Cmp(payoutUSD) >= 0 {
		return big.NewInt(0), nil
	}
	gap := new(big.Int).Sub(payoutUSD, bondPriceUSD)
	return MulDivFloor(gap, discountDenominator, payoutUSD)
}

// CappedPrice returns the pre-fee price at which the discount equals
// maxDiscount.
func CappedPrice(payoutUSD, principalUSD, maxDiscount, feeRate *big.Int) (*big.Int, error) {
	if payoutUSD == nil || payoutUSD.Sign() <= 0 || principalUSD == nil || principalUSD.Sign() <= 0 {
		return nil, ErrOraclePrice
	}
	if maxDiscount.Sign() < 0 || maxDiscount.Cmp(discountDenominator) > 0 {
		return nil, ErrInvalidParameter
	}
	keep := new(big.Int).Sub(discountDenominator, maxDiscount)
	numerator := new(big.Int).Mul(payoutUSD, keep)
	denominator := new(big.Int).Mul(discountDenominator, principalUSD)
	cappedTrue, err := MulDivFloor(numerator, bondPriceUSDScale, denominator)
	if err != nil {
		return nil, err
	}
	return MulDivFloor(cappedTrue, feeDenominator, new(big.Int).Add(feeDenominator, feeRate))
}

// quote prices the market at the engine's block height.
func (e *Engine) quote(market *Market) (*Quote, error) {
	supply, decimals, err := e.payoutSupply(market)
	if err != nil {
		return nil, err
	}
	debt, err := market.currentDebt(e.blockHeight)
	if err != nil {
		return nil, err
	}
	ratio, err := DebtRatio(debt, supply, decimals)
	if err != nil {
		return nil, err
	}
	raw, err := RawPrice(market.Terms.ControlVariable, ratio, decimals)
	if err != nil {
		return nil, err
	}
	price, floored := ComputePrice(raw, market.Terms.MinimumPrice)
	q := &Quote{
		DebtRatio: ratio,
		RawPrice:  raw,
		Price:     price,
		FeeRate:   market.FeeTiers.Rate(market.TotalPrincipalBonded),
		Floored:   floored,
	}
	if !floored && market.Terms.MaxDiscount.Sign() > 0 {
		if err := e.capPrice(market, q); err != nil {
			return nil, err
		}
	}
	q.TruePrice = TruePrice(q.Price, q.FeeRate)
	return q, nil
}

// capPrice raises the price of a discount-capped market when the oracle shows
// a discount above the cap. A capped price lower than the organic one is
// ignored.
func (e *Engine) capPrice(market *Market, q *Quote) error {
	payoutUSD, principalUSD, err := e.usdPrices(market)
	if err != nil {
		return err
	}
	discount, err := Discount(BondPriceUSD(TruePrice(q.Price, q.FeeRate), principalUSD), payoutUSD)
	if err != nil {
		return err
	}
	q.Discount = discount
	if discount.Cmp(market.Terms.MaxDiscount) <= 0 {
		return nil
	}
	capped, err := CappedPrice(payoutUSD, principalUSD, market.Terms.MaxDiscount, q.FeeRate)
	if err != nil {
		return err
	}
	if capped.Cmp(q.Price) > 0 {
		q.Price = capped
		q.Capped = true
	}
	return nil
}

// settleFloor clears the minimum price once the organic price has reached it.
// It reports whether the floor was removed.
func (e *Engine) settleFloor(market *Market) (bool, error) {
	if market.Terms.MinimumPrice.Sign() == 0 {
		return false, nil
	}
	supply, decimals, err := e.payoutSupply(market)
	if err != nil {
		return false, err
	}
	debt, err := market.currentDebt(e.blockHeight)
	if err != nil {
		return false, err
	}
	ratio, err := DebtRatio(debt, supply, decimals)
	if err != nil {
		return false, err
	}
	raw, err := RawPrice(market.Terms.ControlVariable, ratio, decimals)
	if err != nil {
		return false, err
	}
	if raw.Cmp(market.Terms.MinimumPrice) < 0 {
		return false, nil
	}
	market.Terms.MinimumPrice = big.NewInt(0)
	return true, nil
}

func (e *Engine) payoutSupply(market *Market) (*big.Int, uint8, error) {
	if e.bank == nil {
		return nil, 0, errNilBank
	}
	decimals, err := e.bank.Decimals(market.PayoutToken)
	if err != nil {
		return nil, 0, err
	}
	supply, err := e.bank.TotalSupply(market.PayoutToken)
	if err != nil {
		return nil, 0, err
	}
	return supply, decimals, nil
}

func (e *Engine) usdPrices(market *Market) (*big.Int, *big.Int, error) {
	if e.oracle == nil {
		return nil, nil, errNilOracle
	}
	payoutUSD, err := e.oracle.USDPrice(market.PayoutToken)
	if err != nil {
		return nil, nil, err
	}
	principalUSD, err := e.oracle.USDPrice(market.PrincipalToken)
	if err != nil {
		return nil, nil, err
	}
	if payoutUSD == nil || payoutUSD.Sign() <= 0 || principalUSD == nil || principalUSD.Sign() <= 0 {
		return nil, nil, ErrOraclePrice
	}
	return payoutUSD, principalUSD, nil
}
