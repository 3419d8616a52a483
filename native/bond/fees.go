package bond

import "math/big"

// feeDenominator expresses fee rates in millionths: 33_300 is 3.33%.
var feeDenominator = big.NewInt(1_000_000)

// FeeTier applies Rate while the cumulative principal bonded stays below
// Ceiling.
type FeeTier struct {
	Ceiling *big.Int
	Rate    *big.Int
}

// Clone returns a deep copy of the tier.
func (t FeeTier) Clone() FeeTier {
	return FeeTier{Ceiling: cloneBig(t.Ceiling), Rate: cloneBig(t.Rate)}
}

// FeeSchedule is the ordered list of tiers of a market. Tiers are consulted in
// stored order; the final tier is the catch-all.
type FeeSchedule []FeeTier

// NewFeeSchedule pairs ceilings with rates. Ordering is the caller's
// responsibility and is not validated.
func NewFeeSchedule(ceilings, rates []*big.Int) (FeeSchedule, error) {
	if len(ceilings) != len(rates) {
		return nil, ErrTierLengthMismatch
	}
	if len(ceilings) == 0 {
		return nil, ErrEmptyFeeSchedule
	}
	schedule := make(FeeSchedule, len(ceilings))
	for i := range ceilings {
		if ceilings[i] == nil || ceilings[i].Sign() < 0 || rates[i] == nil || rates[i].Sign() < 0 {
			return nil, ErrInvalidParameter
		}
		schedule[i] = FeeTier{Ceiling: cloneBig(ceilings[i]), Rate: cloneBig(rates[i])}
	}
	return schedule, nil
}

// Rate resolves the fee rate for the cumulative principal bonded so far.
func (s FeeSchedule) Rate(totalPrincipalBonded *big.Int) *big.Int {
	if len(s) == 0 {
		return big.NewInt(0)
	}
	bonded := totalPrincipalBonded
	if bonded == nil {
		bonded = big.NewInt(0)
	}
	for i, tier := range s {
		if i == len(s)-1 || bonded.Cmp(tier.Ceiling) < 0 {
			return cloneBig(tier.Rate)
		}
	}
	return big.NewInt(0)
}

// Clone returns a deep copy of the schedule.
func (s FeeSchedule) Clone() FeeSchedule {
	if s == nil {
		return nil
	}
	out := make(FeeSchedule, len(s))
	for i := range s {
		out[i] = s[i].Clone()
	}
	return out
}

// applyFee returns amount*rate/1e6.
func applyFee(amount, rate *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, rate)
	return fee.Quo(fee, feeDenominator)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
