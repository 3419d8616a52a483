package bond

import "math/big"

// DebtDecay returns the portion of totalDebt that has matured since
// lastDecay. The result never exceeds totalDebt.
func DebtDecay(totalDebt *big.Int, lastDecay, height, vestingTerm uint64) (*big.Int, error) {
	if vestingTerm == 0 {
		return nil, ErrVestingNotSet
	}
	if totalDebt == nil || totalDebt.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	var elapsed uint64
	if height > lastDecay {
		elapsed = height - lastDecay
	}
	decay := new(big.Int).Mul(totalDebt, new(big.Int).SetUint64(elapsed))
	decay.Quo(decay, new(big.Int).SetUint64(vestingTerm))
	if decay.Cmp(totalDebt) > 0 {
		decay.Set(totalDebt)
	}
	return decay, nil
}

// CurrentDebt returns totalDebt net of its decay at height.
func CurrentDebt(totalDebt *big.Int, lastDecay, height, vestingTerm uint64) (*big.Int, error) {
	decay, err := DebtDecay(totalDebt, lastDecay, height, vestingTerm)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(cloneBig(totalDebt), decay), nil
}

func (m *Market) debtDecay(height uint64) (*big.Int, error) {
	return DebtDecay(m.TotalDebt, m.LastDecay, height, m.Terms.VestingTerm)
}

func (m *Market) currentDebt(height uint64) (*big.Int, error) {
	return CurrentDebt(m.TotalDebt, m.LastDecay, height, m.Terms.VestingTerm)
}

// decayDebt folds the matured debt out of the market and restarts the decay
// window at height.
func (m *Market) decayDebt(height uint64) error {
	current, err := m.currentDebt(height)
	if err != nil {
		return err
	}
	m.TotalDebt = current
	m.LastDecay = height
	return nil
}
