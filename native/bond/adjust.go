package bond

import "math/big"

// adjustmentCap bounds a new step to 3% of the control variable.
var (
	adjustmentCapNumerator   = big.NewInt(30)
	adjustmentCapDenominator = big.NewInt(1000)
)

// maxAdjustment returns controlVariable*30/1000.
func maxAdjustment(controlVariable *big.Int) *big.Int {
	limit := new(big.Int).Mul(cloneBig(controlVariable), adjustmentCapNumerator)
	return limit.Quo(limit, adjustmentCapDenominator)
}

// adjust applies at most one control variable step. The buffer is measured
// from the last applied step, so skipped calls leave LastBlock untouched.
// Crossing the target zeroes the rate and keeps the overshoot. A downward
// step stops at zero instead of wrapping the unsigned value; that clamp is the
// only change to the step arithmetic.
func (m *Market) adjust(height uint64) bool {
	adj := &m.Adjustment
	if !adj.Active() {
		return false
	}
	if height < adj.LastBlock+adj.Buffer {
		return false
	}
	cv := cloneBig(m.Terms.ControlVariable)
	if adj.Add {
		cv.Add(cv, adj.Rate)
		if cv.Cmp(adj.Target) >= 0 {
			adj.Rate = big.NewInt(0)
		}
	} else {
		cv.Sub(cv, adj.Rate)
		if cv.Sign() < 0 {
			cv.SetInt64(0)
		}
		if cv.Cmp(adj.Target) <= 0 {
			adj.Rate = big.NewInt(0)
		}
	}
	m.Terms.ControlVariable = cv
	adj.LastBlock = height
	return true
}
