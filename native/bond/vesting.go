package bond

import "math/big"

// FullyVested is the PercentVested value of a mature position.
const FullyVested = 10_000

var fullyVested = big.NewInt(FullyVested)

// PercentVested returns blocks since the last touch relative to the remaining
// vesting, where 10 000 is fully vested. The value is not capped.
func PercentVested(pos *Position, height uint64) *big.Int {
	if pos == nil || pos.Vesting == 0 {
		return big.NewInt(0)
	}
	var since uint64
	if height > pos.LastBlock {
		since = height - pos.LastBlock
	}
	pct := new(big.Int).Mul(new(big.Int).SetUint64(since), fullyVested)
	return pct.Quo(pct, new(big.Int).SetUint64(pos.Vesting))
}

// PendingPayout returns the redeemable part of the position at height.
func PendingPayout(pos *Position, height uint64) *big.Int {
	if pos == nil {
		return big.NewInt(0)
	}
	pct := PercentVested(pos, height)
	if pct.Cmp(fullyVested) >= 0 {
		return cloneBig(pos.Payout)
	}
	pending := new(big.Int).Mul(cloneBig(pos.Payout), pct)
	return pending.Quo(pending, fullyVested)
}

// redeemPosition computes the payout released at height. A nil next position
// means the bond is fully redeemed and must be deleted.
func redeemPosition(pos *Position, height uint64) (*big.Int, *Position) {
	pct := PercentVested(pos, height)
	if pct.Cmp(fullyVested) >= 0 {
		return cloneBig(pos.Payout), nil
	}
	paid := new(big.Int).Mul(cloneBig(pos.Payout), pct)
	paid.Quo(paid, fullyVested)

	next := pos.Clone()
	next.Payout = new(big.Int).Sub(next.Payout, paid)
	if height > pos.LastBlock {
		next.Vesting -= height - pos.LastBlock
	}
	next.LastBlock = height
	return paid, next
}

// mergeDeposit credits a new bond onto an existing (or zero) position and
// restarts its vesting.
func mergeDeposit(pos *Position, credited *big.Int, vesting, height uint64, pricePaid *big.Int) *Position {
	next := pos.Clone()
	next.Payout = new(big.Int).Add(next.Payout, credited)
	next.Vesting = vesting
	next.LastBlock = height
	next.PricePaid = cloneBig(pricePaid)
	return next
}
