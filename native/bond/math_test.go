package bond

import (
	"errors"
	"math/big"
	"testing"
)

func TestFractionEncodesAndDecodes(t *testing.T) {
	frac, err := Fraction(big.NewInt(3), big.NewInt(2))
	if err != nil {
		t.Fatalf("fraction: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(3), q112)
	want.Quo(want, big.NewInt(2))
	if frac.Raw().Cmp(want) != 0 {
		t.Fatalf("unexpected raw value: got %s want %s", frac.Raw(), want)
	}
	decoded := frac.Decode112With18()
	lower := new(big.Int).Mul(big.NewInt(15), Pow10(17))
	upper := new(big.Int).Add(lower, big.NewInt(1_000))
	if decoded.Cmp(lower) < 0 || decoded.Cmp(upper) > 0 {
		t.Fatalf("decoded %s outside [%s, %s]", decoded, lower, upper)
	}
}

func TestFractionEdgeCases(t *testing.T) {
	if _, err := Fraction(big.NewInt(1), big.NewInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	zero, err := Fraction(big.NewInt(0), big.NewInt(7))
	if err != nil || zero.Raw().Sign() != 0 {
		t.Fatalf("expected zero fraction, got %s (%v)", zero.Raw(), err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 120)
	if _, err := Fraction(huge, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow above 224 bits, got %v", err)
	}
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := Fraction(tooWide, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for 257 bit numerator, got %v", err)
	}
}

func TestMulDiv256(t *testing.T) {
	a := new(big.Int).Lsh(big.NewInt(1), 200)
	b := new(big.Int).Lsh(big.NewInt(1), 100)
	got, err := MulDiv256(a, b, new(big.Int).Lsh(big.NewInt(1), 150))
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got.Cmp(new(big.Int).Lsh(big.NewInt(1), 150)) != 0 {
		t.Fatalf("unexpected result: %s", got)
	}
	if _, err := MulDiv256(a, b, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := MulDiv256(a, b, big.NewInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		amount   int64
		from, to uint8
		want     int64
	}{
		{amount: 1_000_000_000_000_000_000, from: 18, to: 9, want: 1_000_000_000},
		{amount: 1_999_999_999, from: 18, to: 9, want: 1},
		{amount: 5, from: 6, to: 9, want: 5_000},
		{amount: 42, from: 9, to: 9, want: 42},
	}
	for _, tc := range cases {
		got := ToBaseUnits(big.NewInt(tc.amount), tc.from, tc.to)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("ToBaseUnits(%d, %d, %d) = %s want %d", tc.amount, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDebtDecayIsMonotonicAndBounded(t *testing.T) {
	total := big.NewInt(1_000_000)
	prev := big.NewInt(0)
	for _, height := range []uint64{100, 150, 400, 700, 1_100, 5_000} {
		decay, err := DebtDecay(total, 100, height, 1_000)
		if err != nil {
			t.Fatalf("decay at %d: %v", height, err)
		}
		if decay.Cmp(prev) < 0 {
			t.Fatalf("decay decreased at %d: %s < %s", height, decay, prev)
		}
		if decay.Cmp(total) > 0 {
			t.Fatalf("decay %s exceeds total %s", decay, total)
		}
		prev = decay
	}
	if prev.Cmp(total) != 0 {
		t.Fatalf("debt should fully decay after one vesting term, got %s", prev)
	}
	half, _ := CurrentDebt(total, 0, 500, 1_000)
	if half.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("unexpected current debt: %s", half)
	}
	if _, err := DebtDecay(total, 0, 10, 0); !errors.Is(err, ErrVestingNotSet) {
		t.Fatalf("expected ErrVestingNotSet, got %v", err)
	}
}

func TestFeeScheduleRate(t *testing.T) {
	schedule, err := NewFeeSchedule(
		[]*big.Int{big.NewInt(10), big.NewInt(20)},
		[]*big.Int{big.NewInt(33_300), big.NewInt(66_600)},
	)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for bonded, want := range map[int64]int64{0: 33_300, 9: 33_300, 10: 66_600, 19: 66_600, 25: 66_600} {
		if got := schedule.Rate(big.NewInt(bonded)); got.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("rate at %d: got %s want %d", bonded, got, want)
		}
	}
	if _, err := NewFeeSchedule([]*big.Int{big.NewInt(1)}, nil); !errors.Is(err, ErrTierLengthMismatch) {
		t.Fatalf("expected ErrTierLengthMismatch, got %v", err)
	}
	if _, err := NewFeeSchedule(nil, nil); !errors.Is(err, ErrEmptyFeeSchedule) {
		t.Fatalf("expected ErrEmptyFeeSchedule, got %v", err)
	}
}

func TestPricingHelpers(t *testing.T) {
	if got := TruePrice(big.NewInt(5403), big.NewInt(33_300)); got.Cmp(big.NewInt(5582)) != 0 {
		t.Fatalf("unexpected true price: %s", got)
	}
	if got := MaxPayoutFor(big.NewInt(1_000_000_000), big.NewInt(500)); got.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("unexpected max payout: %s", got)
	}
	if got := DustFloor(9); got.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("unexpected dust floor: %s", got)
	}
	price, floored := ComputePrice(big.NewInt(600), big.NewInt(5403))
	if !floored || price.Cmp(big.NewInt(5403)) != 0 {
		t.Fatalf("expected floor to apply")
	}
	price, floored = ComputePrice(big.NewInt(6000), big.NewInt(5403))
	if floored || price.Cmp(big.NewInt(6000)) != 0 {
		t.Fatalf("expected organic price")
	}
	if _, err := RawPrice(big.NewInt(1), big.NewInt(1), 4); !errors.Is(err, ErrPayoutDecimals) {
		t.Fatalf("expected ErrPayoutDecimals, got %v", err)
	}
	if _, err := DebtRatio(big.NewInt(1), big.NewInt(0), 9); !errors.Is(err, ErrZeroSupply) {
		t.Fatalf("expected ErrZeroSupply, got %v", err)
	}
	discount, err := Discount(big.NewInt(3), big.NewInt(2))
	if err != nil || discount.Sign() != 0 {
		t.Fatalf("premium bond should carry no discount, got %s (%v)", discount, err)
	}
}
