package bond

import (
	"errors"
	"math/big"
	"testing"
)

func marketWithAdjustment(cv int64, add bool, rate, target int64, buffer, last uint64) *Market {
	m := &Market{
		Terms: Terms{ControlVariable: big.NewInt(cv)},
		Adjustment: Adjustment{
			Add:       add,
			Rate:      big.NewInt(rate),
			Target:    big.NewInt(target),
			Buffer:    buffer,
			LastBlock: last,
		},
	}
	m.ensureDefaults()
	return m
}

func TestAdjustHonoursBufferAndConverges(t *testing.T) {
	m := marketWithAdjustment(400_000, true, 12_000, 424_000, 10, 0)

	steps := []struct {
		height  uint64
		applied bool
		cv      int64
		last    uint64
	}{
		{height: 5, applied: false, cv: 400_000, last: 0},
		{height: 10, applied: true, cv: 412_000, last: 10},
		{height: 15, applied: false, cv: 412_000, last: 10},
		{height: 20, applied: true, cv: 424_000, last: 20},
		{height: 40, applied: false, cv: 424_000, last: 20},
	}
	for _, step := range steps {
		if got := m.adjust(step.height); got != step.applied {
			t.Fatalf("height %d: applied=%v want %v", step.height, got, step.applied)
		}
		if m.Terms.ControlVariable.Cmp(big.NewInt(step.cv)) != 0 {
			t.Fatalf("height %d: cv=%s want %d", step.height, m.Terms.ControlVariable, step.cv)
		}
		if m.Adjustment.LastBlock != step.last {
			t.Fatalf("height %d: last=%d want %d", step.height, m.Adjustment.LastBlock, step.last)
		}
	}
	if m.Adjustment.Active() {
		t.Fatalf("adjustment should stop at the target")
	}
}

func TestAdjustDownKeepsOvershoot(t *testing.T) {
	m := marketWithAdjustment(400_000, false, 12_000, 390_000, 0, 0)
	if !m.adjust(1) {
		t.Fatalf("expected adjustment")
	}
	if m.Terms.ControlVariable.Cmp(big.NewInt(388_000)) != 0 {
		t.Fatalf("unexpected control variable: %s", m.Terms.ControlVariable)
	}
	if m.Adjustment.Active() {
		t.Fatalf("crossing the target must zero the rate")
	}
}

func TestAdjustDownClampsAtZero(t *testing.T) {
	m := marketWithAdjustment(5, false, 10, 0, 0, 0)
	m.adjust(1)
	if m.Terms.ControlVariable.Sign() != 0 {
		t.Fatalf("control variable went negative: %s", m.Terms.ControlVariable)
	}
}

func TestSetAdjustmentRejectsLargeIncrement(t *testing.T) {
	h := newTestHarness(t, 5403)
	before := h.state.markets["karma-lp"].Adjustment.Clone()
	err := h.engine.SetAdjustment(testPolicy, true, big.NewInt(12_001), big.NewInt(500_000), 100)
	if !errors.Is(err, ErrIncrementTooLarge) {
		t.Fatalf("expected ErrIncrementTooLarge, got %v", err)
	}
	after := h.state.markets["karma-lp"].Adjustment
	if after.Rate.Cmp(before.Rate) != 0 || after.Target.Cmp(before.Target) != 0 || after.Buffer != before.Buffer {
		t.Fatalf("rejected adjustment mutated state")
	}
	if err := h.engine.SetAdjustment(makeAddress(0x77), true, big.NewInt(1), big.NewInt(1), 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSetBondTerms(t *testing.T) {
	h := newTestHarness(t, 5403)
	if err := h.engine.SetBondTerms(testPolicy, ParamVesting, big.NewInt(64_799)); !errors.Is(err, ErrVestingTooShort) {
		t.Fatalf("expected ErrVestingTooShort, got %v", err)
	}
	if err := h.engine.SetBondTerms(testPolicy, ParamPayout, big.NewInt(1_001)); !errors.Is(err, ErrPayoutTooHigh) {
		t.Fatalf("expected ErrPayoutTooHigh, got %v", err)
	}
	if err := h.engine.SetBondTerms(testDAO, ParamDebt, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.SetBondTerms(testPolicy, ParamVesting, big.NewInt(64_800)); err != nil {
		t.Fatalf("set vesting: %v", err)
	}
	if err := h.engine.SetBondTerms(testPolicy, TermsParameter(9), big.NewInt(1)); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	market, _ := h.engine.Market()
	if market.Terms.VestingTerm != 64_800 {
		t.Fatalf("unexpected vesting term: %d", market.Terms.VestingTerm)
	}
	if _, err := ParseTermsParameter("payout"); err != nil {
		t.Fatalf("parse payout: %v", err)
	}
}

func TestInitializeBondRequiresZeroDebt(t *testing.T) {
	h := newTestHarness(t, 5403)
	terms := InitTerms{
		ControlVariable: big.NewInt(400_000),
		VestingTerm:     testVesting,
		MinimumPrice:    big.NewInt(0),
		MaxPayout:       big.NewInt(500),
		MaxDebt:         big.NewInt(5_000_000_000),
	}
	if err := h.engine.InitializeBond(testDAO, terms); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.InitializeBond(testPolicy, terms); !errors.Is(err, ErrDebtOutstanding) {
		t.Fatalf("expected ErrDebtOutstanding, got %v", err)
	}
	bad := terms
	bad.VestingTerm = 0
	if err := h.engine.InitializeBond(testPolicy, bad); !errors.Is(err, ErrVestingNotSet) {
		t.Fatalf("expected ErrVestingNotSet, got %v", err)
	}
	h.engine.SetBlockHeight(testHeight + testVesting)
	if err := h.engine.InitializeBond(testPolicy, terms); err != nil {
		t.Fatalf("re-initialise after debt decayed: %v", err)
	}
}
