package bond

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"bondchain/crypto"
	nativecommon "bondchain/native/common"
)

type mockEngineState struct {
	markets   map[string]*Market
	positions map[string]*Position
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		markets:   make(map[string]*Market),
		positions: make(map[string]*Position),
	}
}

func (m *mockEngineState) posKey(id string, owner crypto.Address) string {
	return id + "/" + string(owner.Bytes())
}

func (m *mockEngineState) BondMarket(id string) (*Market, error) {
	return m.markets[id].Clone(), nil
}

func (m *mockEngineState) PutBondMarket(market *Market) error {
	m.markets[market.ID] = market.Clone()
	return nil
}

func (m *mockEngineState) BondPosition(id string, owner crypto.Address) (*Position, error) {
	return m.positions[m.posKey(id, owner)].Clone(), nil
}

func (m *mockEngineState) PutBondPosition(id string, pos *Position) error {
	m.positions[m.posKey(id, pos.Owner)] = pos.Clone()
	return nil
}

func (m *mockEngineState) DeleteBondPosition(id string, owner crypto.Address) error {
	delete(m.positions, m.posKey(id, owner))
	return nil
}

type mockBank struct {
	decimals map[string]uint8
	supply   map[string]*big.Int
	balances map[string]*big.Int
}

func newMockBank() *mockBank {
	return &mockBank{
		decimals: make(map[string]uint8),
		supply:   make(map[string]*big.Int),
		balances: make(map[string]*big.Int),
	}
}

func (b *mockBank) key(symbol string, addr crypto.Address) string {
	return symbol + ":" + string(addr.Bytes())
}

func (b *mockBank) Decimals(symbol string) (uint8, error) {
	d, ok := b.decimals[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown token %s", symbol)
	}
	return d, nil
}

func (b *mockBank) TotalSupply(symbol string) (*big.Int, error) {
	if s, ok := b.supply[symbol]; ok {
		return new(big.Int).Set(s), nil
	}
	return big.NewInt(0), nil
}

func (b *mockBank) Balance(symbol string, addr crypto.Address) *big.Int {
	if bal, ok := b.balances[b.key(symbol, addr)]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (b *mockBank) mint(symbol string, addr crypto.Address, amount *big.Int) {
	b.balances[b.key(symbol, addr)] = new(big.Int).Add(b.Balance(symbol, addr), amount)
}

func (b *mockBank) Transfer(symbol string, from, to crypto.Address, amount *big.Int) error {
	fromBal := b.Balance(symbol, from)
	if fromBal.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	b.balances[b.key(symbol, from)] = fromBal.Sub(fromBal, amount)
	b.mint(symbol, to, amount)
	return nil
}

type mockTreasury struct {
	bank        *mockBank
	payoutToken string
}

func (t *mockTreasury) ValueOfToken(_ crypto.Address, principal string, amount *big.Int) (*big.Int, error) {
	from, err := t.bank.Decimals(principal)
	if err != nil {
		return nil, err
	}
	to, err := t.bank.Decimals(t.payoutToken)
	if err != nil {
		return nil, err
	}
	return ToBaseUnits(amount, from, to), nil
}

func (t *mockTreasury) Deposit(treasury, bond crypto.Address, principal string, amount, payout *big.Int) error {
	if err := t.bank.Transfer(principal, bond, treasury, amount); err != nil {
		return err
	}
	return t.bank.Transfer(t.payoutToken, treasury, bond, payout)
}

type mockOracle map[string]*big.Int

func (o mockOracle) USDPrice(symbol string) (*big.Int, error) {
	price, ok := o[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for %s", symbol)
	}
	return new(big.Int).Set(price), nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("invalid integer %q", s)
	}
	return v
}

const (
	testPayout    = "KARMA"
	testPrincipal = "KARMA-USDC-LP"
	testVesting   = 302_400
	testHeight    = 1_000
)

var (
	testPolicy      = makeAddress(0x01)
	testDAO         = makeAddress(0x02)
	testRouter      = makeAddress(0x03)
	testTreasury    = makeAddress(0x04)
	testFeeTreasury = makeAddress(0x05)
	testDepositor   = makeAddress(0x10)
)

type testHarness struct {
	engine *Engine
	state  *mockEngineState
	bank   *mockBank
}

// newTestHarness registers a KARMA market backed by 0.1 billion KARMA of
// supply and seeds it with 1.56 KARMA of debt.
func newTestHarness(t *testing.T, minPrice int64) *testHarness {
	t.Helper()
	state := newMockEngineState()
	bank := newMockBank()
	bank.decimals[testPayout] = 9
	bank.decimals[testPrincipal] = 18
	bank.supply[testPayout] = mustBig(t, "100000000000000000")
	bank.mint(testPayout, testTreasury, mustBig(t, "10000000000000000"))
	bank.mint(testPrincipal, testDepositor, mustBig(t, "10000000000000000000"))

	engine := NewEngine(64_800)
	engine.SetState(state)
	engine.SetBank(bank)
	engine.SetTreasury(&mockTreasury{bank: bank, payoutToken: testPayout})
	engine.SetBlockHeight(testHeight)

	_, err := engine.RegisterMarket(MarketConfig{
		ID:             "karma-lp",
		PrincipalToken: testPrincipal,
		PayoutToken:    testPayout,
		Treasury:       testTreasury,
		FeeTreasury:    testFeeTreasury,
		Policy:         testPolicy,
		DAO:            testDAO,
		SubsidyRouter:  testRouter,
		TierCeilings:   []*big.Int{mustBig(t, "10000000000000000000"), mustBig(t, "20000000000000000000")},
		FeeRates:       []*big.Int{big.NewInt(33_300), big.NewInt(66_600)},
	})
	if err != nil {
		t.Fatalf("register market: %v", err)
	}
	err = engine.InitializeBond(testPolicy, InitTerms{
		ControlVariable: big.NewInt(400_000),
		VestingTerm:     testVesting,
		MinimumPrice:    big.NewInt(minPrice),
		MaxPayout:       big.NewInt(500),
		MaxDebt:         big.NewInt(5_000_000_000),
		InitialDebt:     big.NewInt(1_560_000_000),
	})
	if err != nil {
		t.Fatalf("initialize bond: %v", err)
	}
	return &testHarness{engine: engine, state: state, bank: bank}
}

func TestQuoteAppliesFloorAndFee(t *testing.T) {
	h := newTestHarness(t, 5403)
	q, err := h.engine.Quote()
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.DebtRatio.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("unexpected debt ratio: got %s want 15", q.DebtRatio)
	}
	if q.RawPrice.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected raw price: got %s want 600", q.RawPrice)
	}
	if !q.Floored || q.Price.Cmp(big.NewInt(5403)) != 0 {
		t.Fatalf("expected floored price 5403, got %s (floored=%v)", q.Price, q.Floored)
	}
	if q.TruePrice.Cmp(big.NewInt(5582)) != 0 {
		t.Fatalf("unexpected true price: got %s want 5582", q.TruePrice)
	}
	if q.FeeRate.Cmp(big.NewInt(33_300)) != 0 {
		t.Fatalf("unexpected fee rate: %s", q.FeeRate)
	}
}

func TestDepositCreditsPositionNetOfFee(t *testing.T) {
	h := newTestHarness(t, 5403)
	amount := mustBig(t, "100000000000000000")

	quoted, err := h.engine.PayoutFor(big.NewInt(100_000_000))
	if err != nil {
		t.Fatalf("payout for: %v", err)
	}
	if quoted.Cmp(big.NewInt(178_919_119_008)) != 0 {
		t.Fatalf("unexpected quoted payout: %s", quoted)
	}

	res, err := h.engine.Deposit(testDepositor, amount, big.NewInt(6000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Value.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("unexpected value: %s", res.Value)
	}
	if res.Payout.Cmp(big.NewInt(185_082_361_650)) != 0 {
		t.Fatalf("unexpected payout: %s", res.Payout)
	}
	if res.Fee.Cmp(big.NewInt(6_163_242_642)) != 0 {
		t.Fatalf("unexpected fee: %s", res.Fee)
	}
	if res.Credited.Cmp(quoted) != 0 {
		t.Fatalf("credited %s differs from quote %s", res.Credited, quoted)
	}
	if res.PricePaid.Cmp(big.NewInt(5582)) != 0 {
		t.Fatalf("unexpected price paid: %s", res.PricePaid)
	}
	if res.MaturesAt != testHeight+testVesting {
		t.Fatalf("unexpected maturity: %d", res.MaturesAt)
	}

	pos, err := h.engine.Position(testDepositor)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Payout.Cmp(quoted) != 0 || pos.Vesting != testVesting || pos.LastBlock != testHeight {
		t.Fatalf("unexpected position: payout=%s vesting=%d last=%d", pos.Payout, pos.Vesting, pos.LastBlock)
	}

	market, err := h.engine.Market()
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if market.TotalDebt.Cmp(big.NewInt(1_660_000_000)) != 0 {
		t.Fatalf("unexpected total debt: %s", market.TotalDebt)
	}
	if market.Terms.MinimumPrice.Cmp(big.NewInt(5403)) != 0 {
		t.Fatalf("floor should persist while raw price is below it")
	}
	if market.TotalPrincipalBonded.Cmp(amount) != 0 || market.TotalPayoutGiven.Cmp(res.Payout) != 0 {
		t.Fatalf("unexpected counters: bonded=%s given=%s", market.TotalPrincipalBonded, market.TotalPayoutGiven)
	}

	if got := h.bank.Balance(testPayout, testFeeTreasury); got.Cmp(res.Fee) != 0 {
		t.Fatalf("fee treasury balance %s want %s", got, res.Fee)
	}
	if got := h.bank.Balance(testPayout, market.ModuleAddress()); got.Cmp(res.Credited) != 0 {
		t.Fatalf("module custody %s want %s", got, res.Credited)
	}
	if got := h.bank.Balance(testPrincipal, testTreasury); got.Cmp(amount) != 0 {
		t.Fatalf("treasury principal %s want %s", got, amount)
	}
}

func TestDepositRejections(t *testing.T) {
	amount := mustBig(t, "100000000000000000")
	tests := []struct {
		name    string
		mutate  func(h *testHarness)
		amount  *big.Int
		max     *big.Int
		wantErr error
	}{
		{name: "slippage", amount: amount, max: big.NewInt(5581), wantErr: ErrSlippage},
		{name: "zero amount", amount: big.NewInt(0), max: big.NewInt(6000), wantErr: ErrInvalidAmount},
		{name: "capacity", amount: amount, max: big.NewInt(6000), wantErr: ErrMaxCapacity, mutate: func(h *testHarness) {
			if err := h.engine.SetBondTerms(testPolicy, ParamDebt, big.NewInt(1_600_000_000)); err != nil {
				panic(err)
			}
		}},
		{name: "dust", amount: big.NewInt(1_000_000_000_000), max: big.NewInt(6000), wantErr: ErrBondTooSmall},
		{name: "too large", amount: big.NewInt(1_000_000_000_000_000_000), max: big.NewInt(6000), wantErr: ErrBondTooLarge, mutate: func(h *testHarness) {
			if err := h.engine.SetBondTerms(testPolicy, ParamPayout, big.NewInt(1)); err != nil {
				panic(err)
			}
		}},
		{name: "paused", amount: amount, max: big.NewInt(6000), wantErr: nativecommon.ErrModulePaused, mutate: func(h *testHarness) {
			h.engine.SetPauses(nativecommon.NewPauseSet(ModuleName))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHarness(t, 5403)
			if tc.mutate != nil {
				tc.mutate(h)
			}
			before := h.state.markets["karma-lp"].Clone()
			_, err := h.engine.Deposit(testDepositor, tc.amount, tc.max)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			after := h.state.markets["karma-lp"]
			if after.TotalDebt.Cmp(before.TotalDebt) != 0 || after.LastDecay != before.LastDecay {
				t.Fatalf("rejected deposit mutated the market")
			}
			if len(h.state.positions) != 0 {
				t.Fatalf("rejected deposit created a position")
			}
			if got := h.bank.Balance(testPrincipal, testDepositor); got.Cmp(mustBig(t, "10000000000000000000")) != 0 {
				t.Fatalf("rejected deposit moved principal: %s", got)
			}
		})
	}
}

func TestDepositClearsFloorOnceReached(t *testing.T) {
	h := newTestHarness(t, 500)
	q, err := h.engine.Quote()
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Floored {
		t.Fatalf("raw price 600 should not be floored by 500")
	}
	if _, err := h.engine.Deposit(testDepositor, mustBig(t, "100000000000000000"), big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	market, err := h.engine.Market()
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if market.Terms.MinimumPrice.Sign() != 0 {
		t.Fatalf("expected floor to be cleared, got %s", market.Terms.MinimumPrice)
	}
}

func TestSettleFloorIsIdempotent(t *testing.T) {
	h := newTestHarness(t, 500)
	market, err := h.engine.Market()
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	cleared, err := h.engine.settleFloor(market)
	if err != nil || !cleared {
		t.Fatalf("expected first settle to clear floor: cleared=%v err=%v", cleared, err)
	}
	snapshot := market.Clone()
	cleared, err = h.engine.settleFloor(market)
	if err != nil || cleared {
		t.Fatalf("expected second settle to be a no-op: cleared=%v err=%v", cleared, err)
	}
	if market.Terms.MinimumPrice.Cmp(snapshot.Terms.MinimumPrice) != 0 {
		t.Fatalf("second settle changed the floor")
	}
}

func TestRedeemVestsLinearlyAndCloses(t *testing.T) {
	h := newTestHarness(t, 5403)
	res, err := h.engine.Deposit(testDepositor, mustBig(t, "100000000000000000"), big.NewInt(6000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	h.engine.SetBlockHeight(testHeight + testVesting/2)
	pct, err := h.engine.PercentVestedFor(testDepositor)
	if err != nil {
		t.Fatalf("percent vested: %v", err)
	}
	if pct.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("unexpected percent vested: %s", pct)
	}
	first, err := h.engine.Redeem(testDepositor)
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if first.Closed || first.Paid.Cmp(big.NewInt(89_459_559_504)) != 0 {
		t.Fatalf("unexpected partial redeem: paid=%s closed=%v", first.Paid, first.Closed)
	}
	pos, err := h.engine.Position(testDepositor)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Vesting != testVesting/2 || pos.LastBlock != testHeight+testVesting/2 {
		t.Fatalf("unexpected vesting state: vesting=%d last=%d", pos.Vesting, pos.LastBlock)
	}
	if pos.PricePaid.Cmp(res.PricePaid) != 0 {
		t.Fatalf("price paid changed on redeem")
	}

	h.engine.SetBlockHeight(testHeight + testVesting)
	second, err := h.engine.Redeem(testDepositor)
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if !second.Closed {
		t.Fatalf("expected bond to close")
	}
	total := new(big.Int).Add(first.Paid, second.Paid)
	if total.Cmp(res.Credited) != 0 {
		t.Fatalf("redeemed %s, credited %s", total, res.Credited)
	}
	if got := h.bank.Balance(testPayout, testDepositor); got.Cmp(res.Credited) != 0 {
		t.Fatalf("depositor balance %s want %s", got, res.Credited)
	}
	if _, err := h.engine.Redeem(testDepositor); !errors.Is(err, ErrNoBond) {
		t.Fatalf("expected ErrNoBond after close, got %v", err)
	}
}

func TestRedeemWithoutBond(t *testing.T) {
	h := newTestHarness(t, 5403)
	if _, err := h.engine.Redeem(makeAddress(0x99)); !errors.Is(err, ErrNoBond) {
		t.Fatalf("expected ErrNoBond, got %v", err)
	}
	if _, err := h.engine.PendingPayoutFor(makeAddress(0x99)); !errors.Is(err, ErrNoBond) {
		t.Fatalf("expected ErrNoBond from view, got %v", err)
	}
}

func TestDepositRunsAdjustment(t *testing.T) {
	h := newTestHarness(t, 5403)
	if err := h.engine.SetAdjustment(testPolicy, true, big.NewInt(12_000), big.NewInt(424_000), 0); err != nil {
		t.Fatalf("set adjustment: %v", err)
	}
	if _, err := h.engine.Deposit(testDepositor, mustBig(t, "100000000000000000"), big.NewInt(6000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	market, err := h.engine.Market()
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if market.Terms.ControlVariable.Cmp(big.NewInt(412_000)) != 0 {
		t.Fatalf("unexpected control variable: %s", market.Terms.ControlVariable)
	}
}

func TestBondDiscountCapRaisesPrice(t *testing.T) {
	h := newTestHarness(t, 0)
	market := h.state.markets["karma-lp"]
	market.Terms.MaxDiscount = big.NewInt(10_000)
	oracle := mockOracle{
		testPayout:    mustBig(t, "2000000000000000000"),
		testPrincipal: mustBig(t, "20000000000000000000000"),
	}
	h.engine.SetOracle(oracle)

	q, err := h.engine.Quote()
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Discount.Cmp(big.NewInt(38_100)) != 0 {
		t.Fatalf("unexpected discount: %s", q.Discount)
	}
	if !q.Capped || q.Price.Cmp(big.NewInt(870)) != 0 {
		t.Fatalf("expected capped price 870, got %s (capped=%v)", q.Price, q.Capped)
	}
	if q.TruePrice.Cmp(big.NewInt(898)) != 0 {
		t.Fatalf("unexpected true price: %s", q.TruePrice)
	}

	oracle[testPayout] = mustBig(t, "1300000000000000000")
	q, err = h.engine.Quote()
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Capped || q.Price.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("discount under the cap must keep the organic price, got %s", q.Price)
	}
	discount, err := h.engine.BondDiscount()
	if err != nil {
		t.Fatalf("bond discount: %v", err)
	}
	if discount.Cmp(big.NewInt(4769)) != 0 {
		t.Fatalf("unexpected discount: %s", discount)
	}
}

func TestFlooredMarketSkipsDiscountCap(t *testing.T) {
	h := newTestHarness(t, 5403)
	h.state.markets["karma-lp"].Terms.MaxDiscount = big.NewInt(10_000)
	q, err := h.engine.Quote()
	if err != nil {
		t.Fatalf("floored quote must not consult the oracle: %v", err)
	}
	if q.Capped || q.Discount != nil {
		t.Fatalf("floored quote should not be capped")
	}
}

func TestResetSubsidyCounter(t *testing.T) {
	h := newTestHarness(t, 5403)
	res, err := h.engine.Deposit(testDepositor, mustBig(t, "100000000000000000"), big.NewInt(6000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := h.engine.ResetSubsidyCounter(testPolicy); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	previous, err := h.engine.ResetSubsidyCounter(testRouter)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if previous.Cmp(res.Payout) != 0 {
		t.Fatalf("unexpected subsidy counter: %s", previous)
	}
	market, _ := h.engine.Market()
	if market.PayoutSinceLastSubsidy.Sign() != 0 {
		t.Fatalf("counter not reset")
	}
}

func TestSetFeeTreasuryRequiresDAO(t *testing.T) {
	h := newTestHarness(t, 5403)
	next := makeAddress(0x55)
	if err := h.engine.SetFeeTreasury(testPolicy, next); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.SetFeeTreasury(testDAO, next); err != nil {
		t.Fatalf("set fee treasury: %v", err)
	}
	market, _ := h.engine.Market()
	if !market.FeeTreasury.Equal(next) {
		t.Fatalf("fee treasury not updated")
	}
}

func TestRegisterMarketValidation(t *testing.T) {
	h := newTestHarness(t, 5403)
	_, err := h.engine.RegisterMarket(MarketConfig{
		ID:             "karma-lp",
		PrincipalToken: testPrincipal,
		PayoutToken:    testPayout,
		Treasury:       testTreasury,
		FeeTreasury:    testFeeTreasury,
		Policy:         testPolicy,
		DAO:            testDAO,
		SubsidyRouter:  testRouter,
		TierCeilings:   []*big.Int{big.NewInt(1)},
		FeeRates:       []*big.Int{big.NewInt(0)},
	})
	if !errors.Is(err, ErrMarketExists) {
		t.Fatalf("expected ErrMarketExists, got %v", err)
	}
	h.bank.decimals["DUST"] = 4
	_, err = h.engine.RegisterMarket(MarketConfig{
		ID:             "dust",
		PrincipalToken: testPrincipal,
		PayoutToken:    "DUST",
		Treasury:       testTreasury,
		FeeTreasury:    testFeeTreasury,
		Policy:         testPolicy,
		DAO:            testDAO,
		SubsidyRouter:  testRouter,
		TierCeilings:   []*big.Int{big.NewInt(1)},
		FeeRates:       []*big.Int{big.NewInt(0)},
	})
	if !errors.Is(err, ErrPayoutDecimals) {
		t.Fatalf("expected ErrPayoutDecimals, got %v", err)
	}
}

func TestUninitialisedMarketViews(t *testing.T) {
	state := newMockEngineState()
	bank := newMockBank()
	bank.decimals[testPayout] = 9
	bank.decimals[testPrincipal] = 18
	engine := NewEngine(64_800)
	engine.SetState(state)
	engine.SetBank(bank)
	_, err := engine.RegisterMarket(MarketConfig{
		ID:             "fresh",
		PrincipalToken: testPrincipal,
		PayoutToken:    testPayout,
		Treasury:       testTreasury,
		FeeTreasury:    testFeeTreasury,
		Policy:         testPolicy,
		DAO:            testDAO,
		SubsidyRouter:  testRouter,
		TierCeilings:   []*big.Int{big.NewInt(1)},
		FeeRates:       []*big.Int{big.NewInt(0)},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := engine.Quote(); !errors.Is(err, ErrVestingNotSet) {
		t.Fatalf("expected ErrVestingNotSet, got %v", err)
	}
	if _, err := engine.CurrentDebt(); !errors.Is(err, ErrVestingNotSet) {
		t.Fatalf("expected ErrVestingNotSet from debt view, got %v", err)
	}
}

func TestTermsAdjustmentAndTotalsViews(t *testing.T) {
	h := newTestHarness(t, 5403)
	if err := h.engine.SetAdjustment(testPolicy, false, big.NewInt(1000), big.NewInt(390_000), 5); err != nil {
		t.Fatalf("set adjustment: %v", err)
	}
	terms, err := h.engine.Terms()
	if err != nil {
		t.Fatalf("terms: %v", err)
	}
	if terms.ControlVariable.Int64() != 400_000 || terms.VestingTerm != 302_400 {
		t.Fatalf("unexpected terms %+v", terms)
	}
	terms.ControlVariable.SetInt64(1)
	again, _ := h.engine.Terms()
	if again.ControlVariable.Int64() != 400_000 {
		t.Fatalf("terms view must be a copy")
	}
	adj, err := h.engine.Adjustment()
	if err != nil {
		t.Fatalf("adjustment: %v", err)
	}
	if adj.Add || adj.Rate.Int64() != 1000 || adj.Buffer != 5 || adj.LastBlock != testHeight {
		t.Fatalf("unexpected adjustment %+v", adj)
	}

	amount := mustBig(t, "100000000000000000")
	res, err := h.engine.Deposit(testDepositor, amount, big.NewInt(6000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	totals, err := h.engine.Totals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.PrincipalBonded.Cmp(amount) != 0 || totals.PayoutGiven.Cmp(res.Payout) != 0 || totals.PayoutSinceLastSubsidy.Cmp(res.Payout) != 0 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
