package core

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bondchain/core/genesis"
	"bondchain/core/state"
	"bondchain/crypto"
	"bondchain/native/bond"
	nativecommon "bondchain/native/common"
	"bondchain/native/treasury"
	"bondchain/observability/logging"
	"bondchain/observability/metrics"
	telemetry "bondchain/observability/otel"
	"bondchain/storage"
)

var (
	ErrGenesisApplied = errors.New("core: genesis already applied")
	ErrMarketRequired = errors.New("core: market id required")
)

var genesisMarkerKey = []byte("bondchain/genesis/applied")

// heightAware is implemented by price sources whose freshness is measured in
// blocks.
type heightAware interface {
	SetBlockHeight(height uint64)
}

// BondService executes bond and treasury operations against persistent
// storage. Calls are serialised; each call runs in its own journal that is
// committed on success and discarded on failure.
type BondService struct {
	mu               sync.Mutex
	db               storage.Database
	clock            Clock
	minVestingBlocks uint64
	oracle           bond.PriceOracle
	pauses           *nativecommon.PauseSet
	quota            nativecommon.Quota
	logger           *slog.Logger
	metrics          *metrics.BondMetrics
	tracer           trace.Tracer
}

// NewBondService constructs a service over db. minVestingBlocks bounds the
// vesting term accepted by SetBondTerms.
func NewBondService(db storage.Database, clock Clock, minVestingBlocks uint64) *BondService {
	return &BondService{
		db:               db,
		clock:            clock,
		minVestingBlocks: minVestingBlocks,
		pauses:           nativecommon.NewPauseSet(),
		logger:           slog.Default(),
		metrics:          metrics.Bond(),
		tracer:           telemetry.Tracer(),
	}
}

func (s *BondService) SetOracle(oracle bond.PriceOracle) {
	s.mu.Lock()
	s.oracle = oracle
	s.mu.Unlock()
}

func (s *BondService) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// SetQuota installs the per-depositor deposit limits.
func (s *BondService) SetQuota(q nativecommon.Quota) {
	s.mu.Lock()
	s.quota = q
	s.mu.Unlock()
}

// Pauses exposes the module pause switches.
func (s *BondService) Pauses() *nativecommon.PauseSet {
	return s.pauses
}

// Height returns the height the next operation executes at.
func (s *BondService) Height() uint64 {
	return s.clock.Height()
}

type unit struct {
	manager  *state.Manager
	bonds    *bond.Engine
	treasury *treasury.Engine
	height   uint64
	marketID string
}

func (s *BondService) newUnit(marketID string) *unit {
	height := s.clock.Height()
	manager := state.NewManager(s.db)
	treasuries := treasury.NewEngine()
	treasuries.SetState(manager)
	treasuries.SetBank(manager)

	if aware, ok := s.oracle.(heightAware); ok {
		aware.SetBlockHeight(height)
	}
	engine := bond.NewEngine(s.minVestingBlocks)
	engine.SetState(manager)
	engine.SetBank(manager)
	engine.SetTreasury(treasuries)
	engine.SetOracle(s.oracle)
	engine.SetPauses(s.pauses)
	engine.SetBlockHeight(height)
	engine.SetMarketID(marketID)
	return &unit{
		manager:  manager,
		bonds:    engine,
		treasury: treasuries,
		height:   height,
		marketID: marketID,
	}
}

// execute runs fn in a fresh journal and commits its writes when fn succeeds.
func (s *BondService) execute(ctx context.Context, marketID, operation string, fn func(*unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "bond."+operation, trace.WithAttributes(
		attribute.String("bond.market", marketID),
	))
	defer span.End()

	u := s.newUnit(marketID)
	span.SetAttributes(attribute.Int64("bond.height", int64(u.height)))
	run := fn
	if signer, ok := signerFrom(ctx); ok {
		span.SetAttributes(attribute.Int64("bond.nonce", int64(signer.Nonce)))
		run = func(u *unit) error {
			if err := u.consumeNonce(signer); err != nil {
				return err
			}
			return fn(u)
		}
	}
	if err := run(u); err != nil {
		u.manager.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveFailure(marketID, operation, failureReason(err))
		s.logger.WarnContext(ctx, "bond operation rejected",
			slog.String("operation", operation),
			slog.String("market", marketID),
			slog.Uint64("height", u.height),
			slog.String("error", err.Error()))
		return err
	}
	if err := u.manager.Commit(); err != nil {
		u.manager.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveFailure(marketID, operation, "storage")
		s.logger.ErrorContext(ctx, "bond commit failed",
			slog.String("operation", operation),
			slog.String("market", marketID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// view runs fn against a journal that is always discarded.
func (s *BondService) view(ctx context.Context, marketID string, fn func(*unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.newUnit(marketID)
	defer u.manager.Discard()
	return fn(u)
}

func requireMarket(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrMarketRequired
	}
	return trimmed, nil
}

// ApplyGenesis writes spec into an empty ledger. It fails once a genesis has
// been applied.
func (s *BondService) ApplyGenesis(ctx context.Context, spec *genesis.Spec) error {
	return s.execute(ctx, "", "genesis", func(u *unit) error {
		applied, err := u.manager.KVGet(genesisMarkerKey, nil)
		if err != nil {
			return err
		}
		if applied {
			return ErrGenesisApplied
		}
		if err := genesis.Apply(spec, u.manager, u.height, s.minVestingBlocks); err != nil {
			return err
		}
		if err := u.manager.KVPut(genesisMarkerKey, uint64(u.height)); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "genesis applied",
			slog.Int("markets", len(spec.Markets)),
			slog.Int("tokens", len(spec.Tokens)),
			slog.Uint64("height", u.height))
		return nil
	})
}

// Deposit buys a bond in market for depositor.
func (s *BondService) Deposit(ctx context.Context, marketID string, depositor crypto.Address, amount, maxPrice *big.Int) (*bond.DepositResult, error) {
	id, err := requireMarket(marketID)
	if err != nil {
		return nil, err
	}
	var result *bond.DepositResult
	err = s.execute(ctx, id, "deposit", func(u *unit) error {
		if err := s.consumeQuota(u, depositor, amount); err != nil {
			return err
		}
		res, err := u.bonds.Deposit(depositor, amount, maxPrice)
		if err != nil {
			return err
		}
		result = res
		s.recordMarket(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDeposit(id, result.Credited)
	s.logger.InfoContext(ctx, "bond deposited",
		slog.String("market", id),
		slog.String("depositor", logging.ShortAddress(depositor.String())),
		slog.String("amount", amount.String()),
		slog.String("payout", result.Credited.String()),
		slog.String("fee", result.Fee.String()),
		slog.String("price_paid", result.PricePaid.String()),
		slog.Uint64("matures_at", result.MaturesAt))
	return result, nil
}

// Redeem releases the vested portion of depositor's bond.
func (s *BondService) Redeem(ctx context.Context, marketID string, depositor crypto.Address) (*bond.RedeemResult, error) {
	id, err := requireMarket(marketID)
	if err != nil {
		return nil, err
	}
	var result *bond.RedeemResult
	err = s.execute(ctx, id, "redeem", func(u *unit) error {
		res, err := u.bonds.Redeem(depositor)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveRedeem(id, result.Closed)
	s.logger.InfoContext(ctx, "bond redeemed",
		slog.String("market", id),
		slog.String("depositor", logging.ShortAddress(depositor.String())),
		slog.String("paid", result.Paid.String()),
		slog.Bool("closed", result.Closed))
	return result, nil
}

type quotaRecord struct {
	ReqCount  uint32
	Principal *big.Int
	EpochID   uint64
}

func quotaKey(marketID string, depositor crypto.Address) []byte {
	key := make([]byte, 0, len("bondchain/quota/")+len(marketID)+1+20)
	key = append(key, "bondchain/quota/"...)
	key = append(key, marketID...)
	key = append(key, '/')
	return append(key, depositor.Bytes()...)
}

// consumeQuota charges one deposit of amount against depositor's epoch
// allowance. The write shares the deposit's journal.
func (s *BondService) consumeQuota(u *unit, depositor crypto.Address, amount *big.Int) error {
	if !s.quota.Enabled() {
		return nil
	}
	key := quotaKey(u.marketID, depositor)
	var stored quotaRecord
	if _, err := u.manager.KVGet(key, &stored); err != nil {
		return err
	}
	prev := nativecommon.QuotaNow{ReqCount: stored.ReqCount, Principal: stored.Principal, EpochID: stored.EpochID}
	next, err := nativecommon.CheckQuota(s.quota, s.quota.EpochAt(u.height), prev, 1, amount)
	if err != nil {
		return err
	}
	return u.manager.KVPut(key, quotaRecord{ReqCount: next.ReqCount, Principal: next.Principal, EpochID: next.EpochID})
}

func (s *BondService) recordMarket(u *unit) {
	market, err := u.bonds.Market()
	if err != nil {
		return
	}
	debt, err := u.bonds.CurrentDebt()
	if err != nil {
		return
	}
	price, err := u.bonds.TrueBondPrice()
	if err != nil {
		return
	}
	s.metrics.RecordMarket(u.marketID, market.Terms.ControlVariable, debt, price)
}

// MarketView is a read-only snapshot of a market at the current height.
type MarketView struct {
	Market            *bond.Market
	Quote             *bond.Quote
	CurrentDebt       *big.Int
	DebtDecay         *big.Int
	MaxPayout         *big.Int
	Totals            bond.Totals
	Height            uint64
	ModuleAccount     string
	PrincipalDecimals uint8
	PayoutDecimals    uint8
}

// Market returns the terms, adjustment and pricing of marketID.
func (s *BondService) Market(ctx context.Context, marketID string) (*MarketView, error) {
	id, err := requireMarket(marketID)
	if err != nil {
		return nil, err
	}
	var out *MarketView
	err = s.view(ctx, id, func(u *unit) error {
		market, err := u.bonds.Market()
		if err != nil {
			return err
		}
		totals, err := u.bonds.Totals()
		if err != nil {
			return err
		}
		view := &MarketView{
			Market:        market,
			Totals:        totals,
			Height:        u.height,
			ModuleAccount: market.ModuleAddress().String(),
		}
		if view.PrincipalDecimals, err = u.manager.Decimals(market.PrincipalToken); err != nil {
			return err
		}
		if view.PayoutDecimals, err = u.manager.Decimals(market.PayoutToken); err != nil {
			return err
		}
		if !market.Initialised() {
			out = view
			return nil
		}
		if view.Quote, err = u.bonds.Quote(); err != nil {
			return err
		}
		if view.CurrentDebt, err = u.bonds.CurrentDebt(); err != nil {
			return err
		}
		if view.DebtDecay, err = u.bonds.DebtDecay(); err != nil {
			return err
		}
		if view.MaxPayout, err = u.bonds.MaxPayout(); err != nil {
			return err
		}
		out = view
		return nil
	})
	return out, err
}

// Markets lists the registered market identifiers.
func (s *BondService) Markets(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.view(ctx, "", func(u *unit) error {
		var err error
		ids, err = u.manager.BondMarketIDs()
		return err
	})
	return ids, err
}

// PositionView is a depositor's bond with its vesting progress.
type PositionView struct {
	Position      *bond.Position
	PercentVested *big.Int
	PendingPayout *big.Int
	Height        uint64
}

func (s *BondService) Position(ctx context.Context, marketID string, owner crypto.Address) (*PositionView, error) {
	id, err := requireMarket(marketID)
	if err != nil {
		return nil, err
	}
	var out *PositionView
	err = s.view(ctx, id, func(u *unit) error {
		pos, err := u.bonds.Position(owner)
		if err != nil {
			return err
		}
		out = &PositionView{
			Position:      pos,
			PercentVested: bond.PercentVested(pos, u.height),
			PendingPayout: bond.PendingPayout(pos, u.height),
			Height:        u.height,
		}
		return nil
	})
	return out, err
}

// PayoutFor quotes the payout of a deposit worth value payout-token units.
func (s *BondService) PayoutFor(ctx context.Context, marketID string, value *big.Int) (*big.Int, error) {
	id, err := requireMarket(marketID)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	err = s.view(ctx, id, func(u *unit) error {
		var err error
		out, err = u.bonds.PayoutFor(value)
		return err
	})
	return out, err
}

// Discount returns the oracle-observed discount of a capped market.
func (s *BondService) Discount(ctx context.Context, marketID string) (*big.Int, error) {
	id, err := requireMarket(marketID)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	err = s.view(ctx, id, func(u *unit) error {
		var err error
		out, err = u.bonds.BondDiscount()
		return err
	})
	return out, err
}

// Balance returns the token balance of addr.
func (s *BondService) Balance(ctx context.Context, addr crypto.Address, token string) (*big.Int, error) {
	var out *big.Int
	err := s.view(ctx, "", func(u *unit) error {
		var err error
		out, err = u.manager.Balance(addr.Bytes(), strings.ToUpper(strings.TrimSpace(token)))
		return err
	})
	return out, err
}

// TokenDecimals returns the decimal places of a registered token.
func (s *BondService) TokenDecimals(ctx context.Context, symbol string) (uint8, error) {
	var out uint8
	err := s.view(ctx, "", func(u *unit) error {
		var err error
		out, err = u.manager.Decimals(strings.ToUpper(strings.TrimSpace(symbol)))
		return err
	})
	return out, err
}

func (s *BondService) InitializeBond(ctx context.Context, marketID string, caller crypto.Address, terms bond.InitTerms) error {
	id, err := requireMarket(marketID)
	if err != nil {
		return err
	}
	return s.execute(ctx, id, "initialize", func(u *unit) error {
		return u.bonds.InitializeBond(caller, terms)
	})
}

func (s *BondService) SetBondTerms(ctx context.Context, marketID string, caller crypto.Address, param bond.TermsParameter, value *big.Int) error {
	id, err := requireMarket(marketID)
	if err != nil {
		return err
	}
	err = s.execute(ctx, id, "set_terms", func(u *unit) error {
		return u.bonds.SetBondTerms(caller, param, value)
	})
	if err == nil {
		s.logger.InfoContext(ctx, "bond terms updated",
			slog.String("market", id),
			slog.String("parameter", param.String()),
			slog.String("value", value.String()))
	}
	return err
}

func (s *BondService) SetAdjustment(ctx context.Context, marketID string, caller crypto.Address, add bool, rate, target *big.Int, buffer uint64) error {
	id, err := requireMarket(marketID)
	if err != nil {
		return err
	}
	err = s.execute(ctx, id, "set_adjustment", func(u *unit) error {
		return u.bonds.SetAdjustment(caller, add, rate, target, buffer)
	})
	if err == nil {
		s.logger.InfoContext(ctx, "bond adjustment scheduled",
			slog.String("market", id),
			slog.Bool("add", add),
			slog.String("rate", rate.String()),
			slog.String("target", target.String()),
			slog.Uint64("buffer", buffer))
	}
	return err
}

func (s *BondService) ResetSubsidyCounter(ctx context.Context, marketID string, caller crypto.Address) (*big.Int, error) {
	id, err := requireMarket(marketID)
	if err != nil {
		return nil, err
	}
	var previous *big.Int
	err = s.execute(ctx, id, "reset_subsidy", func(u *unit) error {
		var err error
		previous, err = u.bonds.ResetSubsidyCounter(caller)
		return err
	})
	return previous, err
}

func (s *BondService) SetFeeTreasury(ctx context.Context, marketID string, caller, feeTreasury crypto.Address) error {
	id, err := requireMarket(marketID)
	if err != nil {
		return err
	}
	return s.execute(ctx, id, "set_fee_treasury", func(u *unit) error {
		return u.bonds.SetFeeTreasury(caller, feeTreasury)
	})
}

// ToggleBondContract flips the approval of bondAddr at treasuryAddr and
// returns the new state.
func (s *BondService) ToggleBondContract(ctx context.Context, caller, treasuryAddr, bondAddr crypto.Address) (bool, error) {
	var approved bool
	err := s.execute(ctx, "", "toggle_bond", func(u *unit) error {
		if err := nativecommon.Guard(s.pauses, treasury.ModuleName); err != nil {
			return err
		}
		var err error
		approved, err = u.treasury.ToggleBondContract(caller, treasuryAddr, bondAddr)
		return err
	})
	return approved, err
}

// WithdrawTreasury moves amount of token out of a treasury on behalf of its
// policy.
func (s *BondService) WithdrawTreasury(ctx context.Context, caller, treasuryAddr crypto.Address, token string, destination crypto.Address, amount *big.Int) error {
	return s.execute(ctx, "", "treasury_withdraw", func(u *unit) error {
		if err := nativecommon.Guard(s.pauses, treasury.ModuleName); err != nil {
			return err
		}
		return u.treasury.Withdraw(caller, treasuryAddr, token, destination, amount)
	})
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, bond.ErrSlippage):
		return "slippage"
	case errors.Is(err, bond.ErrMaxCapacity):
		return "capacity"
	case errors.Is(err, bond.ErrBondTooSmall):
		return "too_small"
	case errors.Is(err, bond.ErrBondTooLarge):
		return "too_large"
	case errors.Is(err, bond.ErrNoBond):
		return "no_bond"
	case errors.Is(err, bond.ErrUnauthorized), errors.Is(err, treasury.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded), errors.Is(err, nativecommon.ErrQuotaPrincipalExceeded):
		return "quota"
	case errors.Is(err, bond.ErrMarketNotFound):
		return "not_found"
	case errors.Is(err, ErrNonceMismatch):
		return "nonce"
	case errors.Is(err, ErrGenesisApplied):
		return "genesis"
	default:
		return "other"
	}
}
