package treasury

import (
	"errors"
	"math/big"
	"strings"

	"bondchain/crypto"
	"bondchain/native/bond"
)

// ModuleName namespaces treasury accounts.
const ModuleName = "treasury"

var (
	errNilState          = errors.New("treasury: state not configured")
	errNilBank           = errors.New("treasury: bank not configured")
	ErrTreasuryNotFound  = errors.New("treasury: not registered")
	ErrTreasuryExists    = errors.New("treasury: already registered")
	ErrNotBondContract   = errors.New("treasury: caller is not an approved bond contract")
	ErrUnauthorized      = errors.New("treasury: caller is not the policy")
	ErrInvalidAmount     = errors.New("treasury: amount must be positive")
	ErrInvalidAddress    = errors.New("treasury: address must not be zero")
	ErrPrincipalIsPayout = errors.New("treasury: principal must differ from payout token")
)

// Account describes a custom treasury holding a single payout token.
type Account struct {
	ID          string
	Address     crypto.Address
	PayoutToken string
	Policy      crypto.Address
}

type engineState interface {
	TreasuryAccount(addr crypto.Address) (*Account, error)
	PutTreasuryAccount(acc *Account) error
	BondApproved(treasury, bond crypto.Address) (bool, error)
	SetBondApproved(treasury, bond crypto.Address, approved bool) error
}

// Bank is the subset of the token ledger the treasury needs.
type Bank interface {
	Decimals(symbol string) (uint8, error)
	Transfer(symbol string, from, to crypto.Address, amount *big.Int) error
}

// Engine swaps principal for payout tokens on behalf of approved bond
// markets.
type Engine struct {
	state engineState
	bank  Bank
}

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetBank(bank Bank) {
	if e == nil {
		return
	}
	e.bank = bank
}

// Register creates the treasury account for id, owned by policy.
func (e *Engine) Register(id, payoutToken string, policy crypto.Address) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id = strings.TrimSpace(id)
	token := strings.ToUpper(strings.TrimSpace(payoutToken))
	if id == "" || token == "" {
		return nil, ErrTreasuryNotFound
	}
	if policy.IsZero() {
		return nil, ErrInvalidAddress
	}
	if e.bank == nil {
		return nil, errNilBank
	}
	if _, err := e.bank.Decimals(token); err != nil {
		return nil, err
	}
	addr := crypto.ModuleAddress(ModuleName, id)
	existing, err := e.state.TreasuryAccount(addr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTreasuryExists
	}
	acc := &Account{ID: id, Address: addr, PayoutToken: token, Policy: policy}
	if err := e.state.PutTreasuryAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Account returns the treasury registered at addr.
func (e *Engine) Account(addr crypto.Address) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, err := e.state.TreasuryAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrTreasuryNotFound
	}
	return acc, nil
}

// ValueOfToken converts amount of principal into payout token decimals.
func (e *Engine) ValueOfToken(treasury crypto.Address, principal string, amount *big.Int) (*big.Int, error) {
	acc, err := e.Account(treasury)
	if err != nil {
		return nil, err
	}
	if e.bank == nil {
		return nil, errNilBank
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	payoutDecimals, err := e.bank.Decimals(acc.PayoutToken)
	if err != nil {
		return nil, err
	}
	principalDecimals, err := e.bank.Decimals(principal)
	if err != nil {
		return nil, err
	}
	return bond.ToBaseUnits(amount, principalDecimals, payoutDecimals), nil
}

// Deposit pulls amount of principal from an approved bond contract and sends
// it payout tokens in return.
func (e *Engine) Deposit(treasury, bondAddr crypto.Address, principal string, amount, payout *big.Int) error {
	acc, err := e.Account(treasury)
	if err != nil {
		return err
	}
	if e.bank == nil {
		return errNilBank
	}
	approved, err := e.state.BondApproved(treasury, bondAddr)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotBondContract
	}
	if amount == nil || amount.Sign() <= 0 || payout == nil || payout.Sign() < 0 {
		return ErrInvalidAmount
	}
	if strings.EqualFold(strings.TrimSpace(principal), acc.PayoutToken) {
		return ErrPrincipalIsPayout
	}
	if err := e.bank.Transfer(principal, bondAddr, treasury, amount); err != nil {
		return err
	}
	return e.bank.Transfer(acc.PayoutToken, treasury, bondAddr, payout)
}

// ToggleBondContract flips the approval of a bond contract and returns the new
// state.
func (e *Engine) ToggleBondContract(caller, treasury, bondAddr crypto.Address) (bool, error) {
	acc, err := e.Account(treasury)
	if err != nil {
		return false, err
	}
	if !caller.Equal(acc.Policy) {
		return false, ErrUnauthorized
	}
	if bondAddr.IsZero() {
		return false, ErrInvalidAddress
	}
	approved, err := e.state.BondApproved(treasury, bondAddr)
	if err != nil {
		return false, err
	}
	if err := e.state.SetBondApproved(treasury, bondAddr, !approved); err != nil {
		return false, err
	}
	return !approved, nil
}

// Withdraw moves any token held by the treasury to destination.
func (e *Engine) Withdraw(caller, treasury crypto.Address, token string, destination crypto.Address, amount *big.Int) error {
	acc, err := e.Account(treasury)
	if err != nil {
		return err
	}
	if !caller.Equal(acc.Policy) {
		return ErrUnauthorized
	}
	if destination.IsZero() {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.bank == nil {
		return errNilBank
	}
	return e.bank.Transfer(token, treasury, destination, amount)
}
