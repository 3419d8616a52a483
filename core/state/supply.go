package state

import (
	"fmt"
	"math/big"

	"bondchain/crypto"
)

var tokenSupplyPrefix = []byte("token/supply/")

func tokenSupplyKey(symbol string) []byte {
	normalized := normalizeSymbol(symbol)
	key := make([]byte, len(tokenSupplyPrefix)+len(normalized))
	copy(key, tokenSupplyPrefix)
	copy(key[len(tokenSupplyPrefix):], normalized)
	return key
}

// TotalSupply returns the persisted total supply for the provided token.
// Missing entries default to zero.
func (m *Manager) TotalSupply(symbol string) (*big.Int, error) {
	if m == nil {
		return nil, errNilManager
	}
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return nil, fmt.Errorf("token symbol required")
	}
	total := new(big.Int)
	ok, err := m.getRLP(tokenSupplyKey(normalized), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

// SetTokenSupply overwrites the stored total supply for the token.
func (m *Manager) SetTokenSupply(symbol string, amount *big.Int) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol required")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("token %s supply cannot be negative", normalized)
	}
	return m.putRLP(tokenSupplyKey(normalized), amount)
}

// AdjustTokenSupply increments the stored total supply by the supplied delta and
// returns the updated total.
func (m *Manager) AdjustTokenSupply(symbol string, delta *big.Int) (*big.Int, error) {
	current, err := m.TotalSupply(symbol)
	if err != nil {
		return nil, err
	}
	if delta == nil {
		return current, nil
	}
	updated := new(big.Int).Add(current, delta)
	if updated.Sign() < 0 {
		return nil, fmt.Errorf("token %s supply cannot be negative", normalizeSymbol(symbol))
	}
	if err := m.SetTokenSupply(symbol, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Mint credits amount to addr and grows the total supply. Used for genesis
// allocations.
func (m *Manager) Mint(symbol string, addr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("mint amount must be positive")
	}
	if addr.IsZero() {
		return fmt.Errorf("mint: address must not be zero")
	}
	balance, err := m.Balance(addr.Bytes(), symbol)
	if err != nil {
		return err
	}
	if err := m.SetBalance(addr.Bytes(), symbol, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	_, err = m.AdjustTokenSupply(symbol, amount)
	return err
}
