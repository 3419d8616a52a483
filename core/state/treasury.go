package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bondchain/crypto"
	"bondchain/native/treasury"
)

var (
	treasuryAccountPrefix  = []byte("treasury/account/")
	treasuryApprovalPrefix = []byte("treasury/approval/")
)

func treasuryAccountKey(addr []byte) []byte {
	buf := make([]byte, len(treasuryAccountPrefix)+len(addr))
	copy(buf, treasuryAccountPrefix)
	copy(buf[len(treasuryAccountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func treasuryApprovalKey(treasuryAddr, bondAddr []byte) []byte {
	buf := make([]byte, 0, len(treasuryApprovalPrefix)+len(treasuryAddr)+1+len(bondAddr))
	buf = append(buf, treasuryApprovalPrefix...)
	buf = append(buf, treasuryAddr...)
	buf = append(buf, ':')
	buf = append(buf, bondAddr...)
	return ethcrypto.Keccak256(buf)
}

type storedTreasury struct {
	ID          string
	Address     storedAddress
	PayoutToken string
	Policy      storedAddress
}

// TreasuryAccount loads a custom treasury. Missing accounts yield nil.
func (m *Manager) TreasuryAccount(addr crypto.Address) (*treasury.Account, error) {
	stored := new(storedTreasury)
	ok, err := m.getRLP(treasuryAccountKey(addr.Bytes()), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &treasury.Account{
		ID:          stored.ID,
		Address:     stored.Address.address(),
		PayoutToken: stored.PayoutToken,
		Policy:      stored.Policy.address(),
	}, nil
}

// PutTreasuryAccount persists a custom treasury.
func (m *Manager) PutTreasuryAccount(acc *treasury.Account) error {
	if acc == nil || acc.Address.IsZero() {
		return fmt.Errorf("treasury: address required")
	}
	return m.putRLP(treasuryAccountKey(acc.Address.Bytes()), &storedTreasury{
		ID:          acc.ID,
		Address:     newStoredAddress(acc.Address),
		PayoutToken: acc.PayoutToken,
		Policy:      newStoredAddress(acc.Policy),
	})
}

// BondApproved reports whether bondAddr may draw on the treasury.
func (m *Manager) BondApproved(treasuryAddr, bondAddr crypto.Address) (bool, error) {
	var approved bool
	ok, err := m.getRLP(treasuryApprovalKey(treasuryAddr.Bytes(), bondAddr.Bytes()), &approved)
	if err != nil || !ok {
		return false, err
	}
	return approved, nil
}

// SetBondApproved records the approval flag of a bond contract.
func (m *Manager) SetBondApproved(treasuryAddr, bondAddr crypto.Address, approved bool) error {
	key := treasuryApprovalKey(treasuryAddr.Bytes(), bondAddr.Bytes())
	if !approved {
		return m.remove(key)
	}
	return m.putRLP(key, approved)
}
