package genesis

import (
	"fmt"
	"math/big"
	"strings"

	"bondchain/crypto"
	"bondchain/native/bond"
	"bondchain/native/treasury"
)

// TreasuryAddress derives the account of the treasury registered under id.
func TreasuryAddress(id string) crypto.Address {
	return crypto.ModuleAddress(treasury.ModuleName, strings.TrimSpace(id))
}

func parseAddress(field, raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s: address required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	if addr.Prefix() != crypto.AccountPrefix && addr.Prefix() != crypto.ModulePrefix {
		return crypto.Address{}, fmt.Errorf("%s: unsupported hrp %q", field, addr.Prefix())
	}
	return addr, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return nil, fmt.Errorf("%s: amount required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	if !bond.FitsUint256(value) {
		return nil, fmt.Errorf("%s: amount must be a non-negative 256-bit integer", field)
	}
	return value, nil
}

func parseAmounts(field string, raw []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(raw))
	for i, entry := range raw {
		value, err := parseAmount(fmt.Sprintf("%s[%d]", field, i), entry)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}
