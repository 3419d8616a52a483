package genesis

import (
	"bytes"

	"bondchain/crypto"
)

// DevKey returns the well-known signing key of a development role. The keys
// are public and must never hold value outside local networks.
func DevKey(role byte) *crypto.PrivateKey {
	key, err := crypto.PrivateKeyFromBytes(bytes.Repeat([]byte{role}, 32))
	if err != nil {
		panic(err)
	}
	return key
}

// DevAddress returns the account controlled by DevKey(role).
func DevAddress(role byte) crypto.Address {
	return DevKey(role).PubKey().Address()
}

// Dev returns a single-market genesis suitable for local networks: a KARMA
// payout token, a KARMA-USDC-LP principal and a funded treasury.
func Dev() Spec {
	policy := DevAddress(0x01).String()
	return Spec{
		Tokens: []TokenSpec{
			{Symbol: "KARMA", Name: "Karma", Decimals: 9},
			{Symbol: "KARMA-USDC-LP", Name: "Karma/USDC LP", Decimals: 18},
		},
		Treasuries: []TreasurySpec{{ID: "main", PayoutToken: "KARMA", Policy: policy}},
		Alloc: []AllocSpec{
			{Treasury: "main", Token: "KARMA", Amount: "10000000000000000"},
			{Address: policy, Token: "KARMA", Amount: "90000000000000000"},
			{Address: DevAddress(0x10).String(), Token: "KARMA-USDC-LP", Amount: "10000000000000000000"},
		},
		Markets: []MarketSpec{{
			ID:             "karma-lp",
			PrincipalToken: "KARMA-USDC-LP",
			PayoutToken:    "KARMA",
			Treasury:       "main",
			FeeTreasury:    DevAddress(0x05).String(),
			Policy:         policy,
			DAO:            DevAddress(0x02).String(),
			SubsidyRouter:  DevAddress(0x03).String(),
			TierCeilings:   []string{"10000000000000000000", "20000000000000000000"},
			FeeRates:       []string{"33300", "66600"},
			Terms: TermsSpec{
				ControlVariable: "400000",
				VestingTerm:     302400,
				MinimumPrice:    "5403",
				MaxPayout:       "500",
				MaxDebt:         "5000000000",
				InitialDebt:     "1560000000",
			},
		}},
	}
}
