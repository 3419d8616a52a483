package core

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"bondchain/native/bond"
	"bondchain/storage"
)

func TestSignedOperationsConsumeNonces(t *testing.T) {
	ctx := context.Background()
	svc, _ := newDevService(t, storage.NewMemDB(), 1000)

	next, err := svc.NextNonce(ctx, devDepositor)
	if err != nil || next != 1 {
		t.Fatalf("fresh account next nonce: %d %v", next, err)
	}

	amount := big.NewInt(100_000_000_000_000_000)
	signed := WithSigner(ctx, Signer{Account: devDepositor, Nonce: 1})
	if _, err := svc.Deposit(signed, devMarket, devDepositor, amount, big.NewInt(6000)); err != nil {
		t.Fatalf("signed deposit: %v", err)
	}
	if next, _ = svc.NextNonce(ctx, devDepositor); next != 2 {
		t.Fatalf("nonce not consumed, next=%d", next)
	}

	if _, err := svc.Deposit(signed, devMarket, devDepositor, amount, big.NewInt(6000)); !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("replayed nonce accepted: %v", err)
	}
	lp := mustBalance(t, svc, devDepositor, "KARMA-USDC-LP")
	if lp.String() != "9900000000000000000" {
		t.Fatalf("replay moved principal: %s", lp)
	}

	skipped := WithSigner(ctx, Signer{Account: devDepositor, Nonce: 5})
	if _, err := svc.Redeem(skipped, devMarket, devDepositor); !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("out of order nonce accepted: %v", err)
	}
}

func TestRejectedOperationKeepsNonce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newDevService(t, storage.NewMemDB(), 1000)

	signed := WithSigner(ctx, Signer{Account: devDepositor, Nonce: 1})
	_, err := svc.Deposit(signed, devMarket, devDepositor, big.NewInt(100_000_000_000_000_000), big.NewInt(5000))
	if !errors.Is(err, bond.ErrSlippage) {
		t.Fatalf("expected slippage, got %v", err)
	}
	if next, _ := svc.NextNonce(ctx, devDepositor); next != 1 {
		t.Fatalf("rejected operation consumed the nonce, next=%d", next)
	}

	// Nonces are tracked per account.
	policy := WithSigner(ctx, Signer{Account: devPolicy, Nonce: 1})
	if err := svc.SetBondTerms(policy, devMarket, devPolicy, bond.ParamDebt, big.NewInt(6_000_000_000)); err != nil {
		t.Fatalf("policy terms: %v", err)
	}
	if next, _ := svc.NextNonce(ctx, devDepositor); next != 1 {
		t.Fatalf("policy nonce leaked into depositor, next=%d", next)
	}
}
