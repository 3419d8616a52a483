package core

import (
	"context"
	"errors"
	"fmt"

	"bondchain/crypto"
)

// ErrNonceMismatch reports a signed request whose nonce is not the signer's
// next expected value, either replayed or out of order.
var ErrNonceMismatch = errors.New("core: nonce mismatch")

type signerKey struct{}

// Signer identifies the account that authenticated a request and the nonce
// the request consumes.
type Signer struct {
	Account crypto.Address
	Nonce   uint64
}

// WithSigner attaches an authenticated signer to ctx. Operations executed
// under the returned context consume the signer's nonce in the same journal
// as their state changes.
func WithSigner(ctx context.Context, signer Signer) context.Context {
	return context.WithValue(ctx, signerKey{}, signer)
}

func signerFrom(ctx context.Context) (Signer, bool) {
	signer, ok := ctx.Value(signerKey{}).(Signer)
	return signer, ok
}

func nonceKey(account crypto.Address) []byte {
	return append([]byte("bondchain/nonce/"), account.Bytes()...)
}

func (u *unit) lastNonce(account crypto.Address) (uint64, error) {
	var last uint64
	if _, err := u.manager.KVGet(nonceKey(account), &last); err != nil {
		return 0, err
	}
	return last, nil
}

func (u *unit) consumeNonce(signer Signer) error {
	last, err := u.lastNonce(signer.Account)
	if err != nil {
		return err
	}
	if signer.Nonce != last+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrNonceMismatch, signer.Nonce, last+1)
	}
	return u.manager.KVPut(nonceKey(signer.Account), signer.Nonce)
}

// NextNonce returns the nonce account must sign its next request with.
func (s *BondService) NextNonce(ctx context.Context, account crypto.Address) (uint64, error) {
	var next uint64
	err := s.view(ctx, "", func(u *unit) error {
		last, err := u.lastNonce(account)
		if err != nil {
			return err
		}
		next = last + 1
		return nil
	})
	return next, err
}
