package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of a recoverable [R || S || V] signature.
const SignatureLength = crypto.SignatureLength

var ErrSignatureLength = fmt.Errorf("signature must be %d bytes", SignatureLength)

// ActionDigest hashes the pipe-joined fields of a signed request. Fields are
// trimmed and lowercased so bech32 addresses compare regardless of case.
func ActionDigest(action string, fields ...string) []byte {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, strings.ToLower(strings.TrimSpace(action)))
	for _, field := range fields {
		parts = append(parts, strings.ToLower(strings.TrimSpace(field)))
	}
	digest := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return digest[:]
}

// Sign produces a recoverable signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	if k == nil || k.PrivateKey == nil {
		return nil, errors.New("signing key required")
	}
	return crypto.Sign(digest, k.PrivateKey)
}

// RecoverSigner returns the account whose key produced sig over digest.
func RecoverSigner(digest, sig []byte) (Address, error) {
	if len(sig) != SignatureLength {
		return Address{}, ErrSignatureLength
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return (&PublicKey{pub}).Address(), nil
}
