package crypto

import (
	"bytes"
	"testing"
)

func TestSignRecoversSigner(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	digest := ActionDigest("bond_deposit", "karma-lp", key.PubKey().Address().String(), "100", "5582", "1", "1700000000")
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length %d", len(sig))
	}
	signer, err := RecoverSigner(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !signer.Equal(key.PubKey().Address()) {
		t.Fatalf("recovered %s, want %s", signer, key.PubKey().Address())
	}

	tampered := ActionDigest("bond_deposit", "karma-lp", key.PubKey().Address().String(), "101", "5582", "1", "1700000000")
	other, err := RecoverSigner(tampered, sig)
	if err == nil && other.Equal(key.PubKey().Address()) {
		t.Fatalf("tampered digest recovered the original signer")
	}
	if _, err := RecoverSigner(digest, sig[:64]); err != ErrSignatureLength {
		t.Fatalf("expected length error, got %v", err)
	}
}

func TestActionDigestNormalisesFields(t *testing.T) {
	a := ActionDigest("Bond_Redeem", " KARMA-LP ", "BOND1ABC")
	b := ActionDigest("bond_redeem", "karma-lp", "bond1abc")
	if !bytes.Equal(a, b) {
		t.Fatalf("digests differ for equivalent fields")
	}
	if bytes.Equal(a, ActionDigest("bond_deposit", "karma-lp", "bond1abc")) {
		t.Fatalf("action name must be part of the digest")
	}
}

func TestSignRequiresKey(t *testing.T) {
	var key *PrivateKey
	if _, err := key.Sign(make([]byte, 32)); err == nil {
		t.Fatalf("expected nil key to fail")
	}
}
