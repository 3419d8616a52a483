package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x11}, 20)
	addr := NewAddress(AccountPrefix, raw)

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("expected %x, got %x", addr.Bytes(), decoded.Bytes())
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("expected prefix %q, got %q", AccountPrefix, decoded.Prefix())
	}
}

func TestAddressIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatalf("unset address must be zero")
	}
	if !NewAddress(AccountPrefix, make([]byte, 20)).IsZero() {
		t.Fatalf("burn address must be zero")
	}
	raw := make([]byte, 20)
	raw[19] = 1
	if NewAddress(AccountPrefix, raw).IsZero() {
		t.Fatalf("non-zero address reported as zero")
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("bond", "ohm-dai")
	b := ModuleAddress("bond", "ohm-dai")
	c := ModuleAddress("bond", "ohm-lp")
	if !a.Equal(b) {
		t.Fatalf("expected identical module addresses")
	}
	if a.Equal(c) {
		t.Fatalf("distinct markets must not share a module address")
	}
	if a.Prefix() != ModulePrefix {
		t.Fatalf("unexpected prefix %q", a.Prefix())
	}
}

func TestNewAddressCopiesInput(t *testing.T) {
	raw := bytes.Repeat([]byte{0x22}, 20)
	addr := NewAddress(AccountPrefix, raw)
	raw[0] = 0
	if addr.Bytes()[0] != 0x22 {
		t.Fatalf("address aliased caller slice")
	}
	if addr.Raw()[0] != 0x22 {
		t.Fatalf("raw mismatch")
	}
}

func TestGeneratedKeyAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !key.PubKey().Address().Equal(restored.PubKey().Address()) {
		t.Fatalf("restored key yields a different address")
	}
}
