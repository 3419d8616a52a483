package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "operator.json")
	if err := SaveToKeystore(path, key, "correct horse", LightScrypt); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected permissions %v", info.Mode().Perm())
	}

	loaded, err := LoadFromKeystore(path, "correct horse")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.PubKey().Address().Equal(key.PubKey().Address()) {
		t.Fatalf("address mismatch: %s vs %s", loaded.PubKey().Address(), key.PubKey().Address())
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

func TestKeystoreRejectsEmptyInputs(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	dir := t.TempDir()
	if err := SaveToKeystore("", key, "pass", LightScrypt); err == nil {
		t.Fatalf("expected empty path error")
	}
	if err := SaveToKeystore(filepath.Join(dir, "k.json"), key, "", LightScrypt); err == nil {
		t.Fatalf("expected empty passphrase error")
	}
	if err := SaveToKeystore(filepath.Join(dir, "k.json"), nil, "pass", LightScrypt); err == nil {
		t.Fatalf("expected nil key error")
	}
}
