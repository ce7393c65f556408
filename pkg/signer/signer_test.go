package signer

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestFromMnemonicRejectsInvalidMnemonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.hex")
	_, err := FromMnemonic("chain-a", "not a real mnemonic", "", path)
	if err == nil {
		t.Fatal("FromMnemonic with invalid mnemonic: want error, got nil")
	}
}

func TestFromMnemonicIsDeterministic(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "key.hex")
	pathB := filepath.Join(t.TempDir(), "key.hex")

	kmA, err := FromMnemonic("chain-a", testMnemonic, "", pathA)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	kmB, err := FromMnemonic("chain-a", testMnemonic, "", pathB)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	if kmA.PublicKey().Equal(kmB.PublicKey()) == false {
		t.Fatalf("same mnemonic produced different public keys")
	}
}

func TestLoadReloadsPersistedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.hex")
	km, err := FromMnemonic("chain-a", testMnemonic, "", path)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}

	reloaded, err := Load("chain-a", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !km.PublicKey().Equal(reloaded.PublicKey()) {
		t.Fatalf("reloaded key has different public key")
	}
}

func TestLoadGeneratesWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.hex")
	km, err := Load("chain-a", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if km.ChainID() != "chain-a" {
		t.Fatalf("ChainID() = %q, want chain-a", km.ChainID())
	}

	reloaded, err := Load("chain-a", path)
	if err != nil {
		t.Fatalf("Load (second call): %v", err)
	}
	if !km.PublicKey().Equal(reloaded.PublicKey()) {
		t.Fatalf("second Load generated a different key instead of reloading")
	}
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.hex")
	km, err := FromMnemonic("chain-a", testMnemonic, "", path)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	msg := []byte("relay this packet")
	sig, err := km.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !ed25519.Verify(km.PublicKey(), msg, sig) {
		t.Fatal("signature failed verification against the key's own public key")
	}
}
