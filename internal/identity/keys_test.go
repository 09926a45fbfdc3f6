package identity

import (
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
)

func TestGenerateProducesValidKeys(t *testing.T) {
	keys, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(keys.PublicKey) != 64 {
		t.Fatalf("public key length = %d, want 64 hex chars", len(keys.PublicKey))
	}
	if len(keys.PrivateKey) != 64 {
		t.Fatalf("private key length = %d, want 64 hex chars", len(keys.PrivateKey))
	}
}

func TestSignVerifies(t *testing.T) {
	keys, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	evt := nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      1,
		Tags:      nostr.Tags{},
		Content:   "signed locally",
	}
	if err := keys.Sign(&evt); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if evt.PubKey != keys.PublicKey {
		t.Fatalf("event pubkey = %s, want %s", evt.PubKey, keys.PublicKey)
	}
	if evt.ID != evt.GetID() {
		t.Fatal("event ID does not match its serialization")
	}

	ok, err := evt.CheckSignature()
	if err != nil {
		t.Fatalf("CheckSignature: %v", err)
	}
	if !ok {
		t.Fatal("signature did not verify")
	}
}

func TestFromHexRoundTrip(t *testing.T) {
	keys, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	restored, err := FromHex(keys.PrivateKey + "\n")
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if restored.PublicKey != keys.PublicKey {
		t.Fatalf("restored pubkey = %s, want %s", restored.PublicKey, keys.PublicKey)
	}
}

func TestFromHexRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "zz", "abcd"} {
		if _, err := FromHex(in); err == nil {
			t.Errorf("FromHex(%q) succeeded, want error", in)
		}
	}
}

func TestGetOrCreatePersists(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	first, err := GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := GetOrCreate()
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if first.PublicKey != second.PublicKey {
		t.Fatalf("identity not persisted: %s != %s", first.PublicKey, second.PublicKey)
	}
}
