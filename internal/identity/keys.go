package identity

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	nostr "github.com/nbd-wtf/go-nostr"
)

const (
	// KeyFileName is the name of the file where the client key is stored
	KeyFileName = "client.key"
	// KeyDir is the directory where identity files are stored
	KeyDir = ".shugur"
)

// Keys holds a client signing identity
type Keys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key,omitempty"` // Only stored locally
}

// Generate creates a new Schnorr keypair
func Generate() (*Keys, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return fromPrivateKey(priv), nil
}

// FromHex builds Keys from a 64-character hex private key
func FromHex(privKeyHex string) (*Keys, error) {
	privKeyHex = strings.TrimSpace(privKeyHex)
	raw, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes when decoded, got %d", len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return fromPrivateKey(priv), nil
}

func fromPrivateKey(priv *btcec.PrivateKey) *Keys {
	// x-only public key, the 32 bytes after the compression prefix
	pub := priv.PubKey().SerializeCompressed()[1:]
	return &Keys{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv.Serialize()),
	}
}

// GetOrCreate loads an existing identity from disk or creates a new one
func GetOrCreate() (*Keys, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	keyPath := filepath.Join(homeDir, KeyDir, KeyFileName)

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		keys, err := Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate identity: %w", err)
		}
		if err := save(keys, keyPath); err != nil {
			return nil, fmt.Errorf("failed to save identity: %w", err)
		}
		return keys, nil
	}

	return load(keyPath)
}

// Sign computes the event ID and Schnorr signature, filling PubKey, ID and Sig.
func (k *Keys) Sign(evt *nostr.Event) error {
	if k.PrivateKey == "" {
		return fmt.Errorf("no private key available")
	}
	raw, err := hex.DecodeString(k.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to decode private key: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)

	evt.PubKey = k.PublicKey
	evt.ID = evt.GetID()

	idBytes, err := hex.DecodeString(evt.ID)
	if err != nil {
		return fmt.Errorf("failed to decode event ID: %w", err)
	}
	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return fmt.Errorf("failed to sign event: %w", err)
	}
	evt.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// save writes the identity to disk
func save(keys *Keys, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Only the private key is stored; the public key is derived on load
	content := fmt.Sprintf("%s\n", keys.PrivateKey)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return nil
}

// load reads the identity from disk
func load(path string) (*Keys, error) {
	cleanedPath := filepath.Clean(path)
	if strings.Contains(cleanedPath, "..") {
		return nil, fmt.Errorf("invalid path: directory traversal detected")
	}
	if len(cleanedPath) > 256 {
		return nil, fmt.Errorf("invalid path: path too long")
	}

	content, err := os.ReadFile(cleanedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	return FromHex(string(content))
}
