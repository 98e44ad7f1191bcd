package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Generate creates a fresh ed25519 keypair.
func Generate() (solanago.PrivateKey, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return key, nil
}

// LoadFile reads a solana-keygen JSON keypair file.
func LoadFile(path string) (solanago.PrivateKey, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	if err := validate(key); err != nil {
		return nil, fmt.Errorf("keypair %s: %w", path, err)
	}
	return key, nil
}

// FromBase58 decodes a base58 64-byte secret key, the format wallets export.
func FromBase58(secret string) (solanago.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("invalid base58 secret key: %w", err)
	}
	key := solanago.PrivateKey(raw)
	if err := validate(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Save writes key as a solana-keygen JSON file readable only by the owner.
// An existing file is never overwritten.
func Save(path string, key solanago.PrivateKey) error {
	if err := validate(key); err != nil {
		return err
	}

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to encode keypair: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create keypair file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}
	return nil
}

// Resolve picks the payer from a keypair file or a base58 secret, and
// generates a fresh one when neither is given. generated reports the latter.
func Resolve(path, secret string) (key solanago.PrivateKey, generated bool, err error) {
	switch {
	case path != "" && secret != "":
		return nil, false, fmt.Errorf("keypair path and private key are mutually exclusive")
	case path != "":
		key, err = LoadFile(path)
	case secret != "":
		key, err = FromBase58(secret)
	default:
		key, err = Generate()
		generated = true
	}
	return key, generated, err
}

// validate checks length and that the public half matches the seed.
func validate(key solanago.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return fmt.Errorf("secret key public half does not match its seed")
	}
	return nil
}
