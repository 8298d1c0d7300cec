package donor

import (
	"crypto/ed25519"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// LoadKeypair reads a keypair file in the format written by the Solana CLI,
// a JSON array of the 64 private key bytes
func LoadKeypair(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keypair file %s", path)
	}

	var key []byte
	var encoded []int
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, errors.Wrapf(err, "invalid keypair file %s", path)
	}
	if len(encoded) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid keypair length: %d", len(encoded))
	}

	for _, v := range encoded {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("invalid keypair byte: %d", v)
		}
		key = append(key, byte(v))
	}

	private := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !private.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return nil, errors.New("keypair public key does not match its seed")
	}
	return private, nil
}

// SaveKeypair writes key in the format read by LoadKeypair
func SaveKeypair(path string, key ed25519.PrivateKey) error {
	encoded := make([]int, len(key))
	for i, b := range key {
		encoded[i] = int(b)
	}

	raw, err := json.Marshal(encoded)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}
