package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrNoViableBump     = errors.New("unable to find a viable program address bump seed")
)

var (
	programHashCtor = sha256.New
)

// IsOnCurve reports whether the provided bytes decode to a valid compressed
// ed25519 point, which is the condition for a key to have a private key.
//
// Unfortunately, the edwards25519.ExtendedGroupElement (the EdwardsPoint) is
// internal to the golang.org/x/crypto library, so we rely (for now) on a
// deprecated open source alternative.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L182-L187
func IsOnCurve(pub []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}

	var point [32]byte
	copy(point[:], pub)

	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(&point)
}

// CreateProgramAddress mirrors the implementation of the Solana SDK's CreateProgramAddress.
//
// ProgramAddresses are public keys that _do not_ lie on the ed25519 curve to ensure that
// there is no associated private key. In the event that the program and seed parameters
// result in a valid public key, ErrInvalidPublicKey is returned.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}

	h := programHashCtor()
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}

		if _, err := h.Write(s); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	for _, v := range [][]byte{program, []byte(pdaMarker)} {
		if _, err := h.Write(v); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	hash := h.Sum(nil)
	if IsOnCurve(hash[:ed25519.PublicKeySize]) {
		return nil, ErrInvalidPublicKey
	}

	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, hash)
	return pub, nil
}

// FindProgramAddressAndBump mirrors the implementation of the Solana SDK's
// FindProgramAddress. It returns the address and the canonical bump seed, which
// is the largest bump that yields an off-curve address.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := math.MaxUint8; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		pub, err := CreateProgramAddress(program, withBump...)
		if err == nil {
			return pub, uint8(bump), nil
		}
		if err != ErrInvalidPublicKey {
			return nil, 0, err
		}
	}

	return nil, 0, ErrNoViableBump
}

// FindProgramAddress mirrors the implementation of the Solana SDK's FindProgramAddress.
// It only returns the address.
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	pub, _, err := FindProgramAddressAndBump(program, seeds...)
	return pub, err
}

// VerifyProgramAddress checks that address is the program address derived
// from the seeds and the provided bump.
func VerifyProgramAddress(address, program ed25519.PublicKey, bump uint8, seeds ...[]byte) bool {
	withBump := append(append([][]byte{}, seeds...), []byte{bump})
	expected, err := CreateProgramAddress(program, withBump...)
	if err != nil {
		return false
	}
	return expected.Equal(address)
}
