package account

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidAccount  = errors.New("invalid account")
)

// Record is the persisted state of a single ledger account.
type Record struct {
	Address    ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool

	// Slot is the slot in which the account was last written.
	Slot uint64
}

// IsEmpty reports whether the account holds neither lamports nor data. Empty
// accounts are garbage collected on commit.
func (r *Record) IsEmpty() bool {
	return r.Lamports == 0 && len(r.Data) == 0
}

func (r *Record) Validate() error {
	if len(r.Address) != ed25519.PublicKeySize {
		return errors.Wrap(ErrInvalidAccount, "invalid address")
	}

	if len(r.Owner) != ed25519.PublicKeySize {
		return errors.Wrap(ErrInvalidAccount, "invalid owner")
	}

	// Lamports are persisted as signed 64 bit integers by the postgres store
	if r.Lamports > math.MaxInt64 {
		return errors.Wrap(ErrInvalidAccount, "lamports overflow")
	}

	return nil
}

func (r *Record) Clone() Record {
	cloned := Record{
		Lamports:   r.Lamports,
		Executable: r.Executable,
		Slot:       r.Slot,
	}

	if r.Address != nil {
		cloned.Address = append(ed25519.PublicKey{}, r.Address...)
	}
	if r.Owner != nil {
		cloned.Owner = append(ed25519.PublicKey{}, r.Owner...)
	}
	if r.Data != nil {
		cloned.Data = append([]byte{}, r.Data...)
	}

	return cloned
}

func (r *Record) CopyTo(dst *Record) {
	cloned := r.Clone()

	dst.Address = cloned.Address
	dst.Owner = cloned.Owner
	dst.Lamports = cloned.Lamports
	dst.Data = cloned.Data
	dst.Executable = cloned.Executable
	dst.Slot = cloned.Slot
}

// Equal compares the account state, ignoring the slot it was written in.
func (r *Record) Equal(other *Record) bool {
	return bytes.Equal(r.Address, other.Address) &&
		bytes.Equal(r.Owner, other.Owner) &&
		r.Lamports == other.Lamports &&
		bytes.Equal(r.Data, other.Data) &&
		r.Executable == other.Executable
}

func (r *Record) String() string {
	return base58.Encode(r.Address)
}
