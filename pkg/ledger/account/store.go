package account

import (
	"context"
	"crypto/ed25519"
)

type Store interface {
	// Get returns the account at the provided address.
	//
	// Returns ErrAccountNotFound if the account doesn't exist.
	Get(ctx context.Context, address ed25519.PublicKey) (*Record, error)

	// GetMany returns the accounts at the provided addresses, in order. Entries
	// for accounts that don't exist are nil.
	GetMany(ctx context.Context, addresses ...ed25519.PublicKey) ([]*Record, error)

	// GetProgramAccounts returns all accounts owned by the provided program,
	// ordered by address.
	//
	// Returns ErrAccountNotFound if the program owns no accounts.
	GetProgramAccounts(ctx context.Context, owner ed25519.PublicKey) ([]*Record, error)

	// Commit atomically writes the provided records as of slot. Either every
	// record is persisted, or none are. Empty records are deleted.
	Commit(ctx context.Context, slot uint64, records ...*Record) error
}
