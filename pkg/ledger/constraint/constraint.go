// Package constraint validates the accounts passed to a program instruction
// against a declarative description of what each account must be, before any
// handler logic runs.
package constraint

import (
	"crypto/ed25519"

	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
)

// Record is a program account decoded from its data
type Record interface {
	// Discriminator is the 8 byte prefix identifying the record type
	Discriminator() []byte

	Unmarshal(data []byte) error

	// Key returns a public key field of the record by name
	Key(field string) (ed25519.PublicKey, bool)

	// GetBump returns the bump the record's address was derived with
	GetBump() uint8
}

// Decoder returns an empty record to decode account data into
type Decoder func() Record

// KeyRef references either the key of an instruction account, when Field is
// empty, or a key field of an account's decoded record.
type KeyRef struct {
	Account string
	Field   string
}

// Init requires the account to hold no data and belong to the system program.
// Once every check passes, it is allocated with Space bytes owned by the
// program and topped up to the rent exempt minimum by the Payer account.
type Init struct {
	Payer string
	Space uint64
}

// Seeds requires the account address to be the canonical program address
// derived from Prefix and the referenced key. For existing records, the bump
// stored in the record must be the canonical bump.
type Seeds struct {
	Prefix []byte
	Key    KeyRef
}

// HasOne requires the key stored in the record field to equal the key of
// the named account
type HasOne struct {
	Field   string
	Account string
}

// Account describes the expectations for a single instruction account, in
// the order accounts are passed to the instruction.
type Account struct {
	Name string

	Signer bool
	Mut    bool

	Init  *Init
	Seeds *Seeds

	// Address requires the account key to equal the referenced key
	Address *KeyRef

	HasOne []HasOne

	// Program requires the account to be the provided program
	Program ed25519.PublicKey

	// Decoder marks the account as a record owned by the executing program.
	// Existing records are loaded and decoded before any cross reference is
	// evaluated.
	Decoder Decoder
}

// Predicate is an arbitrary check over loaded accounts and records
type Predicate struct {
	Name  string
	Check func(ctx *Context) bool
}

// Set is the full list of constraints for an instruction
type Set struct {
	Accounts   []Account
	Predicates []Predicate
}

// Context is the validated view of an instruction's accounts
type Context struct {
	Invoke *runtime.InvokeContext

	accounts map[string]*runtime.AccountInfo
	records  map[string]Record
	bumps    map[string]uint8
}

// Account returns the named instruction account
func (c *Context) Account(name string) *runtime.AccountInfo {
	return c.accounts[name]
}

// Record returns the decoded record of the named account. Accounts created
// by an Init constraint have no record until the handler writes one.
func (c *Context) Record(name string) Record {
	return c.records[name]
}

// Bump returns the bump of the named account's address
func (c *Context) Bump(name string) uint8 {
	return c.bumps[name]
}

// Key resolves a key reference
func (c *Context) Key(ref KeyRef) (ed25519.PublicKey, bool) {
	if ref.Field == "" {
		info, ok := c.accounts[ref.Account]
		if !ok {
			return nil, false
		}
		return info.Key, true
	}

	record, ok := c.records[ref.Account]
	if !ok {
		return nil, false
	}
	return record.Key(ref.Field)
}
