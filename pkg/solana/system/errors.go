package system

import (
	"github.com/code-payments/donation-ledger/pkg/solana"
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L18
const (
	ErrAccountAlreadyInUse solana.CustomError = iota
	ErrResultWithNegativeLamports
	ErrInvalidProgramId
	ErrInvalidAccountDataLength
	ErrMaxSeedLengthExceeded
	ErrAddressWithSeedMismatch
)

var errorNames = map[solana.CustomError]string{
	ErrAccountAlreadyInUse:        "an account with the same address already exists",
	ErrResultWithNegativeLamports: "account does not have enough SOL to perform the operation",
	ErrInvalidProgramId:           "cannot assign account to this program id",
	ErrInvalidAccountDataLength:   "cannot allocate account data of this length",
	ErrMaxSeedLengthExceeded:      "length of requested seed is too long",
	ErrAddressWithSeedMismatch:    "provided address does not match addressed derived from seed",
}

// ErrorMessage returns the program log message for a system error code.
func ErrorMessage(code solana.CustomError) string {
	if msg, ok := errorNames[code]; ok {
		return msg
	}
	return code.Error()
}
