package constraint

import (
	"fmt"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

// Class groups error codes into the failure classes reported to clients
type Class int

const (
	ClassUnknown Class = iota
	ClassConstraint
	ClassInitialization
	ClassInvalidArgument
	ClassSerializationOverflow
	ClassTransferFailure
)

func (c Class) String() string {
	switch c {
	case ClassConstraint:
		return "ConstraintFailure"
	case ClassInitialization:
		return "Initialization"
	case ClassInvalidArgument:
		return "InvalidArgument"
	case ClassSerializationOverflow:
		return "SerializationOverflow"
	case ClassTransferFailure:
		return "TransferFailure"
	default:
		return "Unknown"
	}
}

// ErrorCode is a framework error, numbered the same way as the Anchor
// framework so clients built against it decode them unchanged.
type ErrorCode uint32

const (
	ErrInstructionFallbackNotFound  ErrorCode = 101
	ErrInstructionDidNotDeserialize ErrorCode = 102

	ErrConstraintMut     ErrorCode = 2000
	ErrConstraintHasOne  ErrorCode = 2001
	ErrConstraintSigner  ErrorCode = 2002
	ErrConstraintRaw     ErrorCode = 2003
	ErrConstraintSeeds   ErrorCode = 2006
	ErrConstraintAddress ErrorCode = 2012
	ErrConstraintProgram ErrorCode = 2014

	ErrAccountDiscriminatorNotFound ErrorCode = 3001
	ErrAccountDiscriminatorMismatch ErrorCode = 3002
	ErrAccountDidNotDeserialize     ErrorCode = 3003
	ErrAccountNotEnoughKeys         ErrorCode = 3005
	ErrAccountOwnedByWrongProgram   ErrorCode = 3007
	ErrAccountNotInitialized        ErrorCode = 3012
	ErrAccountAlreadyInitialized    ErrorCode = 3100
)

var errorNames = map[ErrorCode]struct {
	name    string
	message string
}{
	ErrInstructionFallbackNotFound:  {"InstructionFallbackNotFound", "Fallback functions are not supported"},
	ErrInstructionDidNotDeserialize: {"InstructionDidNotDeserialize", "The program could not deserialize the given instruction"},
	ErrConstraintMut:                {"ConstraintMut", "A mut constraint was violated"},
	ErrConstraintHasOne:             {"ConstraintHasOne", "A has one constraint was violated"},
	ErrConstraintSigner:             {"ConstraintSigner", "A signer constraint was violated"},
	ErrConstraintRaw:                {"ConstraintRaw", "A raw constraint was violated"},
	ErrConstraintSeeds:              {"ConstraintSeeds", "A seeds constraint was violated"},
	ErrConstraintAddress:            {"ConstraintAddress", "An address constraint was violated"},
	ErrConstraintProgram:            {"ConstraintProgram", "A program id constraint was violated"},
	ErrAccountDiscriminatorNotFound: {"AccountDiscriminatorNotFound", "No 8 byte discriminator was found on the account"},
	ErrAccountDiscriminatorMismatch: {"AccountDiscriminatorMismatch", "8 byte discriminator did not match what was expected"},
	ErrAccountDidNotDeserialize:     {"AccountDidNotDeserialize", "Failed to deserialize the account"},
	ErrAccountNotEnoughKeys:         {"AccountNotEnoughKeys", "Not enough account keys given to the instruction"},
	ErrAccountOwnedByWrongProgram:   {"AccountOwnedByWrongProgram", "The given account is owned by a different program than expected"},
	ErrAccountNotInitialized:        {"AccountNotInitialized", "The program expected this account to be already initialized"},
	ErrAccountAlreadyInitialized:    {"AccountAlreadyInitialized", "The account is already initialized"},
}

// Name returns the symbolic name of the error code
func (e ErrorCode) Name() string {
	if desc, ok := errorNames[e]; ok {
		return desc.name
	}
	return fmt.Sprintf("Unknown(%d)", uint32(e))
}

func (e ErrorCode) Error() string {
	if desc, ok := errorNames[e]; ok {
		return fmt.Sprintf("%s: %s", desc.name, desc.message)
	}
	return fmt.Sprintf("unknown error code %d", uint32(e))
}

// CustomErrorCode implements runtime.CustomProgramError
func (e ErrorCode) CustomErrorCode() solana.CustomError {
	return solana.CustomError(e)
}

func (e ErrorCode) Class() Class {
	switch {
	case e == ErrInstructionFallbackNotFound, e == ErrInstructionDidNotDeserialize:
		return ClassInvalidArgument
	case e >= 2000 && e < 3000:
		return ClassConstraint
	case e >= 3000 && e < 4000:
		return ClassInitialization
	default:
		return ClassUnknown
	}
}

// AccountError is a framework error attributed to a named instruction account
type AccountError struct {
	Account string
	Code    ErrorCode
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("%s (account: %s)", e.Code.Error(), e.Account)
}

func (e *AccountError) Unwrap() error {
	return e.Code
}

// CustomErrorCode implements runtime.CustomProgramError
func (e *AccountError) CustomErrorCode() solana.CustomError {
	return e.Code.CustomErrorCode()
}

// LogLine formats an error the way program logs report framework errors
func LogLine(account string, code ErrorCode) string {
	desc, ok := errorNames[code]
	if !ok {
		desc.name, desc.message = code.Name(), "Unknown"
	}

	if account == "" {
		return fmt.Sprintf("Error Code: %s. Error Number: %d. Error Message: %s.", desc.name, uint32(code), desc.message)
	}
	return fmt.Sprintf("Error caused by account: %s. Error Code: %s. Error Number: %d. Error Message: %s.", account, desc.name, uint32(code), desc.message)
}
