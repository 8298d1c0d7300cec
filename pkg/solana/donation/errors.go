package donation

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/ledger/constraint"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

// ErrorClass is the failure class of an error code reported by the program
type ErrorClass = constraint.Class

const (
	ClassUnknown               = constraint.ClassUnknown
	ClassConstraint            = constraint.ClassConstraint
	ClassInitialization        = constraint.ClassInitialization
	ClassInvalidArgument       = constraint.ClassInvalidArgument
	ClassSerializationOverflow = constraint.ClassSerializationOverflow
	ClassTransferFailure       = constraint.ClassTransferFailure
)

// ErrorCode is an error raised by the donation program's handlers
type ErrorCode uint32

const (
	ErrorCodeInvalidLamports         ErrorCode = 6000
	ErrorCodeInsufficientBankBalance ErrorCode = 6001
	ErrorCodeSerializationOverflow   ErrorCode = 6002
	ErrorCodeTransferFailed          ErrorCode = 6003
)

var errorNames = map[ErrorCode]struct {
	name    string
	message string
}{
	ErrorCodeInvalidLamports:         {"InvalidLamports", "Amount must be greater than zero"},
	ErrorCodeInsufficientBankBalance: {"InsufficientBankBalance", "Amount exceeds the bank balance"},
	ErrorCodeSerializationOverflow:   {"SerializationOverflow", "Record exceeds the allocated account space"},
	ErrorCodeTransferFailed:          {"TransferFailed", "Lamport transfer failed"},
}

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

func (e ErrorCode) Class() ErrorClass {
	return ErrorClassOf(solana.CustomError(e))
}

// ErrorClassOf returns the class of a custom error code reported by the
// program, including framework codes raised while validating accounts.
func ErrorClassOf(code solana.CustomError) ErrorClass {
	switch ErrorCode(code) {
	case ErrorCodeInvalidLamports, ErrorCodeInsufficientBankBalance:
		return ClassInvalidArgument
	case ErrorCodeSerializationOverflow:
		return ClassSerializationOverflow
	case ErrorCodeTransferFailed:
		return ClassTransferFailure
	}

	if code < 0 {
		return ClassUnknown
	}
	return constraint.ErrorCode(code).Class()
}

// GetErrorCode extracts the custom error code from a transaction, instruction
// or program error.
func GetErrorCode(err error) (solana.CustomError, bool) {
	var custom solana.CustomError
	if errors.As(err, &custom) {
		return custom, true
	}

	var programErr interface{ CustomErrorCode() solana.CustomError }
	if errors.As(err, &programErr) {
		return programErr.CustomErrorCode(), true
	}

	return 0, false
}

// GetErrorClass returns the class of the program error carried by err, or
// ClassUnknown if err doesn't carry one.
func GetErrorClass(err error) ErrorClass {
	code, ok := GetErrorCode(err)
	if !ok {
		return ClassUnknown
	}
	return ErrorClassOf(code)
}

// recordErrorCode maps record errors to the codes reported to clients
func recordErrorCode(err error) (ErrorCode, bool) {
	switch {
	case errors.Is(err, ErrSerializationOverflow):
		return ErrorCodeSerializationOverflow, true
	case errors.Is(err, ErrInvalidArgument):
		return ErrorCodeInvalidLamports, true
	default:
		return 0, false
	}
}

// toErrorCode is recordErrorCode for callers that propagate err unchanged
// when it isn't a record error
func toErrorCode(err error) error {
	if code, ok := recordErrorCode(err); ok {
		return code
	}
	return err
}
