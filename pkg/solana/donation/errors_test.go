package donation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/ledger/constraint"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

func TestErrorClassOf(t *testing.T) {
	for code, expected := range map[solana.CustomError]ErrorClass{
		6000: ClassInvalidArgument,
		6001: ClassInvalidArgument,
		6002: ClassSerializationOverflow,
		6003: ClassTransferFailure,
		101:  ClassInvalidArgument,
		102:  ClassInvalidArgument,
		2000: ClassConstraint,
		2006: ClassConstraint,
		3012: ClassInitialization,
		3100: ClassInitialization,
		1:    ClassUnknown,
		-1:   ClassUnknown,
	} {
		assert.Equal(t, expected, ErrorClassOf(code), code)
	}
}

func TestGetErrorClass(t *testing.T) {
	txErr, err := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 0,
		Err:   solana.CustomError(6002),
	})
	require.NoError(t, err)

	code, ok := GetErrorCode(txErr)
	require.True(t, ok)
	assert.EqualValues(t, 6002, code)
	assert.Equal(t, ClassSerializationOverflow, GetErrorClass(txErr))

	accountErr := &constraint.AccountError{Account: "bank", Code: constraint.ErrConstraintAddress}
	assert.Equal(t, ClassConstraint, GetErrorClass(errors.Wrap(accountErr, "donate")))
	assert.Equal(t, ClassTransferFailure, GetErrorClass(ErrorCodeTransferFailed))

	assert.Equal(t, ClassUnknown, GetErrorClass(solana.NewTransactionError(solana.TransactionErrorAccountInUse)))
	_, ok = GetErrorCode(errors.New("unrelated"))
	assert.False(t, ok)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "InvalidLamports: Amount must be greater than zero", ErrorCodeInvalidLamports.Error())
	assert.Equal(t, "TransferFailed", ErrorCodeTransferFailed.Name())
	assert.EqualValues(t, 6001, ErrorCodeInsufficientBankBalance.CustomErrorCode())
	assert.Equal(t, "Unknown(7000)", ErrorCode(7000).Name())
}

func TestRecordErrorCode(t *testing.T) {
	code, ok := recordErrorCode(ErrSerializationOverflow)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeSerializationOverflow, code)

	code, ok = recordErrorCode(errors.Wrap(ErrInvalidArgument, "put donation"))
	require.True(t, ok)
	assert.Equal(t, ErrorCodeInvalidLamports, code)

	other := errors.New("unrelated")
	_, ok = recordErrorCode(other)
	assert.False(t, ok)
	assert.Equal(t, other, toErrorCode(other))
	assert.Equal(t, ErrorCodeSerializationOverflow, toErrorCode(ErrSerializationOverflow))
}
