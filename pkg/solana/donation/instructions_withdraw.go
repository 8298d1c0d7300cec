package donation

import (
	"crypto/ed25519"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	WithdrawInstructionArgsSize = 8 // lamports
)

type WithdrawInstructionArgs struct {
	Lamports uint64
}

type WithdrawInstructionAccounts struct {
	Bank  ed25519.PublicKey
	Owner ed25519.PublicKey
	Store ed25519.PublicKey
}

func NewWithdrawInstruction(
	accounts *WithdrawInstructionAccounts,
	args *WithdrawInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, instructionDiscriminatorSize+WithdrawInstructionArgsSize)

	putInstructionType(data, InstructionTypeWithdraw, &offset)
	putUint64(data, args.Lamports, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Bank,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Owner,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Store,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

func WithdrawInstructionArgsFromBinary(data []byte) (*WithdrawInstructionArgs, error) {
	if len(data) != instructionDiscriminatorSize+WithdrawInstructionArgsSize {
		return nil, ErrInvalidInstructionData
	}

	var args WithdrawInstructionArgs
	offset := instructionDiscriminatorSize
	getUint64(data, &args.Lamports, &offset)
	return &args, nil
}
