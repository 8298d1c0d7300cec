package donation

import (
	"crypto/ed25519"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	InitializeInstructionArgsSize = 0
)

type InitializeInstructionArgs struct {
}

type InitializeInstructionAccounts struct {
	Owner ed25519.PublicKey
	Bank  ed25519.PublicKey
	Store ed25519.PublicKey
}

func NewInitializeInstruction(
	accounts *InitializeInstructionAccounts,
	args *InitializeInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, instructionDiscriminatorSize+InitializeInstructionArgsSize)

	putInstructionType(data, InstructionTypeInitialize, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Owner,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Bank,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Store,
				IsWritable: true,
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

func InitializeInstructionArgsFromBinary(data []byte) (*InitializeInstructionArgs, error) {
	if len(data) != instructionDiscriminatorSize+InitializeInstructionArgsSize {
		return nil, ErrInvalidInstructionData
	}
	return &InitializeInstructionArgs{}, nil
}
