package donation

import (
	"crypto/ed25519"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	InitializeUserInstructionArgsSize = 0
)

type InitializeUserInstructionArgs struct {
}

type InitializeUserInstructionAccounts struct {
	User      ed25519.PublicKey
	UserStore ed25519.PublicKey
	Bank      ed25519.PublicKey
	Store     ed25519.PublicKey
}

func NewInitializeUserInstruction(
	accounts *InitializeUserInstructionAccounts,
	args *InitializeUserInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, instructionDiscriminatorSize+InitializeUserInstructionArgsSize)

	putInstructionType(data, InstructionTypeInitializeUser, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.User,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.UserStore,
				IsWritable: true,
				IsSigner:   false,
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

func InitializeUserInstructionArgsFromBinary(data []byte) (*InitializeUserInstructionArgs, error) {
	if len(data) != instructionDiscriminatorSize+InitializeUserInstructionArgsSize {
		return nil, ErrInvalidInstructionData
	}
	return &InitializeUserInstructionArgs{}, nil
}
