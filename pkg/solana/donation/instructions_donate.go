package donation

import (
	"crypto/ed25519"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	DonateInstructionArgsSize = 8 // lamports
)

type DonateInstructionArgs struct {
	Lamports uint64
}

type DonateInstructionAccounts struct {
	FromUser  ed25519.PublicKey
	Bank      ed25519.PublicKey
	Store     ed25519.PublicKey
	UserStore ed25519.PublicKey
}

func NewDonateInstruction(
	accounts *DonateInstructionAccounts,
	args *DonateInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, instructionDiscriminatorSize+DonateInstructionArgsSize)

	putInstructionType(data, InstructionTypeDonate, &offset)
	putUint64(data, args.Lamports, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.FromUser,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Bank,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Store,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.UserStore,
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

func DonateInstructionArgsFromBinary(data []byte) (*DonateInstructionArgs, error) {
	if len(data) != instructionDiscriminatorSize+DonateInstructionArgsSize {
		return nil, ErrInvalidInstructionData
	}

	var args DonateInstructionArgs
	offset := instructionDiscriminatorSize
	getUint64(data, &args.Lamports, &offset)
	return &args, nil
}
