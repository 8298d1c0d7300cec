package runtime

import (
	"crypto/ed25519"

	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/memo"
)

const memoUnitsPerByte = 10

// memoProgram logs the instruction data as a memo. Every account passed to
// the instruction must sign it.
type memoProgram struct{}

func (memoProgram) ID() ed25519.PublicKey {
	return memo.ProgramKey
}

func (memoProgram) Process(ctx *InvokeContext) error {
	if err := ctx.ConsumeCompute(uint64(len(ctx.Data)) * memoUnitsPerByte); err != nil {
		return err
	}

	for _, info := range ctx.Accounts {
		if !info.IsSigner {
			return solana.NewInstructionErr(solana.InstructionErrorMissingRequiredSignature)
		}
	}

	if err := memo.Validate(ctx.Data); err != nil {
		ctx.Log("Invalid UTF-8")
		return solana.NewInstructionErr(solana.InstructionErrorInvalidInstructionData)
	}

	ctx.Log("Memo (len %d): %q", len(ctx.Data), string(ctx.Data))
	return nil
}
