package runtime

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/system"
)

const (
	maxPermittedDataLength = system.MaxPermittedDataLength

	systemProgramUnits = 150
)

// SystemProgramID is the address of the builtin system program
var SystemProgramID = ed25519.PublicKey(system.ProgramKey[:])

// systemProgram implements the subset of the native system program used by
// the ledger.
type systemProgram struct{}

func (systemProgram) ID() ed25519.PublicKey {
	return SystemProgramID
}

func (p systemProgram) Process(ctx *InvokeContext) error {
	if err := ctx.ConsumeCompute(systemProgramUnits); err != nil {
		return err
	}

	cmd, err := system.ParseCommand(ctx.Data)
	if err != nil {
		return solana.NewInstructionErr(solana.InstructionErrorInvalidInstructionData)
	}

	if len(ctx.Accounts) < 1 {
		return solana.NewInstructionErr(solana.InstructionErrorNotEnoughAccountKeys)
	}

	switch typed := cmd.(type) {
	case system.AssignCommand:
		return p.assign(ctx, ctx.Accounts[0], typed.Owner)
	case system.AllocateCommand:
		return p.allocate(ctx, ctx.Accounts[0], typed.Size)
	}

	if len(ctx.Accounts) < 2 {
		return solana.NewInstructionErr(solana.InstructionErrorNotEnoughAccountKeys)
	}

	switch typed := cmd.(type) {
	case system.CreateAccountCommand:
		return p.createAccount(ctx, ctx.Accounts[0], ctx.Accounts[1], typed)
	case system.TransferCommand:
		return p.transfer(ctx, ctx.Accounts[0], ctx.Accounts[1], typed.Lamports)
	default:
		return solana.NewInstructionErr(solana.InstructionErrorInvalidInstructionData)
	}
}

func (p systemProgram) createAccount(ctx *InvokeContext, from, to *AccountInfo, cmd system.CreateAccountCommand) error {
	if !to.IsSigner {
		ctx.Log("Create Account: account %s must sign", base58.Encode(to.Key))
		return solana.NewInstructionErr(solana.InstructionErrorMissingRequiredSignature)
	}

	if to.IsInitialized() {
		ctx.Log("Create Account: account %s already in use", base58.Encode(to.Key))
		return system.ErrAccountAlreadyInUse
	}

	if err := p.transfer(ctx, from, to, cmd.Lamports); err != nil {
		return err
	}

	if err := p.allocate(ctx, to, cmd.Size); err != nil {
		return err
	}
	return p.assign(ctx, to, cmd.Owner)
}

// allocate sizes the data of a system owned account that holds none yet. The
// account may already carry lamports.
func (systemProgram) allocate(ctx *InvokeContext, account *AccountInfo, size uint64) error {
	if !account.IsSigner {
		ctx.Log("Allocate: 'to' account %s must sign", base58.Encode(account.Key))
		return solana.NewInstructionErr(solana.InstructionErrorMissingRequiredSignature)
	}

	if account.InUse() {
		ctx.Log("Allocate: account %s already in use", base58.Encode(account.Key))
		return system.ErrAccountAlreadyInUse
	}

	if size > maxPermittedDataLength {
		ctx.Log("Allocate: requested %d, max allowed %d", size, maxPermittedDataLength)
		return system.ErrInvalidAccountDataLength
	}

	account.SetData(make([]byte, size))
	return nil
}

func (systemProgram) assign(ctx *InvokeContext, account *AccountInfo, owner ed25519.PublicKey) error {
	if account.Owner().Equal(owner) {
		return nil
	}

	if !account.IsSigner {
		ctx.Log("Assign: account %s must sign", base58.Encode(account.Key))
		return solana.NewInstructionErr(solana.InstructionErrorMissingRequiredSignature)
	}

	account.Assign(owner)
	return nil
}

func (systemProgram) transfer(ctx *InvokeContext, from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		ctx.Log("Transfer: `from` account %s must sign", base58.Encode(from.Key))
		return solana.NewInstructionErr(solana.InstructionErrorMissingRequiredSignature)
	}

	if len(from.Data()) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return solana.NewInstructionErr(solana.InstructionErrorInvalidArgument)
	}

	if from.Lamports() < lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return system.ErrResultWithNegativeLamports
	}

	if to.Lamports()+lamports < to.Lamports() {
		return solana.NewInstructionErr(solana.InstructionErrorInvalidArgument)
	}

	from.SetLamports(from.Lamports() - lamports)
	to.SetLamports(to.Lamports() + lamports)
	return nil
}
