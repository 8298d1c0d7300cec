package runtime

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/system"
)

var testProgramID = ed25519.PublicKey(bytes.Repeat([]byte{7}, ed25519.PublicKeySize))

const (
	testCommandWrite byte = iota
	testCommandDebit
	testCommandTransferFromVault
	testCommandRecurse
	testCommandBurn
	testCommandFail
	testCommandEscalate
)

var testVaultSeed = []byte("vault")

type testProgramError int

func (e testProgramError) Error() string {
	return "test program error"
}

func (e testProgramError) CustomErrorCode() solana.CustomError {
	return solana.CustomError(e)
}

// testProgram exercises the runtime rules from inside an instruction
type testProgram struct{}

func (testProgram) ID() ed25519.PublicKey {
	return testProgramID
}

func (testProgram) Process(ctx *InvokeContext) error {
	if len(ctx.Data) == 0 {
		return solana.NewInstructionErr(solana.InstructionErrorInvalidInstructionData)
	}

	switch ctx.Data[0] {
	case testCommandWrite:
		copy(ctx.Accounts[0].Data(), ctx.Data[1:])
		return nil
	case testCommandDebit:
		amount := binary.LittleEndian.Uint64(ctx.Data[1:])
		ctx.Accounts[0].SetLamports(ctx.Accounts[0].Lamports() - amount)
		ctx.Accounts[1].SetLamports(ctx.Accounts[1].Lamports() + amount)
		return nil
	case testCommandTransferFromVault:
		amount := binary.LittleEndian.Uint64(ctx.Data[1:])
		_, bump, err := solana.FindProgramAddressAndBump(ctx.ProgramID, testVaultSeed)
		if err != nil {
			return err
		}
		return ctx.Invoke(
			system.Transfer(ctx.Accounts[0].Key, ctx.Accounts[1].Key, amount),
			[][]byte{testVaultSeed, {bump}},
		)
	case testCommandRecurse:
		remaining := ctx.Data[1]
		ctx.Log("depth %d", ctx.Depth())
		if remaining == 0 {
			return nil
		}
		return ctx.Invoke(solana.NewInstruction(
			ctx.ProgramID,
			[]byte{testCommandRecurse, remaining - 1},
			solana.NewReadonlyAccountMeta(ctx.ProgramID, false),
		))
	case testCommandBurn:
		for {
			if err := ctx.ConsumeCompute(1000); err != nil {
				return err
			}
		}
	case testCommandFail:
		return testProgramError(42)
	case testCommandEscalate:
		return ctx.Invoke(system.Transfer(ctx.Accounts[0].Key, ctx.Accounts[1].Key, 1))
	default:
		return solana.NewInstructionErr(solana.InstructionErrorInvalidInstructionData)
	}
}

func testInstruction(command byte, amount uint64, accounts ...solana.AccountMeta) solana.Instruction {
	data := make([]byte, 9)
	data[0] = command
	binary.LittleEndian.PutUint64(data[1:], amount)
	return solana.NewInstruction(testProgramID, data, accounts...)
}
