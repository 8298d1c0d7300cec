package runtime

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

// transactionContext is the state shared by every instruction of a
// transaction, including cross program invocations.
type transactionContext struct {
	bank *Bank
	slot uint64

	// accounts is the working copy of every account loaded by the
	// transaction, keyed by address.
	accounts map[string]*account.Record

	meter *computeMeter
	logs  []string
	stack []ed25519.PublicKey
}

type computeMeter struct {
	limit     uint64
	remaining uint64
}

func (m *computeMeter) consume(units uint64) error {
	if units > m.remaining {
		m.remaining = 0
		return ErrComputationalBudgetExceeded
	}
	m.remaining -= units
	return nil
}

func (m *computeMeter) consumed() uint64 {
	return m.limit - m.remaining
}

func (t *transactionContext) log(line string) {
	t.logs = append(t.logs, line)
}

// execute runs a single instruction, top level or invoked, and verifies the
// account changes it made.
func (t *transactionContext) execute(programID ed25519.PublicKey, metas []solana.AccountMeta, data []byte, depth int) error {
	encodedID := base58.Encode(programID)

	program, ok := t.bank.programs[string(programID)]
	if !ok {
		t.log(fmt.Sprintf("Program %s is not deployed", encodedID))
		return solana.NewInstructionErr(solana.InstructionErrorUnsupportedProgramID)
	}

	if depth > MaxInvokeDepth {
		return solana.NewInstructionErr(solana.InstructionErrorCallDepth)
	}

	// Only direct recursion is permitted
	if len(t.stack) > 0 && !t.stack[len(t.stack)-1].Equal(programID) {
		for _, caller := range t.stack {
			if caller.Equal(programID) {
				return solana.NewInstructionErr(solana.InstructionErrorReentrancyNotAllowed)
			}
		}
	}

	ctx := &InvokeContext{
		ProgramID: programID,
		Accounts:  make([]*AccountInfo, len(metas)),
		Data:      data,
		txn:       t,
		depth:     depth,
		pre:       make(map[string]account.Record),
	}
	for i, meta := range metas {
		record, ok := t.accounts[string(meta.PublicKey)]
		if !ok {
			return solana.NewInstructionErr(solana.InstructionErrorMissingAccount)
		}

		ctx.Accounts[i] = &AccountInfo{
			Key:        record.Address,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			record:     record,
		}

		if _, ok := ctx.pre[string(meta.PublicKey)]; !ok {
			ctx.pre[string(meta.PublicKey)] = record.Clone()
			ctx.preLamports.add(record.Lamports)
		}
	}

	t.log(fmt.Sprintf("Program %s invoke [%d]", encodedID, depth))

	available := t.meter.remaining

	t.stack = append(t.stack, programID)
	err := program.Process(ctx)
	t.stack = t.stack[:len(t.stack)-1]

	if err == nil {
		err = ctx.verify()
	}

	t.log(fmt.Sprintf("Program %s consumed %d of %d compute units", encodedID, available-t.meter.remaining, available))

	if err != nil {
		t.log(fmt.Sprintf("Program %s failed: %s", encodedID, toInstructionErr(err).Error()))
		return err
	}

	t.log(fmt.Sprintf("Program %s success", encodedID))
	return nil
}
