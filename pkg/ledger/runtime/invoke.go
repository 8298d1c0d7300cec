package runtime

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"math/bits"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

// InvokeContext is the environment a program instruction executes in.
type InvokeContext struct {
	ProgramID ed25519.PublicKey
	Accounts  []*AccountInfo
	Data      []byte

	txn   *transactionContext
	depth int

	// pre holds the state each unique account had when the instruction
	// started, refreshed after every successful cross program invocation.
	pre         map[string]account.Record
	preLamports uint128
}

// Log appends a program log message to the transaction's logs.
func (c *InvokeContext) Log(format string, args ...interface{}) {
	c.txn.log("Program log: " + fmt.Sprintf(format, args...))
}

// ConsumeCompute charges units against the transaction's compute budget.
// Once the budget is exhausted, ErrComputationalBudgetExceeded is returned
// and the instruction must abort.
func (c *InvokeContext) ConsumeCompute(units uint64) error {
	return c.txn.meter.consume(units)
}

// RemainingCompute returns the compute units left in the budget
func (c *InvokeContext) RemainingCompute() uint64 {
	return c.txn.meter.remaining
}

// Rent returns the rent parameters of the ledger
func (c *InvokeContext) Rent() Rent {
	return DefaultRent
}

// Slot returns the slot the transaction is executing in
func (c *InvokeContext) Slot() uint64 {
	return c.txn.slot
}

// Depth returns the height of the instruction stack, starting at 1 for top
// level instructions
func (c *InvokeContext) Depth() int {
	return c.depth
}

// Invoke executes ix as a cross program invocation. Every account and the
// program referenced by ix must have been passed to the calling instruction.
// Privileges cannot be escalated, except that program derived addresses of
// the calling program that are derived from one of signerSeeds sign the
// invocation.
func (c *InvokeContext) Invoke(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if err := c.ConsumeCompute(invokeUnits); err != nil {
		return err
	}

	signers := make([]ed25519.PublicKey, len(signerSeeds))
	for i, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(c.ProgramID, seeds...)
		if err != nil {
			c.txn.log(fmt.Sprintf("Could not create program address with signer seeds: %v", err))
			return solana.NewInstructionErr(solana.InstructionErrorInvalidSeeds)
		}
		signers[i] = pda
	}

	if c.find(ix.Program) == nil {
		c.txn.log(fmt.Sprintf("Unknown program %s", base58.Encode(ix.Program)))
		return solana.NewInstructionErr(solana.InstructionErrorMissingAccount)
	}

	metas := make([]solana.AccountMeta, len(ix.Accounts))
	shared := make([]string, 0, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		caller := c.find(meta.PublicKey)
		if caller == nil {
			c.txn.log(fmt.Sprintf("Instruction references an unknown account %s", base58.Encode(meta.PublicKey)))
			return solana.NewInstructionErr(solana.InstructionErrorMissingAccount)
		}

		if meta.IsWritable && !caller.IsWritable {
			c.txn.log(fmt.Sprintf("%s's writable privilege escalated", base58.Encode(meta.PublicKey)))
			return solana.NewInstructionErr(solana.InstructionErrorPrivilegeEscalation)
		}

		if meta.IsSigner && !caller.IsSigner && !containsKey(signers, meta.PublicKey) {
			c.txn.log(fmt.Sprintf("%s's signer privilege escalated", base58.Encode(meta.PublicKey)))
			return solana.NewInstructionErr(solana.InstructionErrorPrivilegeEscalation)
		}

		metas[i] = meta
		shared = append(shared, string(meta.PublicKey))
	}

	// Changes made by the caller must be valid before the callee observes them
	if err := c.verifyAccounts(shared); err != nil {
		return err
	}
	c.refresh(shared)

	if err := c.txn.execute(ix.Program, metas, ix.Data, c.depth+1); err != nil {
		return err
	}

	c.refresh(shared)
	return nil
}

func (c *InvokeContext) find(key ed25519.PublicKey) *AccountInfo {
	for _, info := range c.Accounts {
		if bytes.Equal(info.Key, key) {
			return info
		}
	}
	return nil
}

func (c *InvokeContext) isWritable(key string) bool {
	for _, info := range c.Accounts {
		if string(info.Key) == key && info.IsWritable {
			return true
		}
	}
	return false
}

func (c *InvokeContext) refresh(keys []string) {
	for _, key := range keys {
		c.pre[key] = c.txn.accounts[key].Clone()
	}
}

// verify checks every account change made by the instruction, including the
// lamport balance across all of its accounts.
func (c *InvokeContext) verify() error {
	keys := make([]string, 0, len(c.pre))
	for key := range c.pre {
		keys = append(keys, key)
	}

	if err := c.verifyAccounts(keys); err != nil {
		return err
	}

	var post uint128
	for key := range c.pre {
		post.add(c.txn.accounts[key].Lamports)
	}
	if post != c.preLamports {
		return solana.NewInstructionErr(solana.InstructionErrorUnbalancedInstruction)
	}

	return nil
}

// verifyAccounts enforces the ownership rules for changes to the provided
// accounts since the instruction started or last invoked another program.
func (c *InvokeContext) verifyAccounts(keys []string) error {
	for _, key := range keys {
		pre, ok := c.pre[key]
		if !ok {
			continue
		}
		post := c.txn.accounts[key]
		isOwner := bytes.Equal(c.ProgramID, pre.Owner)
		isWritable := c.isWritable(key)

		if !bytes.Equal(pre.Owner, post.Owner) {
			if !isOwner || !isWritable || pre.Executable || !isZeroed(post.Data) {
				return solana.NewInstructionErr(solana.InstructionErrorModifiedProgramID)
			}
		}

		if pre.Lamports != post.Lamports {
			if !isWritable {
				return solana.NewInstructionErr(solana.InstructionErrorReadonlyLamportChange)
			}
			if post.Lamports < pre.Lamports && !isOwner {
				return solana.NewInstructionErr(solana.InstructionErrorExternalAccountLamportSpend)
			}
		}

		if len(pre.Data) != len(post.Data) {
			if !isOwner || !isWritable {
				return solana.NewInstructionErr(solana.InstructionErrorAccountDataSizeChanged)
			}
			if len(post.Data) > maxPermittedDataLength {
				return solana.NewInstructionErr(solana.InstructionErrorInvalidAccountData)
			}
		} else if !bytes.Equal(pre.Data, post.Data) {
			if !isWritable {
				return solana.NewInstructionErr(solana.InstructionErrorReadonlyDataModified)
			}
			if !isOwner || pre.Executable {
				return solana.NewInstructionErr(solana.InstructionErrorExternalAccountDataModified)
			}
		}

		if pre.Executable != post.Executable {
			return solana.NewInstructionErr(solana.InstructionErrorModifiedProgramID)
		}
	}

	return nil
}

// toInstructionErr maps a program error to the error reported to clients.
func toInstructionErr(err error) error {
	var programErr CustomProgramError
	if errors.As(err, &programErr) {
		return programErr.CustomErrorCode()
	}

	var custom solana.CustomError
	if errors.As(err, &custom) {
		return custom
	}

	var key solana.InstructionErrorKey
	if errors.As(err, &key) {
		return key
	}

	return solana.NewInstructionErr(solana.InstructionErrorGenericError)
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// uint128 accumulates lamport totals without overflowing
type uint128 struct {
	hi, lo uint64
}

func (u *uint128) add(v uint64) {
	var carry uint64
	u.lo, carry = bits.Add64(u.lo, v, 0)
	u.hi += carry
}
