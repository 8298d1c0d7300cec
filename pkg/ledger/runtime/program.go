package runtime

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	// LamportsPerSol is the number of lamports in one SOL
	LamportsPerSol = 1_000_000_000

	// MaxInvokeDepth is the deepest instruction stack, including the top level
	// instruction
	MaxInvokeDepth = 4

	// MaxTransactionAccountLocks is the number of accounts a transaction may
	// reference
	MaxTransactionAccountLocks = 64

	// invokeUnits is the compute cost of a cross program invocation
	invokeUnits = 1000
)

var (
	// NativeLoaderID owns builtin programs
	NativeLoaderID = mustDecode("NativeLoader1111111111111111111111111111111")

	// BPFLoaderID owns deployed programs
	BPFLoaderID = mustDecode("BPFLoader2111111111111111111111111111111111")
)

// ErrComputationalBudgetExceeded is returned by ConsumeCompute once the
// transaction's compute budget is exhausted.
var ErrComputationalBudgetExceeded = solana.NewInstructionErr(solana.InstructionErrorComputationalBudgetExceeded)

// Program is an executable program hosted by the runtime.
type Program interface {
	// ID is the address the program is deployed at
	ID() ed25519.PublicKey

	// Process executes a single instruction. Account mutations are made in
	// place through ctx.Accounts and are discarded by the runtime if an error
	// is returned.
	Process(ctx *InvokeContext) error
}

// CustomProgramError is implemented by program errors that are reported to
// clients as a custom error code.
type CustomProgramError interface {
	error
	CustomErrorCode() solana.CustomError
}

// AccountInfo is a program's view of an account referenced by an instruction.
// Lamports and data may only be changed in place; the runtime verifies the
// change against the account's owner once the program returns.
type AccountInfo struct {
	Key        ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	record *account.Record
}

func (a *AccountInfo) Lamports() uint64 {
	return a.record.Lamports
}

func (a *AccountInfo) SetLamports(lamports uint64) {
	a.record.Lamports = lamports
}

// Data returns the account data. Writes to the returned slice modify the
// account.
func (a *AccountInfo) Data() []byte {
	return a.record.Data
}

// SetData replaces the account data, which is required when resizing it.
func (a *AccountInfo) SetData(data []byte) {
	a.record.Data = data
}

func (a *AccountInfo) Owner() ed25519.PublicKey {
	return a.record.Owner
}

// Assign changes the account owner.
func (a *AccountInfo) Assign(owner ed25519.PublicKey) {
	a.record.Owner = append(ed25519.PublicKey{}, owner...)
}

func (a *AccountInfo) Executable() bool {
	return a.record.Executable
}

// IsInitialized reports whether the account holds state: it has a balance,
// data, or has been assigned to a program other than the system program.
func (a *AccountInfo) IsInitialized() bool {
	return a.record.Lamports > 0 || a.InUse()
}

// InUse reports whether the account carries data or belongs to a program. A
// system owned account with only a balance can still be allocated.
func (a *AccountInfo) InUse() bool {
	return len(a.record.Data) > 0 || !a.record.Owner.Equal(SystemProgramID)
}

// Rent computes the minimum balance an account must carry to be exempt from
// rent collection.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

// accountStorageOverhead is the number of bytes of metadata accounted for in
// every account
const accountStorageOverhead = 128

// DefaultRent mirrors the rent parameters of Solana clusters
var DefaultRent = Rent{
	LamportsPerByteYear: 3480,
	ExemptionThreshold:  2,
}

// MinimumBalance returns the rent exempt minimum for an account of size bytes
func (r Rent) MinimumBalance(size uint64) uint64 {
	return (accountStorageOverhead + size) * r.LamportsPerByteYear * r.ExemptionThreshold
}

func mustDecode(b58 string) ed25519.PublicKey {
	key, err := base58.Decode(b58)
	if err != nil {
		panic(errors.Wrapf(err, "invalid builtin address %s", b58))
	}
	return key
}
