package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

// ProgramKey is the address of the native system program.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey [32]byte

const (
	commandCreateAccount uint32 = iota
	commandAssign
	commandTransfer
	commandAllocate uint32 = 8
)

const (
	createAccountDataSize = 4 + 2*8 + ed25519.PublicKeySize
	assignDataSize        = 4 + ed25519.PublicKeySize
	transferDataSize      = 4 + 8
	allocateDataSize      = 4 + 8
)

// MaxPermittedDataLength is the largest account the system program will
// allocate.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L14
const MaxPermittedDataLength = 10 * 1024 * 1024

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   // Number of lamports to transfer to the new account
	//   lamports: u64,
	//   // Number of bytes of memory to allocate
	//   space: u64,
	//
	//   //Address of program that will own the new account
	//   owner: Pubkey,
	// }
	//
	data := make([]byte, createAccountDataSize)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L80-L84
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, transferDataSize)
	binary.LittleEndian.PutUint32(data, commandTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L74-L78
func Assign(address, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Assigned account public key
	data := make([]byte, assignDataSize)
	binary.LittleEndian.PutUint32(data, commandAssign)
	copy(data[4:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(address, true),
	)
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L143-L149
func Allocate(address ed25519.PublicKey, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] New account
	data := make([]byte, allocateDataSize)
	binary.LittleEndian.PutUint32(data, commandAllocate)
	binary.LittleEndian.PutUint64(data[4:], size)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(address, true),
	)
}

// Command is a decoded system instruction.
type Command interface {
	isCommand()
}

type CreateAccountCommand struct {
	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

type AssignCommand struct {
	Owner ed25519.PublicKey
}

type TransferCommand struct {
	Lamports uint64
}

type AllocateCommand struct {
	Size uint64
}

func (CreateAccountCommand) isCommand() {}
func (AssignCommand) isCommand()        {}
func (TransferCommand) isCommand()      {}
func (AllocateCommand) isCommand()      {}

// ParseCommand decodes raw system instruction data. Commands the ledger
// doesn't implement are reported as solana.ErrIncorrectInstruction.
func ParseCommand(data []byte) (Command, error) {
	if len(data) < 4 {
		return nil, solana.ErrIncorrectInstruction
	}

	switch binary.LittleEndian.Uint32(data) {
	case commandCreateAccount:
		if len(data) != createAccountDataSize {
			return nil, errors.Errorf("invalid instruction data size: %d", len(data))
		}

		owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(owner, data[4+2*8:])

		return CreateAccountCommand{
			Lamports: binary.LittleEndian.Uint64(data[4:]),
			Size:     binary.LittleEndian.Uint64(data[4+8:]),
			Owner:    owner,
		}, nil
	case commandAssign:
		if len(data) != assignDataSize {
			return nil, errors.Errorf("invalid instruction data size: %d", len(data))
		}

		owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(owner, data[4:])

		return AssignCommand{Owner: owner}, nil
	case commandTransfer:
		if len(data) != transferDataSize {
			return nil, errors.Errorf("invalid instruction data size: %d", len(data))
		}

		return TransferCommand{
			Lamports: binary.LittleEndian.Uint64(data[4:]),
		}, nil
	case commandAllocate:
		if len(data) != allocateDataSize {
			return nil, errors.Errorf("invalid instruction data size: %d", len(data))
		}

		return AllocateCommand{
			Size: binary.LittleEndian.Uint64(data[4:]),
		}, nil
	default:
		return nil, solana.ErrIncorrectInstruction
	}
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := decompile(m, index, commandCreateAccount)
	if err != nil {
		return nil, err
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	cmd, err := ParseCommand(i.Data)
	if err != nil {
		return nil, err
	}
	create := cmd.(CreateAccountCommand)

	return &DecompiledCreateAccount{
		Funder:   i.Accounts[0].PublicKey,
		Address:  i.Accounts[1].PublicKey,
		Lamports: create.Lamports,
		Size:     create.Size,
		Owner:    create.Owner,
	}, nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := decompile(m, index, commandTransfer)
	if err != nil {
		return nil, err
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	cmd, err := ParseCommand(i.Data)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{
		From:     i.Accounts[0].PublicKey,
		To:       i.Accounts[1].PublicKey,
		Lamports: cmd.(TransferCommand).Lamports,
	}, nil
}

func decompile(m solana.Message, index int, command uint32) (solana.Instruction, error) {
	if index >= len(m.Instructions) {
		return solana.Instruction{}, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i, err := solana.DecompileInstruction(m, index)
	if err != nil {
		return solana.Instruction{}, err
	}

	if !bytes.Equal(i.Program, ProgramKey[:]) {
		return solana.Instruction{}, solana.ErrIncorrectProgram
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], command)
	if !bytes.HasPrefix(i.Data, prefix[:]) {
		return solana.Instruction{}, solana.ErrIncorrectInstruction
	}

	return i, nil
}
