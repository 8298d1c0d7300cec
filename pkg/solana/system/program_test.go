package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

func TestCreateAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	command := make([]byte, 4)
	lamports := make([]byte, 8)
	binary.LittleEndian.PutUint64(lamports, 12345)
	size := make([]byte, 8)
	binary.LittleEndian.PutUint64(size, 67890)

	assert.Equal(t, command, instruction.Data[0:4])
	assert.Equal(t, lamports, instruction.Data[4:12])
	assert.Equal(t, size, instruction.Data[12:20])
	assert.Equal(t, []byte(keys[2]), instruction.Data[20:52])

	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(keys[0], instruction).Marshal()))

	decompiled, err := DecompileCreateAccount(tx.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, keys[0], decompiled.Funder)
	assert.EqualValues(t, keys[1], decompiled.Address)
	assert.EqualValues(t, keys[2], decompiled.Owner)
	assert.EqualValues(t, 12345, decompiled.Lamports)
	assert.EqualValues(t, 67890, decompiled.Size)
}

func TestDecompileNonCreate(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	instruction.Accounts = instruction.Accounts[:1]
	_, err := DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.NotNil(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid number of accounts"), err)

	binary.LittleEndian.PutUint32(instruction.Data, commandTransfer)
	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Data = make([]byte, 3)
	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Program = keys[3]
	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 1)
	assert.NotNil(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "instruction doesn't exist"))
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 1_000_000)

	command := make([]byte, 4)
	binary.LittleEndian.PutUint32(command, commandTransfer)
	assert.Equal(t, command, instruction.Data[:4])
	assert.EqualValues(t, 1_000_000, binary.LittleEndian.Uint64(instruction.Data[4:]))
	assert.EqualValues(t, ProgramKey[:], instruction.Program)

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)

	decompiled, err := DecompileTransfer(solana.NewTransaction(keys[0], instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, keys[0], decompiled.From)
	assert.EqualValues(t, keys[1], decompiled.To)
	assert.EqualValues(t, 1_000_000, decompiled.Lamports)

	create := CreateAccount(keys[0], keys[1], keys[1], 1, 1)
	_, err = DecompileTransfer(solana.NewTransaction(keys[0], create).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestParseCommand(t *testing.T) {
	keys := generateKeys(t, 3)

	cmd, err := ParseCommand(CreateAccount(keys[0], keys[1], keys[2], 10, 20).Data)
	require.NoError(t, err)
	create, ok := cmd.(CreateAccountCommand)
	require.True(t, ok)
	assert.EqualValues(t, 10, create.Lamports)
	assert.EqualValues(t, 20, create.Size)
	assert.EqualValues(t, keys[2], create.Owner)

	cmd, err = ParseCommand(Transfer(keys[0], keys[1], 30).Data)
	require.NoError(t, err)
	transfer, ok := cmd.(TransferCommand)
	require.True(t, ok)
	assert.EqualValues(t, 30, transfer.Lamports)

	_, err = ParseCommand(nil)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	cmd, err = ParseCommand(Assign(keys[1], keys[2]).Data)
	require.NoError(t, err)
	assign, ok := cmd.(AssignCommand)
	require.True(t, ok)
	assert.EqualValues(t, keys[2], assign.Owner)

	cmd, err = ParseCommand(Allocate(keys[1], 64).Data)
	require.NoError(t, err)
	allocate, ok := cmd.(AllocateCommand)
	require.True(t, ok)
	assert.EqualValues(t, 64, allocate.Size)

	_, err = ParseCommand(Assign(keys[1], keys[2]).Data[:20])
	assert.Error(t, err)

	nonce := make([]byte, 4)
	binary.LittleEndian.PutUint32(nonce, 4)
	_, err = ParseCommand(nonce)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	_, err = ParseCommand(Transfer(keys[0], keys[1], 30).Data[:8])
	assert.Error(t, err)
}

func TestAssignAndAllocate(t *testing.T) {
	keys := generateKeys(t, 2)

	assign := Assign(keys[0], keys[1])
	assert.Equal(t, ProgramKey[:], []byte(assign.Program))
	require.Len(t, assign.Accounts, 1)
	assert.True(t, assign.Accounts[0].IsSigner)
	assert.True(t, assign.Accounts[0].IsWritable)
	assert.EqualValues(t, keys[0], assign.Accounts[0].PublicKey)
	assert.Equal(t, commandAssign, binary.LittleEndian.Uint32(assign.Data))
	assert.EqualValues(t, keys[1], assign.Data[4:])

	allocate := Allocate(keys[0], 1024)
	require.Len(t, allocate.Accounts, 1)
	assert.True(t, allocate.Accounts[0].IsSigner)
	assert.Equal(t, commandAllocate, binary.LittleEndian.Uint32(allocate.Data))
	assert.EqualValues(t, 1024, binary.LittleEndian.Uint64(allocate.Data[4:]))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "account does not have enough SOL to perform the operation", ErrorMessage(ErrResultWithNegativeLamports))
	assert.Equal(t, solana.CustomError(99).Error(), ErrorMessage(99))
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}
