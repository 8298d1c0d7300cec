package memo

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

func TestInstruction(t *testing.T) {
	i := Instruction("thanks for the coffee")
	assert.Equal(t, ProgramKey, i.Program)
	assert.Empty(t, i.Accounts)
	assert.Equal(t, "thanks for the coffee", string(i.Data))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte("airdrop:1")))
	assert.NoError(t, Validate(nil))
	assert.Equal(t, ErrInvalidMemo, Validate([]byte{0xff, 0xfe}))
}

func TestDecompile(t *testing.T) {
	tx := solana.NewTransaction(
		make([]byte, 32),
		Instruction("hello, world"),
	)

	i, err := DecompileMemo(tx.Message, 0)
	assert.NoError(t, err)
	assert.Equal(t, "hello, world", string(i.Data))

	_, err = DecompileMemo(tx.Message, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "instruction doesn't exist")

	tx.Message.Accounts[1], _, err = ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = DecompileMemo(tx.Message, 0)
	assert.Error(t, err)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}
