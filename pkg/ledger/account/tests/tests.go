package tests

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
)

func RunTests(t *testing.T, s account.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s account.Store){
		testRoundTrip,
		testUpdate,
		testDeleteEmpty,
		testGetMany,
		testGetProgramAccounts,
		testCommitAtomicity,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s account.Store) {
	ctx := context.Background()

	address := newKey(t)
	_, err := s.Get(ctx, address)
	assert.Equal(t, account.ErrAccountNotFound, err)

	expected := &account.Record{
		Address:  address,
		Owner:    newKey(t),
		Lamports: 1_000_000,
		Data:     []byte{1, 2, 3},
	}
	require.NoError(t, s.Commit(ctx, 5, expected))
	assert.EqualValues(t, 5, expected.Slot)

	actual, err := s.Get(ctx, address)
	require.NoError(t, err)
	assert.True(t, expected.Equal(actual))
	assert.EqualValues(t, 5, actual.Slot)
	assert.False(t, actual.Executable)

	// Mutating the returned record must not affect the store
	actual.Data[0] = 9
	actual.Lamports = 0
	again, err := s.Get(ctx, address)
	require.NoError(t, err)
	assert.True(t, expected.Equal(again))
}

func testUpdate(t *testing.T, s account.Store) {
	ctx := context.Background()

	record := &account.Record{
		Address:  newKey(t),
		Owner:    newKey(t),
		Lamports: 10,
	}
	require.NoError(t, s.Commit(ctx, 1, record))

	record.Lamports = 20
	record.Owner = newKey(t)
	record.Data = make([]byte, 10240)
	record.Data[10239] = 0xff
	require.NoError(t, s.Commit(ctx, 2, record))

	actual, err := s.Get(ctx, record.Address)
	require.NoError(t, err)
	assert.True(t, record.Equal(actual))
	assert.EqualValues(t, 2, actual.Slot)

	invalid := record.Clone()
	invalid.Lamports = math.MaxUint64
	assert.ErrorIs(t, s.Commit(ctx, 3, &invalid), account.ErrInvalidAccount)

	invalid = record.Clone()
	invalid.Owner = nil
	assert.ErrorIs(t, s.Commit(ctx, 3, &invalid), account.ErrInvalidAccount)
}

func testDeleteEmpty(t *testing.T, s account.Store) {
	ctx := context.Background()

	record := &account.Record{
		Address:  newKey(t),
		Owner:    newKey(t),
		Lamports: 10,
	}
	require.NoError(t, s.Commit(ctx, 1, record))

	record.Lamports = 0
	require.NoError(t, s.Commit(ctx, 2, record))

	_, err := s.Get(ctx, record.Address)
	assert.Equal(t, account.ErrAccountNotFound, err)

	// Deleting an account that was never written is a no-op
	other := &account.Record{Address: newKey(t), Owner: newKey(t)}
	require.NoError(t, s.Commit(ctx, 3, other))
}

func testGetMany(t *testing.T, s account.Store) {
	ctx := context.Background()

	a := &account.Record{Address: newKey(t), Owner: newKey(t), Lamports: 1}
	b := &account.Record{Address: newKey(t), Owner: newKey(t), Lamports: 2}
	missing := newKey(t)
	require.NoError(t, s.Commit(ctx, 1, a, b))

	actual, err := s.GetMany(ctx, b.Address, missing, a.Address)
	require.NoError(t, err)
	require.Len(t, actual, 3)
	assert.True(t, b.Equal(actual[0]))
	assert.Nil(t, actual[1])
	assert.True(t, a.Equal(actual[2]))

	actual, err = s.GetMany(ctx)
	require.NoError(t, err)
	assert.Empty(t, actual)
}

func testGetProgramAccounts(t *testing.T, s account.Store) {
	ctx := context.Background()

	program := newKey(t)
	_, err := s.GetProgramAccounts(ctx, program)
	assert.Equal(t, account.ErrAccountNotFound, err)

	var owned []*account.Record
	for i := 0; i < 5; i++ {
		record := &account.Record{
			Address:  newKey(t),
			Owner:    program,
			Lamports: uint64(i + 1),
			Data:     []byte{byte(i)},
		}
		owned = append(owned, record)
	}
	other := &account.Record{Address: newKey(t), Owner: newKey(t), Lamports: 1}
	require.NoError(t, s.Commit(ctx, 1, append(owned, other)...))

	actual, err := s.GetProgramAccounts(ctx, program)
	require.NoError(t, err)
	require.Len(t, actual, len(owned))
	for i := 1; i < len(actual); i++ {
		assert.Negative(t, bytes.Compare(actual[i-1].Address, actual[i].Address))
	}
	for _, expected := range owned {
		var found bool
		for _, record := range actual {
			if expected.Equal(record) {
				found = true
			}
		}
		assert.True(t, found)
	}

	// Reassigning an account moves it out of the program's set
	owned[0].Owner = other.Owner
	require.NoError(t, s.Commit(ctx, 2, owned[0]))

	actual, err = s.GetProgramAccounts(ctx, program)
	require.NoError(t, err)
	assert.Len(t, actual, len(owned)-1)

	actual, err = s.GetProgramAccounts(ctx, other.Owner)
	require.NoError(t, err)
	assert.Len(t, actual, 2)
}

func testCommitAtomicity(t *testing.T, s account.Store) {
	ctx := context.Background()

	valid := &account.Record{Address: newKey(t), Owner: newKey(t), Lamports: 1}
	invalid := &account.Record{Address: newKey(t), Owner: []byte{1}, Lamports: 1}

	require.Error(t, s.Commit(ctx, 1, valid, invalid))

	_, err := s.Get(ctx, valid.Address)
	assert.Equal(t, account.ErrAccountNotFound, err)
}

func newKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub
}
