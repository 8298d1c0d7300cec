package donation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/testutil"
)

func TestGetAddresses(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)

	store, storeBump, err := GetStoreAddress(&GetStoreAddressArgs{Owner: keys[0]})
	require.NoError(t, err)

	userStore, userStoreBump, err := GetUserStoreAddress(&GetUserStoreAddressArgs{User: keys[0]})
	require.NoError(t, err)

	// Tags keep the two record kinds apart for the same key
	assert.NotEqual(t, store, userStore)

	// Derivations are deterministic, and the bump reproduces the address
	again, againBump, err := GetStoreAddress(&GetStoreAddressArgs{Owner: keys[0]})
	require.NoError(t, err)
	assert.Equal(t, store, again)
	assert.Equal(t, storeBump, againBump)

	derived, err := solana.CreateProgramAddress(PROGRAM_ID, StorePrefix, keys[0], []byte{storeBump})
	require.NoError(t, err)
	assert.EqualValues(t, store, derived)

	derived, err = solana.CreateProgramAddress(PROGRAM_ID, UserStorePrefix, keys[0], []byte{userStoreBump})
	require.NoError(t, err)
	assert.EqualValues(t, userStore, derived)

	other, _, err := GetStoreAddress(&GetStoreAddressArgs{Owner: keys[1]})
	require.NoError(t, err)
	assert.NotEqual(t, store, other)
}
