package donation

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/ledger/account/memory"
	"github.com/code-payments/donation-ledger/pkg/ledger/constraint"
	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/system"
	"github.com/code-payments/donation-ledger/pkg/testutil"
)

const testFunding = runtime.LamportsPerSol

type testEnv struct {
	ctx      context.Context
	bank     *runtime.Bank
	accounts account.Store
}

func setup(t *testing.T) testEnv {
	ctx := context.Background()
	accounts := memory.New()

	// Fees are disabled so balance deltas are exactly the transferred amounts
	bank, err := runtime.New(ctx, accounts, runtime.WithOverrides(&runtime.Overrides{}), NewProgram())
	require.NoError(t, err)

	return testEnv{
		ctx:      ctx,
		bank:     bank,
		accounts: accounts,
	}
}

func (e testEnv) fund(t *testing.T, lamports uint64) ed25519.PrivateKey {
	key := testutil.GenerateSolanaKeypair(t)
	_, err := e.bank.Airdrop(e.ctx, testutil.PublicKey(key), lamports)
	require.NoError(t, err)
	return key
}

func (e testEnv) send(t *testing.T, signers []ed25519.PrivateKey, instructions ...solana.Instruction) *runtime.Result {
	blockhash, _ := e.bank.LatestBlockhash(e.ctx)
	txn := testutil.NewSignedTransaction(t, blockhash, signers, instructions...)

	result, err := e.bank.ProcessTransaction(e.ctx, txn)
	require.NoError(t, err)
	return result
}

func (e testEnv) balance(t *testing.T, key ed25519.PublicKey) uint64 {
	balance, err := e.bank.GetBalance(e.ctx, key)
	require.NoError(t, err)
	return balance
}

func (e testEnv) data(t *testing.T, key ed25519.PublicKey) []byte {
	record, err := e.bank.GetAccount(e.ctx, key)
	require.NoError(t, err)
	return record.Data
}

func (e testEnv) store(t *testing.T, owner ed25519.PublicKey) *StoreAccount {
	var store StoreAccount
	require.NoError(t, store.Unmarshal(e.data(t, storeAddress(t, owner))))
	return &store
}

func (e testEnv) userStore(t *testing.T, user ed25519.PublicKey) *UserStoreAccount {
	var userStore UserStoreAccount
	require.NoError(t, userStore.Unmarshal(e.data(t, userStoreAddress(t, user))))
	return &userStore
}

// overwrite replaces the data of an existing account in place
func (e testEnv) overwrite(t *testing.T, key ed25519.PublicKey, data []byte) {
	record, err := e.bank.GetAccount(e.ctx, key)
	require.NoError(t, err)

	copy(record.Data, data)
	require.NoError(t, e.accounts.Commit(e.ctx, e.bank.Slot(), record))
}

func (e testEnv) initialize(t *testing.T, owner ed25519.PrivateKey, bank ed25519.PublicKey) *runtime.Result {
	return e.send(t, []ed25519.PrivateKey{owner}, NewInitializeInstruction(
		&InitializeInstructionAccounts{
			Owner: testutil.PublicKey(owner),
			Bank:  bank,
			Store: storeAddress(t, testutil.PublicKey(owner)),
		},
		&InitializeInstructionArgs{},
	))
}

func (e testEnv) initializeUser(t *testing.T, user ed25519.PrivateKey, owner, bank ed25519.PublicKey) *runtime.Result {
	return e.send(t, []ed25519.PrivateKey{user}, NewInitializeUserInstruction(
		&InitializeUserInstructionAccounts{
			User:      testutil.PublicKey(user),
			UserStore: userStoreAddress(t, testutil.PublicKey(user)),
			Bank:      bank,
			Store:     storeAddress(t, owner),
		},
		&InitializeUserInstructionArgs{},
	))
}

func donateInstruction(t *testing.T, user, owner, bank ed25519.PublicKey, lamports uint64) solana.Instruction {
	return NewDonateInstruction(
		&DonateInstructionAccounts{
			FromUser:  user,
			Bank:      bank,
			Store:     storeAddress(t, owner),
			UserStore: userStoreAddress(t, user),
		},
		&DonateInstructionArgs{Lamports: lamports},
	)
}

func (e testEnv) donate(t *testing.T, user ed25519.PrivateKey, owner, bank ed25519.PublicKey, lamports uint64) *runtime.Result {
	return e.send(t, []ed25519.PrivateKey{user}, donateInstruction(t, testutil.PublicKey(user), owner, bank, lamports))
}

func withdrawInstruction(t *testing.T, bank, owner ed25519.PublicKey, lamports uint64) solana.Instruction {
	return NewWithdrawInstruction(
		&WithdrawInstructionAccounts{
			Bank:  bank,
			Owner: owner,
			Store: storeAddress(t, owner),
		},
		&WithdrawInstructionArgs{Lamports: lamports},
	)
}

func storeAddress(t *testing.T, owner ed25519.PublicKey) ed25519.PublicKey {
	address, _, err := GetStoreAddress(&GetStoreAddressArgs{Owner: owner})
	require.NoError(t, err)
	return address
}

func userStoreAddress(t *testing.T, user ed25519.PublicKey) ed25519.PublicKey {
	address, _, err := GetUserStoreAddress(&GetUserStoreAddressArgs{User: user})
	require.NoError(t, err)
	return address
}

func requireProgramErr(t *testing.T, result *runtime.Result, code solana.CustomError, class ErrorClass) {
	require.NotNil(t, result.Err)
	require.NotNil(t, result.Err.InstructionError())
	require.NotNil(t, result.Err.InstructionError().CustomError(), result.Err.Error())
	assert.Equal(t, code, *result.Err.InstructionError().CustomError())
	assert.Equal(t, class, GetErrorClass(result.Err))
}

func hasLog(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// snapshot captures the data of the provided accounts
func (e testEnv) snapshot(t *testing.T, keys ...ed25519.PublicKey) [][]byte {
	snapshot := make([][]byte, len(keys))
	for i, key := range keys {
		snapshot[i] = append([]byte{}, e.data(t, key)...)
	}
	return snapshot
}

func TestProgram_Scenario(t *testing.T) {
	env := setup(t)

	ownerKey := env.fund(t, testFunding)
	bankKey := testutil.GenerateSolanaKeypair(t)
	owner, bank := testutil.PublicKey(ownerKey), testutil.PublicKey(bankKey)

	// initialize(owner=A, bank=B)
	result := env.initialize(t, ownerKey, bank)
	require.Nil(t, result.Err, result.Logs)
	assert.True(t, hasLog(result.Logs, "Program log: Instruction: Initialize"))

	storeKey, storeBump, err := GetStoreAddress(&GetStoreAddressArgs{Owner: owner})
	require.NoError(t, err)

	record, err := env.bank.GetAccount(env.ctx, storeKey)
	require.NoError(t, err)
	assert.EqualValues(t, PROGRAM_ID, record.Owner)
	assert.Len(t, record.Data, AccountSpace)
	assert.Equal(t, env.bank.MinimumBalanceForRentExemption(AccountSpace), record.Lamports)
	assert.Equal(t, testFunding-record.Lamports, env.balance(t, owner))

	store := env.store(t, owner)
	assert.EqualValues(t, owner, store.Owner)
	assert.EqualValues(t, bank, store.Bank)
	assert.Empty(t, store.Users)
	assert.Equal(t, storeBump, store.Bump)

	// initialize_user(user=U) against Store@A
	userKey := env.fund(t, testFunding)
	user := testutil.PublicKey(userKey)

	result = env.initializeUser(t, userKey, owner, bank)
	require.Nil(t, result.Err, result.Logs)

	_, userStoreBump, err := GetUserStoreAddress(&GetUserStoreAddressArgs{User: user})
	require.NoError(t, err)

	userStore := env.userStore(t, user)
	assert.EqualValues(t, user, userStore.User)
	assert.EqualValues(t, bank, userStore.Bank)
	assert.Empty(t, userStore.Donations)
	assert.Equal(t, userStoreBump, userStore.Bump)

	// donate(1_000_000) by U
	userBalance := env.balance(t, user)
	result = env.donate(t, userKey, owner, bank, 1_000_000)
	require.Nil(t, result.Err, result.Logs)
	assert.True(t, hasLog(result.Logs, "Program log: Instruction: Donate"))

	assert.Equal(t, []ed25519.PublicKey{user}, env.store(t, owner).Users)
	assert.Equal(t, []uint64{1_000_000}, env.userStore(t, user).Donations)
	assert.EqualValues(t, 1_000_000, env.balance(t, bank))
	assert.Equal(t, userBalance-1_000_000, env.balance(t, user))

	// A second donation by U leaves the directory unchanged
	result = env.donate(t, userKey, owner, bank, 500_000)
	require.Nil(t, result.Err, result.Logs)

	assert.Equal(t, []ed25519.PublicKey{user}, env.store(t, owner).Users)
	assert.Equal(t, []uint64{1_000_000, 500_000}, env.userStore(t, user).Donations)
	assert.EqualValues(t, 1_500_000, env.balance(t, bank))

	// A second user V joins and donates
	otherKey := env.fund(t, testFunding)
	other := testutil.PublicKey(otherKey)

	result = env.initializeUser(t, otherKey, owner, bank)
	require.Nil(t, result.Err, result.Logs)
	result = env.donate(t, otherKey, owner, bank, 2_000_000)
	require.Nil(t, result.Err, result.Logs)

	assert.Equal(t, []ed25519.PublicKey{user, other}, env.store(t, owner).Users)
	assert.Equal(t, []uint64{2_000_000}, env.userStore(t, other).Donations)
	assert.EqualValues(t, 3_500_000, env.balance(t, bank))

	// withdraw(3_500_000) signed by B pays out to A
	records := env.snapshot(t, storeKey, userStoreAddress(t, user), userStoreAddress(t, other))
	ownerBalance := env.balance(t, owner)

	result = env.send(t, []ed25519.PrivateKey{bankKey}, withdrawInstruction(t, bank, owner, 3_500_000))
	require.Nil(t, result.Err, result.Logs)
	assert.True(t, hasLog(result.Logs, "Program log: Instruction: Withdraw"))

	assert.Zero(t, env.balance(t, bank))
	assert.Equal(t, ownerBalance+3_500_000, env.balance(t, owner))
	assert.Equal(t, records, env.snapshot(t, storeKey, userStoreAddress(t, user), userStoreAddress(t, other)))
}

func TestProgram_InitializeTwice(t *testing.T) {
	env := setup(t)

	ownerKey := env.fund(t, testFunding)
	owner := testutil.PublicKey(ownerKey)
	bank := testutil.GenerateSolanaKeys(t, 2)

	require.Nil(t, env.initialize(t, ownerKey, bank[0]).Err)
	before := env.snapshot(t, storeAddress(t, owner))

	// A different bank changes the transaction, so it isn't a duplicate
	result := env.initialize(t, ownerKey, bank[1])
	requireProgramErr(t, result, solana.CustomError(constraint.ErrAccountAlreadyInitialized), ClassInitialization)
	assert.True(t, hasLog(result.Logs, "Error caused by account: store. Error Code: AccountAlreadyInitialized. Error Number: 3100."))

	assert.Equal(t, before, env.snapshot(t, storeAddress(t, owner)))
	assert.EqualValues(t, bank[0], env.store(t, owner).Bank)
}

func TestProgram_InitializePrefundedAddresses(t *testing.T) {
	env := setup(t)

	rentExempt := env.bank.MinimumBalanceForRentExemption(AccountSpace)

	ownerKey := env.fund(t, testFunding)
	userKey := env.fund(t, testFunding)
	otherKey := env.fund(t, testFunding)
	owner, user := testutil.PublicKey(ownerKey), testutil.PublicKey(userKey)
	bank := testutil.GenerateSolanaKeys(t, 1)[0]

	// A third party sends lamports to both addresses before they exist
	result := env.send(
		t,
		[]ed25519.PrivateKey{otherKey},
		system.Transfer(testutil.PublicKey(otherKey), storeAddress(t, owner), 1),
		system.Transfer(testutil.PublicKey(otherKey), userStoreAddress(t, user), rentExempt+5),
	)
	require.Nil(t, result.Err, result.Logs)

	result = env.initialize(t, ownerKey, bank)
	require.Nil(t, result.Err, result.Logs)

	record, err := env.bank.GetAccount(env.ctx, storeAddress(t, owner))
	require.NoError(t, err)
	assert.EqualValues(t, PROGRAM_ID, record.Owner)
	assert.Len(t, record.Data, AccountSpace)
	assert.Equal(t, rentExempt, record.Lamports)
	assert.Equal(t, testFunding-(rentExempt-1), env.balance(t, owner))

	_, storeBump, err := GetStoreAddress(&GetStoreAddressArgs{Owner: owner})
	require.NoError(t, err)
	store := env.store(t, owner)
	assert.EqualValues(t, owner, store.Owner)
	assert.EqualValues(t, bank, store.Bank)
	assert.Equal(t, storeBump, store.Bump)

	// Balances above the rent exempt minimum are kept without a top up
	result = env.initializeUser(t, userKey, owner, bank)
	require.Nil(t, result.Err, result.Logs)

	record, err = env.bank.GetAccount(env.ctx, userStoreAddress(t, user))
	require.NoError(t, err)
	assert.EqualValues(t, PROGRAM_ID, record.Owner)
	assert.Len(t, record.Data, AccountSpace)
	assert.Equal(t, rentExempt+5, record.Lamports)
	assert.EqualValues(t, testFunding, env.balance(t, user))
	assert.EqualValues(t, user, env.userStore(t, user).User)

	// The prefunded accounts work like any other
	result = env.donate(t, userKey, owner, bank, 1_000)
	require.Nil(t, result.Err, result.Logs)
	assert.Equal(t, []ed25519.PublicKey{user}, env.store(t, owner).Users)
	assert.Equal(t, []uint64{1_000}, env.userStore(t, user).Donations)

	// Once initialized, the addresses can't be initialized again
	result = env.initialize(t, ownerKey, testutil.GenerateSolanaKeys(t, 1)[0])
	requireProgramErr(t, result, solana.CustomError(constraint.ErrAccountAlreadyInitialized), ClassInitialization)
}

func TestProgram_InitializeUser_Constraints(t *testing.T) {
	env := setup(t)

	ownerKey := env.fund(t, testFunding)
	owner := testutil.PublicKey(ownerKey)
	keys := testutil.GenerateSolanaKeys(t, 2)
	bank, otherBank := keys[0], keys[1]

	userKey := env.fund(t, testFunding)
	user := testutil.PublicKey(userKey)

	// No store exists for the owner yet
	result := env.initializeUser(t, userKey, owner, bank)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrAccountNotInitialized), ClassInitialization)

	require.Nil(t, env.initialize(t, ownerKey, bank).Err)

	// The bank must be the one the store was initialized with
	result = env.initializeUser(t, userKey, owner, otherBank)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintAddress), ClassConstraint)

	// The user store must be derived from the signing user
	ix := NewInitializeUserInstruction(
		&InitializeUserInstructionAccounts{
			User:      user,
			UserStore: userStoreAddress(t, owner),
			Bank:      bank,
			Store:     storeAddress(t, owner),
		},
		&InitializeUserInstructionArgs{},
	)
	result = env.send(t, []ed25519.PrivateKey{userKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintSeeds), ClassConstraint)

	_, err := env.bank.GetAccount(env.ctx, userStoreAddress(t, user))
	assert.Equal(t, account.ErrAccountNotFound, err)
	assert.EqualValues(t, testFunding, env.balance(t, user))

	// The rejected transaction was recorded, so retry it in a later slot
	env.bank.AdvanceSlot(env.ctx)
	require.Nil(t, env.initializeUser(t, userKey, owner, bank).Err)

	// A user store can only be initialized once
	otherOwnerKey := env.fund(t, testFunding)
	require.Nil(t, env.initialize(t, otherOwnerKey, bank).Err)
	result = env.initializeUser(t, userKey, testutil.PublicKey(otherOwnerKey), bank)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrAccountAlreadyInitialized), ClassInitialization)
}

func TestProgram_DonateRejections(t *testing.T) {
	env := setup(t)

	ownerKey := env.fund(t, testFunding)
	owner := testutil.PublicKey(ownerKey)
	bank := testutil.GenerateSolanaKeys(t, 1)[0]
	require.Nil(t, env.initialize(t, ownerKey, bank).Err)

	rent := env.bank.MinimumBalanceForRentExemption(AccountSpace)
	userKey := env.fund(t, rent+1_000_000)
	user := testutil.PublicKey(userKey)
	require.Nil(t, env.initializeUser(t, userKey, owner, bank).Err)

	unchanged := func() {
		assert.Empty(t, env.store(t, owner).Users)
		assert.Empty(t, env.userStore(t, user).Donations)
		assert.Zero(t, env.balance(t, bank))
		assert.EqualValues(t, 1_000_000, env.balance(t, user))
	}

	// Zero lamports
	result := env.donate(t, userKey, owner, bank, 0)
	requireProgramErr(t, result, solana.CustomError(ErrorCodeInvalidLamports), ClassInvalidArgument)
	unchanged()

	// More than the user holds
	result = env.donate(t, userKey, owner, bank, 1_000_001)
	requireProgramErr(t, result, solana.CustomError(ErrorCodeTransferFailed), ClassTransferFailure)
	assert.True(t, hasLog(result.Logs, "Program log: Transfer failed"))
	unchanged()

	// A bank other than the store's
	otherBank := testutil.GenerateSolanaKeys(t, 1)[0]
	result = env.donate(t, userKey, owner, otherBank, 1)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintAddress), ClassConstraint)
	assert.True(t, hasLog(result.Logs, "Error caused by account: bank."))
	unchanged()

	// Donations are signed by the user store's user
	otherKey := env.fund(t, rent+1_000_000)
	require.Nil(t, env.initializeUser(t, otherKey, owner, bank).Err)

	ix := donateInstruction(t, testutil.PublicKey(otherKey), owner, bank, 2)
	ix.Accounts[3].PublicKey = userStoreAddress(t, user)
	result = env.send(t, []ed25519.PrivateKey{otherKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintHasOne), ClassConstraint)
	unchanged()

	// The donor must sign
	ix = donateInstruction(t, user, owner, bank, 3)
	ix.Accounts[0].IsSigner = false
	result = env.send(t, []ed25519.PrivateKey{otherKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintSigner), ClassConstraint)
	unchanged()

	// The store must be the one derived from its owner
	ix = donateInstruction(t, user, owner, bank, 4)
	ix.Accounts[2].PublicKey = userStoreAddress(t, testutil.PublicKey(otherKey))
	result = env.send(t, []ed25519.PrivateKey{userKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrAccountDiscriminatorMismatch), ClassInitialization)
	unchanged()
}

func TestProgram_DonateBankMismatch(t *testing.T) {
	env := setup(t)

	banks := testutil.GenerateSolanaKeys(t, 2)

	firstOwnerKey := env.fund(t, testFunding)
	firstOwner := testutil.PublicKey(firstOwnerKey)
	require.Nil(t, env.initialize(t, firstOwnerKey, banks[0]).Err)

	secondOwnerKey := env.fund(t, testFunding)
	secondOwner := testutil.PublicKey(secondOwnerKey)
	require.Nil(t, env.initialize(t, secondOwnerKey, banks[1]).Err)

	userKey := env.fund(t, testFunding)
	user := testutil.PublicKey(userKey)
	require.Nil(t, env.initializeUser(t, userKey, firstOwner, banks[0]).Err)

	// The user store is bound to the first store's bank
	result := env.donate(t, userKey, secondOwner, banks[1], 1_000)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintRaw), ClassConstraint)
	assert.True(t, hasLog(result.Logs, "Constraint user_store.bank == store.bank failed"))

	assert.Empty(t, env.store(t, secondOwner).Users)
	assert.Empty(t, env.userStore(t, user).Donations)
	assert.Zero(t, env.balance(t, banks[1]))
}

func TestProgram_DonateOverflow(t *testing.T) {
	env := setup(t)

	ownerKey := env.fund(t, testFunding)
	owner := testutil.PublicKey(ownerKey)
	bank := testutil.GenerateSolanaKeys(t, 1)[0]
	require.Nil(t, env.initialize(t, ownerKey, bank).Err)

	userKey := env.fund(t, testFunding)
	user := testutil.PublicKey(userKey)
	require.Nil(t, env.initializeUser(t, userKey, owner, bank).Err)

	// Fill the user store to capacity
	userStore := env.userStore(t, user)
	for len(userStore.Donations) < UserStoreDonationCapacity(AccountSpace) {
		userStore.Donations = append(userStore.Donations, 1)
	}
	env.overwrite(t, userStoreAddress(t, user), userStore.Marshal())

	userBalance := env.balance(t, user)
	result := env.donate(t, userKey, owner, bank, 1_000)
	requireProgramErr(t, result, solana.CustomError(ErrorCodeSerializationOverflow), ClassSerializationOverflow)

	// The transfer is reverted along with the rest of the instruction
	assert.Equal(t, userBalance, env.balance(t, user))
	assert.Zero(t, env.balance(t, bank))
	assert.Empty(t, env.store(t, owner).Users)
	assert.Len(t, env.userStore(t, user).Donations, UserStoreDonationCapacity(AccountSpace))

	// Fill the store's directory to capacity, then donate as a new user
	store := env.store(t, owner)
	for len(store.Users) < StoreUserCapacity(AccountSpace) {
		store.Users = append(store.Users, testutil.GenerateSolanaKeys(t, 1)[0])
	}
	env.overwrite(t, storeAddress(t, owner), store.Marshal())

	otherKey := env.fund(t, testFunding)
	require.Nil(t, env.initializeUser(t, otherKey, owner, bank).Err)

	result = env.donate(t, otherKey, owner, bank, 2_000)
	requireProgramErr(t, result, solana.CustomError(ErrorCodeSerializationOverflow), ClassSerializationOverflow)
	assert.Empty(t, env.userStore(t, testutil.PublicKey(otherKey)).Donations)
	assert.Zero(t, env.balance(t, bank))
}

func TestProgram_DonationHistory(t *testing.T) {
	env := setup(t)

	ownerKey := env.fund(t, testFunding)
	owner := testutil.PublicKey(ownerKey)
	bank := testutil.GenerateSolanaKeys(t, 1)[0]
	require.Nil(t, env.initialize(t, ownerKey, bank).Err)

	userKey := env.fund(t, testFunding)
	user := testutil.PublicKey(userKey)
	require.Nil(t, env.initializeUser(t, userKey, owner, bank).Err)

	amounts := []uint64{10, 2_000, 300, 40_000, 5}
	var transferred []uint64
	for _, amount := range amounts {
		before := env.balance(t, bank)

		result := env.donate(t, userKey, owner, bank, amount)
		require.Nil(t, result.Err, result.Logs)

		assert.Equal(t, amount, env.balance(t, bank)-before)
		transferred = append(transferred, amount)
	}

	userStore := env.userStore(t, user)
	assert.Equal(t, amounts, userStore.Donations)
	assert.Equal(t, []ed25519.PublicKey{user}, env.store(t, owner).Users)

	for n := 0; n <= len(amounts); n++ {
		var expected uint64
		for _, amount := range transferred[len(transferred)-n:] {
			expected += amount
		}
		assert.Equal(t, expected, userStore.Total(n))
	}

	// Identity fields never change once set
	assert.EqualValues(t, user, userStore.User)
	assert.EqualValues(t, bank, userStore.Bank)
	assert.EqualValues(t, owner, env.store(t, owner).Owner)
	assert.EqualValues(t, bank, env.store(t, owner).Bank)
}

func TestProgram_WithdrawRejections(t *testing.T) {
	env := setup(t)

	ownerKey := env.fund(t, testFunding)
	owner := testutil.PublicKey(ownerKey)
	bankKey := env.fund(t, 1_000_000)
	bank := testutil.PublicKey(bankKey)
	require.Nil(t, env.initialize(t, ownerKey, bank).Err)

	ownerBalance := env.balance(t, owner)
	unchanged := func() {
		assert.EqualValues(t, 1_000_000, env.balance(t, bank))
		assert.Equal(t, ownerBalance, env.balance(t, owner))
	}

	// Not signed by the bank
	ix := withdrawInstruction(t, bank, owner, 1_000)
	ix.Accounts[0].IsSigner = false
	result := env.send(t, []ed25519.PrivateKey{ownerKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintSigner), ClassConstraint)
	assert.True(t, hasLog(result.Logs, "Error caused by account: bank. Error Code: ConstraintSigner. Error Number: 2002."))
	unchanged()

	// Signed by a bank other than the store's
	otherBankKey := env.fund(t, 1_000_000)
	result = env.send(t, []ed25519.PrivateKey{otherBankKey}, withdrawInstruction(t, testutil.PublicKey(otherBankKey), owner, 1_001))
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintAddress), ClassConstraint)
	unchanged()

	// Paid out to someone other than the owner
	ix = withdrawInstruction(t, bank, owner, 1_002)
	ix.Accounts[1].PublicKey = testutil.PublicKey(otherBankKey)
	result = env.send(t, []ed25519.PrivateKey{bankKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrConstraintAddress), ClassConstraint)
	assert.True(t, hasLog(result.Logs, "Error caused by account: owner."))
	unchanged()

	// Zero lamports
	result = env.send(t, []ed25519.PrivateKey{bankKey}, withdrawInstruction(t, bank, owner, 0))
	requireProgramErr(t, result, solana.CustomError(ErrorCodeInvalidLamports), ClassInvalidArgument)
	unchanged()

	// More than the bank holds
	result = env.send(t, []ed25519.PrivateKey{bankKey}, withdrawInstruction(t, bank, owner, 1_000_001))
	requireProgramErr(t, result, solana.CustomError(ErrorCodeInsufficientBankBalance), ClassInvalidArgument)
	unchanged()

	// The full balance can be withdrawn
	result = env.send(t, []ed25519.PrivateKey{bankKey}, withdrawInstruction(t, bank, owner, 1_000_000))
	require.Nil(t, result.Err, result.Logs)
	assert.Zero(t, env.balance(t, bank))
	assert.Equal(t, ownerBalance+1_000_000, env.balance(t, owner))
}

func TestProgram_Dispatch(t *testing.T) {
	env := setup(t)

	payerKey := env.fund(t, testFunding)
	payer := testutil.PublicKey(payerKey)
	bank := testutil.GenerateSolanaKeys(t, 1)[0]

	// Unknown discriminator
	result := env.send(t, []ed25519.PrivateKey{payerKey}, solana.NewInstruction(PROGRAM_ID, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	requireProgramErr(t, result, solana.CustomError(constraint.ErrInstructionFallbackNotFound), ClassInvalidArgument)
	assert.True(t, hasLog(result.Logs, "Error Code: InstructionFallbackNotFound. Error Number: 101."))

	// Too short to carry a discriminator
	result = env.send(t, []ed25519.PrivateKey{payerKey}, solana.NewInstruction(PROGRAM_ID, []byte{0xaf}))
	requireProgramErr(t, result, solana.CustomError(constraint.ErrInstructionFallbackNotFound), ClassInvalidArgument)

	// Trailing bytes
	ix := NewInitializeInstruction(
		&InitializeInstructionAccounts{Owner: payer, Bank: bank, Store: storeAddress(t, payer)},
		&InitializeInstructionArgs{},
	)
	ix.Data = append(ix.Data, 0)
	result = env.send(t, []ed25519.PrivateKey{payerKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrInstructionDidNotDeserialize), ClassInvalidArgument)

	// Truncated arguments
	donate := donateInstruction(t, payer, payer, bank, 1)
	donate.Data = donate.Data[:12]
	result = env.send(t, []ed25519.PrivateKey{payerKey}, donate)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrInstructionDidNotDeserialize), ClassInvalidArgument)

	// Too few accounts
	ix = NewInitializeInstruction(
		&InitializeInstructionAccounts{Owner: payer, Bank: bank, Store: storeAddress(t, payer)},
		&InitializeInstructionArgs{},
	)
	ix.Accounts = ix.Accounts[:2]
	result = env.send(t, []ed25519.PrivateKey{payerKey}, ix)
	requireProgramErr(t, result, solana.CustomError(constraint.ErrAccountNotEnoughKeys), ClassInitialization)

	assert.EqualValues(t, testFunding, env.balance(t, payer))
}
