package constraint

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/ledger/account/memory"
	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/memo"
	"github.com/code-payments/donation-ledger/pkg/testutil"
)

var (
	testProgramID       = ed25519.PublicKey(bytes.Repeat([]byte{9}, ed25519.PublicKeySize))
	testRecordPrefix    = []byte("record")
	testDiscriminator   = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	errInvalidTestBytes = errors.New("invalid test record")
)

const (
	testRecordSize = 8 + 32 + 32 + 1

	commandInit byte = iota
	commandUse
	commandCorrupt
)

type testRecord struct {
	Authority ed25519.PublicKey
	Target    ed25519.PublicKey
	Bump      uint8
}

func (r *testRecord) Discriminator() []byte {
	return testDiscriminator
}

func (r *testRecord) Marshal() []byte {
	data := make([]byte, testRecordSize)
	copy(data, testDiscriminator)
	copy(data[8:], r.Authority)
	copy(data[40:], r.Target)
	data[72] = r.Bump
	return data
}

func (r *testRecord) Unmarshal(data []byte) error {
	if len(data) < testRecordSize {
		return errInvalidTestBytes
	}
	r.Authority = append(ed25519.PublicKey{}, data[8:40]...)
	r.Target = append(ed25519.PublicKey{}, data[40:72]...)
	r.Bump = data[72]
	return nil
}

func (r *testRecord) Key(field string) (ed25519.PublicKey, bool) {
	switch field {
	case "authority":
		return r.Authority, true
	case "target":
		return r.Target, true
	default:
		return nil, false
	}
}

func (r *testRecord) GetBump() uint8 {
	return r.Bump
}

var initSet = Set{
	Accounts: []Account{
		{Name: "payer", Signer: true, Mut: true},
		{
			Name:  "record",
			Init:  &Init{Payer: "payer", Space: testRecordSize},
			Seeds: &Seeds{Prefix: testRecordPrefix, Key: KeyRef{Account: "payer"}},
		},
		{Name: "target"},
		{Name: "system_program", Program: runtime.SystemProgramID},
	},
}

var useSet = Set{
	Accounts: []Account{
		{Name: "authority", Signer: true},
		{
			Name:    "record",
			Mut:     true,
			Seeds:   &Seeds{Prefix: testRecordPrefix, Key: KeyRef{Account: "record", Field: "authority"}},
			HasOne:  []HasOne{{Field: "authority", Account: "authority"}},
			Decoder: func() Record { return &testRecord{} },
		},
		{Name: "target", Address: &KeyRef{Account: "record", Field: "target"}},
	},
	Predicates: []Predicate{
		{
			Name: "flag is unset",
			Check: func(ctx *Context) bool {
				return ctx.Invoke.Data[1] == 0
			},
		},
	},
}

type testProgram struct{}

func (testProgram) ID() ed25519.PublicKey {
	return testProgramID
}

func (testProgram) Process(ictx *runtime.InvokeContext) error {
	switch ictx.Data[0] {
	case commandInit:
		ctx, err := Check(initSet, ictx)
		if err != nil {
			return err
		}

		record := &testRecord{
			Authority: ctx.Account("payer").Key,
			Target:    ctx.Account("target").Key,
			Bump:      ctx.Bump("record"),
		}
		copy(ctx.Account("record").Data(), record.Marshal())
		return nil
	case commandUse:
		ctx, err := Check(useSet, ictx)
		if err != nil {
			return err
		}
		if ctx.Record("record").(*testRecord).Bump != ctx.Bump("record") {
			return errInvalidTestBytes
		}
		return nil
	case commandCorrupt:
		ictx.Accounts[0].Data()[0] ^= 0xff
		return nil
	default:
		return ErrInstructionFallbackNotFound
	}
}

type testEnv struct {
	ctx  context.Context
	bank *runtime.Bank
}

func setup(t *testing.T) testEnv {
	ctx := context.Background()
	bank, err := runtime.New(ctx, memory.New(), runtime.WithOverrides(&runtime.Overrides{}), testProgram{})
	require.NoError(t, err)
	return testEnv{ctx: ctx, bank: bank}
}

func (e testEnv) fund(t *testing.T) ed25519.PrivateKey {
	key := testutil.GenerateSolanaKeypair(t)
	_, err := e.bank.Airdrop(e.ctx, testutil.PublicKey(key), runtime.LamportsPerSol)
	require.NoError(t, err)
	return key
}

func (e testEnv) send(t *testing.T, signers []ed25519.PrivateKey, instruction solana.Instruction) *runtime.Result {
	blockhash, _ := e.bank.LatestBlockhash(e.ctx)
	result, err := e.bank.ProcessTransaction(e.ctx, testutil.NewSignedTransaction(t, blockhash, signers, instruction))
	require.NoError(t, err)
	return result
}

func recordAddress(t *testing.T, authority ed25519.PublicKey) ed25519.PublicKey {
	address, err := solana.FindProgramAddress(testProgramID, testRecordPrefix, authority)
	require.NoError(t, err)
	return address
}

func initInstruction(payer, record, target, system ed25519.PublicKey, payerSigns bool) solana.Instruction {
	return solana.NewInstruction(
		testProgramID,
		[]byte{commandInit},
		solana.NewAccountMeta(payer, payerSigns),
		solana.NewAccountMeta(record, false),
		solana.NewReadonlyAccountMeta(target, false),
		solana.NewReadonlyAccountMeta(system, false),
	)
}

func useInstruction(authority, record, target ed25519.PublicKey, flag byte, authoritySigns, recordWritable bool) solana.Instruction {
	recordMeta := solana.NewAccountMeta(record, false)
	if !recordWritable {
		recordMeta = solana.NewReadonlyAccountMeta(record, false)
	}

	return solana.NewInstruction(
		testProgramID,
		[]byte{commandUse, flag},
		solana.NewReadonlyAccountMeta(authority, authoritySigns),
		recordMeta,
		solana.NewReadonlyAccountMeta(target, false),
	)
}

func requireCode(t *testing.T, result *runtime.Result, code ErrorCode) {
	require.NotNil(t, result.Err)
	require.NotNil(t, result.Err.InstructionError())
	custom := result.Err.InstructionError().CustomError()
	require.NotNil(t, custom, result.Err.Error())
	assert.Equal(t, code.CustomErrorCode(), *custom)
}

func TestCheck_Init(t *testing.T) {
	env := setup(t)

	payer := env.fund(t)
	target := testutil.GenerateSolanaKeys(t, 1)[0]
	record := recordAddress(t, testutil.PublicKey(payer))

	result := env.send(t, []ed25519.PrivateKey{payer}, initInstruction(testutil.PublicKey(payer), record, target, runtime.SystemProgramID, true))
	require.Nil(t, result.Err, result.Logs)

	stored, err := env.bank.GetAccount(env.ctx, record)
	require.NoError(t, err)
	assert.EqualValues(t, testProgramID, stored.Owner)
	assert.EqualValues(t, env.bank.MinimumBalanceForRentExemption(testRecordSize), stored.Lamports)

	var decoded testRecord
	require.NoError(t, decoded.Unmarshal(stored.Data))
	assert.EqualValues(t, testutil.PublicKey(payer), decoded.Authority)
	assert.EqualValues(t, target, decoded.Target)

	_, bump, err := solana.FindProgramAddressAndBump(testProgramID, testRecordPrefix, testutil.PublicKey(payer))
	require.NoError(t, err)
	assert.Equal(t, bump, decoded.Bump)

	// Re-initializing fails and leaves the record untouched
	result = env.send(t, []ed25519.PrivateKey{payer}, initInstruction(testutil.PublicKey(payer), record, testutil.GenerateSolanaKeys(t, 1)[0], runtime.SystemProgramID, true))
	requireCode(t, result, ErrAccountAlreadyInitialized)
	assert.Contains(t, result.Logs, "Program log: Error caused by account: record. Error Code: AccountAlreadyInitialized. Error Number: 3100. Error Message: The account is already initialized.")

	reloaded, err := env.bank.GetAccount(env.ctx, record)
	require.NoError(t, err)
	assert.Equal(t, stored.Data, reloaded.Data)
}

func TestCheck_InitFailures(t *testing.T) {
	env := setup(t)

	payer := env.fund(t)
	other := env.fund(t)
	target := testutil.GenerateSolanaKeys(t, 1)[0]
	record := recordAddress(t, testutil.PublicKey(payer))

	for _, tc := range []struct {
		name        string
		signers     []ed25519.PrivateKey
		instruction solana.Instruction
		expected    ErrorCode
	}{
		{
			name:        "payer not signing",
			signers:     []ed25519.PrivateKey{other},
			instruction: initInstruction(testutil.PublicKey(payer), record, target, runtime.SystemProgramID, false),
			expected:    ErrConstraintSigner,
		},
		{
			name:        "address not derived from payer",
			signers:     []ed25519.PrivateKey{payer},
			instruction: initInstruction(testutil.PublicKey(payer), recordAddress(t, testutil.PublicKey(other)), target, runtime.SystemProgramID, true),
			expected:    ErrConstraintSeeds,
		},
		{
			name:        "wrong system program",
			signers:     []ed25519.PrivateKey{payer},
			instruction: initInstruction(testutil.PublicKey(payer), record, target, memo.ProgramKey, true),
			expected:    ErrConstraintProgram,
		},
		{
			name:    "not enough accounts",
			signers: []ed25519.PrivateKey{payer},
			instruction: solana.NewInstruction(
				testProgramID,
				[]byte{commandInit},
				solana.NewAccountMeta(testutil.PublicKey(payer), true),
			),
			expected: ErrAccountNotEnoughKeys,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := env.send(t, tc.signers, tc.instruction)
			requireCode(t, result, tc.expected)
		})
	}

	_, err := env.bank.GetAccount(env.ctx, record)
	assert.Error(t, err)
}

func TestCheck_InitFundedAddress(t *testing.T) {
	env := setup(t)

	payer := env.fund(t)
	target := testutil.GenerateSolanaKeys(t, 1)[0]
	record := recordAddress(t, testutil.PublicKey(payer))
	rentExempt := env.bank.MinimumBalanceForRentExemption(testRecordSize)

	_, err := env.bank.Airdrop(env.ctx, record, 1)
	require.NoError(t, err)

	result := env.send(t, []ed25519.PrivateKey{payer}, initInstruction(testutil.PublicKey(payer), record, target, runtime.SystemProgramID, true))
	require.Nil(t, result.Err, result.Logs)

	stored, err := env.bank.GetAccount(env.ctx, record)
	require.NoError(t, err)
	assert.EqualValues(t, testProgramID, stored.Owner)
	assert.Len(t, stored.Data, testRecordSize)
	assert.Equal(t, rentExempt, stored.Lamports)

	balance, err := env.bank.GetBalance(env.ctx, testutil.PublicKey(payer))
	require.NoError(t, err)
	assert.EqualValues(t, runtime.LamportsPerSol-(rentExempt-1), balance)

	var decoded testRecord
	require.NoError(t, decoded.Unmarshal(stored.Data))
	assert.EqualValues(t, target, decoded.Target)
}

func TestCheck_ExistingRecord(t *testing.T) {
	env := setup(t)

	authority := env.fund(t)
	other := env.fund(t)
	target := testutil.GenerateSolanaKeys(t, 1)[0]
	record := recordAddress(t, testutil.PublicKey(authority))
	otherRecord := recordAddress(t, testutil.PublicKey(other))

	result := env.send(t, []ed25519.PrivateKey{authority}, initInstruction(testutil.PublicKey(authority), record, target, runtime.SystemProgramID, true))
	require.Nil(t, result.Err)

	result = env.send(t, []ed25519.PrivateKey{other}, initInstruction(testutil.PublicKey(other), otherRecord, target, runtime.SystemProgramID, true))
	require.Nil(t, result.Err)

	result = env.send(t, []ed25519.PrivateKey{authority}, useInstruction(testutil.PublicKey(authority), record, target, 0, true, true))
	require.Nil(t, result.Err, result.Logs)

	for _, tc := range []struct {
		name        string
		signers     []ed25519.PrivateKey
		instruction solana.Instruction
		expected    ErrorCode
	}{
		{
			name:        "authority not signing",
			signers:     []ed25519.PrivateKey{other},
			instruction: useInstruction(testutil.PublicKey(authority), record, target, 0, false, true),
			expected:    ErrConstraintSigner,
		},
		{
			name:        "record not writable",
			signers:     []ed25519.PrivateKey{authority},
			instruction: useInstruction(testutil.PublicKey(authority), record, target, 0, true, false),
			expected:    ErrConstraintMut,
		},
		{
			name:        "different authority",
			signers:     []ed25519.PrivateKey{other},
			instruction: useInstruction(testutil.PublicKey(other), record, target, 0, true, true),
			expected:    ErrConstraintHasOne,
		},
		{
			name:        "wrong target",
			signers:     []ed25519.PrivateKey{authority},
			instruction: useInstruction(testutil.PublicKey(authority), record, testutil.GenerateSolanaKeys(t, 1)[0], 0, true, true),
			expected:    ErrConstraintAddress,
		},
		{
			name:        "predicate",
			signers:     []ed25519.PrivateKey{authority},
			instruction: useInstruction(testutil.PublicKey(authority), record, target, 1, true, true),
			expected:    ErrConstraintRaw,
		},
		{
			name:        "uninitialized record",
			signers:     []ed25519.PrivateKey{authority},
			instruction: useInstruction(testutil.PublicKey(authority), testutil.GenerateSolanaKeys(t, 1)[0], target, 0, true, true),
			expected:    ErrAccountNotInitialized,
		},
		{
			name:        "record owned by another program",
			signers:     []ed25519.PrivateKey{authority},
			instruction: useInstruction(testutil.PublicKey(authority), memo.ProgramKey, target, 0, true, true),
			expected:    ErrAccountOwnedByWrongProgram,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := env.send(t, tc.signers, tc.instruction)
			requireCode(t, result, tc.expected)
		})
	}

	// Cross references are evaluated before predicates
	result = env.send(t, []ed25519.PrivateKey{other}, useInstruction(testutil.PublicKey(other), otherRecord, testutil.GenerateSolanaKeys(t, 1)[0], 1, true, true))
	requireCode(t, result, ErrConstraintAddress)

	result = env.send(t, []ed25519.PrivateKey{authority}, solana.NewInstruction(
		testProgramID,
		[]byte{commandCorrupt},
		solana.NewAccountMeta(record, false),
	))
	require.Nil(t, result.Err)

	// A new blockhash keeps the repeated instruction from being a duplicate
	env.bank.AdvanceSlot(env.ctx)
	result = env.send(t, []ed25519.PrivateKey{authority}, useInstruction(testutil.PublicKey(authority), record, target, 0, true, true))
	requireCode(t, result, ErrAccountDiscriminatorMismatch)
}

func TestErrorCode_Class(t *testing.T) {
	for code, class := range map[ErrorCode]Class{
		ErrInstructionFallbackNotFound:  ClassInvalidArgument,
		ErrInstructionDidNotDeserialize: ClassInvalidArgument,
		ErrConstraintMut:                ClassConstraint,
		ErrConstraintSeeds:              ClassConstraint,
		ErrConstraintProgram:            ClassConstraint,
		ErrAccountNotEnoughKeys:         ClassInitialization,
		ErrAccountAlreadyInitialized:    ClassInitialization,
		ErrorCode(6000):                 ClassUnknown,
	} {
		assert.Equal(t, class, code.Class(), code.Name())
	}

	err := error(&AccountError{Account: "store", Code: ErrConstraintSeeds})
	var code ErrorCode
	require.True(t, errors.As(err, &code))
	assert.Equal(t, ErrConstraintSeeds, code)
	assert.EqualValues(t, 2006, code.CustomErrorCode())
	assert.Equal(t, "ConstraintSeeds: A seeds constraint was violated (account: store)", err.Error())
}
