package constraint

import (
	"bytes"

	"github.com/mr-tron/base58"

	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/system"
)

const discriminatorSize = 8

// Check validates the instruction's accounts against set. Checks run in a
// fixed order: structural flags, then record loading and address
// derivations, then cross references, then predicates. The first failure is
// logged and returned, and no account is modified.
//
// When every check passes, accounts with an Init constraint are created
// through the system program, which must be passed to the instruction.
func Check(set Set, ictx *runtime.InvokeContext) (*Context, error) {
	ctx := &Context{
		Invoke:   ictx,
		accounts: make(map[string]*runtime.AccountInfo),
		records:  make(map[string]Record),
		bumps:    make(map[string]uint8),
	}

	if len(ictx.Accounts) < len(set.Accounts) {
		return nil, fail(ictx, "", ErrAccountNotEnoughKeys)
	}

	for i, expected := range set.Accounts {
		ctx.accounts[expected.Name] = ictx.Accounts[i]
	}

	for _, expected := range set.Accounts {
		if err := checkStructure(ctx, expected); err != nil {
			return nil, err
		}
	}

	for _, expected := range set.Accounts {
		if err := loadRecord(ctx, expected); err != nil {
			return nil, err
		}
	}

	for _, expected := range set.Accounts {
		if err := checkDerivation(ctx, expected); err != nil {
			return nil, err
		}
	}

	for _, expected := range set.Accounts {
		if err := checkReferences(ctx, expected); err != nil {
			return nil, err
		}
	}

	for _, predicate := range set.Predicates {
		if !predicate.Check(ctx) {
			ictx.Log("Constraint %s failed", predicate.Name)
			return nil, fail(ictx, "", ErrConstraintRaw)
		}
	}

	for _, expected := range set.Accounts {
		if err := initialize(ctx, expected); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

func checkStructure(ctx *Context, expected Account) error {
	info := ctx.accounts[expected.Name]

	if expected.Signer && !info.IsSigner {
		return fail(ctx.Invoke, expected.Name, ErrConstraintSigner)
	}

	if (expected.Mut || expected.Init != nil) && !info.IsWritable {
		return fail(ctx.Invoke, expected.Name, ErrConstraintMut)
	}

	if expected.Program != nil && !bytes.Equal(info.Key, expected.Program) {
		return fail(ctx.Invoke, expected.Name, ErrConstraintProgram)
	}

	if expected.Init != nil {
		if _, ok := ctx.accounts[expected.Init.Payer]; !ok {
			return fail(ctx.Invoke, expected.Name, ErrAccountNotEnoughKeys)
		}
	}

	return nil
}

func loadRecord(ctx *Context, expected Account) error {
	if expected.Decoder == nil || expected.Init != nil {
		return nil
	}

	info := ctx.accounts[expected.Name]

	if !bytes.Equal(info.Owner(), ctx.Invoke.ProgramID) {
		if bytes.Equal(info.Owner(), runtime.SystemProgramID) && len(info.Data()) == 0 {
			return fail(ctx.Invoke, expected.Name, ErrAccountNotInitialized)
		}
		return fail(ctx.Invoke, expected.Name, ErrAccountOwnedByWrongProgram)
	}

	record := expected.Decoder()

	data := info.Data()
	if len(data) < discriminatorSize {
		return fail(ctx.Invoke, expected.Name, ErrAccountDiscriminatorNotFound)
	}
	if !bytes.Equal(data[:discriminatorSize], record.Discriminator()) {
		return fail(ctx.Invoke, expected.Name, ErrAccountDiscriminatorMismatch)
	}
	if err := record.Unmarshal(data); err != nil {
		return fail(ctx.Invoke, expected.Name, ErrAccountDidNotDeserialize)
	}

	ctx.records[expected.Name] = record
	return nil
}

func checkDerivation(ctx *Context, expected Account) error {
	info := ctx.accounts[expected.Name]

	if expected.Seeds != nil {
		key, ok := ctx.Key(expected.Seeds.Key)
		if !ok {
			return fail(ctx.Invoke, expected.Name, ErrConstraintSeeds)
		}

		address, bump, err := solana.FindProgramAddressAndBump(ctx.Invoke.ProgramID, expected.Seeds.Prefix, key)
		if err != nil || !bytes.Equal(address, info.Key) {
			logAddresses(ctx.Invoke, info.Key, address)
			return fail(ctx.Invoke, expected.Name, ErrConstraintSeeds)
		}

		if record, ok := ctx.records[expected.Name]; ok && record.GetBump() != bump {
			return fail(ctx.Invoke, expected.Name, ErrConstraintSeeds)
		}

		ctx.bumps[expected.Name] = bump
	}

	if expected.Init != nil && info.InUse() {
		return fail(ctx.Invoke, expected.Name, ErrAccountAlreadyInitialized)
	}

	return nil
}

func checkReferences(ctx *Context, expected Account) error {
	info := ctx.accounts[expected.Name]

	if expected.Address != nil {
		key, ok := ctx.Key(*expected.Address)
		if !ok || !bytes.Equal(key, info.Key) {
			if ok {
				logAddresses(ctx.Invoke, info.Key, key)
			}
			return fail(ctx.Invoke, expected.Name, ErrConstraintAddress)
		}
	}

	for _, hasOne := range expected.HasOne {
		stored, ok := ctx.Key(KeyRef{Account: expected.Name, Field: hasOne.Field})
		target, exists := ctx.accounts[hasOne.Account]
		if !ok || !exists || !bytes.Equal(stored, target.Key) {
			return fail(ctx.Invoke, expected.Name, ErrConstraintHasOne)
		}
	}

	return nil
}

func initialize(ctx *Context, expected Account) error {
	if expected.Init == nil {
		return nil
	}

	info := ctx.accounts[expected.Name]
	payer := ctx.accounts[expected.Init.Payer]

	var signerSeeds [][][]byte
	if expected.Seeds != nil {
		key, _ := ctx.Key(expected.Seeds.Key)
		signerSeeds = append(signerSeeds, [][]byte{
			expected.Seeds.Prefix,
			key,
			{ctx.bumps[expected.Name]},
		})
	}

	rentExempt := ctx.Invoke.Rent().MinimumBalance(expected.Init.Space)
	if info.Lamports() == 0 {
		return ctx.Invoke.Invoke(
			system.CreateAccount(
				payer.Key,
				info.Key,
				ctx.Invoke.ProgramID,
				rentExempt,
				expected.Init.Space,
			),
			signerSeeds...,
		)
	}

	// Anyone can send lamports to an address before it is initialized, so a
	// funded account is topped up, allocated and assigned in place.
	if info.Lamports() < rentExempt {
		if err := ctx.Invoke.Invoke(system.Transfer(payer.Key, info.Key, rentExempt-info.Lamports())); err != nil {
			return err
		}
	}
	if err := ctx.Invoke.Invoke(system.Allocate(info.Key, expected.Init.Space), signerSeeds...); err != nil {
		return err
	}
	return ctx.Invoke.Invoke(system.Assign(info.Key, ctx.Invoke.ProgramID), signerSeeds...)
}

func logAddresses(ictx *runtime.InvokeContext, left, right []byte) {
	ictx.Log("Left: %s", base58.Encode(left))
	ictx.Log("Right: %s", base58.Encode(right))
}

func fail(ictx *runtime.InvokeContext, account string, code ErrorCode) error {
	ictx.Log("%s", LogLine(account, code))
	if account == "" {
		return code
	}
	return &AccountError{Account: account, Code: code}
}
