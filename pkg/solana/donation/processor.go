package donation

import (
	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/ledger/constraint"
	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/solana/system"
)

// Initialize creates the store record for the signing owner. The bank is
// recorded as the only account allowed to withdraw from the store.
func processInitialize(ictx *runtime.InvokeContext) error {
	if _, err := InitializeInstructionArgsFromBinary(ictx.Data); err != nil {
		return didNotDeserialize(ictx)
	}

	ctx, err := constraint.Check(initializeConstraints, ictx)
	if err != nil {
		return err
	}

	store := &StoreAccount{
		Owner: ctx.Account("owner").Key,
		Bank:  ctx.Account("bank").Key,
		Bump:  ctx.Bump("store"),
	}
	return writeRecord(ctx.Account("store"), store)
}

// InitializeUser creates the user store record for the signing user, bound to
// the bank of an existing store.
func processInitializeUser(ictx *runtime.InvokeContext) error {
	if _, err := InitializeUserInstructionArgsFromBinary(ictx.Data); err != nil {
		return didNotDeserialize(ictx)
	}

	ctx, err := constraint.Check(initializeUserConstraints, ictx)
	if err != nil {
		return err
	}

	userStore := &UserStoreAccount{
		User: ctx.Account("user").Key,
		Bank: ctx.Record("store").(*StoreAccount).Bank,
		Bump: ctx.Bump("user_store"),
	}
	return writeRecord(ctx.Account("user_store"), userStore)
}

// Donate moves lamports from the user to the bank and records the donation in
// both the store and the user store.
func processDonate(ictx *runtime.InvokeContext) error {
	args, err := DonateInstructionArgsFromBinary(ictx.Data)
	if err != nil {
		return didNotDeserialize(ictx)
	}

	ctx, err := constraint.Check(donateConstraints, ictx)
	if err != nil {
		return err
	}

	if args.Lamports == 0 {
		return programError(ictx, ErrorCodeInvalidLamports)
	}

	fromUser := ctx.Account("from_user")
	bank := ctx.Account("bank")
	storeInfo := ctx.Account("store")
	userStoreInfo := ctx.Account("user_store")

	store := ctx.Record("store").(*StoreAccount)
	userStore := ctx.Record("user_store").(*UserStoreAccount)

	if err := transfer(ictx, fromUser, bank, args.Lamports); err != nil {
		return err
	}

	if _, err := store.PutUser(fromUser.Key, len(storeInfo.Data())); err != nil {
		return recordError(ictx, err)
	}
	if err := userStore.PutDonation(args.Lamports, len(userStoreInfo.Data())); err != nil {
		return recordError(ictx, err)
	}

	if err := writeRecord(storeInfo, store); err != nil {
		return err
	}
	return writeRecord(userStoreInfo, userStore)
}

// Withdraw moves lamports from the signing bank to the store's owner.
func processWithdraw(ictx *runtime.InvokeContext) error {
	args, err := WithdrawInstructionArgsFromBinary(ictx.Data)
	if err != nil {
		return didNotDeserialize(ictx)
	}

	ctx, err := constraint.Check(withdrawConstraints, ictx)
	if err != nil {
		return err
	}

	bank := ctx.Account("bank")
	owner := ctx.Account("owner")

	if args.Lamports == 0 {
		return programError(ictx, ErrorCodeInvalidLamports)
	}
	if args.Lamports > bank.Lamports() {
		return programError(ictx, ErrorCodeInsufficientBankBalance)
	}

	return transfer(ictx, bank, owner, args.Lamports)
}

func transfer(ictx *runtime.InvokeContext, from, to *runtime.AccountInfo, lamports uint64) error {
	err := ictx.Invoke(system.Transfer(from.Key, to.Key, lamports))
	if err == nil {
		return nil
	}

	if errors.Is(err, runtime.ErrComputationalBudgetExceeded) {
		return err
	}

	ictx.Log("Transfer failed: %v", err)
	return programError(ictx, ErrorCodeTransferFailed)
}

// writeRecord serializes the record into the account's allocated space
func writeRecord(info *runtime.AccountInfo, record interface{ MarshalInto([]byte) error }) error {
	if err := record.MarshalInto(info.Data()); err != nil {
		return toErrorCode(err)
	}
	return nil
}

func programError(ictx *runtime.InvokeContext, code ErrorCode) error {
	ictx.Log("Error Code: %s. Error Number: %d. Error Message: %s.", code.Name(), uint32(code), errorNames[code].message)
	return code
}

func recordError(ictx *runtime.InvokeContext, err error) error {
	if code, ok := recordErrorCode(err); ok {
		return programError(ictx, code)
	}
	return err
}

func didNotDeserialize(ictx *runtime.InvokeContext) error {
	ictx.Log("%s", constraint.LogLine("", constraint.ErrInstructionDidNotDeserialize))
	return constraint.ErrInstructionDidNotDeserialize
}
