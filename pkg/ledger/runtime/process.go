package runtime

import (
	"context"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

type processOptions struct {
	// commit persists account changes and records the transaction status
	commit bool

	verifySignatures bool
	rateLimit        bool
}

// process runs the transaction pipeline. Rejections that happen before
// execution are returned as a *solana.TransactionError error, while execution
// failures are reported in the result.
func (b *Bank) process(ctx context.Context, txn solana.Transaction, opts processOptions) (*Result, error) {
	if len(txn.Marshal()) > solana.MaxTransactionSize {
		return nil, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if err := txn.Message.Sanitize(); err != nil {
		return nil, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if len(txn.Message.Accounts) > MaxTransactionAccountLocks {
		return nil, solana.NewTransactionError(solana.TransactionErrorTooManyAccountLocks)
	}

	if opts.verifySignatures {
		if err := txn.VerifySignatures(); err != nil {
			return nil, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}

	feePayer := txn.FeePayer()

	if opts.rateLimit {
		allowed, err := b.limiter.Allow(base58.Encode(feePayer))
		if err != nil {
			return nil, errors.Wrap(err, "failed to check rate limit")
		}
		if !allowed {
			return nil, ErrRateLimited
		}
	}

	b.slotMu.RLock()
	slot := b.slot
	recent := b.blockhashes.contains(txn.Message.RecentBlockhash)
	b.slotMu.RUnlock()

	if !recent {
		return nil, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	var writeKeys, readKeys [][]byte
	for i, key := range txn.Message.Accounts {
		if txn.Message.IsWritable(i) {
			writeKeys = append(writeKeys, key)
		} else {
			readKeys = append(readKeys, key)
		}
	}

	unlock := b.locks.LockMany(writeKeys, readKeys)
	defer unlock()

	// The fee payer is always write locked, so two copies of a transaction
	// can't both pass this check.
	if opts.commit && b.statuses.contains(txn.Signature()) {
		return nil, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	loaded, err := b.store.GetMany(ctx, txn.Message.Accounts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transaction accounts")
	}

	accounts := make(map[string]*account.Record, len(loaded))
	for i, record := range loaded {
		if record == nil {
			if i == 0 {
				return nil, solana.NewTransactionError(solana.TransactionErrorAccountNotFound)
			}

			record = &account.Record{
				Address: txn.Message.Accounts[i],
				Owner:   SystemProgramID,
			}
			loaded[i] = record
		}

		cloned := record.Clone()
		accounts[string(record.Address)] = &cloned
	}

	for _, instruction := range txn.Message.Instructions {
		programID := txn.Message.Accounts[instruction.ProgramIndex]
		if _, ok := b.programs[string(programID)]; !ok {
			return nil, solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
		}
	}

	fee := b.conf.lamportsPerSignature.Get(ctx) * uint64(txn.Message.Header.NumSignatures)
	payer := accounts[string(feePayer)]
	if payer.Lamports < fee {
		return nil, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}
	payer.Lamports -= fee
	charged := payer.Clone()

	limit := b.conf.computeUnitLimit.Get(ctx)
	txnCtx := &transactionContext{
		bank:     b,
		slot:     slot,
		accounts: accounts,
		meter: &computeMeter{
			limit:     limit,
			remaining: limit,
		},
	}

	var txnErr *solana.TransactionError
	for i := range txn.Message.Instructions {
		instruction, err := solana.DecompileInstruction(txn.Message, i)
		if err != nil {
			return nil, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
		}

		err = txnCtx.execute(instruction.Program, instruction.Accounts, instruction.Data, 1)
		if err == nil {
			continue
		}

		txnErr, err = solana.TransactionErrorFromInstructionError(&solana.InstructionError{
			Index: i,
			Err:   toInstructionErr(err),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode instruction error")
		}
		break
	}

	result := &Result{
		Signature:     txn.Signature(),
		Slot:          slot,
		Err:           txnErr,
		Logs:          txnCtx.logs,
		UnitsConsumed: txnCtx.meter.consumed(),
		Fee:           fee,
	}

	if !opts.commit {
		return result, nil
	}

	var changed []*account.Record
	if txnErr != nil {
		if fee > 0 {
			changed = append(changed, &charged)
		}
	} else {
		for i, original := range loaded {
			if !txn.Message.IsWritable(i) {
				continue
			}

			post := accounts[string(original.Address)]
			if !post.Equal(original) {
				changed = append(changed, post)
			}
		}
	}

	if len(changed) > 0 {
		if err := b.store.Commit(ctx, slot, changed...); err != nil {
			b.log.WithError(err).WithFields(logrus.Fields{
				"method":    "process",
				"signature": result.Signature.String(),
			}).Warn("failed to commit transaction")
			return nil, errors.Wrap(err, "failed to commit transaction")
		}
	}

	b.statuses.insert(result.Signature, &TransactionStatus{
		Slot:      slot,
		Blockhash: txn.Message.RecentBlockhash,
		Err:       txnErr,
	})

	return result, nil
}
