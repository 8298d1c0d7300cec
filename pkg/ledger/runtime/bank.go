package runtime

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	base "sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/metrics"
	"github.com/code-payments/donation-ledger/pkg/rate"
	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/memo"
	"github.com/code-payments/donation-ledger/pkg/solana/system"
	"github.com/code-payments/donation-ledger/pkg/sync"
)

const (
	metricsStructName = "runtime.bank"

	lockStripes = 1024
)

var (
	ErrRateLimited      = errors.New("fee payer is rate limited")
	ErrAirdropDisabled  = errors.New("airdrops are disabled")
	ErrAirdropTooLarge  = errors.New("airdrop exceeds the maximum amount")
	ErrInvalidProgramID = errors.New("invalid program id")

	genesisBlockhash = solana.Blockhash(sha256.Sum256([]byte("donation-ledger genesis")))
)

// Result is the outcome of a transaction that was executed. A nil Err
// indicates success.
type Result struct {
	Signature     solana.Signature
	Slot          uint64
	Err           *solana.TransactionError
	Logs          []string
	UnitsConsumed uint64
	Fee           uint64
}

// SignatureStatus is the status of a transaction, as seen by clients
type SignatureStatus struct {
	Slot uint64
	Err  *solana.TransactionError

	// Confirmations is nil once the transaction is finalized
	Confirmations      *int
	ConfirmationStatus string
}

const (
	ConfirmationStatusConfirmed = "confirmed"
	ConfirmationStatusFinalized = "finalized"
)

// Bank executes transactions against the account store. Transactions that
// write disjoint sets of accounts execute concurrently.
type Bank struct {
	log   *logrus.Entry
	conf  *conf
	store account.Store

	programs map[string]Program
	locks    *sync.StripedLock
	limiter  rate.Limiter
	faucet   ed25519.PrivateKey

	// airdrops makes every airdrop transaction unique
	airdrops atomic.Uint64

	statuses *statusCache

	slotMu      base.RWMutex
	slot        uint64
	blockhashes *blockhashQueue
}

// New returns a Bank executing the provided programs in addition to the
// builtin system and memo programs. Builtin and program accounts, as well as the faucet
// account, are created in the store if they don't already exist.
func New(ctx context.Context, store account.Store, configProvider ConfigProvider, programs ...Program) (*Bank, error) {
	conf := configProvider()

	b := &Bank{
		log:         logrus.StandardLogger().WithField("type", "runtime/bank"),
		conf:        conf,
		store:       store,
		programs:    make(map[string]Program),
		locks:       sync.NewStripedLock(lockStripes),
		statuses:    newStatusCache(),
		blockhashes: newBlockhashQueue(),
	}

	limit := conf.feePayerRateLimit.Get(ctx)
	if limit > 0 {
		b.limiter = rate.NewLocalRateLimiter(xrate.Limit(limit))
	} else {
		b.limiter = &rate.NoLimiter{}
	}

	seed := sha256.Sum256([]byte(conf.faucetSeed.Get(ctx)))
	b.faucet = ed25519.NewKeyFromSeed(seed[:])

	for _, program := range append([]Program{systemProgram{}, memoProgram{}}, programs...) {
		if len(program.ID()) != ed25519.PublicKeySize {
			return nil, ErrInvalidProgramID
		}
		b.programs[string(program.ID())] = program
	}

	b.blockhashes.push(genesisBlockhash, 0)

	if err := b.genesis(ctx); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Bank) genesis(ctx context.Context) error {
	var records []*account.Record

	for _, program := range b.programs {
		_, err := b.store.Get(ctx, program.ID())
		if err == nil {
			continue
		} else if err != account.ErrAccountNotFound {
			return errors.Wrap(err, "failed to load program account")
		}

		loader := BPFLoaderID
		if program.ID().Equal(SystemProgramID) {
			loader = NativeLoaderID
		}

		records = append(records, &account.Record{
			Address:    program.ID(),
			Owner:      loader,
			Lamports:   1,
			Data:       []byte(base58.Encode(program.ID())),
			Executable: true,
		})
	}

	faucet := b.FaucetKey()
	_, err := b.store.Get(ctx, faucet)
	if err == account.ErrAccountNotFound {
		records = append(records, &account.Record{
			Address:  faucet,
			Owner:    SystemProgramID,
			Lamports: b.conf.faucetGenesisLamports.Get(ctx),
		})
	} else if err != nil {
		return errors.Wrap(err, "failed to load faucet account")
	}

	if len(records) == 0 {
		return nil
	}

	b.log.WithField("accounts", len(records)).Info("creating genesis accounts")
	return b.store.Commit(ctx, 0, records...)
}

// FaucetKey returns the address of the account that funds airdrops
func (b *Bank) FaucetKey() ed25519.PublicKey {
	return b.faucet.Public().(ed25519.PublicKey)
}

// Slot returns the current slot
func (b *Bank) Slot() uint64 {
	b.slotMu.RLock()
	defer b.slotMu.RUnlock()

	return b.slot
}

// LatestBlockhash returns the most recent blockhash and the last slot at
// which transactions referencing it will be accepted.
func (b *Bank) LatestBlockhash(ctx context.Context) (solana.Blockhash, uint64) {
	b.slotMu.RLock()
	defer b.slotMu.RUnlock()

	latest := b.blockhashes.latest()
	return latest.hash, latest.slot + b.conf.maxRecentBlockhashes.Get(ctx)
}

// AdvanceSlot moves the ledger to the next slot, producing a new blockhash
// and expiring the oldest one once the queue is full.
func (b *Bank) AdvanceSlot(ctx context.Context) uint64 {
	b.slotMu.Lock()
	defer b.slotMu.Unlock()

	prev := b.blockhashes.latest().hash
	b.slot++

	var slotBytes [8]byte
	binary.LittleEndian.PutUint64(slotBytes[:], b.slot)

	h := sha256.New()
	h.Write(prev[:])
	h.Write(slotBytes[:])

	var next solana.Blockhash
	copy(next[:], h.Sum(nil))
	b.blockhashes.push(next, b.slot)

	for _, expired := range b.blockhashes.evict(int(b.conf.maxRecentBlockhashes.Get(ctx))) {
		b.statuses.prune(expired)
	}

	metrics.RecordCount(ctx, "LedgerSlot", b.slot)

	return b.slot
}

// MinimumBalanceForRentExemption returns the minimum lamports an account of
// size bytes must hold
func (b *Bank) MinimumBalanceForRentExemption(size uint64) uint64 {
	return DefaultRent.MinimumBalance(size)
}

// GetAccount returns the committed state of an account
func (b *Bank) GetAccount(ctx context.Context, address ed25519.PublicKey) (*account.Record, error) {
	return b.store.Get(ctx, address)
}

// GetBalance returns the committed balance of an account, which is zero for
// accounts that don't exist
func (b *Bank) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	record, err := b.store.Get(ctx, address)
	if err == account.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return record.Lamports, nil
}

// GetProgramAccounts returns the committed accounts owned by program
func (b *Bank) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*account.Record, error) {
	records, err := b.store.GetProgramAccounts(ctx, program)
	if err == account.ErrAccountNotFound {
		return nil, nil
	}
	return records, err
}

// GetSignatureStatuses returns the status of each signature, or nil for
// signatures that are unknown or expired
func (b *Bank) GetSignatureStatuses(sigs ...solana.Signature) []*SignatureStatus {
	current := b.Slot()

	res := make([]*SignatureStatus, len(sigs))
	for i, sig := range sigs {
		status, ok := b.statuses.get(sig)
		if !ok {
			continue
		}

		res[i] = &SignatureStatus{
			Slot: status.Slot,
			Err:  status.Err,
		}

		if current > status.Slot {
			res[i].ConfirmationStatus = ConfirmationStatusFinalized
		} else {
			confirmations := 0
			res[i].Confirmations = &confirmations
			res[i].ConfirmationStatus = ConfirmationStatusConfirmed
		}
	}
	return res
}

// Airdrop transfers lamports from the faucet to the provided account
func (b *Bank) Airdrop(ctx context.Context, to ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	if !b.conf.airdropEnabled.Get(ctx) {
		return solana.Signature{}, ErrAirdropDisabled
	}

	if lamports > b.conf.maxAirdropLamports.Get(ctx) {
		return solana.Signature{}, ErrAirdropTooLarge
	}

	blockhash, _ := b.LatestBlockhash(ctx)

	nonce := b.airdrops.Add(1)
	txn := solana.NewTransaction(
		b.FaucetKey(),
		memo.Instruction("airdrop:"+strconv.FormatUint(nonce, 10)),
		system.Transfer(b.FaucetKey(), to, lamports),
	)
	txn.SetBlockhash(blockhash)
	if err := txn.Sign(b.faucet); err != nil {
		return solana.Signature{}, err
	}

	result, err := b.process(ctx, txn, processOptions{commit: true, verifySignatures: true})
	if err != nil {
		return solana.Signature{}, err
	}
	if result.Err != nil {
		return result.Signature, result.Err
	}

	b.log.WithFields(logrus.Fields{
		"method":   "Airdrop",
		"account":  base58.Encode(to),
		"lamports": lamports,
	}).Debug("airdrop processed")

	return result.Signature, nil
}

// ProcessTransaction executes and commits a transaction.
//
// Transactions rejected before execution, for example due to an invalid
// signature or an expired blockhash, return a *solana.TransactionError as the
// error. They are neither recorded nor charged a fee. Transactions that fail
// during execution are charged the fee and recorded, and report the failure
// via Result.Err.
func (b *Bank) ProcessTransaction(ctx context.Context, txn solana.Transaction) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessTransaction")
	defer tracer.End()

	start := time.Now()
	result, err := b.process(ctx, txn, processOptions{
		commit:           true,
		verifySignatures: true,
		rateLimit:        true,
	})
	metrics.RecordDuration(ctx, "LedgerProcessTransactionDuration", time.Since(start))

	log := b.log.WithFields(logrus.Fields{
		"method":    "ProcessTransaction",
		"signature": txn.Signature().String(),
	})

	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Debug("transaction rejected")
		return nil, err
	}

	if result.Err != nil {
		log.WithError(result.Err).Debug("transaction failed")
	} else {
		log.WithField("slot", result.Slot).Trace("transaction processed")
	}

	metrics.RecordEvent(ctx, "LedgerTransactionProcessed", map[string]interface{}{
		"signature": result.Signature.String(),
		"slot":      result.Slot,
		"success":   result.Err == nil,
		"units":     result.UnitsConsumed,
	})

	return result, nil
}

// SimulateTransaction executes a transaction without committing or
// recording it.
func (b *Bank) SimulateTransaction(ctx context.Context, txn solana.Transaction, verifySignatures bool) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SimulateTransaction")
	defer tracer.End()

	return b.process(ctx, txn, processOptions{verifySignatures: verifySignatures})
}
