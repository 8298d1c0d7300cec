package donor

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/donation-ledger/pkg/cache"
	"github.com/code-payments/donation-ledger/pkg/metrics"
	"github.com/code-payments/donation-ledger/pkg/retry"
	"github.com/code-payments/donation-ledger/pkg/retry/backoff"
	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/donation"
	"github.com/code-payments/donation-ledger/pkg/solana/system"
)

const (
	metricsStructName = "donor.client"

	// Every cached address carries the same weight, so the cache budget is a
	// count of entries
	addressWeight = 1
)

var (
	ErrStoreNotFound     = errors.New("store not found")
	ErrUserStoreNotFound = errors.New("user store not found")
	ErrNotConfirmed      = errors.New("transaction was not confirmed in time")

	errBlockhashExpired = errors.New("blockhash expired")
	errNotYetConfirmed  = errors.New("transaction not yet confirmed")
)

// Client submits donation program transactions through a ledger node and
// reads back the resulting records
type Client struct {
	log  *logrus.Entry
	conf *conf
	sc   solana.Client

	addresses cache.Cache
}

func NewClient(sc solana.Client, configProvider ConfigProvider) *Client {
	conf := configProvider()

	return &Client{
		log:       logrus.StandardLogger().WithField("type", "ledger/donor"),
		conf:      conf,
		sc:        sc,
		addresses: cache.NewCache(int(conf.addressCacheSize.Get(context.Background()))),
	}
}

// StoreAddress returns the address of the store owned by owner
func (c *Client) StoreAddress(owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	return c.derive("store:"+base58.Encode(owner), func() (ed25519.PublicKey, uint8, error) {
		return donation.GetStoreAddress(&donation.GetStoreAddressArgs{Owner: owner})
	})
}

// UserStoreAddress returns the address of the user store for user
func (c *Client) UserStoreAddress(user ed25519.PublicKey) (ed25519.PublicKey, error) {
	return c.derive("store_user:"+base58.Encode(user), func() (ed25519.PublicKey, uint8, error) {
		return donation.GetUserStoreAddress(&donation.GetUserStoreAddressArgs{User: user})
	})
}

func (c *Client) derive(key string, find func() (ed25519.PublicKey, uint8, error)) (ed25519.PublicKey, error) {
	if cached, ok := c.addresses.Retrieve(key); ok {
		return cached.(ed25519.PublicKey), nil
	}

	address, _, err := find()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive address")
	}

	// Concurrent derivations of the same key race to insert the same value
	if err := c.addresses.Insert(key, address, addressWeight); err != nil && err != cache.ErrKeyExists {
		return nil, err
	}
	return address, nil
}

// Initialize creates the store for owner, with bank as the recipient of every
// donation made to it
func (c *Client) Initialize(ctx context.Context, owner ed25519.PrivateKey, bank ed25519.PublicKey) (solana.Signature, error) {
	ownerKey := owner.Public().(ed25519.PublicKey)

	store, err := c.StoreAddress(ownerKey)
	if err != nil {
		return solana.Signature{}, err
	}

	return c.submit(ctx, "Initialize", []ed25519.PrivateKey{owner}, donation.NewInitializeInstruction(
		&donation.InitializeInstructionAccounts{
			Owner: ownerKey,
			Bank:  bank,
			Store: store,
		},
		&donation.InitializeInstructionArgs{},
	))
}

// InitializeUser creates the user store for user, bound to the bank of the
// store owned by owner
func (c *Client) InitializeUser(ctx context.Context, user ed25519.PrivateKey, owner ed25519.PublicKey) (solana.Signature, error) {
	userKey := user.Public().(ed25519.PublicKey)

	store, err := c.GetStore(ctx, owner)
	if err != nil {
		return solana.Signature{}, err
	}

	storeAddress, err := c.StoreAddress(owner)
	if err != nil {
		return solana.Signature{}, err
	}
	userStoreAddress, err := c.UserStoreAddress(userKey)
	if err != nil {
		return solana.Signature{}, err
	}

	return c.submit(ctx, "InitializeUser", []ed25519.PrivateKey{user}, donation.NewInitializeUserInstruction(
		&donation.InitializeUserInstructionAccounts{
			User:      userKey,
			UserStore: userStoreAddress,
			Bank:      store.Bank,
			Store:     storeAddress,
		},
		&donation.InitializeUserInstructionArgs{},
	))
}

// Donate transfers lamports from user to the bank of the store owned by owner
func (c *Client) Donate(ctx context.Context, user ed25519.PrivateKey, owner ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	userKey := user.Public().(ed25519.PublicKey)

	store, err := c.GetStore(ctx, owner)
	if err != nil {
		return solana.Signature{}, err
	}

	storeAddress, err := c.StoreAddress(owner)
	if err != nil {
		return solana.Signature{}, err
	}
	userStoreAddress, err := c.UserStoreAddress(userKey)
	if err != nil {
		return solana.Signature{}, err
	}

	return c.submit(ctx, "Donate", []ed25519.PrivateKey{user}, donation.NewDonateInstruction(
		&donation.DonateInstructionAccounts{
			FromUser:  userKey,
			Bank:      store.Bank,
			Store:     storeAddress,
			UserStore: userStoreAddress,
		},
		&donation.DonateInstructionArgs{Lamports: lamports},
	))
}

// Withdraw transfers lamports from bank to the owner of the store
func (c *Client) Withdraw(ctx context.Context, bank ed25519.PrivateKey, owner ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	storeAddress, err := c.StoreAddress(owner)
	if err != nil {
		return solana.Signature{}, err
	}

	return c.submit(ctx, "Withdraw", []ed25519.PrivateKey{bank}, donation.NewWithdrawInstruction(
		&donation.WithdrawInstructionAccounts{
			Bank:  bank.Public().(ed25519.PublicKey),
			Owner: owner,
			Store: storeAddress,
		},
		&donation.WithdrawInstructionArgs{Lamports: lamports},
	))
}

// Fund transfers lamports between two system accounts
func (c *Client) Fund(ctx context.Context, from ed25519.PrivateKey, to ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	return c.submit(ctx, "Fund", []ed25519.PrivateKey{from}, system.Transfer(from.Public().(ed25519.PublicKey), to, lamports))
}

// Airdrop requests lamports from the node's faucet and waits for the airdrop
// to be confirmed
func (c *Client) Airdrop(ctx context.Context, to ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Airdrop")
	defer tracer.End()

	sig, err := c.sc.RequestAirdrop(to, lamports, solana.CommitmentConfirmed)
	if err != nil {
		tracer.OnError(err)
		return sig, errors.Wrap(err, "failed to request airdrop")
	}

	if err := c.confirm(ctx, sig); err != nil {
		tracer.OnError(err)
		return sig, err
	}
	return sig, nil
}

// GetStore returns the store owned by owner, or ErrStoreNotFound
func (c *Client) GetStore(ctx context.Context, owner ed25519.PublicKey) (*donation.StoreAccount, error) {
	address, err := c.StoreAddress(owner)
	if err != nil {
		return nil, err
	}

	data, err := c.getProgramData(ctx, address)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrStoreNotFound
	} else if err != nil {
		return nil, err
	}

	var store donation.StoreAccount
	if err := store.Unmarshal(data); err != nil {
		return nil, errors.Wrap(err, "invalid store account")
	}
	return &store, nil
}

// GetUserStore returns the user store of user, or ErrUserStoreNotFound
func (c *Client) GetUserStore(ctx context.Context, user ed25519.PublicKey) (*donation.UserStoreAccount, error) {
	address, err := c.UserStoreAddress(user)
	if err != nil {
		return nil, err
	}

	data, err := c.getProgramData(ctx, address)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrUserStoreNotFound
	} else if err != nil {
		return nil, err
	}

	var userStore donation.UserStoreAccount
	if err := userStore.Unmarshal(data); err != nil {
		return nil, errors.Wrap(err, "invalid user store account")
	}
	return &userStore, nil
}

func (c *Client) getProgramData(ctx context.Context, address ed25519.PublicKey) ([]byte, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "getProgramData")
	defer tracer.End()

	info, err := c.sc.GetAccountInfo(address, solana.CommitmentConfirmed)
	if err != nil {
		if err != solana.ErrNoAccountInfo {
			tracer.OnError(err)
		}
		return nil, err
	}

	if !info.Owner.Equal(donation.PROGRAM_ID) {
		return nil, errors.Errorf("account %s is not owned by the donation program", base58.Encode(address))
	}
	return info.Data, nil
}

// GetBalance returns the balance of an account, which is zero for accounts
// that don't exist
func (c *Client) GetBalance(_ context.Context, key ed25519.PublicKey) (uint64, error) {
	return c.sc.GetBalance(key)
}

// submit signs and submits a transaction paid for by the first signer, and
// waits for it to be confirmed. Failed transactions return a
// *solana.TransactionError.
func (c *Client) submit(ctx context.Context, name string, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, name)
	defer tracer.End()

	log := c.log.WithField("method", name)

	var sig solana.Signature
	_, err := retry.Retry(
		func() error {
			blockhash, err := c.sc.GetLatestBlockhash()
			if err != nil {
				return err
			}

			txn := solana.NewTransaction(signers[0].Public().(ed25519.PublicKey), instructions...)
			txn.SetBlockhash(blockhash)
			if err := txn.Sign(signers...); err != nil {
				return errors.Wrap(err, "failed to sign transaction")
			}

			sig, err = c.sc.SubmitTransaction(txn, solana.CommitmentConfirmed)

			var txErr *solana.TransactionError
			if errors.As(err, &txErr) && txErr.ErrorKey() == solana.TransactionErrorBlockhashNotFound {
				log.WithField("signature", sig.String()).Debug("blockhash expired, resubmitting")
				return errBlockhashExpired
			}
			return err
		},
		retry.RetriableErrors(errBlockhashExpired),
		retry.Limit(uint(c.conf.maxSubmitAttempts.Get(ctx))),
		retry.Context(ctx),
	)
	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Debug("transaction rejected")
		return sig, err
	}

	if err := c.confirm(ctx, sig); err != nil {
		tracer.OnError(err)
		log.WithError(err).WithField("signature", sig.String()).Debug("transaction failed")
		return sig, err
	}

	log.WithField("signature", sig.String()).Debug("transaction confirmed")
	return sig, nil
}

// confirm polls the status of sig until it's confirmed or failed
func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	timeout := c.conf.confirmationTimeout.Get(ctx)
	interval := c.conf.pollInterval.Get(ctx)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var status *solana.SignatureStatus
	start := time.Now()
	_, err := retry.Retry(
		func() error {
			statuses, err := c.sc.GetSignatureStatuses([]solana.Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			if status == nil || (status.ErrorResult == nil && !status.Confirmed()) {
				return errNotYetConfirmed
			}
			return nil
		},
		retry.RetriableErrors(errNotYetConfirmed),
		retry.Context(ctx),
		retry.Backoff(backoff.Constant(interval), interval),
	)
	metrics.RecordDuration(ctx, "DonorConfirmationDuration", time.Since(start))

	if err == errNotYetConfirmed {
		return ErrNotConfirmed
	} else if err != nil {
		return errors.Wrap(err, "failed to get signature status")
	}

	if status.ErrorResult != nil {
		return status.ErrorResult
	}
	return nil
}
