package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/donation-ledger/pkg/app"
	pg "github.com/code-payments/donation-ledger/pkg/database/postgres"
	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/ledger/account/bolt"
	"github.com/code-payments/donation-ledger/pkg/ledger/account/memory"
	"github.com/code-payments/donation-ledger/pkg/ledger/account/postgres"
	"github.com/code-payments/donation-ledger/pkg/ledger/rpc"
	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/metrics"
	"github.com/code-payments/donation-ledger/pkg/solana/donation"
)

type ledger struct {
	log *logrus.Entry

	bank   *runtime.Bank
	server *rpc.Server

	slots      *cron.Cron
	closeStore func() error

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newLedger() *ledger {
	return &ledger{
		log:        logrus.StandardLogger().WithField("type", "ledgerd"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (l *ledger) Init(_ app.Config, metricsProvider *newrelic.Application) error {
	config := loadLedgerConfig()

	ctx := context.Background()
	if metricsProvider != nil {
		ctx = metrics.NewContext(ctx, metricsProvider)
	}

	store, closeStore, err := openStore(config)
	if err != nil {
		return err
	}
	l.closeStore = closeStore

	l.bank, err = runtime.New(ctx, store, runtime.WithEnvConfigs(), donation.NewProgram())
	if err != nil {
		return errors.Wrap(err, "failed to initialize bank")
	}
	l.server = rpc.NewServer(l.bank, rpc.WithEnvConfigs())

	l.slots = cron.New()
	_, err = l.slots.AddFunc(config.SlotSchedule, func() {
		slot := l.bank.AdvanceSlot(ctx)
		l.log.WithField("slot", slot).Trace("slot advanced")
	})
	if err != nil {
		return errors.Wrapf(err, "invalid slot schedule %q", config.SlotSchedule)
	}
	l.slots.Start()

	l.log.WithFields(logrus.Fields{
		"account_store": config.AccountStore,
		"program":       base58.Encode(donation.PROGRAM_ID),
		"faucet":        base58.Encode(l.bank.FaucetKey()),
	}).Info("ledger initialized")

	return nil
}

// Handler implements app.App.Handler
func (l *ledger) Handler() http.Handler {
	return l.server.Handler()
}

// ShutdownChan implements app.App.ShutdownChan
func (l *ledger) ShutdownChan() <-chan struct{} {
	return l.shutdownCh
}

// Stop implements app.App.Stop
func (l *ledger) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.shutdownCh)

		if l.slots != nil {
			<-l.slots.Stop().Done()
		}

		if l.closeStore != nil {
			if err := l.closeStore(); err != nil {
				l.log.WithError(err).Warn("failed to close account store")
			}
		}
	})
}

func openStore(config ledgerConfig) (account.Store, func() error, error) {
	switch config.AccountStore {
	case accountStoreMemory:
		return memory.New(), func() error { return nil }, nil
	case accountStoreBolt:
		return bolt.Open(config.BoltPath)
	case accountStorePostgres:
		if config.PostgresDSN == "" {
			return nil, nil, errors.New("postgres dsn must be provided for the postgres account store")
		}

		db, err := pg.NewWithDSN(config.PostgresDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to postgres")
		}
		if _, err := db.Exec(postgres.Schema); err != nil {
			db.Close()
			return nil, nil, errors.Wrap(err, "failed to create account schema")
		}
		return postgres.New(db), db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown account store: %s", config.AccountStore)
	}
}
