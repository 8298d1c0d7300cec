package postgres

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"database/sql"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/metrics"
)

const metricsStructName = "account.postgres.store"

type store struct {
	db *sqlx.DB
}

// New returns a postgres backed account.Store
func New(db *sql.DB) account.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements account.Store.Get
func (s *store) Get(ctx context.Context, address ed25519.PublicKey) (*account.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Get")
	defer tracer.End()

	model, err := dbGet(ctx, s.db, address)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return fromAccountModel(model)
}

// GetMany implements account.Store.GetMany
func (s *store) GetMany(ctx context.Context, addresses ...ed25519.PublicKey) ([]*account.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetMany")
	defer tracer.End()

	encoded := make([]string, len(addresses))
	for i, address := range addresses {
		encoded[i] = base58.Encode(address)
	}

	models, err := dbGetMany(ctx, s.db, encoded)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	byAddress := make(map[string]*accountModel, len(models))
	for _, model := range models {
		byAddress[model.Address] = model
	}

	res := make([]*account.Record, len(addresses))
	for i, address := range encoded {
		model, ok := byAddress[address]
		if !ok {
			continue
		}

		res[i], err = fromAccountModel(model)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// GetProgramAccounts implements account.Store.GetProgramAccounts
func (s *store) GetProgramAccounts(ctx context.Context, owner ed25519.PublicKey) ([]*account.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetProgramAccounts")
	defer tracer.End()

	models, err := dbGetAllByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}

	res := make([]*account.Record, len(models))
	for i, model := range models {
		res[i], err = fromAccountModel(model)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].Address, res[j].Address) < 0
	})
	return res, nil
}

// Commit implements account.Store.Commit
func (s *store) Commit(ctx context.Context, slot uint64, records ...*account.Record) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Commit")
	defer tracer.End()

	models := make([]*accountModel, len(records))
	for i, record := range records {
		model, err := toAccountModel(record)
		if err != nil {
			return err
		}
		model.Slot = int64(slot)
		models[i] = model
	}

	if err := dbCommit(ctx, s.db, models); err != nil {
		tracer.OnError(err)
		return err
	}

	for _, record := range records {
		record.Slot = slot
	}
	return nil
}
