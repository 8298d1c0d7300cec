package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"

	pgutil "github.com/code-payments/donation-ledger/pkg/database/postgres"
)

const (
	accountTableName = "ledger__core_account"

	// Schema creates the account table when it doesn't already exist.
	Schema = `
		CREATE TABLE IF NOT EXISTS ledger__core_account (
			address TEXT NOT NULL PRIMARY KEY,
			owner TEXT NOT NULL,
			lamports BIGINT NOT NULL CHECK (lamports >= 0),
			data BYTEA NOT NULL,
			executable BOOL NOT NULL,
			slot BIGINT NOT NULL,
			last_updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS ledger__core_account__owner ON ledger__core_account (owner);
	`

	allAccountFields = `address, owner, lamports, data, executable, slot, last_updated_at`
)

type accountModel struct {
	Address       string    `db:"address"`
	Owner         string    `db:"owner"`
	Lamports      int64     `db:"lamports"`
	Data          []byte    `db:"data"`
	Executable    bool      `db:"executable"`
	Slot          int64     `db:"slot"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toAccountModel(obj *account.Record) (*accountModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &accountModel{
		Address:    base58.Encode(obj.Address),
		Owner:      base58.Encode(obj.Owner),
		Lamports:   int64(obj.Lamports),
		Data:       data,
		Executable: obj.Executable,
		Slot:       int64(obj.Slot),
	}, nil
}

func fromAccountModel(obj *accountModel) (*account.Record, error) {
	address, err := base58.Decode(obj.Address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address")
	}

	owner, err := base58.Decode(obj.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "invalid owner")
	}

	return &account.Record{
		Address:    address,
		Owner:      owner,
		Lamports:   uint64(obj.Lamports),
		Data:       obj.Data,
		Executable: obj.Executable,
		Slot:       uint64(obj.Slot),
	}, nil
}

func (m *accountModel) isEmpty() bool {
	return m.Lamports == 0 && len(m.Data) == 0
}

func (m *accountModel) dbUpsert(ctx context.Context, tx *sqlx.Tx) error {
	query := `INSERT INTO ` + accountTableName + `
		(` + allAccountFields + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (address)
		DO UPDATE
			SET owner = $2, lamports = $3, data = $4, executable = $5, slot = $6, last_updated_at = $7
			WHERE ` + accountTableName + `.address = $1
		RETURNING
			` + allAccountFields

	m.LastUpdatedAt = time.Now()

	return tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		m.Executable,
		m.Slot,
		m.LastUpdatedAt.UTC(),
	).StructScan(m)
}

func (m *accountModel) dbDelete(ctx context.Context, tx *sqlx.Tx) error {
	query := `DELETE FROM ` + accountTableName + ` WHERE address = $1`
	_, err := tx.ExecContext(ctx, query, m.Address)
	return err
}

func dbCommit(ctx context.Context, db *sqlx.DB, models []*accountModel) error {
	return pgutil.ExecuteRetryable(func() error {
		return pgutil.ExecuteInTx(ctx, db, sql.LevelSerializable, func(tx *sqlx.Tx) error {
			for _, model := range models {
				var err error
				if model.isEmpty() {
					err = model.dbDelete(ctx, tx)
				} else {
					err = model.dbUpsert(ctx, tx)
				}
				if err != nil {
					return errors.Wrapf(err, "failed to commit account %s", model.Address)
				}
			}
			return nil
		})
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, address ed25519.PublicKey) (*accountModel, error) {
	res := &accountModel{}

	query := `SELECT ` + allAccountFields + ` FROM ` + accountTableName + ` WHERE address = $1`

	err := db.GetContext(ctx, res, query, base58.Encode(address))
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}
	return res, nil
}

func dbGetMany(ctx context.Context, db *sqlx.DB, addresses []string) ([]*accountModel, error) {
	res := []*accountModel{}
	if len(addresses) == 0 {
		return res, nil
	}

	query, args, err := sqlx.In(`SELECT `+allAccountFields+` FROM `+accountTableName+` WHERE address IN (?)`, addresses)
	if err != nil {
		return nil, err
	}

	err = db.SelectContext(ctx, &res, db.Rebind(query), args...)
	if err != nil && !pgutil.IsNoRows(err) {
		return nil, err
	}
	return res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner ed25519.PublicKey) ([]*accountModel, error) {
	res := []*accountModel{}

	query := `SELECT ` + allAccountFields + ` FROM ` + accountTableName + ` WHERE owner = $1`

	err := db.SelectContext(ctx, &res, query, base58.Encode(owner))
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}
