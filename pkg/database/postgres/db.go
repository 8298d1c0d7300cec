package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// maxSerializationRetries bounds ExecuteRetryable for contended serializable
// transactions
const maxSerializationRetries = 8

// ErrTooManyRetries is returned when a serialization failure persists
var ErrTooManyRetries = errors.New("exceeded max serialization failure retries")

// ExecuteRetryable retries fn while it fails with a serialization failure.
func ExecuteRetryable(fn func() error) error {
	for attempt := 0; attempt < maxSerializationRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !IsSerializationFailure(err) {
			return err
		}
	}
	return ErrTooManyRetries
}

// ExecuteInTx executes fn within a DB transaction at the requested isolation
// level. The transaction is committed when fn succeeds and rolled back
// otherwise.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: isolation,
	})
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		// We always need to execute a Rollback() so sql.DB releases the connection.
		if rollBackErr := tx.Rollback(); rollBackErr != nil {
			return fmt.Errorf("failed to rollback transaction: %w", rollBackErr)
		}
		return err
	}

	return tx.Commit()
}
