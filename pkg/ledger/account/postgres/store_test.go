package postgres

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/ledger/account/tests"

	postgrestest "github.com/code-payments/donation-ledger/pkg/database/postgres/test"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	// Used for testing ONLY
	tableDestroy = `
		DROP TABLE ledger__core_account;
	`
)

var (
	testStore account.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	testPool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	db, cleanUpFunc, err := postgrestest.StartPostgresDB(testPool, Schema)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}
	defer db.Close()

	testStore = New(db)
	teardown = func() {
		if pc := recover(); pc != nil {
			cleanUpFunc()
			panic(pc)
		}

		if err := resetTestTables(db); err != nil {
			log.WithError(err).Error("Error resetting test tables")
			cleanUpFunc()
			os.Exit(1)
		}
	}

	code := m.Run()
	cleanUpFunc()
	os.Exit(code)
}

func TestAccountPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}

func resetTestTables(db *sql.DB) error {
	if _, err := db.Exec(tableDestroy); err != nil {
		return err
	}

	_, err := db.Exec(Schema)
	return err
}
