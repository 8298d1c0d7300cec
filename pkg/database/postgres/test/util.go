package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/donation-ledger/pkg/retry"
	"github.com/code-payments/donation-ledger/pkg/retry/backoff"
)

const (
	containerName     = "postgres"
	containerVersion  = "14"
	containerAutoKill = 120 * time.Second

	port     = 5432
	user     = "ledgertest"
	password = "ledgerpassword"
	dbname   = "ledgerdb"
)

// StartPostgresDB starts a disposable postgres container, waits until it
// accepts connections and applies the optional schema statements. The returned
// closeFunc purges the container.
func StartPostgresDB(pool *dockertest.Pool, schema ...string) (db *sql.DB, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerName,
		Tag:        containerVersion,
		Env: []string{
			"listen_addresses = '*'",
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		// set AutoRemove to true so that stopped container goes away by itself
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start resource")
	}

	closeFunc = func() {
		_ = pool.Purge(resource)
	}

	// Expire() never returns an error, the container is killed even if the
	// test binary dies before purging it.
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	hostAndPort := resource.GetHostPort(fmt.Sprintf("%d/tcp", port))
	databaseUrl := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, hostAndPort, dbname)

	_, err = retry.Retry(
		func() error {
			db, err = sql.Open("pgx", databaseUrl)
			if err != nil {
				return err
			}
			return db.Ping()
		},
		retry.Limit(50),
		retry.Backoff(backoff.Constant(500*time.Millisecond), 500*time.Second),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for postgres container to become available")
	}

	for _, statement := range schema {
		if _, err := db.Exec(statement); err != nil {
			closeFunc()
			return nil, func() {}, errors.Wrap(err, "failed to apply schema")
		}
	}

	return db, closeFunc, nil
}
