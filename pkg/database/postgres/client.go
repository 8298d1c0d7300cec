package pg

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const driverName = "nrpgx"

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	SSLMode            string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// DSN returns the connection URL for the config
func (c *Config) DSN() string {
	sslMode := c.SSLMode
	if len(sslMode) == 0 {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DbName, sslMode,
	)
}

// NewWithConfig opens a connection pool through the New Relic instrumented pgx
// driver and applies the pool limits from the config
func NewWithConfig(config *Config) (*sql.DB, error) {
	db, err := NewWithDSN(config.DSN())
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	return db, nil
}

// NewWithDSN opens a connection pool for the provided connection string
func NewWithDSN(dsn string) (*sql.DB, error) {
	// Try to open a connection pool using the "nrpgx" driver (instead of "postgres")
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// Check if the connection was successful
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
