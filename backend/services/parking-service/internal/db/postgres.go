package db

import (
	"database/sql"

	libdb "parkcard/backend/libs/db"
)

// NewPostgres returns shared DB connection.
func NewPostgres(dsn string, maxOpenConns int) (*sql.DB, error) {
	return libdb.NewPostgresDB(dsn, libdb.PoolOptions{MaxOpenConns: maxOpenConns})
}
