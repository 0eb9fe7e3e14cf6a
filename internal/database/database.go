package database

import (
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Connect opens a SQLite database using the provided DSN. The connection
// pool is capped at one: a write transaction then owns the single
// connection, which serializes concurrent checkouts against the same
// bottle rows.
func Connect(dsn string) *sqlx.DB {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Str("dsn", dsn).Msg("failed to connect to database")
	}
	db.SetMaxOpenConns(1)
	return db
}
