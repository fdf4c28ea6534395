// Package utils holds small connection helpers the CLI uses to open the
// Redis cache client and the build-history database.
package utils

import (
	"database/sql"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

// OpenPostgres opens a connection pool against dsn with the pool sizes
// this build tool expects: modest, since a build issues batched queries
// rather than one-per-request traffic.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	return db, nil
}

// BuildPostgresDSNFromEnv assembles a libpq DSN from GEOQUAD_PG_* variables,
// defaulting to a local geoquad database with SSL disabled.
func BuildPostgresDSNFromEnv() string {
	host := os.Getenv("GEOQUAD_PG_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("GEOQUAD_PG_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("GEOQUAD_PG_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("GEOQUAD_PG_PASSWORD")
	dbName := os.Getenv("GEOQUAD_PG_DB")
	if dbName == "" {
		dbName = "geoquad"
	}
	ssl := os.Getenv("GEOQUAD_PG_SSLMODE")
	if ssl == "" {
		ssl = "disable"
	}
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + dbName + "?sslmode=" + ssl
	return dsn
}

// OpenPostgresFromEnv opens a pool sized by GEOQUAD_PG_MAX_OPEN_CONNS and
// GEOQUAD_PG_MAX_IDLE_CONNS against BuildPostgresDSNFromEnv's DSN.
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	maxOpen, maxIdle := 16, 8
	if v := os.Getenv("GEOQUAD_PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			maxOpen = n
		}
	}
	if v := os.Getenv("GEOQUAD_PG_MAX_IDLE_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			maxIdle = n
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}
