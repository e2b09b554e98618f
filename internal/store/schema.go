package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemas holds the DDL statements per driver. Timestamps are Unix milliseconds, tags a JSON
// array.
var schemas = map[string][]string{
	DriverMySQL: {`
		CREATE TABLE IF NOT EXISTS contacts (
			id           VARCHAR(36)  NOT NULL,
			contact_key  VARCHAR(255) NOT NULL,
			name         VARCHAR(255) NOT NULL,
			email        VARCHAR(255) NOT NULL DEFAULT '',
			company      VARCHAR(255) NOT NULL DEFAULT '',
			title        VARCHAR(255) NOT NULL DEFAULT '',
			location     VARCHAR(255) NOT NULL DEFAULT '',
			phone        VARCHAR(64)  NOT NULL DEFAULT '',
			profile_url  VARCHAR(512) NOT NULL DEFAULT '',
			picture      VARCHAR(1024) NOT NULL DEFAULT '',
			source       VARCHAR(128) NOT NULL DEFAULT '',
			connected_on VARCHAR(64)  NOT NULL DEFAULT '',
			tags         TEXT         NOT NULL,
			created_at   BIGINT       NOT NULL,
			updated_at   BIGINT       NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY contacts_contact_key (contact_key),
			KEY contacts_created_at (created_at)
		) DEFAULT CHARSET=utf8mb4`,
	},
	DriverSQLite: {`
		CREATE TABLE IF NOT EXISTS contacts (
			id           TEXT    NOT NULL PRIMARY KEY,
			contact_key  TEXT    NOT NULL UNIQUE,
			name         TEXT    NOT NULL,
			email        TEXT    NOT NULL DEFAULT '',
			company      TEXT    NOT NULL DEFAULT '',
			title        TEXT    NOT NULL DEFAULT '',
			location     TEXT    NOT NULL DEFAULT '',
			phone        TEXT    NOT NULL DEFAULT '',
			profile_url  TEXT    NOT NULL DEFAULT '',
			picture      TEXT    NOT NULL DEFAULT '',
			source       TEXT    NOT NULL DEFAULT '',
			connected_on TEXT    NOT NULL DEFAULT '',
			tags         TEXT    NOT NULL DEFAULT '[]',
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS contacts_created_at ON contacts (created_at)`,
	},
	DriverPostgres: {`
		CREATE TABLE IF NOT EXISTS contacts (
			id           VARCHAR(36) PRIMARY KEY,
			contact_key  TEXT   NOT NULL UNIQUE,
			name         TEXT   NOT NULL,
			email        TEXT   NOT NULL DEFAULT '',
			company      TEXT   NOT NULL DEFAULT '',
			title        TEXT   NOT NULL DEFAULT '',
			location     TEXT   NOT NULL DEFAULT '',
			phone        TEXT   NOT NULL DEFAULT '',
			profile_url  TEXT   NOT NULL DEFAULT '',
			picture      TEXT   NOT NULL DEFAULT '',
			source       TEXT   NOT NULL DEFAULT '',
			connected_on TEXT   NOT NULL DEFAULT '',
			tags         TEXT   NOT NULL DEFAULT '[]',
			created_at   BIGINT NOT NULL,
			updated_at   BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS contacts_created_at ON contacts (created_at)`,
	},
}

// Schema returns the DDL statements for a SQL driver.
func Schema(driver string) ([]string, error) {
	stmts, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("no schema for driver %q", driver)
	}
	return stmts, nil
}

// Migrate creates the contacts table and its indexes if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, err := Schema(db.DriverName())
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
