// Package store persists contacts.
//
// Every backend keys contacts twice: by the opaque ID it assigns and by the derived key of the
// contact name, which is unique. Lookups of absent contacts return apperr.ErrNotFound.
package store

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// Store is the contact repository used by the import and search pipeline.
type Store interface {
	// Name identifies the backend, e.g. "memory" or "mysql".
	Name() string
	FindAll(ctx context.Context) ([]model.Contact, error)
	FindByKey(ctx context.Context, key string) (model.Contact, error)
	FindByID(ctx context.Context, id string) (model.Contact, error)
	// List returns a page of contacts, newest first.
	List(ctx context.Context, offset, limit int) ([]model.Contact, error)
	Count(ctx context.Context) (int, error)
	// Upsert inserts the contact or replaces the one with the same key. An empty ID is assigned
	// by the store.
	Upsert(ctx context.Context, c *model.Contact) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	// Driver is one of memory, sqlite, mysql, postgres and mongodb.
	Driver string
	// DSN is the data source name or connection URI of the driver.
	DSN string
	// Database is the MongoDB database name.
	Database string
	// Migrate creates the SQL schema when the store is opened.
	Migrate bool
}

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

// Drivers lists every supported driver.
var Drivers = []string{DriverMemory, DriverSQLite, DriverMySQL, DriverPostgres, DriverMongoDB}

// Open creates the store selected by the configuration.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite, DriverMySQL, DriverPostgres:
		return OpenSQLStore(ctx, cfg.Driver, cfg.DSN, cfg.Migrate)
	case DriverMongoDB:
		return OpenMongoStore(ctx, cfg.DSN, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// millis converts a timestamp to Unix milliseconds, the representation used by the SQL and
// MongoDB backends.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
