package database

import (
	"strings"

	"vaultshare-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const sqlitePrefix = "sqlite://"

// Open opens a GORM DB from DSN. A sqlite:// DSN opens a local file (or
// ":memory:") for development; anything else is treated as a Postgres URL.
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), cfg)
}

// Models lists every table the ledger owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Listing{},
		&domain.Investment{},
		&domain.ListingEvent{},
		&domain.IdempotencyRecord{},
	}
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// IsPostgres reports whether db talks to Postgres (row locks, read-only tx).
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
