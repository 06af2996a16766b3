package database

import (
	"errors"
	"strings"

	"vaultshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleVersion is returned when a versioned listing update matched no row
// because another writer bumped the version first.
var ErrStaleVersion = errors.New("listing version changed concurrently")

// Postgres error codes that mean "try the whole transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// LockListing loads a listing inside tx. On Postgres the row is held FOR UPDATE
// until tx ends; on SQLite the write transaction already serializes writers.
func LockListing(tx *gorm.DB, id uuid.UUID) (*domain.Listing, error) {
	if IsPostgres(tx) {
		return FindListing(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
	}
	return FindListing(tx, id)
}

// FindListing loads a listing without locking it.
func FindListing(db *gorm.DB, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	if err := db.Where("listing_id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ListingNotFound(id)
		}
		return nil, err
	}
	return &l, nil
}

// SumInvested re-derives a listing's committed total from the ledger rows.
// Amounts are summed as decimals in Go so no driver float arithmetic leaks in.
func SumInvested(tx *gorm.DB, listingID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := tx.Model(&domain.Investment{}).
		Where("listing_id = ?", listingID).
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return sum(amounts), nil
}

type listingAmount struct {
	ListingID uuid.UUID
	Amount    decimal.Decimal
}

// SumInvestedByListing returns committed totals for several listings in one
// query. Listings with no investments are absent from the map.
func SumInvestedByListing(db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []listingAmount
	if err := db.Model(&domain.Investment{}).
		Select("listing_id, amount").
		Where("listing_id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ListingID] = out[r.ListingID].Add(r.Amount)
	}
	return out, nil
}

// UpdateListingVersioned applies updates only if the stored version still equals
// l.Version, and bumps it. On success l.Version is advanced to the new value.
func UpdateListingVersioned(tx *gorm.DB, l *domain.Listing, updates map[string]interface{}) error {
	next := l.Version + 1
	updates["version"] = next
	res := tx.Model(&domain.Listing{}).
		Where("listing_id = ? AND version = ?", l.ListingID, l.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	l.Version = next
	return nil
}

// IsTransient reports whether err is lock contention or a serialization
// failure that a fresh transaction could succeed past.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleVersion) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgUniqueViolation:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
