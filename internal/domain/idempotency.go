package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdempotencyRecord remembers which investment an (investor, key) pair produced
// so a retried admission returns the original entry instead of a duplicate.
type IdempotencyRecord struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	InvestorID     uuid.UUID `gorm:"column:investor_id;type:uuid;not null;uniqueIndex:idx_idem_investor_key"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex:idx_idem_investor_key"`
	ListingID      uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	InvestmentID   uuid.UUID `gorm:"column:investment_id;type:uuid;not null"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	ExpiresAt      time.Time `gorm:"column:expires_at;index"`
}

func (IdempotencyRecord) TableName() string {
	return "IdempotencyRecords"
}

func (r *IdempotencyRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the record no longer deduplicates at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
