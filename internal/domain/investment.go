package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investment is an immutable ledger entry. Rows are only ever inserted by
// admission; there is no update or delete path.
type Investment struct {
	InvestmentID     uuid.UUID       `gorm:"column:investment_id;type:uuid;primaryKey" json:"investment_id"`
	ListingID        uuid.UUID       `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	InvestorID       uuid.UUID       `gorm:"column:investor_id;type:uuid;not null;index" json:"investor_id"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	OwnershipPercent decimal.Decimal `gorm:"column:ownership_percent;type:decimal(7,2);not null" json:"ownership_percent"`
	CreatedAt        time.Time       `gorm:"column:created_at;index" json:"created_at"`

	Listing *Listing `gorm:"foreignKey:ListingID;references:ListingID" json:"-"`
}

func (Investment) TableName() string {
	return "Investments"
}

func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.InvestmentID == uuid.Nil {
		i.InvestmentID = uuid.New()
	}
	return nil
}
