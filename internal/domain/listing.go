package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Listing is a fractional ownership offering in a single collectible.
// The offered percent and target amount are not columns: they are derived from
// AssetValue and SellerRetainPercent through ComputeTerms on every read.
type Listing struct {
	ListingID           uuid.UUID           `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	OwnerID             uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Title               string              `gorm:"column:title;not null" json:"title"`
	Description         string              `gorm:"column:description;type:text" json:"description"`
	Category            string              `gorm:"column:category" json:"category"`
	AssetValue          decimal.Decimal     `gorm:"column:asset_value;type:decimal(14,2);not null;default:0" json:"asset_value"`
	SellerRetainPercent decimal.Decimal     `gorm:"column:seller_retain_percent;type:decimal(5,2);not null;default:0" json:"seller_retain_percent"`
	MinInvestment       decimal.NullDecimal `gorm:"column:min_investment;type:decimal(14,2)" json:"min_investment"`
	Status              ListingStatus       `gorm:"column:status;type:varchar(20);not null;default:'draft';index" json:"status"`
	Version             int64               `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt           time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func (Listing) TableName() string {
	return "Listings"
}

// BeforeCreate sets listing_id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}

// Terms recomputes the investable terms from the stored seller inputs.
func (l *Listing) Terms() (Terms, error) {
	return ComputeTerms(l.AssetValue, l.SellerRetainPercent)
}

// TargetAmount is the currency-rounded ceiling for committed investment.
// Stored inputs are validated on write, so a failing computation yields zero.
func (l *Listing) TargetAmount() decimal.Decimal {
	t, err := l.Terms()
	if err != nil {
		return decimal.Zero
	}
	return t.Rounded().TargetAmount
}

// OwnedBy reports whether principal created the listing.
func (l *Listing) OwnedBy(principal uuid.UUID) bool {
	return principal != uuid.Nil && l.OwnerID == principal
}

// RetainedAmount is the seller's own share of the asset value, rounded to cents.
func (l *Listing) RetainedAmount() decimal.Decimal {
	return RoundCurrency(l.AssetValue.Mul(l.SellerRetainPercent).Div(hundred))
}

// HasRetainedHolding reports whether the seller keeps a non-zero stake worth showing.
func (l *Listing) HasRetainedHolding() bool {
	return l.SellerRetainPercent.IsPositive() && l.AssetValue.IsPositive()
}
