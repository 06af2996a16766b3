package portfolio

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Kind tags a position as a direct investment or a seller's retained stake.
type Kind string

const (
	KindAll      Kind = "all"
	KindInvestor Kind = "investor"
	KindSeller   Kind = "seller"
)

const sellerIDPrefix = "seller:"

type Service struct {
	DB *gorm.DB
}

// Position is one entry of a principal's merged holdings view.
type Position struct {
	ID                  string               `json:"id"`
	Kind                Kind                 `json:"kind"`
	ListingID           uuid.UUID            `json:"listing"`
	ListingTitle        string               `json:"listing_title"`
	ListingStatus       domain.ListingStatus `json:"listing_status"`
	ListingAssetValue   string               `json:"listing_asset_value"`
	ListingTargetAmount string               `json:"listing_target_amount"`
	Amount              string               `json:"amount"`
	OwnershipPercent    string               `json:"ownership_percent"`
	CreatedAt           time.Time            `json:"created_at"`

	amount decimal.Decimal
}

type Totals struct {
	Invested string `json:"invested"`
	Retained string `json:"retained"`
}

// View is the filtered entries plus totals over the same entries.
type View struct {
	Kind    Kind       `json:"kind"`
	Entries []Position `json:"entries"`
	Totals  Totals     `json:"totals"`
}

// ParseKind maps a query value to a Kind. Empty means all.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindAll:
		return KindAll, nil
	case KindInvestor, KindSeller:
		return Kind(s), nil
	}
	return "", &domain.ValidationError{Field: "kind", Message: "Kind must be one of all, investor, seller."}
}

// PositionsFor merges the principal's investments with synthetic retained
// holdings for listings they sell, newest first. Both sets are read in one
// read-only transaction so no entry reflects a half-committed admission.
func (s *Service) PositionsFor(ctx context.Context, principal uuid.UUID) ([]Position, error) {
	if principal == uuid.Nil {
		return nil, domain.ErrUnauthenticated()
	}

	var (
		investments []domain.Investment
		owned       []domain.Listing
	)
	read := func(tx *gorm.DB) error {
		if err := tx.Preload("Listing").
			Where("investor_id = ?", principal).
			Find(&investments).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ? AND seller_retain_percent > 0 AND asset_value > 0", principal).
			Find(&owned).Error
	}

	db := s.DB.WithContext(ctx)
	var err error
	if database.IsPostgres(db) {
		err = db.Transaction(read, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	} else {
		err = db.Transaction(read)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Position, 0, len(investments)+len(owned))
	for i := range investments {
		out = append(out, investorPosition(&investments[i]))
	}
	for i := range owned {
		if !owned[i].HasRetainedHolding() {
			continue
		}
		out = append(out, sellerPosition(&owned[i]))
	}
	sortPositions(out)
	return out, nil
}

// Filter keeps entries of the given kind without re-querying.
func Filter(positions []Position, kind Kind) []Position {
	if kind == KindAll || kind == "" {
		return positions
	}
	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Summarize wraps positions into a View with per-kind totals.
func Summarize(positions []Position, kind Kind) View {
	invested, retained := decimal.Zero, decimal.Zero
	for _, p := range positions {
		switch p.Kind {
		case KindInvestor:
			invested = invested.Add(p.amount)
		case KindSeller:
			retained = retained.Add(p.amount)
		}
	}
	return View{
		Kind:    kind,
		Entries: positions,
		Totals: Totals{
			Invested: domain.FormatCurrency(invested),
			Retained: domain.FormatCurrency(retained),
		},
	}
}

func investorPosition(inv *domain.Investment) Position {
	p := Position{
		ID:               inv.InvestmentID.String(),
		Kind:             KindInvestor,
		ListingID:        inv.ListingID,
		Amount:           domain.FormatCurrency(inv.Amount),
		OwnershipPercent: domain.FormatCurrency(inv.OwnershipPercent),
		CreatedAt:        inv.CreatedAt,
		amount:           inv.Amount,
	}
	if l := inv.Listing; l != nil {
		p.ListingTitle = l.Title
		p.ListingStatus = l.Status
		p.ListingAssetValue = domain.FormatCurrency(l.AssetValue)
		p.ListingTargetAmount = domain.FormatCurrency(l.TargetAmount())
	}
	return p
}

func sellerPosition(l *domain.Listing) Position {
	amount := l.RetainedAmount()
	return Position{
		ID:                  sellerIDPrefix + l.ListingID.String(),
		Kind:                KindSeller,
		ListingID:           l.ListingID,
		ListingTitle:        l.Title,
		ListingStatus:       l.Status,
		ListingAssetValue:   domain.FormatCurrency(l.AssetValue),
		ListingTargetAmount: domain.FormatCurrency(l.TargetAmount()),
		Amount:              domain.FormatCurrency(amount),
		OwnershipPercent:    domain.FormatCurrency(l.SellerRetainPercent),
		CreatedAt:           l.CreatedAt,
		amount:              amount,
	}
}

// sortPositions orders newest first; equal timestamps fall back to id.
func sortPositions(ps []Position) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
