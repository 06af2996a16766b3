package listings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vaultshare-backend/internal/application/listingevents"
	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

type CreateListingInput struct {
	OwnerID             uuid.UUID
	Title               string
	Description         string
	Category            string
	AssetValue          decimal.Decimal
	SellerRetainPercent decimal.Decimal
	MinInvestment       decimal.NullDecimal
}

// EditListingInput carries a partial edit. Nil fields are left unchanged; a
// non-nil MinInvestment with Valid=false clears the floor.
type EditListingInput struct {
	Title               *string
	Description         *string
	Category            *string
	AssetValue          *decimal.Decimal
	SellerRetainPercent *decimal.Decimal
	MinInvestment       *decimal.NullDecimal
}

// Summary is the read model of a listing with its derived funding figures.
type Summary struct {
	ID                  uuid.UUID            `json:"id"`
	Title               string               `json:"title"`
	Description         string               `json:"description"`
	Category            string               `json:"category"`
	OwnerID             uuid.UUID            `json:"owner_id"`
	OwnerName           string               `json:"owner_name"`
	AssetValue          string               `json:"asset_value"`
	SellerRetainPercent string               `json:"seller_retain_percent"`
	OfferedPercent      string               `json:"offered_percent"`
	TargetAmount        string               `json:"target_amount"`
	TotalInvested       string               `json:"total_invested"`
	PercentFunded       string               `json:"percent_funded"`
	MinInvestment       *string              `json:"min_investment"`
	Status              domain.ListingStatus `json:"status"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// ListFilter narrows ListListings. A zero value lists everything.
type ListFilter struct {
	Status  domain.ListingStatus
	OwnerID uuid.UUID
}

func (s *Service) CreateListing(ctx context.Context, in CreateListingInput) (*Summary, error) {
	if in.OwnerID == uuid.Nil {
		return nil, domain.ErrUnauthenticated()
	}
	listing := &domain.Listing{
		OwnerID:             in.OwnerID,
		Title:               strings.TrimSpace(in.Title),
		Description:         in.Description,
		Category:            in.Category,
		AssetValue:          in.AssetValue,
		SellerRetainPercent: in.SellerRetainPercent,
		MinInvestment:       in.MinInvestment,
		Status:              domain.StatusDraft,
	}
	if listing.Title == "" {
		return nil, &domain.ValidationError{Field: "title", Message: "Title is required."}
	}
	terms, err := validateTerms(listing)
	if err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(listing).Error; err != nil {
			return err
		}
		return listingevents.Record(tx, listing.ListingID, in.OwnerID, domain.EventCreated, termsEventData(listing, terms))
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("listing_id", listing.ListingID.String()).Str("owner_id", in.OwnerID.String()).Msg("listing created")
	return s.summarize(s.DB.WithContext(ctx), listing, decimal.Zero)
}

func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*Summary, error) {
	db := s.DB.WithContext(ctx)
	l, err := database.FindListing(db, id)
	if err != nil {
		return nil, err
	}
	total, err := database.SumInvested(db, id)
	if err != nil {
		return nil, err
	}
	return s.summarize(db, l, total)
}

// ListListings returns listings newest first with their committed totals.
func (s *Service) ListListings(ctx context.Context, f ListFilter) ([]Summary, error) {
	db := s.DB.WithContext(ctx)
	q := db.Model(&domain.Listing{}).Order("created_at DESC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OwnerID != uuid.Nil {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	var rows []domain.Listing
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(rows))
	ownerIDs := make([]uuid.UUID, 0, len(rows))
	for _, l := range rows {
		ids = append(ids, l.ListingID)
		ownerIDs = append(ownerIDs, l.OwnerID)
	}
	totals, err := database.SumInvestedByListing(db, ids)
	if err != nil {
		return nil, err
	}
	names, err := ownerNames(db, ownerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(rows))
	for i := range rows {
		out = append(out, buildSummary(&rows[i], totals[rows[i].ListingID], names[rows[i].OwnerID]))
	}
	return out, nil
}

// EditListing changes content or terms of a draft listing. Terms are
// recomputed from the new inputs and may not drop the target below what is
// already committed. Contention fails fast.
func (s *Service) EditListing(ctx context.Context, principal, id uuid.UUID, in EditListingInput) (*Summary, error) {
	var (
		updated *domain.Listing
		total   decimal.Decimal
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.ownedListing(tx, principal, id)
		if err != nil {
			return err
		}
		if !l.Status.Editable() {
			return &domain.InvalidStateError{Status: l.Status, Message: "Only draft listings can be edited."}
		}

		updates := map[string]interface{}{}
		changed := []string{}
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			if t == "" {
				return &domain.ValidationError{Field: "title", Message: "Title is required."}
			}
			l.Title = t
			updates["title"] = t
			changed = append(changed, "title")
		}
		if in.Description != nil {
			l.Description = *in.Description
			updates["description"] = *in.Description
			changed = append(changed, "description")
		}
		if in.Category != nil {
			l.Category = *in.Category
			updates["category"] = *in.Category
			changed = append(changed, "category")
		}
		if in.AssetValue != nil {
			l.AssetValue = *in.AssetValue
			updates["asset_value"] = l.AssetValue
			changed = append(changed, "asset_value")
		}
		if in.SellerRetainPercent != nil {
			l.SellerRetainPercent = *in.SellerRetainPercent
			updates["seller_retain_percent"] = l.SellerRetainPercent
			changed = append(changed, "seller_retain_percent")
		}
		if in.MinInvestment != nil {
			l.MinInvestment = *in.MinInvestment
			updates["min_investment"] = l.MinInvestment
			changed = append(changed, "min_investment")
		}

		terms, err := validateTerms(l)
		if err != nil {
			return err
		}
		total, err = database.SumInvested(tx, id)
		if err != nil {
			return err
		}
		if target := terms.Rounded().TargetAmount; target.LessThan(total) {
			return &domain.ValidationError{
				Field:   "asset_value",
				Message: fmt.Sprintf("Target amount cannot be lower than the %s already invested.", domain.DisplayCurrency(total)),
				Limit:   &total,
			}
		}
		if len(updates) == 0 {
			updated = l
			return nil
		}

		if err := database.UpdateListingVersioned(tx, l, updates); err != nil {
			return err
		}
		data := termsEventData(l, terms)
		data["fields"] = changed
		if err := listingevents.Record(tx, l.ListingID, principal, domain.EventUpdated, data); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, failFast(err)
	}
	return s.summarize(s.DB.WithContext(ctx), updated, total)
}

// Publish moves a draft listing live. A listing whose committed total already
// equals its target goes straight to closed.
func (s *Service) Publish(ctx context.Context, principal, id uuid.UUID) (*Summary, error) {
	return s.transition(ctx, principal, id, domain.StatusLive, func(tx *gorm.DB, l *domain.Listing, total decimal.Decimal) (domain.ListingStatus, string, error) {
		target := l.TargetAmount()
		if !target.IsPositive() {
			return "", "", &domain.ValidationError{
				Field:   "asset_value",
				Message: "Listing needs an asset value and an offered percent above zero before it can go live.",
			}
		}
		if total.GreaterThanOrEqual(target) {
			return domain.StatusClosed, domain.EventFunded, nil
		}
		return domain.StatusLive, domain.EventPublished, nil
	})
}

// Unpublish takes a live listing back to draft. Committed investments stay.
func (s *Service) Unpublish(ctx context.Context, principal, id uuid.UUID) (*Summary, error) {
	return s.transition(ctx, principal, id, domain.StatusDraft, func(*gorm.DB, *domain.Listing, decimal.Decimal) (domain.ListingStatus, string, error) {
		return domain.StatusDraft, domain.EventUnpublished, nil
	})
}

// Close ends funding on a live listing at the seller's request.
func (s *Service) Close(ctx context.Context, principal, id uuid.UUID) (*Summary, error) {
	return s.transition(ctx, principal, id, domain.StatusClosed, func(*gorm.DB, *domain.Listing, decimal.Decimal) (domain.ListingStatus, string, error) {
		return domain.StatusClosed, domain.EventClosed, nil
	})
}

type transitionFunc func(tx *gorm.DB, l *domain.Listing, total decimal.Decimal) (domain.ListingStatus, string, error)

func (s *Service) transition(ctx context.Context, principal, id uuid.UUID, next domain.ListingStatus, decide transitionFunc) (*Summary, error) {
	var (
		l     *domain.Listing
		total decimal.Decimal
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = s.ownedListing(tx, principal, id)
		if err != nil {
			return err
		}
		if !l.Status.CanTransition(next) {
			return &domain.InvalidStateError{
				Status:  l.Status,
				Message: fmt.Sprintf("A %s listing cannot move to %s.", l.Status, next),
			}
		}
		total, err = database.SumInvested(tx, id)
		if err != nil {
			return err
		}
		to, event, err := decide(tx, l, total)
		if err != nil {
			return err
		}
		from := l.Status
		if err := database.UpdateListingVersioned(tx, l, map[string]interface{}{"status": to}); err != nil {
			return err
		}
		l.Status = to
		return listingevents.Record(tx, l.ListingID, principal, event, map[string]interface{}{
			"from":           from,
			"to":             to,
			"total_invested": domain.FormatCurrency(total),
		})
	})
	if err != nil {
		return nil, failFast(err)
	}
	log.Info().Str("listing_id", id.String()).Str("status", string(l.Status)).Msg("listing status changed")
	return s.summarize(s.DB.WithContext(ctx), l, total)
}

// Delete removes a draft listing that has never received an investment.
func (s *Service) Delete(ctx context.Context, principal, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.ownedListing(tx, principal, id)
		if err != nil {
			return err
		}
		if l.Status != domain.StatusDraft {
			return &domain.InvalidStateError{Status: l.Status, Message: "Only draft listings can be deleted."}
		}
		total, err := database.SumInvested(tx, id)
		if err != nil {
			return err
		}
		if total.IsPositive() {
			return &domain.InvalidStateError{Status: l.Status, Message: "A listing with committed investments cannot be deleted."}
		}
		if err := tx.Where("listing_id = ?", id).Delete(&domain.ListingEvent{}).Error; err != nil {
			return err
		}
		res := tx.Where("listing_id = ? AND version = ?", id, l.Version).Delete(&domain.Listing{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return database.ErrStaleVersion
		}
		return nil
	})
	if err != nil {
		return failFast(err)
	}
	log.Info().Str("listing_id", id.String()).Msg("listing deleted")
	return nil
}

// ownedListing locks the listing and checks the principal may modify it.
// Missing listings are reported before ownership.
func (s *Service) ownedListing(tx *gorm.DB, principal, id uuid.UUID) (*domain.Listing, error) {
	l, err := database.LockListing(tx, id)
	if err != nil {
		return nil, err
	}
	if principal == uuid.Nil {
		return nil, domain.ErrUnauthenticated()
	}
	if !l.OwnedBy(principal) {
		return nil, domain.ErrNotOwner()
	}
	return l, nil
}

func (s *Service) summarize(db *gorm.DB, l *domain.Listing, total decimal.Decimal) (*Summary, error) {
	names, err := ownerNames(db, []uuid.UUID{l.OwnerID})
	if err != nil {
		return nil, err
	}
	sum := buildSummary(l, total, names[l.OwnerID])
	return &sum, nil
}

func buildSummary(l *domain.Listing, total decimal.Decimal, ownerName string) Summary {
	terms, _ := l.Terms()
	terms = terms.Rounded()
	out := Summary{
		ID:                  l.ListingID,
		Title:               l.Title,
		Description:         l.Description,
		Category:            l.Category,
		OwnerID:             l.OwnerID,
		OwnerName:           ownerName,
		AssetValue:          domain.FormatCurrency(l.AssetValue),
		SellerRetainPercent: domain.FormatCurrency(l.SellerRetainPercent),
		OfferedPercent:      domain.FormatCurrency(terms.OfferedPercent),
		TargetAmount:        domain.FormatCurrency(terms.TargetAmount),
		TotalInvested:       domain.FormatCurrency(total),
		PercentFunded:       domain.FormatCurrency(domain.PercentFunded(total, terms.TargetAmount)),
		Status:              l.Status,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
	if l.MinInvestment.Valid {
		m := domain.FormatCurrency(l.MinInvestment.Decimal)
		out.MinInvestment = &m
	}
	return out
}

func ownerNames(db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	if len(ids) == 0 {
		return out, nil
	}
	var users []domain.User
	if err := db.Select("user_id", "name").Where("user_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.UserID] = u.Name
	}
	return out, nil
}

// validateTerms checks the seller inputs exactly as given. Out-of-range or
// over-precise values are rejected, never rounded into range.
func validateTerms(l *domain.Listing) (domain.Terms, error) {
	terms, err := l.Terms()
	if err != nil {
		return domain.Terms{}, err
	}
	if err := domain.CheckCurrency("asset_value", l.AssetValue); err != nil {
		return domain.Terms{}, err
	}
	if err := domain.CheckCurrency("seller_retain_percent", l.SellerRetainPercent); err != nil {
		return domain.Terms{}, err
	}
	if l.MinInvestment.Valid {
		if l.MinInvestment.Decimal.IsNegative() {
			return domain.Terms{}, &domain.ValidationError{Field: "min_investment", Message: "Minimum investment must not be negative."}
		}
		if err := domain.CheckCurrency("min_investment", l.MinInvestment.Decimal); err != nil {
			return domain.Terms{}, err
		}
	}
	return terms, nil
}

func termsEventData(l *domain.Listing, terms domain.Terms) map[string]interface{} {
	r := terms.Rounded()
	return map[string]interface{}{
		"asset_value":           domain.FormatCurrency(l.AssetValue),
		"seller_retain_percent": domain.FormatCurrency(l.SellerRetainPercent),
		"offered_percent":       domain.FormatCurrency(r.OfferedPercent),
		"target_amount":         domain.FormatCurrency(r.TargetAmount),
	}
}

// failFast turns store contention into a ConflictError without retrying.
// Domain errors pass through untouched.
func failFast(err error) error {
	if database.IsTransient(err) {
		log.Warn().Err(err).Msg("listing write lost a concurrent update")
		return &domain.ConflictError{Attempts: 1}
	}
	return err
}
