package investments

import (
	"context"
	"errors"
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

const (
	defaultMaxRetries     = 5
	defaultIdempotencyTTL = 24 * time.Hour
	retryBackoff          = 15 * time.Millisecond
	maxIdempotencyKeyLen  = 255
)

// Service admits investments against live listings. Every admission runs as
// one transaction: capacity check, ledger insert, optional close and version
// bump commit together or not at all.
type Service struct {
	DB             *gorm.DB
	MaxRetries     int
	IdempotencyTTL time.Duration
}

type AdmitInput struct {
	ListingID      uuid.UUID
	InvestorID     uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Record is the investor-facing view of a ledger entry.
type Record struct {
	ID               uuid.UUID `json:"id"`
	ListingID        uuid.UUID `json:"listing"`
	ListingTitle     string    `json:"listing_title"`
	Amount           string    `json:"amount"`
	OwnershipPercent string    `json:"ownership_percent"`
	CreatedAt        time.Time `json:"created_at"`
}

// AdmitResult is the committed investment and the listing totals right after it.
type AdmitResult struct {
	Investment    Record               `json:"investment"`
	TotalInvested string               `json:"total_invested"`
	TargetAmount  string               `json:"target_amount"`
	PercentFunded string               `json:"percent_funded"`
	ListingStatus domain.ListingStatus `json:"listing_status"`
	Replayed      bool                 `json:"replayed"`
}

// Admit validates and commits one investment. Lock contention and lost
// version races are retried up to MaxRetries times, then surface as a
// ConflictError. A caller that goes away mid-retry also gets a ConflictError.
// Domain errors are never retried.
func (s *Service) Admit(ctx context.Context, in AdmitInput) (*AdmitResult, error) {
	if in.InvestorID == uuid.Nil {
		return nil, domain.ErrUnauthenticated()
	}
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if len(in.IdempotencyKey) > maxIdempotencyKeyLen {
		return nil, &domain.ValidationError{Field: "idempotency_key", Message: "Idempotency key is too long."}
	}

	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = defaultMaxRetries
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := s.admitOnce(ctx, in)
		if err == nil {
			return res, nil
		}
		if cancelled(err) {
			log.Debug().Err(err).Int("attempt", attempt).Str("listing_id", in.ListingID.String()).Msg("admission cancelled")
			return nil, &domain.ConflictError{Attempts: attempt}
		}
		if !database.IsTransient(err) {
			return nil, err
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt).Str("listing_id", in.ListingID.String()).Msg("admission contended, retrying")
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			log.Debug().Err(ctx.Err()).Int("attempt", attempt).Str("listing_id", in.ListingID.String()).Msg("admission cancelled during backoff")
			return nil, &domain.ConflictError{Attempts: attempt}
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	log.Warn().Err(lastErr).Int("attempts", attempts).Str("listing_id", in.ListingID.String()).Msg("admission gave up after retries")
	return nil, &domain.ConflictError{Attempts: attempts}
}

func (s *Service) admitOnce(ctx context.Context, in AdmitInput) (*AdmitResult, error) {
	var res *AdmitResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		l, err := database.LockListing(tx, in.ListingID)
		if err != nil {
			return err
		}
		// A replay returns the original result even once the listing closed.
		if in.IdempotencyKey != "" {
			replay, err := s.replay(tx, in, l, now)
			if err != nil || replay != nil {
				res = replay
				return err
			}
		}
		if !l.Status.Investable() {
			return &domain.InvalidStateError{Status: l.Status, Message: "Offering not open: you can only invest in live listings."}
		}
		if err := validateAmount(in.Amount, l); err != nil {
			return err
		}

		total, err := database.SumInvested(tx, l.ListingID)
		if err != nil {
			return err
		}
		target := l.TargetAmount()
		remaining := target.Sub(total)
		if !remaining.IsPositive() {
			zero := decimal.Zero
			return &domain.ValidationError{Field: "amount", Message: "This listing is fully funded.", Limit: &zero}
		}
		if in.Amount.GreaterThan(remaining) {
			return &domain.ValidationError{
				Field:   "amount",
				Message: fmt.Sprintf("Only %s remaining in this offering.", domain.DisplayCurrency(remaining)),
				Limit:   &remaining,
			}
		}

		inv := &domain.Investment{
			ListingID:        l.ListingID,
			InvestorID:       in.InvestorID,
			Amount:           in.Amount,
			OwnershipPercent: domain.OwnershipPercent(in.Amount, l.AssetValue),
		}
		if err := tx.Create(inv).Error; err != nil {
			return err
		}

		newTotal := total.Add(in.Amount)
		updates := map[string]interface{}{}
		funded := newTotal.Equal(target)
		if funded {
			updates["status"] = domain.StatusClosed
		}
		if err := database.UpdateListingVersioned(tx, l, updates); err != nil {
			return err
		}
		if funded {
			l.Status = domain.StatusClosed
		}

		if err := listingevents.Record(tx, l.ListingID, in.InvestorID, domain.EventInvested, map[string]interface{}{
			"investment_id":  inv.InvestmentID,
			"amount":         domain.FormatCurrency(inv.Amount),
			"total_invested": domain.FormatCurrency(newTotal),
		}); err != nil {
			return err
		}
		if funded {
			if err := listingevents.Record(tx, l.ListingID, uuid.Nil, domain.EventFunded, map[string]interface{}{
				"target_amount": domain.FormatCurrency(target),
			}); err != nil {
				return err
			}
		}

		if in.IdempotencyKey != "" {
			rec := &domain.IdempotencyRecord{
				InvestorID:     in.InvestorID,
				IdempotencyKey: in.IdempotencyKey,
				ListingID:      l.ListingID,
				InvestmentID:   inv.InvestmentID,
				ExpiresAt:      now.Add(s.ttl()),
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
		}

		res = buildResult(inv, l, newTotal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Replayed {
		log.Info().
			Str("listing_id", in.ListingID.String()).
			Str("investor_id", in.InvestorID.String()).
			Str("amount", res.Investment.Amount).
			Str("status", string(res.ListingStatus)).
			Msg("investment admitted")
	}
	return res, nil
}

// replay returns the original result for a key already used by this investor,
// or nil when the key is new or its record has expired. l is the locked listing
// named by the request.
func (s *Service) replay(tx *gorm.DB, in AdmitInput, l *domain.Listing, now time.Time) (*AdmitResult, error) {
	var rec domain.IdempotencyRecord
	err := tx.Where("investor_id = ? AND idempotency_key = ?", in.InvestorID, in.IdempotencyKey).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Expired(now) {
		return nil, tx.Delete(&rec).Error
	}
	if rec.ListingID != in.ListingID {
		return nil, &domain.ValidationError{Field: "idempotency_key", Message: "Idempotency key was already used for a different listing."}
	}

	var inv domain.Investment
	if err := tx.Where("investment_id = ?", rec.InvestmentID).First(&inv).Error; err != nil {
		return nil, err
	}
	total, err := database.SumInvested(tx, rec.ListingID)
	if err != nil {
		return nil, err
	}
	res := buildResult(&inv, l, total)
	res.Replayed = true
	return res, nil
}

// ListForInvestor returns the principal's ledger entries, newest first.
func (s *Service) ListForInvestor(ctx context.Context, investor uuid.UUID) ([]Record, error) {
	if investor == uuid.Nil {
		return nil, domain.ErrUnauthenticated()
	}
	var rows []domain.Investment
	if err := s.DB.WithContext(ctx).
		Preload("Listing").
		Where("investor_id = ?", investor).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for i := range rows {
		out = append(out, toRecord(&rows[i], rows[i].Listing))
	}
	return out, nil
}

func validateAmount(amount decimal.Decimal, l *domain.Listing) error {
	if !amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Message: "Amount must be greater than zero."}
	}
	if err := domain.CheckCurrency("amount", amount); err != nil {
		return err
	}
	if l.MinInvestment.Valid && amount.LessThan(l.MinInvestment.Decimal) {
		floor := l.MinInvestment.Decimal
		return &domain.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("Minimum investment is %s.", domain.DisplayCurrency(floor)),
			Limit:   &floor,
		}
	}
	return nil
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func buildResult(inv *domain.Investment, l *domain.Listing, total decimal.Decimal) *AdmitResult {
	target := l.TargetAmount()
	return &AdmitResult{
		Investment:    toRecord(inv, l),
		TotalInvested: domain.FormatCurrency(total),
		TargetAmount:  domain.FormatCurrency(target),
		PercentFunded: domain.FormatCurrency(domain.PercentFunded(total, target)),
		ListingStatus: l.Status,
	}
}

func toRecord(inv *domain.Investment, l *domain.Listing) Record {
	r := Record{
		ID:               inv.InvestmentID,
		ListingID:        inv.ListingID,
		Amount:           domain.FormatCurrency(inv.Amount),
		OwnershipPercent: domain.FormatCurrency(inv.OwnershipPercent),
		CreatedAt:        inv.CreatedAt,
	}
	if l != nil {
		r.ListingTitle = l.Title
	}
	return r
}

func (s *Service) ttl() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return defaultIdempotencyTTL
	}
	return s.IdempotencyTTL
}
