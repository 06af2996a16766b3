package listingevents

import (
	"context"
	"encoding/json"

	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Record appends an audit event inside tx. actor may be uuid.Nil for
// system-driven changes.
func Record(tx *gorm.DB, listingID, actor uuid.UUID, eventType string, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ev := domain.ListingEvent{
		ListingID: listingID,
		EventType: eventType,
		EventData: datatypes.JSON(raw),
	}
	if actor != uuid.Nil {
		a := actor
		ev.ActorID = &a
	}
	return tx.Create(&ev).Error
}

// ListingEvents returns the audit trail of a listing, oldest first. Only the
// seller may read it.
func (s *Service) ListingEvents(ctx context.Context, principal, listingID uuid.UUID) ([]domain.ListingEvent, error) {
	if principal == uuid.Nil {
		return nil, domain.ErrUnauthenticated()
	}
	db := s.DB.WithContext(ctx)
	l, err := database.FindListing(db, listingID)
	if err != nil {
		return nil, err
	}
	if !l.OwnedBy(principal) {
		return nil, domain.ErrNotOwner()
	}

	var events []domain.ListingEvent
	if err := db.Where("listing_id = ?", listingID).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
