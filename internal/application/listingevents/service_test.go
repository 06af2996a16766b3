package listingevents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupEventsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func TestRecordAndList(t *testing.T) {
	svc, db := setupEventsTest(t)
	owner := uuid.New()
	l := &domain.Listing{OwnerID: owner, Title: "Jordan rookie", AssetValue: decimal.NewFromInt(500)}
	require.NoError(t, db.Create(l).Error)

	require.NoError(t, Record(db, l.ListingID, owner, domain.EventCreated, map[string]interface{}{"asset_value": "500.00"}))
	require.NoError(t, Record(db, l.ListingID, uuid.Nil, domain.EventFunded, nil))

	events, err := svc.ListingEvents(context.Background(), owner, l.ListingID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventCreated, events[0].EventType)
	require.NotNil(t, events[0].ActorID)
	assert.Equal(t, owner, *events[0].ActorID)
	var data map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[0].EventData), &data))
	assert.Equal(t, "500.00", data["asset_value"])

	assert.Equal(t, domain.EventFunded, events[1].EventType)
	assert.Nil(t, events[1].ActorID)
	assert.JSONEq(t, `{}`, string(events[1].EventData))
}

func TestListingEvents_Access(t *testing.T) {
	svc, db := setupEventsTest(t)
	owner := uuid.New()
	l := &domain.Listing{OwnerID: owner, Title: "x"}
	require.NoError(t, db.Create(l).Error)
	ctx := context.Background()

	_, err := svc.ListingEvents(ctx, uuid.Nil, l.ListingID)
	var ae *domain.AuthorizationError
	require.True(t, errors.As(err, &ae))
	assert.True(t, ae.Unauthenticated)

	_, err = svc.ListingEvents(ctx, uuid.New(), l.ListingID)
	require.True(t, errors.As(err, &ae))
	assert.False(t, ae.Unauthenticated)

	_, err = svc.ListingEvents(ctx, owner, uuid.New())
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
