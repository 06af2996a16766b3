package listings

import (
	"context"
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

func setupListingsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func createDraft(t *testing.T, svc *Service, owner uuid.UUID, asset, retain string) *Summary {
	s, err := svc.CreateListing(context.Background(), CreateListingInput{
		OwnerID:             owner,
		Title:               "Charizard 1st Edition PSA 10",
		AssetValue:          dec(asset),
		SellerRetainPercent: dec(retain),
	})
	require.NoError(t, err)
	return s
}

func addInvestment(t *testing.T, db *gorm.DB, listingID uuid.UUID, amount string) {
	require.NoError(t, db.Create(&domain.Investment{
		ListingID:  listingID,
		InvestorID: uuid.New(),
		Amount:     dec(amount),
	}).Error)
}

func eventTypes(t *testing.T, db *gorm.DB, listingID uuid.UUID) []string {
	var events []domain.ListingEvent
	require.NoError(t, db.Where("listing_id = ?", listingID).Order("created_at ASC").Find(&events).Error)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func TestCreateListing(t *testing.T) {
	svc, db := setupListingsTest(t)
	owner := uuid.New()
	require.NoError(t, db.Create(&domain.User{UserID: owner, Name: "Ada", Email: "ada@example.com", PasswordHash: "x"}).Error)

	s, err := svc.CreateListing(context.Background(), CreateListingInput{
		OwnerID:             owner,
		Title:               "  Honus Wagner T206  ",
		AssetValue:          dec("333.33"),
		SellerRetainPercent: dec("33.33"),
		MinInvestment:       decimal.NewNullDecimal(dec("10.5")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Honus Wagner T206", s.Title)
	assert.Equal(t, domain.StatusDraft, s.Status)
	assert.Equal(t, "66.67", s.OfferedPercent)
	assert.Equal(t, "222.23", s.TargetAmount)
	assert.Equal(t, "0.00", s.TotalInvested)
	assert.Equal(t, "0.00", s.PercentFunded)
	assert.Equal(t, "Ada", s.OwnerName)
	require.NotNil(t, s.MinInvestment)
	assert.Equal(t, "10.50", *s.MinInvestment)
	assert.Equal(t, []string{domain.EventCreated}, eventTypes(t, db, s.ID))
}

func TestCreateListing_Rejects(t *testing.T) {
	svc, _ := setupListingsTest(t)
	ctx := context.Background()
	owner := uuid.New()

	tests := []struct {
		name  string
		in    CreateListingInput
		field string
	}{
		{"blank title", CreateListingInput{OwnerID: owner, Title: "  ", AssetValue: dec("100")}, "title"},
		{"negative asset", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("-1")}, "asset_value"},
		{"retain over 100", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("100"), SellerRetainPercent: dec("100.01")}, "seller_retain_percent"},
		{"negative minimum", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("100"), MinInvestment: decimal.NewNullDecimal(dec("-5"))}, "min_investment"},
		{"retain just over 100", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("1000"), SellerRetainPercent: dec("100.004")}, "seller_retain_percent"},
		{"retain just below 0", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("1000"), SellerRetainPercent: dec("-0.004")}, "seller_retain_percent"},
		{"asset just below 0", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("-0.004"), SellerRetainPercent: dec("10")}, "asset_value"},
		{"asset sub-cent", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("100.005")}, "asset_value"},
		{"retain sub-hundredth", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("100"), SellerRetainPercent: dec("33.333")}, "seller_retain_percent"},
		{"minimum sub-cent", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("100"), MinInvestment: decimal.NewNullDecimal(dec("10.005"))}, "min_investment"},
		{"minimum just below 0", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("100"), MinInvestment: decimal.NewNullDecimal(dec("-0.004"))}, "min_investment"},
		{"asset above column range", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("10000000000000")}, "asset_value"},
		{"minimum above column range", CreateListingInput{OwnerID: owner, Title: "x", AssetValue: dec("100"), MinInvestment: decimal.NewNullDecimal(dec("10000000000"))}, "min_investment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateListing(ctx, tt.in)
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := svc.CreateListing(ctx, CreateListingInput{Title: "x", AssetValue: dec("100")})
	var ae *domain.AuthorizationError
	require.True(t, errors.As(err, &ae))
	assert.True(t, ae.Unauthenticated)
}

func TestGetListing(t *testing.T) {
	svc, db := setupListingsTest(t)
	s := createDraft(t, svc, uuid.New(), "10000", "20")
	addInvestment(t, db, s.ID, "2000")

	got, err := svc.GetListing(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", got.TotalInvested)
	assert.Equal(t, "8000.00", got.TargetAmount)
	assert.Equal(t, "25.00", got.PercentFunded)

	_, err = svc.GetListing(context.Background(), uuid.New())
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestListListings_Filters(t *testing.T) {
	svc, _ := setupListingsTest(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	a1 := createDraft(t, svc, alice, "1000", "0")
	createDraft(t, svc, alice, "2000", "0")
	createDraft(t, svc, bob, "3000", "0")
	_, err := svc.Publish(ctx, alice, a1.ID)
	require.NoError(t, err)

	all, err := svc.ListListings(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	live, err := svc.ListListings(ctx, ListFilter{Status: domain.StatusLive})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, a1.ID, live[0].ID)

	mine, err := svc.ListListings(ctx, ListFilter{OwnerID: alice})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestEditListing(t *testing.T) {
	svc, db := setupListingsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	s := createDraft(t, svc, owner, "1000", "10")

	got, err := svc.EditListing(ctx, owner, s.ID, EditListingInput{
		Title:               ptr("Retitled"),
		SellerRetainPercent: ptr(dec("25")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Retitled", got.Title)
	assert.Equal(t, "75.00", got.OfferedPercent)
	assert.Equal(t, "750.00", got.TargetAmount)
	assert.Equal(t, []string{domain.EventCreated, domain.EventUpdated}, eventTypes(t, db, s.ID))

	cleared := decimal.NullDecimal{}
	got, err = svc.EditListing(ctx, owner, s.ID, EditListingInput{MinInvestment: &cleared})
	require.NoError(t, err)
	assert.Nil(t, got.MinInvestment)
}

func TestEditListing_Rules(t *testing.T) {
	svc, db := setupListingsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	s := createDraft(t, svc, owner, "1000", "0")

	_, err := svc.EditListing(ctx, uuid.New(), s.ID, EditListingInput{Title: ptr("x")})
	var ae *domain.AuthorizationError
	require.True(t, errors.As(err, &ae))
	assert.False(t, ae.Unauthenticated)

	_, err = svc.EditListing(ctx, uuid.Nil, s.ID, EditListingInput{Title: ptr("x")})
	require.True(t, errors.As(err, &ae))
	assert.True(t, ae.Unauthenticated)

	_, err = svc.EditListing(ctx, owner, uuid.New(), EditListingInput{Title: ptr("x")})
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))

	// Inputs are checked as given, not rounded into range first.
	var ve *domain.ValidationError
	for _, in := range []EditListingInput{
		{SellerRetainPercent: ptr(dec("100.004"))},
		{SellerRetainPercent: ptr(dec("-0.004"))},
		{AssetValue: ptr(dec("-0.004"))},
		{AssetValue: ptr(dec("10000000000"))},
		{MinInvestment: ptr(decimal.NewNullDecimal(dec("0.001")))},
	} {
		_, err = svc.EditListing(ctx, owner, s.ID, in)
		require.True(t, errors.As(err, &ve), "got %v", err)
	}
	got, err := svc.GetListing(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", got.AssetValue)
	assert.Equal(t, "0.00", got.SellerRetainPercent)
	assert.Nil(t, got.MinInvestment)

	// Investments kept from an earlier live period bound the target.
	addInvestment(t, db, s.ID, "600")
	_, err = svc.EditListing(ctx, owner, s.ID, EditListingInput{AssetValue: ptr(dec("500"))})
	require.True(t, errors.As(err, &ve))
	require.NotNil(t, ve.Limit)
	assert.True(t, ve.Limit.Equal(dec("600")))

	_, err = svc.Publish(ctx, owner, s.ID)
	require.NoError(t, err)
	_, err = svc.EditListing(ctx, owner, s.ID, EditListingInput{Title: ptr("x")})
	var se *domain.InvalidStateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.StatusLive, se.Status)
}

func TestLifecycle(t *testing.T) {
	svc, db := setupListingsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	s := createDraft(t, svc, owner, "1000", "0")

	got, err := svc.Publish(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLive, got.Status)

	got, err = svc.Unpublish(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.Status)

	_, err = svc.Close(ctx, owner, s.ID)
	var se *domain.InvalidStateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "A draft listing cannot move to closed.", se.Message)

	_, err = svc.Publish(ctx, owner, s.ID)
	require.NoError(t, err)
	got, err = svc.Close(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, got.Status)

	for _, op := range []func(context.Context, uuid.UUID, uuid.UUID) (*Summary, error){svc.Publish, svc.Unpublish, svc.Close} {
		_, err := op(ctx, owner, s.ID)
		assert.True(t, errors.As(err, &se), "closed is terminal")
	}

	assert.Equal(t, []string{
		domain.EventCreated, domain.EventPublished, domain.EventUnpublished,
		domain.EventPublished, domain.EventClosed,
	}, eventTypes(t, db, s.ID))
}

func TestPublish_ZeroTargetRejected(t *testing.T) {
	svc, _ := setupListingsTest(t)
	owner := uuid.New()
	s := createDraft(t, svc, owner, "1000", "100")
	_, err := svc.Publish(context.Background(), owner, s.ID)
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestPublish_AlreadyFundedCloses(t *testing.T) {
	svc, db := setupListingsTest(t)
	owner := uuid.New()
	s := createDraft(t, svc, owner, "1000", "50")
	addInvestment(t, db, s.ID, "500")

	got, err := svc.Publish(context.Background(), owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, got.Status)
	assert.Equal(t, "100.00", got.PercentFunded)
	assert.Equal(t, []string{domain.EventCreated, domain.EventFunded}, eventTypes(t, db, s.ID))
}

func TestDelete(t *testing.T) {
	svc, db := setupListingsTest(t)
	ctx := context.Background()
	owner := uuid.New()

	s := createDraft(t, svc, owner, "1000", "0")
	require.NoError(t, svc.Delete(ctx, owner, s.ID))
	_, err := svc.GetListing(ctx, s.ID)
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Empty(t, eventTypes(t, db, s.ID))

	funded := createDraft(t, svc, owner, "1000", "0")
	addInvestment(t, db, funded.ID, "1")
	err = svc.Delete(ctx, owner, funded.ID)
	var se *domain.InvalidStateError
	assert.True(t, errors.As(err, &se))

	live := createDraft(t, svc, owner, "1000", "0")
	_, err = svc.Publish(ctx, owner, live.ID)
	require.NoError(t, err)
	err = svc.Delete(ctx, owner, live.ID)
	assert.True(t, errors.As(err, &se))

	var ae *domain.AuthorizationError
	assert.True(t, errors.As(svc.Delete(ctx, uuid.New(), live.ID), &ae))
}

func TestFailFast(t *testing.T) {
	err := failFast(database.ErrStaleVersion)
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Attempts)

	ve := &domain.ValidationError{Field: "title"}
	assert.Same(t, ve, failFast(ve))
}
