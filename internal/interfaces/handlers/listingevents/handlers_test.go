package listingevents

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	evsvc "vaultshare-backend/internal/application/listingevents"
	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupEventsTest(t *testing.T) (*Handlers, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return &Handlers{Service: &evsvc.Service{DB: db}}, db
}

func appAs(h *Handlers, principal uuid.UUID) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if principal != uuid.Nil {
			c.Locals("user", map[string]interface{}{"user_id": principal.String()})
		}
		return c.Next()
	})
	app.Get("/listings/:listing_id/events", h.ListingEvents)
	return app
}

func TestListingEvents_NoSession(t *testing.T) {
	h, _ := setupEventsTest(t)
	req := httptest.NewRequest("GET", "/listings/"+uuid.New().String()+"/events", nil)
	resp, err := appAs(h, uuid.Nil).Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestListingEvents_InvalidID(t *testing.T) {
	h, _ := setupEventsTest(t)
	req := httptest.NewRequest("GET", "/listings/nope/events", nil)
	resp, err := appAs(h, uuid.New()).Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestListingEvents_OwnerOnly(t *testing.T) {
	h, db := setupEventsTest(t)
	owner := uuid.New()
	l := &domain.Listing{OwnerID: owner, Title: "Gretzky rookie", AssetValue: decimal.NewFromInt(900)}
	require.NoError(t, db.Create(l).Error)
	require.NoError(t, evsvc.Record(db, l.ListingID, owner, domain.EventCreated, nil))
	path := "/listings/" + l.ListingID.String() + "/events"

	resp, err := appAs(h, uuid.New()).Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	resp, err = appAs(h, owner).Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	events := out["data"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCreated, events[0].(map[string]interface{})["event_type"])
}
