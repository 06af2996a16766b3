package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	listsvc "vaultshare-backend/internal/application/listings"
	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/middleware"
	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *listsvc.Service
}

// POST /api/v1/listings — create a draft owned by the caller. Derived terms
// in the body (target_amount, offered_percent) are ignored.
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	for _, f := range []string{"title", "asset_value"} {
		if isMissing(body[f]) {
			return response.Error(c, fmt.Sprintf("Missing required field: %s", f), fiber.StatusBadRequest, nil)
		}
	}

	in := listsvc.CreateListingInput{OwnerID: middleware.Principal(c)}
	if err := decodeString(body, "title", &in.Title); err != nil {
		return response.FromError(c, err)
	}
	if err := decodeString(body, "description", &in.Description); err != nil {
		return response.FromError(c, err)
	}
	if err := decodeString(body, "category", &in.Category); err != nil {
		return response.FromError(c, err)
	}
	if in.AssetValue, err = decodeDecimal(body, "asset_value"); err != nil {
		return response.FromError(c, err)
	}
	if !isMissing(body["seller_retain_percent"]) {
		if in.SellerRetainPercent, err = decodeDecimal(body, "seller_retain_percent"); err != nil {
			return response.FromError(c, err)
		}
	}
	if in.MinInvestment, err = decodeNullDecimal(body, "min_investment"); err != nil {
		return response.FromError(c, err)
	}

	listing, err := h.Service.CreateListing(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GET /api/v1/listings?status=live&mine=1
func (h *Handlers) ListListings(c *fiber.Ctx) error {
	var f listsvc.ListFilter
	if s := c.Query("status"); s != "" {
		status, ok := domain.ParseListingStatus(s)
		if !ok {
			return response.Error(c, "Invalid status filter", fiber.StatusBadRequest, nil)
		}
		f.Status = status
	}
	switch c.Query("mine") {
	case "1", "true", "True":
		principal := middleware.Principal(c)
		if principal == uuid.Nil {
			return response.Success(c, "Listings fetched successfully", []listsvc.Summary{}, nil)
		}
		f.OwnerID = principal
	}

	listings, err := h.Service.ListListings(c.UserContext(), f)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", listings, fiber.Map{"count": len(listings)})
}

// GET /api/v1/listings/:listing_id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.GetListing(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// PATCH /api/v1/listings/:listing_id — partial edit of a draft.
func (h *Handlers) EditListing(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	body, err := parseBody(c)
	if err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if _, ok := body["status"]; ok {
		return response.FromError(c, &domain.ValidationError{
			Field:   "status",
			Message: "Status cannot be edited directly; use publish, unpublish or close.",
		})
	}

	var in listsvc.EditListingInput
	for _, f := range []struct {
		name string
		dst  **string
	}{{"title", &in.Title}, {"description", &in.Description}, {"category", &in.Category}} {
		if _, ok := body[f.name]; !ok {
			continue
		}
		var s string
		if err := decodeString(body, f.name, &s); err != nil {
			return response.FromError(c, err)
		}
		*f.dst = &s
	}
	for _, f := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"asset_value", &in.AssetValue}, {"seller_retain_percent", &in.SellerRetainPercent}} {
		if _, ok := body[f.name]; !ok {
			continue
		}
		d, err := decodeDecimal(body, f.name)
		if err != nil {
			return response.FromError(c, err)
		}
		*f.dst = &d
	}
	if _, ok := body["min_investment"]; ok {
		m, err := decodeNullDecimal(body, "min_investment")
		if err != nil {
			return response.FromError(c, err)
		}
		in.MinInvestment = &m
	}

	listing, err := h.Service.EditListing(c.UserContext(), middleware.Principal(c), id, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing updated successfully", listing, nil)
}

// POST /api/v1/listings/:listing_id/publish
func (h *Handlers) Publish(c *fiber.Ctx) error {
	return h.transition(c, h.Service.Publish, "Listing published")
}

// POST /api/v1/listings/:listing_id/unpublish
func (h *Handlers) Unpublish(c *fiber.Ctx) error {
	return h.transition(c, h.Service.Unpublish, "Listing moved back to draft")
}

// POST /api/v1/listings/:listing_id/close
func (h *Handlers) Close(c *fiber.Ctx) error {
	return h.transition(c, h.Service.Close, "Listing closed")
}

type transitionFn func(ctx context.Context, principal, id uuid.UUID) (*listsvc.Summary, error)

func (h *Handlers) transition(c *fiber.Ctx, fn transitionFn, msg string) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := fn(c.UserContext(), middleware.Principal(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, msg, listing, nil)
}

// DELETE /api/v1/listings/:listing_id
func (h *Handlers) DeleteListing(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), middleware.Principal(c), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing deleted successfully", fiber.Map{"id": id}, nil)
}

func listingID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return uuid.Nil, &domain.ValidationError{Field: "listing_id", Message: "Invalid listing_id format"}
	}
	return id, nil
}

func parseBody(c *fiber.Ctx) (map[string]json.RawMessage, error) {
	body := map[string]json.RawMessage{}
	if len(c.Body()) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return nil, err
	}
	return body, nil
}

func isMissing(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == `""`
}

func decodeString(body map[string]json.RawMessage, field string, dst *string) error {
	raw, ok := body[field]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &domain.ValidationError{Field: field, Message: fmt.Sprintf("%s must be a string.", field)}
	}
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(body map[string]json.RawMessage, field string) (decimal.Decimal, error) {
	var d decimal.Decimal
	raw := body[field]
	if isMissing(raw) {
		return d, &domain.ValidationError{Field: field, Message: fmt.Sprintf("%s is required.", field)}
	}
	if err := d.UnmarshalJSON(raw); err != nil {
		return d, &domain.ValidationError{Field: field, Message: fmt.Sprintf("%s must be a number.", field)}
	}
	return d, nil
}

// decodeNullDecimal treats absent, null and "" as no value.
func decodeNullDecimal(body map[string]json.RawMessage, field string) (decimal.NullDecimal, error) {
	if isMissing(body[field]) {
		return decimal.NullDecimal{}, nil
	}
	d, err := decodeDecimal(body, field)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
