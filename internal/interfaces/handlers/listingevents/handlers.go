package listingevents

import (
	evsvc "vaultshare-backend/internal/application/listingevents"
	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/middleware"
	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *evsvc.Service
}

// GET /api/v1/listings/:listing_id/events — seller-only audit trail.
func (h *Handlers) ListingEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return response.FromError(c, &domain.ValidationError{Field: "listing_id", Message: "Invalid listing_id format"})
	}
	events, err := h.Service.ListingEvents(c.UserContext(), middleware.Principal(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events fetched successfully", events, nil)
}
