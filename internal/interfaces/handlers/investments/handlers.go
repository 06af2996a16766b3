package investments

import (
	"encoding/json"

	invsvc "vaultshare-backend/internal/application/investments"
	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/middleware"
	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader lets a client retry an admission without creating a second entry.
const IdempotencyHeader = "Idempotency-Key"

type Handlers struct {
	Service *invsvc.Service
}

// AdmitRequest body. Amount accepts a JSON number or numeric string.
type AdmitRequest struct {
	ListingID string          `json:"listing_id"`
	Amount    json.RawMessage `json:"amount"`
}

// POST /api/v1/investments — 201 on a new entry, 200 when an Idempotency-Key replays one.
func (h *Handlers) Admit(c *fiber.Ctx) error {
	var req AdmitRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return response.FromError(c, &domain.ValidationError{Field: "listing_id", Message: "Invalid listing_id format"})
	}
	if len(req.Amount) == 0 || string(req.Amount) == "null" {
		return response.FromError(c, &domain.ValidationError{Field: "amount", Message: "Amount is required."})
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(req.Amount); err != nil {
		return response.FromError(c, &domain.ValidationError{Field: "amount", Message: "Amount must be a number."})
	}

	res, err := h.Service.Admit(c.UserContext(), invsvc.AdmitInput{
		ListingID:      listingID,
		InvestorID:     middleware.Principal(c),
		Amount:         amount,
		IdempotencyKey: c.Get(IdempotencyHeader),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	if res.Replayed {
		return response.Success(c, "Investment already recorded", res, nil)
	}
	return response.SuccessCreated(c, "Investment recorded", res, nil)
}

// GET /api/v1/investments — the caller's ledger entries, newest first.
func (h *Handlers) ListMine(c *fiber.Ctx) error {
	records, err := h.Service.ListForInvestor(c.UserContext(), middleware.Principal(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investments fetched successfully", records, fiber.Map{"count": len(records)})
}
