package portfolio

import (
	portsvc "vaultshare-backend/internal/application/portfolio"
	"vaultshare-backend/internal/middleware"
	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *portsvc.Service
}

// GET /api/v1/portfolio?kind=all|investor|seller
func (h *Handlers) GetPortfolio(c *fiber.Ctx) error {
	kind, err := portsvc.ParseKind(c.Query("kind"))
	if err != nil {
		return response.FromError(c, err)
	}
	positions, err := h.Service.PositionsFor(c.UserContext(), middleware.Principal(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Portfolio fetched successfully", portsvc.Summarize(portsvc.Filter(positions, kind), kind), nil)
}
