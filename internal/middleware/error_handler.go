package middleware

import (
	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Ledger errors returned from
// handlers are rendered with their mapped status; anything else becomes a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return response.FromError(c, err)
}
