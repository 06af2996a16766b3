package middleware

import (
	"strings"

	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig allows browser origins by host suffix. AllowedSuffix may hold
// several comma-separated suffixes (".vaultshare.app,.vercel.app").
// DevPassword admits any origin that sends the matching dev-password header.
type CORSConfig struct {
	AllowedSuffix string
	DevPassword   string
}

const (
	corsAllowHeaders  = "Content-Type, dev-password, Idempotency-Key, X-Trace-Id"
	corsAllowMethods  = "GET, POST, PATCH, DELETE, OPTIONS"
	corsExposeHeaders = "X-Trace-Id"
)

// CORS answers preflights for allowed origins and tags their responses with
// credentialed CORS headers. Requests without an Origin pass untouched.
func CORS(cfg CORSConfig) fiber.Handler {
	var suffixes []string
	for _, s := range strings.Split(cfg.AllowedSuffix, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			suffixes = append(suffixes, s)
		}
	}

	allowed := func(c *fiber.Ctx, origin string) bool {
		if isLocalOrigin(origin) && c.Method() == fiber.MethodOptions {
			return true
		}
		lower := strings.ToLower(origin)
		for _, s := range suffixes {
			if strings.HasSuffix(lower, s) {
				return true
			}
		}
		return cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin == "" {
			return c.Next()
		}
		if !allowed(c, origin) {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, nil)
		}
		c.Set("Access-Control-Allow-Origin", origin)
		c.Set("Access-Control-Allow-Credentials", "true")
		c.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Set("Access-Control-Allow-Methods", corsAllowMethods)
		c.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		c.Vary("Origin")
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
}
