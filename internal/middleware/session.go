package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig controls the session cookie. Secret signs the session id; an
// empty secret leaves cookies unsigned (local development only).
type SessionConfig struct {
	Secret            string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "ledger.sid"
	SessionRedisPrefix = "session:"
	sessionMaxAge      = 24 * time.Hour

	sessionDataLocal = "session_data"
	sessionIDLocal   = "session_id"
)

// SessionUser is the principal stored in the session under "user".
type SessionUser struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Session loads the Redis-backed session named by the cookie into Locals and
// writes it back after the handler runs. A cookie whose signature does not
// match secret is treated as absent.
func Session(rdb *redis.Client, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, ok := parseSessionCookie(c.Cookies(SessionCookieName), secret)
		if !ok && c.Cookies(SessionCookieName) != "" {
			log.Debug().Str("path", c.Path()).Msg("session cookie rejected")
		}

		data := map[string]interface{}{}
		if sessionID != "" {
			if b, err := rdb.Get(c.UserContext(), SessionRedisPrefix+sessionID).Bytes(); err == nil {
				_ = json.Unmarshal(b, &data)
			}
		}
		c.Locals(sessionDataLocal, data)
		c.Locals(userLocal, data["user"])
		c.Locals(sessionIDLocal, sessionID)

		if err := c.Next(); err != nil {
			return err
		}

		sid := GetSessionID(c)
		if sid == "" {
			return nil
		}
		updated, _ := c.Locals(sessionDataLocal).(map[string]interface{})
		if len(updated) == 0 {
			return nil
		}
		b, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		if err := rdb.Set(context.Background(), SessionRedisPrefix+sid, b, sessionMaxAge).Err(); err != nil {
			log.Error().Err(err).Msg("session save failed")
		}
		return nil
	}
}

// SessionCookieValue is the cookie payload for sessionID: "s:<id>.<sig>", or
// "s:<id>" when secret is empty.
func SessionCookieValue(secret, sessionID string) string {
	if secret == "" {
		return "s:" + sessionID
	}
	return "s:" + sessionID + "." + sign(secret, sessionID)
}

func parseSessionCookie(raw, secret string) (string, bool) {
	if !strings.HasPrefix(raw, "s:") {
		return "", false
	}
	id, sig, signed := strings.Cut(raw[2:], ".")
	if id == "" {
		return "", false
	}
	if secret == "" {
		return id, true
	}
	if !signed || !hmac.Equal([]byte(sig), []byte(sign(secret, id))) {
		return "", false
	}
	return id, true
}

func sign(secret, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// GetSessionID returns the current session ID from context (for login/logout).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionIDLocal).(string)
	return sid
}

// SetSessionUser stores the principal in the session. Call RegenerateSessionID
// first so a login never reuses a pre-auth id.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals(sessionDataLocal).(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	data["user"] = map[string]interface{}{
		"user_id": user.UserID,
		"name":    user.Name,
		"email":   user.Email,
	}
	c.Locals(sessionDataLocal, data)
	c.Locals(userLocal, data["user"])
}

// RegenerateSessionID issues a fresh session id for this request.
func RegenerateSessionID(c *fiber.Ctx) string {
	newID := uuid.New().String()
	c.Locals(sessionIDLocal, newID)
	return newID
}

// DestroySession drops the session from this request. Callers clear the
// cookie and the Redis key.
func DestroySession(c *fiber.Ctx) {
	c.Locals(sessionDataLocal, map[string]interface{}{})
	c.Locals(userLocal, nil)
	c.Locals(sessionIDLocal, "")
}

// SessionCookieConfig returns cookie options (for SetCookie/ClearCookie).
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}
	return fiber.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction || cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
}
