package auth

import (
	"context"
	"errors"

	authsvc "vaultshare-backend/internal/application/auth"
	"vaultshare-backend/internal/domain"
	"vaultshare-backend/internal/middleware"
	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const userSessionsPrefix = "user_sessions:"

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	DB         *gorm.DB
	UserFinder authsvc.UserFinder
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

// LoginRequest body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register POST /api/v1/auth/register — create the user and start a session.
func (h *Handlers) Register(c *fiber.Ctx) error {
	if h.DB == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req authsvc.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	user, err := authsvc.Register(h.DB.WithContext(c.UserContext()), req)
	if err != nil {
		return authError(c, "register", err)
	}
	if err := h.startSession(c, user); err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	log.Info().Str("user_id", user.UserID.String()).Msg("user registered")
	return response.SuccessCreated(c, "Registration successful", fiber.Map{"user": userBody(user)}, nil)
}

// Login POST /api/v1/auth/login — check credentials and start a fresh session.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return response.Error(c, authsvc.ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}
	user, err := h.UserFinder.FindByEmailAndPassword(req.Email, req.Password)
	if err != nil {
		return authError(c, "login", err)
	}
	if err := h.startSession(c, user); err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Login successful", fiber.Map{"user": userBody(user)}, nil)
}

// authError maps account errors to their status. Credential failures are 401,
// input problems 400, a taken email 409.
func authError(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, authsvc.ErrInvalidEmail) && op == "login",
		errors.Is(err, authsvc.ErrIncorrectPassword):
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	case errors.Is(err, authsvc.ErrEmailTaken):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, authsvc.ErrEmailPasswordRequired), errors.Is(err, authsvc.ErrInvalidEmail),
		errors.Is(err, authsvc.ErrWeakPassword), errors.Is(err, authsvc.ErrNameRequired):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	log.Error().Err(err).Str("op", op).Msg("auth failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

// startSession regenerates the session id, stores the user and sets the cookie.
func (h *Handlers) startSession(c *fiber.Ctx, user *domain.User) error {
	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID: user.UserID.String(),
		Name:   user.Name,
		Email:  user.Email,
	})

	ctx := context.Background()
	if err := h.Rdb.SAdd(ctx, userSessionsPrefix+user.UserID.String(), sessionID).Err(); err != nil {
		log.Error().Err(err).Str("user_id", user.UserID.String()).Msg("could not track session")
		return err
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = middleware.SessionCookieValue(h.Config.Secret, sessionID)
	c.Cookie(&cookie)
	return nil
}

// Me GET /api/v1/auth/me — the session principal, or 401.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := authsvc.VerifyUser(middleware.GetUser(c))
	if err != nil {
		if middleware.GetSessionID(c) != "" {
			log.Debug().Str("path", c.Path()).Msg("session present without a user")
		}
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout — SRem user_sessions:user_id, Del session key, clear cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := context.Background()

	if principal := middleware.Principal(c); sessionID != "" && principal != uuid.Nil {
		_ = h.Rdb.SRem(ctx, userSessionsPrefix+principal.String(), sessionID).Err()
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}

func userBody(u *domain.User) fiber.Map {
	return fiber.Map{
		"user_id": u.UserID.String(),
		"name":    u.Name,
		"email":   u.Email,
	}
}
