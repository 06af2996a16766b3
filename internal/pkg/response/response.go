package response

import (
	"errors"

	"vaultshare-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return send(c, fiber.StatusOK, message, data, metadata)
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return send(c, fiber.StatusCreated, message, data, metadata)
}

func send(c *fiber.Ctx, code int, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(code).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// Unauthorized sends 401 with the same shape as other errors (status "error", error.message).
// Use this for auth middleware so all errors are consistent.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// StatusFor maps an error to the HTTP status FromError would send.
func StatusFor(err error) int {
	var (
		ve *domain.ValidationError
		se *domain.InvalidStateError
		nf *domain.NotFoundError
		ae *domain.AuthorizationError
		ce *domain.ConflictError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.As(err, &se), errors.As(err, &ce):
		return fiber.StatusConflict
	case errors.As(err, &nf):
		return fiber.StatusNotFound
	case errors.As(err, &ae):
		if ae.Unauthenticated {
			return fiber.StatusUnauthorized
		}
		return fiber.StatusForbidden
	case errors.As(err, &fe):
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// FromError renders a ledger error in the standard error format. Details carry
// the numeric bound or state the client needs to build its own message.
func FromError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	details := map[string]interface{}{}

	var (
		ve *domain.ValidationError
		se *domain.InvalidStateError
		nf *domain.NotFoundError
		ce *domain.ConflictError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		details["kind"] = "validation"
		if ve.Field != "" {
			details["field"] = ve.Field
		}
		if ve.Limit != nil {
			details["limit"] = domain.FormatCurrency(*ve.Limit)
		}
	case errors.As(err, &se):
		details["kind"] = "invalid_state"
		details["status"] = se.Status
	case errors.As(err, &nf):
		details["kind"] = "not_found"
		details["entity"] = nf.Entity
	case errors.As(err, &ce):
		details["kind"] = "conflict"
		details["retryable"] = true
		details["attempts"] = ce.Attempts
	case code == fiber.StatusUnauthorized || code == fiber.StatusForbidden:
		details["kind"] = "authorization"
	case errors.As(err, &fe):
		return Error(c, fe.Message, fe.Code, nil)
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		return Error(c, "Internal Server Error", code, nil)
	}
	return Error(c, err.Error(), code, details)
}
