package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends the standard error envelope
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusNotFound, "not_found")
}

// ConflictResponse sends a 409 response for a port that is already taken
func ConflictResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusConflict, "conflict")
}

// UnavailableResponse sends a 503 response when no port can be handed out
func UnavailableResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusServiceUnavailable, "range_exhausted")
}

// MutationSuccessResponse sends a success response for a reservation change
func MutationSuccessResponse(c *fiber.Ctx, status int, message string, port int) error {
	return c.Status(status).JSON(fiber.Map{
		"message":   message,
		"ok":        true,
		"port":      port,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Type      string `json:"type,omitempty"`
}

// SuccessResponseStruct defines the schema for mutation success responses
type SuccessResponseStruct struct {
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	Port      int    `json:"port"`
	Timestamp string `json:"timestamp"`
}

// PortResponseStruct defines the schema for responses naming a single port
type PortResponseStruct struct {
	Port int `json:"port"`
}
