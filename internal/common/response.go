package common

import "github.com/gofiber/fiber/v2"

// StatusClientClosedRequest is returned when the caller's request was
// superseded or cancelled before results were ready.
const StatusClientClosedRequest = 499

var statusByType = map[ErrorType]int{
	TypeNotFound:          fiber.StatusNotFound,
	TypeNotAuthenticated:  fiber.StatusUnauthorized,
	TypeValidation:        fiber.StatusBadRequest,
	TypeRemoteUnavailable: fiber.StatusServiceUnavailable,
	TypeAborted:           StatusClientClosedRequest,
	TypeUnknown:           fiber.StatusInternalServerError,
}

// RespondError writes err as {"success": false, "error": {...}} using the
// status that matches its classification.
func RespondError(c *fiber.Ctx, err error) error {
	appErr := Classify(err)
	status, ok := statusByType[appErr.Type]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"type":    appErr.Type,
			"message": appErr.GetUserMessage(),
		},
	})
}

// BadRequest mirrors the inline validation responses used across handlers.
func BadRequest(c *fiber.Ctx, message string) error {
	return RespondError(c, Validation(message))
}
