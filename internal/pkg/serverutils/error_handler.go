package serverutils

import (
	"errors"

	"curiow-be/pkg/deepchat"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders errors returned by handlers as a BaseResponse.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.Is(err, deepchat.ErrSessionNotFound), errors.Is(err, deepchat.ErrTurnNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, deepchat.ErrInvalidFollowUp), errors.Is(err, deepchat.ErrEmptyQuestion):
		return fiber.StatusBadRequest
	case errors.Is(err, deepchat.ErrPanelClosed):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
