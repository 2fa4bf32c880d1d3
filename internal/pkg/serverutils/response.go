package serverutils

import (
	"errors"

	"ad-studio-be/internal/pkg/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

type APIError struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func SuccessResponse[T any](message string, data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code, message string) APIError {
	return APIError{
		Success: false,
		Code:    code,
		Message: message,
	}
}

var validate = validator.New()

func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

// ErrorHandlerMiddleware maps domain errors to structured JSON responses with
// machine-readable codes.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrUnknownProduct):
			status = fiber.StatusBadRequest
		case errors.Is(err, apperr.ErrInsufficientBalance), errors.Is(err, apperr.ErrPlanChangeConflict):
			status = fiber.StatusConflict
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrMissingReference):
			status = fiber.StatusNotFound
		case errors.Is(err, apperr.ErrTransientExternal):
			status = fiber.StatusBadGateway
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		return ctx.Status(status).JSON(ErrorResponse(string(apperr.CodeOf(err)), err.Error()))
	}
}
