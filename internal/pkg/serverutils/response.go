package serverutils

import (
	"errors"
	"strconv"

	"kb-assistant-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// ErrorHandlerMiddleware converts service errors into the structured bodies
// clients rely on. Raw error text never reaches the response for 500s.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var rateErr *apperror.RateLimitedError
		if errors.As(err, &rateErr) {
			ctx.Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"code":    rateErr.Code,
				"message": rateErr.Message,
			})
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			return ctx.Status(appErr.Status()).JSON(fiber.Map{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{
				"code":    apperror.CodeInternalError,
				"message": fiberErr.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    apperror.CodeInternalError,
			"message": "An unexpected error occurred.",
		})
	}
}
