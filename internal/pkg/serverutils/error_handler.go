package serverutils

import (
	"errors"

	"dermascan-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders errors returned by downstream handlers as
// {"error": message} with the status carried by the error.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return RenderError(ctx, log, err)
	}
}

// RenderError writes err to the response. It is also the fiber.Config ErrorHandler.
func RenderError(ctx *fiber.Ctx, log logger.ILogger, err error) error {
	status, message := classify(err)

	details := map[string]interface{}{
		"method": ctx.Method(),
		"path":   ctx.Path(),
		"status": status,
		"error":  err.Error(),
	}
	if status >= fiber.StatusInternalServerError {
		log.Error("HTTP", message, details)
	} else {
		log.Warn("HTTP", message, details)
	}

	return ctx.Status(status).JSON(ErrorResponse(status, message))
}

func classify(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Type == ErrorTypeInternal {
			return appErr.StatusCode, "Internal server error"
		}
		return appErr.StatusCode, appErr.Message
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	return fiber.StatusInternalServerError, "Internal server error"
}
