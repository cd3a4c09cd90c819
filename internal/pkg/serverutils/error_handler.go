package serverutils

import (
	"errors"

	"kbchat-be/internal/pkg/apperror"
	"kbchat-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind to the HTTP status it is reported with.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInvalidInput:
		return fiber.StatusBadRequest
	case apperror.KindRetrievalAuth, apperror.KindGenerationAuth:
		return fiber.StatusUnauthorized
	case apperror.KindRetrievalUnavailable, apperror.KindGenerationUnavailable:
		return fiber.StatusServiceUnavailable
	case apperror.KindIngestion:
		return fiber.StatusBadGateway
	case apperror.KindNotFound, apperror.KindSessionNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is installed as fiber.Config.ErrorHandler. Every error a
// handler returns ends up here and leaves as a BaseResponse envelope.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code, errorType, message := Describe(err)

		details := map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"status": code,
			"error":  err.Error(),
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", details)
		} else {
			log.Warn("HTTP", "Request rejected", details)
		}

		res := TypedErrorResponse(code, errorType, message)
		var withData *dataError
		if errors.As(err, &withData) {
			res.Data = withData.data
		}
		return ctx.Status(code).JSON(res)
	}
}

type dataError struct {
	err  error
	data interface{}
}

func (e *dataError) Error() string { return e.err.Error() }
func (e *dataError) Unwrap() error { return e.err }

// WithData keeps err's status and kind but puts data in the envelope's data field.
func WithData(err error, data interface{}) error {
	if err == nil {
		return nil
	}
	return &dataError{err: err, data: data}
}

// Describe extracts status, kind and client-facing message from err.
func Describe(err error) (int, string, string) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return StatusFor(appErr.Kind), string(appErr.Kind), appErr.Error()
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		errorType := "HTTP_ERROR"
		if fiberErr.Code == fiber.StatusBadRequest || fiberErr.Code == fiber.StatusUnprocessableEntity {
			errorType = string(apperror.KindInvalidInput)
		}
		return fiberErr.Code, errorType, fiberErr.Message
	}

	return fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}
