package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/movie-auth-gateway/services"
	"github.com/upb/movie-auth-gateway/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteError(w, http.StatusNotFound, messageOf(err), details)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, messageOf(err), details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, messageOf(err))

	case services.IsInternalError(err):
		// Internal details stay in the log
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	message := err.Error()
	if utils.IsValidationError(err) {
		message = "Validation failed"
		details = make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
	}

	if err := utils.WriteBadRequest(w, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// messageOf returns the client-facing message of a domain error
func messageOf(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
