package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/promptpilot/llm-gateway/services"
	"github.com/promptpilot/llm-gateway/utils"
)

// StatusForError maps a domain error kind to its HTTP status.
// Credential failures are server-side misconfiguration, hence 500.
func StatusForError(err error) int {
	switch services.GetErrorType(err) {
	case services.ErrorTypeInvalidRequest, services.ErrorTypeUnknownProvider:
		return http.StatusBadRequest
	case services.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case services.ErrorTypeProviderTimeout:
		return http.StatusGatewayTimeout
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	kind := services.GetErrorType(err)
	status := StatusForError(err)
	message := services.GetErrorMessage(err)

	if kind == "" || kind == services.ErrorTypeInternal {
		// Unknown failures never leak their text
		logger.Error("internal server error",
			zap.Error(err),
			zap.String("error_type", string(kind)))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
		return
	}

	var writeErr error
	switch kind {
	case services.ErrorTypeRateLimited:
		writeErr = utils.WriteTooManyRequests(w, message, services.GetErrorDetails(err))
	default:
		writeErr = utils.WriteError(w, status, string(kind), message, services.GetErrorDetails(err))
	}
	if writeErr != nil {
		logger.Error("failed to write error response",
			zap.String("error_type", string(kind)),
			zap.Error(writeErr))
	}

	logger.Debug("handled service error",
		zap.String("type", string(kind)),
		zap.Int("status", status),
		zap.String("message", message))
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, utils.FirstFieldMessage(err), details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	// Generic validation error
	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
