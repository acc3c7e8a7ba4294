package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewPlatformError creates an error for a failed platform client call.
// Calls that fail with a 5xx-class or throttling status are retryable.
func NewPlatformError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodePlatformAPI, "platform API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}
	return appErr
}

// NewMediaError creates a media processing error
func NewMediaError(operation, platformID string, err error) *AppError {
	return Wrap(err, ErrCodeMediaDownload, fmt.Sprintf("media %s failed", operation)).
		WithContext("operation", operation).
		WithContext("platform_id", platformID).
		WithUserMessage("Media processing failed")
}

// NewEmbeddingError creates an embedding provider error
func NewEmbeddingError(model string, err error) *AppError {
	return WrapRetryable(err, ErrCodeEmbeddingAPI, "embedding provider call failed").
		WithContext("model", model).
		WithUserMessage("Embedding generation failed")
}

// NewTakeoutError creates an error for a failed takeout session operation
func NewTakeoutError(phase string, err error) *AppError {
	return Wrap(err, ErrCodeTakeoutSession, fmt.Sprintf("takeout %s failed", phase)).
		WithContext("phase", phase).
		WithUserMessage("Bulk export failed")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return 400
	case ErrCodeNotFound:
		return 404
	case ErrCodeRateLimit:
		return 429
	case ErrCodeTimeout:
		return 408
	case ErrCodePlatformAPI, ErrCodeMediaDownload, ErrCodeEmbeddingAPI, ErrCodeTakeoutSession:
		if IsRetryable(err) {
			return 502
		}
		return 500
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery:
		return 503
	default:
		return 500
	}
}
