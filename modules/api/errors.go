package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/viral32111/LiveChat/domain/chat"
	"github.com/viral32111/LiveChat/modules/attachments"
)

// ErrorCode is the numeric code in every error response body. The values are
// part of the client contract and must not be reordered.
type ErrorCode int

const (
	ErrorInvalidContentType ErrorCode = iota
	ErrorMissingPayload
	ErrorPayloadMissingProperty
	ErrorPayloadMalformedValue
	ErrorNameAlreadyChosen
	ErrorDatabaseInsertFailure
	ErrorNameNotChosen
	ErrorSessionDestroyFailure
	ErrorDatabaseDeleteFailure
	ErrorDatabaseFindFailure
	ErrorMustUpgradeToWebSocket
	ErrorRoomNotJoined
	ErrorNoFilesUploaded
	ErrorNoData
	ErrorDatabaseOperationFailure
	ErrorBroadcastFailure
)

// APIError is a failed request: the HTTP status and the body to send.
type APIError struct {
	Status  int
	Code    ErrorCode
	Message string
	Err     error
}

func newAPIError(status int, code ErrorCode, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// fromError maps a lifecycle or attachment failure onto an APIError.
// storeCode is reported when the failure was the store's.
func fromError(err error, storeCode ErrorCode) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	status, code := classify(err, storeCode)
	message := http.StatusText(status)
	var chatErr *chat.Error
	switch {
	case errors.As(err, &chatErr):
		message = chatErr.Message
	case status < fiber.StatusInternalServerError:
		message = err.Error()
	}
	return &APIError{Status: status, Code: code, Message: message, Err: err}
}

func classify(err error, storeCode ErrorCode) (int, ErrorCode) {
	switch {
	case errors.Is(err, chat.ErrNameAlreadyChosen):
		return fiber.StatusBadRequest, ErrorNameAlreadyChosen
	case errors.Is(err, chat.ErrNameNotChosen):
		return fiber.StatusUnauthorized, ErrorNameNotChosen
	case errors.Is(err, chat.ErrRoomNotJoined), errors.Is(err, chat.ErrPermission):
		return fiber.StatusForbidden, ErrorRoomNotJoined
	case errors.Is(err, chat.ErrValidation):
		return fiber.StatusBadRequest, ErrorPayloadMalformedValue
	case errors.Is(err, chat.ErrNotFound):
		return fiber.StatusNotFound, ErrorDatabaseFindFailure
	case errors.Is(err, attachments.ErrNoFiles):
		return fiber.StatusBadRequest, ErrorNoFilesUploaded
	case errors.Is(err, attachments.ErrTooManyFiles),
		errors.Is(err, attachments.ErrFileTooLarge),
		errors.Is(err, attachments.ErrFileRejected),
		errors.Is(err, attachments.ErrInvalidKey):
		return fiber.StatusBadRequest, ErrorPayloadMalformedValue
	case errors.Is(err, attachments.ErrNotFound):
		return fiber.StatusNotFound, ErrorNoData
	default:
		return fiber.StatusInternalServerError, storeCode
	}
}

// codeForStatus picks the body code for errors raised by Fiber itself.
func codeForStatus(status int) ErrorCode {
	switch status {
	case fiber.StatusUpgradeRequired:
		return ErrorMustUpgradeToWebSocket
	case fiber.StatusUnsupportedMediaType:
		return ErrorInvalidContentType
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		return ErrorPayloadMalformedValue
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return ErrorNoData
	default:
		return ErrorDatabaseOperationFailure
	}
}

// errorHandler renders every returned error as an ErrorResponse.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	var apiErr *APIError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &fiberErr):
		apiErr = newAPIError(fiberErr.Code, codeForStatus(fiberErr.Code), fiberErr.Message)
	default:
		apiErr = &APIError{
			Status:  fiber.StatusInternalServerError,
			Code:    ErrorDatabaseOperationFailure,
			Message: http.StatusText(fiber.StatusInternalServerError),
			Err:     err,
		}
	}

	if apiErr.Status >= fiber.StatusInternalServerError {
		m.logger.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"code", int(apiErr.Code),
			"error", err)
	}

	return c.Status(apiErr.Status).JSON(ErrorResponse{
		Error:   apiErr.Code,
		Message: apiErr.Message,
	})
}
