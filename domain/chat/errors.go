// Package chat holds the error taxonomy shared by the stores, the lifecycle
// manager, the session handler and the HTTP layer.
package chat

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error matches exactly one of these with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrStoreFailure = errors.New("store failure")
	ErrProtocol     = errors.New("protocol error")
	ErrPermission   = errors.New("permission denied")
)

// Machine-readable failure codes.
const (
	CodeNameInvalid        = "name_invalid"
	CodeNameAlreadyChosen  = "name_already_chosen"
	CodeNameNotChosen      = "name_not_chosen"
	CodeRoomNameInvalid    = "room_name_invalid"
	CodeJoinCodeInvalid    = "join_code_invalid"
	CodeContentInvalid     = "content_invalid"
	CodeAttachmentsInvalid = "attachments_invalid"
	CodeRoomNotFound       = "room_not_found"
	CodeRoomNotJoined      = "room_not_joined"
	CodeStoreFailure       = "store_failure"
	CodeProtocolError      = "protocol_error"
)

// Sentinel failures. Compare with errors.Is; a wrapped copy carrying a cause
// still matches its sentinel because matching is by code.
var (
	ErrNameInvalid        = newError(ErrValidation, CodeNameInvalid, "display name must be 2-30 characters of letters, digits or underscores")
	ErrNameAlreadyChosen  = newError(ErrValidation, CodeNameAlreadyChosen, "name already chosen")
	ErrNameNotChosen      = newError(ErrPermission, CodeNameNotChosen, "name not chosen")
	ErrRoomNameInvalid    = newError(ErrValidation, CodeRoomNameInvalid, "room name must be 1-50 allowed characters")
	ErrJoinCodeInvalid    = newError(ErrValidation, CodeJoinCodeInvalid, "join code must be exactly 6 letters")
	ErrContentInvalid     = newError(ErrValidation, CodeContentInvalid, "message content must be 1-200 characters")
	ErrAttachmentsInvalid = newError(ErrValidation, CodeAttachmentsInvalid, "at most 5 attachments, each with a type and a path")
	ErrRoomNotFound       = newError(ErrNotFound, CodeRoomNotFound, "room not found")
	ErrRoomNotJoined      = newError(ErrPermission, CodeRoomNotJoined, "room not joined")
)

// Error is a typed failure of the coordinator.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of sentinel carrying cause.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

// StoreFailure reports a failed persistence operation.
func StoreFailure(op string, cause error) *Error {
	return &Error{
		Kind:    ErrStoreFailure,
		Code:    CodeStoreFailure,
		Message: "failed to " + op,
		Err:     cause,
	}
}

// ProtocolError reports an unparseable wire frame.
func ProtocolError(cause error) *Error {
	return &Error{
		Kind:    ErrProtocol,
		Code:    CodeProtocolError,
		Message: "malformed frame",
		Err:     cause,
	}
}

// CodeOf returns the failure code of err, or CodeStoreFailure for errors
// that did not originate from this package.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStoreFailure
}
