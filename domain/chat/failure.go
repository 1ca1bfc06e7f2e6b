package chat

import "errors"

// Failure is the serializable form of an *Error. Request-reply responses carry
// it so the error taxonomy survives the hop between modules.
type Failure struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var kindNames = map[error]string{
	ErrValidation:   "validation",
	ErrNotFound:     "not_found",
	ErrStoreFailure: "store_failure",
	ErrProtocol:     "protocol",
	ErrPermission:   "permission",
}

// ToFailure converts err into a Failure. Unknown errors become store failures.
// Only store failures keep their cause in the message; the cause of any other
// kind is internal detail.
func ToFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = StoreFailure("complete operation", err)
	}
	message := e.Message
	if e.Kind == ErrStoreFailure {
		message = e.Error()
	}
	return &Failure{
		Kind:    kindNames[e.Kind],
		Code:    e.Code,
		Message: message,
	}
}

// Err rebuilds the typed error described by f.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	kind := ErrStoreFailure
	for k, name := range kindNames {
		if name == f.Kind {
			kind = k
			break
		}
	}
	return &Error{Kind: kind, Code: f.Code, Message: f.Message}
}
