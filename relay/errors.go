package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnregisteredEndpoint is wrapped by the Error returned when a
// submission names an identifier that is not configured.
var ErrUnregisteredEndpoint = errors.New("unregistered endpoint")

// Error codes, one per terminal failure stage.
const (
	CodeUnregisteredEndpoint = "unregistered_endpoint"
	CodePayloadTooLarge      = "payload_too_large"
	CodeUndeliverableEmail   = "undeliverable_email"
	CodeMailTransport        = "mail_transport"
)

// Error is a pipeline failure. Message is the text returned to the caller.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns Status, or 500 when unset.
func (e *Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

func unregistered(identifier string) *Error {
	return &Error{
		Code:    CodeUnregisteredEndpoint,
		Message: fmt.Sprintf("Error: The Endpoint with the identifier-value %q was not named in the config", identifier),
		Status:  http.StatusNotAcceptable,
		Err:     ErrUnregisteredEndpoint,
	}
}

func tooLarge(err error) *Error {
	return &Error{
		Code:    CodePayloadTooLarge,
		Message: "Error while checking form data: " + err.Error(),
		Status:  http.StatusRequestEntityTooLarge,
		Err:     err,
	}
}

func undeliverable(err error) *Error {
	return &Error{
		Code:    CodeUndeliverableEmail,
		Message: "Error while checking mail validity: " + err.Error(),
		Status:  http.StatusNotAcceptable,
		Err:     err,
	}
}

func transport(err error) *Error {
	return &Error{
		Code:    CodeMailTransport,
		Message: "Error while sending mail: " + err.Error(),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}
