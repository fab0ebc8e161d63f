// httputil/json.go
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"go.uber.org/zap"
)

// Errors returned by BindJSON. Other decode failures are returned as
// *BindError with a client-safe message.
var (
	ErrEmptyBody    = errors.New("request body is empty")
	ErrBodyTooLarge = errors.New("request body too large")
)

// BindError describes a malformed JSON body.
type BindError struct {
	Message string
	Err     error
}

func (e *BindError) Error() string { return e.Message }

func (e *BindError) Unwrap() error { return e.Err }

// StatusResponse is the response envelope for every relay endpoint.
type StatusResponse struct {
	Status string `json:"status"`
}

var jsonLogger = zap.NewNop()

// SetJSONLogger configures the logger used for encoding failures that
// happen after headers are sent.
func SetJSONLogger(logger *zap.Logger) {
	if logger != nil {
		jsonLogger = logger
	}
}

// WriteJSON writes v as JSON with the given status. Status codes outside
// 100-599 are written as 500.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		typeName := "nil"
		if v != nil {
			typeName = reflect.TypeOf(v).String()
		}
		jsonLogger.Error("json encoding failed after headers sent",
			zap.String("type", typeName), zap.Error(err))
	}
}

// WriteStatus writes {"status": text}.
func WriteStatus(w http.ResponseWriter, status int, text string) {
	WriteJSON(w, status, StatusResponse{Status: text})
}

// BindJSON decodes a single JSON value from the request body into v.
// Unknown fields are ignored.
func BindJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return ErrEmptyBody
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return parseJSONError(err)
	}
	if dec.More() {
		return &BindError{Message: "request body contains multiple JSON values"}
	}
	return nil
}

func parseJSONError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrBodyTooLarge
	}
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &BindError{Message: fmt.Sprintf("malformed JSON at position %d", syntaxErr.Offset), Err: err}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &BindError{Message: fmt.Sprintf("invalid value for field %q: expected %s", typeErr.Field, typeErr.Type.String()), Err: err}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &BindError{Message: "malformed JSON: unexpected end of body", Err: err}
	}
	return &BindError{Message: "invalid JSON in request body", Err: err}
}
