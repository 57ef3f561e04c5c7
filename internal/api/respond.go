// Package api implements the REST admin surface from spec.md §6: thin
// handlers that decode a request, call into auth/storage/materializer,
// and render a JSON response. No business rule lives here — every
// handler is glue.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/flowplane/flowplane/internal/domain"
)

// decodeError marks a failure to parse the request body itself —
// distinct from domain.KindValidation, which is reserved for a
// successfully-decoded value failing a domain rule (spec.md §6's 422
// "semantic validation" vs 400 "validation failure").
type decodeError struct{ cause error }

func (e *decodeError) Error() string { return e.cause.Error() }
func (e *decodeError) Unwrap() error { return e.cause }

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &decodeError{cause: err}
	}
	return nil
}

// decodeJSONPeek unmarshals the request body into v for a team-scope
// check ahead of the handler's own decodeJSON call, then restores the
// body so the handler still sees the full stream. Used only by
// requireScope's teamOf functions for create endpoints whose team
// comes from the body rather than a path value.
func decodeJSONPeek(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return json.Unmarshal(body, v)
}

// writeJSON writes v as the response body with the given status code.
// All REST bodies are camelCase JSON per spec.md §6.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// writeError is the single place Kind maps to an HTTP status code
// (spec.md §7 / SPEC_FULL.md §7).
func writeError(w http.ResponseWriter, err error) {
	var de *decodeError
	if errors.As(err, &de) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body: " + de.Error()})
		return
	}

	dErr, ok := domain.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch dErr.Kind {
	case domain.KindValidation:
		status = http.StatusUnprocessableEntity
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict, domain.KindInUse:
		status = http.StatusConflict
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindUnauthenticated:
		status = http.StatusUnauthorized
	case domain.KindTimeout, domain.KindDependencyUnavailable:
		status = http.StatusServiceUnavailable
	case domain.KindInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: dErr.Message, Field: dErr.Field, Details: dErr.Details})
}

// badRequest reports a malformed request that never reached a domain
// rule (bad query parameter, invalid path value) as a plain 400,
// distinct from the 422 a failed domain.Validation carries.
func badRequest(w http.ResponseWriter, field, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Field: field})
}
