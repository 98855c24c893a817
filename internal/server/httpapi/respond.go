package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/server/validation"
)

// Machine-readable error codes returned in the "code" field.
const (
	CodeInvalidIdentifier = "invalid_identifier"
	CodeInvalidJSON       = "invalid_json"
	CodeMissingField      = "missing_field"
	CodeWrongType         = "wrong_type"
	CodeInvalidIV         = "invalid_iv"
	CodeInvalidSalt       = "invalid_salt"
	CodeInvalidCiphertext = "invalid_ciphertext"
	CodePayloadTooLarge   = "payload_too_large"
	CodeCollision         = "collision"
	CodeNotFound          = "not_found"
	CodeMethodNotAllowed  = "method_not_allowed"
	CodeInternal          = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type apiError struct {
	status  int
	code    string
	message string
}

var (
	errNotFound         = apiError{http.StatusNotFound, CodeNotFound, "Memo not found or already destroyed"}
	errMethodNotAllowed = apiError{http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method Not Allowed"}
	errInternal         = apiError{http.StatusInternalServerError, CodeInternal, "Internal Server Error"}
)

var inputErrors = []struct {
	err error
	api apiError
}{
	{validation.ErrInvalidIdentifier, apiError{http.StatusBadRequest, CodeInvalidIdentifier, "Invalid id"}},
	{validation.ErrInvalidJSON, apiError{http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON"}},
	{validation.ErrMissingField, apiError{http.StatusBadRequest, CodeMissingField, "Missing ciphertext, iv, or salt"}},
	{validation.ErrWrongType, apiError{http.StatusBadRequest, CodeWrongType, "Wrong field type"}},
	{validation.ErrInvalidIV, apiError{http.StatusBadRequest, CodeInvalidIV, "Invalid iv"}},
	{validation.ErrInvalidSalt, apiError{http.StatusBadRequest, CodeInvalidSalt, "Invalid salt"}},
	{validation.ErrInvalidCiphertext, apiError{http.StatusBadRequest, CodeInvalidCiphertext, "Invalid ciphertext"}},
	{validation.ErrPayloadTooLarge, apiError{http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Payload too large"}},
	{common.ErrCollision, apiError{http.StatusConflict, CodeCollision, "ID collision, try again"}},
	{common.ErrorNotFound, errNotFound},
}

// classify maps a service error to its HTTP representation. ok is false for
// errors that are not the client's fault.
func classify(err error) (apiError, bool) {
	for _, e := range inputErrors {
		if errors.Is(err, e.err) {
			return e.api, true
		}
	}
	return errInternal, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, e apiError) {
	writeJSON(w, e.status, errorBody{Error: e.message, Code: e.code})
}

// writeError renders err and logs failures the client did not cause.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	e, ok := classify(err)
	if !ok {
		h.logger.Error(ctx, "request failed", "error", err)
	}
	writeAPIError(w, e)
}
