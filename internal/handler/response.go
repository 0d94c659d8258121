package handler

// RESPONSE HELPERS:
// Every handler answers in JSON through writeJSON / writeError so the shapes
// stay the same across endpoints.
//
// ERROR FORMAT:
//   {"error": "not_found", "message": "post not found with id abc123"}
//
// Validation failures add the per-field messages, and for forms the
// submitted values so a client can re-render the form:
//   {"error": "validation_error", "message": "...",
//    "fields": {"email": "Enter a valid email address."},
//    "form":   {"username": "alice", "email": "nope"}}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/blog/internal/apperror"
)

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`            // machine-readable type, e.g. "not_found"
	Message string            `json:"message"`          // human-readable description
	Fields  map[string]string `json:"fields,omitempty"` // validation only
	Form    map[string]string `json:"form,omitempty"`   // submitted values, validation only
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader, so Content-Type goes first.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// errors.Is walks the whole chain, so a service error like
// fmt.Errorf("updating post: %w", apperror.Forbidden(...)) still maps to 403.
func writeError(w http.ResponseWriter, err error) {
	writeFormError(w, err, nil)
}

// writeFormError is writeError plus the submitted form values, which are
// echoed only for validation failures.
func writeFormError(w http.ResponseWriter, err error, submitted map[string]string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		resp := ErrorResponse{Error: errorType, Message: appErr.Message}
		if status == http.StatusBadRequest {
			resp.Fields = appErr.Fields
			resp.Form = submitted
		}
		writeJSON(w, status, resp)
		return
	}

	// Never expose internal error text: it can carry SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// writeBadRequest is for requests that could not be parsed at all.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: message})
}

// isJSON reports whether the request body is JSON. Anything else is read as
// a URL-encoded or multipart form.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// formPtr returns a pointer to the submitted value of key, or nil when the
// form did not include the key at all. r.Form must already be parsed.
func formPtr(r *http.Request, key string) *string {
	values, ok := r.Form[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
