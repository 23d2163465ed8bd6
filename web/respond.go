package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	ca "github.com/courseai/courseai"
)

// errorBody is the JSON error shape. Field names the offending input field
// for validation errors so clients can attach the message to a form control.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, errorBody{Code: code, Message: message, Field: field})
}

// writeDomainError translates the sentinel error taxonomy into HTTP
// responses. Unknown errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ca.ErrWeakCredential):
		writeError(w, http.StatusBadRequest, "weak_password", "Password must be at least 6 characters long.", "password")
	case errors.Is(err, ca.ErrUsernameTooShort):
		writeError(w, http.StatusBadRequest, "username_too_short", "Username must be at least 3 characters long.", "username")
	case errors.Is(err, ca.ErrUsernameTaken), errors.Is(err, ca.ErrDuplicateKey):
		// A duplicate-key failure surfacing here means a concurrent writer
		// claimed the username between validation and the store write; the
		// caller recovers the same way as for a taken username.
		writeError(w, http.StatusBadRequest, "username_taken", "This username is already taken. Try another!", "username")
	case errors.Is(err, ca.ErrInvalidCredential):
		writeError(w, http.StatusBadRequest, "invalid_credential", "Invalid password!", "password")
	case errors.Is(err, ca.ErrFederationRequired):
		writeError(w, http.StatusBadRequest, "federation_required", "Please login with Google to finish setting up your account.", "")
	case errors.Is(err, ca.ErrVerificationFailed):
		writeError(w, http.StatusBadRequest, "google_auth_failed", "Google Auth Failed", "")
	case errors.Is(err, ca.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account_not_found", "Account not found!", "")
	case errors.Is(err, ca.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record_not_found", "Record not found!", "")
	case errors.Is(err, ca.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request.", "")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error.", "")
	}
}

// decodeBody reads a JSON request body into dst, or falls back to form
// fields for urlencoded posts.
func decodeBody(r *http.Request, dst map[string]*string) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/json") {
		var raw map[string]string
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return err
		}
		for key, ptr := range dst {
			*ptr = raw[key]
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	for key, ptr := range dst {
		*ptr = r.FormValue(key)
	}
	return nil
}
