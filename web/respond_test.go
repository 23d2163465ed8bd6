package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	ca "github.com/courseai/courseai"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"username taken", ca.ErrUsernameTaken, http.StatusBadRequest, "username_taken"},
		// A store-level duplicate from a lost username race reads the same
		// way to the caller as a taken username.
		{"duplicate key", ca.ErrDuplicateKey, http.StatusBadRequest, "username_taken"},
		{"wrapped duplicate key", fmt.Errorf("updating identity: %w", ca.ErrDuplicateKey), http.StatusBadRequest, "username_taken"},
		{"account not found", ca.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
		{"store unavailable", ca.ErrStoreUnavailable, http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeDomainError(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}
