package web

import (
	"net/http"
)

func (s *Server) handleLocalLogin(w http.ResponseWriter, r *http.Request) {
	var identifier, password string
	if err := decodeBody(r, map[string]*string{
		"username": &identifier,
		"password": &password,
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body.", "")
		return
	}
	account, err := s.Unifier.LocalLogin(r.Context(), identifier, password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": account})
}

func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var token string
	if err := decodeBody(r, map[string]*string{"token": &token}); err != nil || token == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Missing token.", "token")
		return
	}
	claims, err := s.Verifier.Verify(r.Context(), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	account, needsPassword, err := s.Unifier.FederatedLogin(r.Context(), claims)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          account,
		"needsPassword": needsPassword,
	})
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var email, username, password string
	if err := decodeBody(r, map[string]*string{
		"email":    &email,
		"username": &username,
		"password": &password,
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body.", "")
		return
	}
	account, err := s.Unifier.SetInitialCredential(r.Context(), email, username, password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": account})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var email, password string
	if err := decodeBody(r, map[string]*string{
		"email":    &email,
		"password": &password,
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body.", "")
		return
	}
	changedAt, err := s.Unifier.UpdateCredential(r.Context(), email, password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passwordLastChanged": changedAt})
}
