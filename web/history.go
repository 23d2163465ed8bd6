package web

import (
	"net/http"

	"github.com/gorilla/mux"

	ca "github.com/courseai/courseai"
)

func (s *Server) handleAppendHistory(w http.ResponseWriter, r *http.Request) {
	var identityID, query string
	if err := decodeBody(r, map[string]*string{
		"userId":      &identityID,
		"searchQuery": &query,
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body.", "")
		return
	}
	rec, err := s.Histories.Append(r.Context(), &ca.SearchRecord{
		IdentityID: identityID,
		Query:      query,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.Histories.ListByIdentity(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*ca.SearchRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.Histories.DeleteOne(r.Context(), mux.Vars(r)["recordId"]); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	count, err := s.Histories.DeleteAllByIdentity(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": count})
}
