package web

import (
	"net/http"

	"github.com/gorilla/mux"

	ca "github.com/courseai/courseai"
)

// adminUser is an account annotated with its search history count for the
// admin user list.
type adminUser struct {
	*ca.Account
	HistoryCount int64 `json:"historyCount"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := s.Identities.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	users := make([]adminUser, 0, len(identities))
	for _, identity := range identities {
		count, err := s.Histories.CountByIdentity(r.Context(), identity.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		users = append(users, adminUser{Account: identity.Account(), HistoryCount: count})
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAdminUserHistory(w http.ResponseWriter, r *http.Request) {
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
