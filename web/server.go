// Package web exposes the account unification core, the search history log,
// the admin views and the course analysis proxy over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	ca "github.com/courseai/courseai"
	"github.com/courseai/courseai/oauth2"
)

// CourseAnalyzer produces a structured analysis for a course description.
// Satisfied by genai.Client.
type CourseAnalyzer interface {
	AnalyzeCourse(ctx context.Context, course string) (json.RawMessage, error)
}

// Server holds the wired dependencies for the HTTP surface. All fields
// except Unifier, Histories and Logger may be nil; the corresponding routes
// are simply not registered.
type Server struct {
	Unifier    *ca.Unifier
	Verifier   ca.ClaimsVerifier
	Identities ca.IdentityLister
	Histories  ca.HistoryStore
	Analyzer   CourseAnalyzer
	Flow       *oauth2.GoogleFlow
	Logger     *slog.Logger
}

// Handler builds the full route table with logging, recovery and CORS
// middleware applied.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	r := mux.NewRouter()

	r.HandleFunc("/api/auth", s.handleLocalLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/set-password", s.handleSetPassword).Methods(http.MethodPost)
	r.HandleFunc("/api/update-password", s.handleUpdatePassword).Methods(http.MethodPut)
	if s.Verifier != nil {
		r.HandleFunc("/api/google-auth", s.handleGoogleAuth).Methods(http.MethodPost)
	}
	if s.Flow != nil {
		r.HandleFunc("/auth/google", s.Flow.Start).Methods(http.MethodGet)
		r.HandleFunc("/auth/google/callback", s.Flow.Callback).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/history", s.handleAppendHistory).Methods(http.MethodPost)
	r.HandleFunc("/api/history/{userId}", s.handleListHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history/{userId}", s.handleClearHistory).Methods(http.MethodDelete)
	r.HandleFunc("/api/history/{userId}/{recordId}", s.handleDeleteHistory).Methods(http.MethodDelete)

	if s.Identities != nil {
		r.HandleFunc("/api/admin/users", s.handleAdminUsers).Methods(http.MethodGet)
		r.HandleFunc("/api/admin/user-history/{userId}", s.handleAdminUserHistory).Methods(http.MethodGet)
	}
	if s.Analyzer != nil {
		r.HandleFunc("/api/ai", s.handleAnalyze).Methods(http.MethodPost)
	}

	var h http.Handler = r
	h = cors(allowedOrigins)(h)
	h = requestLogging(s.Logger)(h)
	h = recovery(s.Logger)(h)
	return h
}
