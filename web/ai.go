package web

import (
	"net/http"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var course string
	if err := decodeBody(r, map[string]*string{"course": &course}); err != nil || course == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Missing course.", "course")
		return
	}
	report, err := s.Analyzer.AnalyzeCourse(r.Context(), course)
	if err != nil {
		s.Logger.Error("course analysis failed", "error", err)
		writeError(w, http.StatusBadGateway, "analysis_failed", "Course analysis failed.", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(report)
}
