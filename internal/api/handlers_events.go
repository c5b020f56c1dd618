package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleParseEvents streams a job's events. A reconnecting client sends
// Last-Event-ID and resumes after it; everything before arrives as backlog.
func (s *Server) handleParseEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.pipeline.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	var after int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		after, _ = strconv.ParseInt(v, 10, 64)
	}

	// Subscribe before reading the backlog so nothing falls in between.
	c := s.hub.NewClient()
	s.hub.AddChannel(c, jobID)
	defer s.hub.CloseClient(c)

	s.hub.ServeHTTP(w, r, c, job.Events(after))
}
