package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleGetSnapshot returns the current merged snapshot.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Snapshot())
}

// handleGetLiveRun returns one live run of the current snapshot.
func (s *Server) handleGetLiveRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := s.source.Snapshot().Live[id]
	if !ok {
		writeNotFound(w, "live run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRefresh triggers an immediate poll of every feed. The poll runs in
// the background; the response does not wait for it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.source.Refresh()
	s.logger.Info("refresh requested", "request_id", r.Context().Value(ctxKeyRequestID))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "refresh scheduled",
		"seq":    s.source.Snapshot().Seq,
	})
}
