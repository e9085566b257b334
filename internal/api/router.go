package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", s.handleGetSnapshot)
			r.Get("/live/{id}", s.handleGetLiveRun)
		})

		r.Post("/refresh", s.handleRefresh)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/stats", s.handleDeviceStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/state", s.handleGetDeviceState)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	MQTTConnected   bool   `json:"mqtt_connected"`
	StreamConnected bool   `json:"stream_connected"`
	FailingFeeds    int    `json:"failing_feeds"`
}

// handleHealth returns the server health status. A failing feed degrades
// the status but the endpoint still answers 200: stale data is served.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:          "ok",
		Version:         s.version,
		MQTTConnected:   s.mqtt != nil && s.mqtt.IsConnected(),
		StreamConnected: s.source.StreamConnected(),
	}
	for _, st := range s.source.Stats() {
		if st.Failing() {
			resp.FailingFeeds++
		}
	}
	if resp.FailingFeeds > 0 {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}
