package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-galaxie/internal/device"
)

// handleListDevices returns all host devices.
//
// Query parameters:
//   - kind: filter by device kind (previous_race, next_race, live_race, live_status)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if kindStr := r.URL.Query().Get("kind"); kindStr != "" {
		kind := device.Kind(kindStr)
		if !device.ValidKind(kind) {
			writeBadRequest(w, "unknown device kind: "+kindStr)
			return
		}
		devices := s.registry.ListByKind(ctx, kind)
		writeJSON(w, http.StatusOK, map[string]any{"devices": nonNil(devices), "count": len(devices)})
		return
	}

	devices := s.registry.ListDevices(ctx)
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleGetDeviceState returns only the entity values of a device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	state := d.State
	if state == nil {
		state = device.State{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":        d.ID,
		"state":            state,
		"state_updated_at": d.StateUpdatedAt,
	})
}

// handleDeviceStats returns registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}

func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id := chi.URLParam(r, "id")
	d, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		s.logger.Error("failed to get device", "device_id", id, "error", err)
		writeInternalError(w, "failed to get device")
		return nil, false
	}
	return d, true
}

// nonNil returns an empty slice for nil so JSON renders [] not null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
