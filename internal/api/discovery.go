package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-androidtv/internal/discovery"
)

// discoveredDevice is a LAN device with whether an entry already uses it.
type discoveredDevice struct {
	discovery.Device
	Configured bool `json:"configured"`
}

// handleDiscovery browses the LAN for Android TV and Fire TV devices.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil || !s.discovery.Enabled() {
		writeServiceUnavailable(w, ErrCodeUnavailable, "discovery is disabled")
		return
	}

	found, err := s.discovery.Discover(r.Context())
	if err != nil {
		s.logger.Warn("discovery failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "discovery failed")
		return
	}

	configured := make(map[string]bool)
	for _, e := range s.entries.List() {
		configured[e.Data.Host] = true
	}

	devices := make([]discoveredDevice, 0, len(found))
	for _, d := range found {
		devices = append(devices, discoveredDevice{Device: d, Configured: configured[d.Host]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}
