package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-androidtv/internal/discovery"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
	"github.com/nerrad567/gray-logic-androidtv/internal/flow"
)

// startFlowRequest is the body of POST /flows.
type startFlowRequest struct {
	Source   flow.Source `json:"source"`
	Advanced bool        `json:"advanced"`
}

// handleStartConfigFlow starts a config flow and returns its first form.
func (s *Server) handleStartConfigFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.flows.StartConfig(r.Context(), req.Source, req.Advanced)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStartOptionsFlow starts an options flow for an entry.
func (s *Server) handleStartOptionsFlow(w http.ResponseWriter, r *http.Request) {
	res, err := s.flows.StartOptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleConfigureFlow submits input to the current step of a flow.
func (s *Server) handleConfigureFlow(w http.ResponseWriter, r *http.Request) {
	var in flow.Input
	if err := decodeBody(r, &in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.flows.Configure(r.Context(), chi.URLParam(r, "flowID"), in)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAbortFlow drops a flow.
func (s *Server) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.flows.Abort(chi.URLParam(r, "flowID")); err != nil {
		s.writeFlowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrFlowNotFound):
		writeNotFound(w, "flow not found or expired")
	case errors.Is(err, entry.ErrEntryNotFound):
		writeNotFound(w, "entry not found")
	case errors.Is(err, flow.ErrUnknownSource):
		writeBadRequest(w, err.Error())
	case errors.Is(err, flow.ErrDiscoveryUnavailable), errors.Is(err, discovery.ErrDisabled):
		writeServiceUnavailable(w, ErrCodeUnavailable, "discovery is disabled")
	default:
		s.logger.Error("flow step failed", "error", err)
		writeInternalError(w, "flow step failed")
	}
}
