package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-androidtv/internal/bridges/androidtv"
)

// imageTimeout bounds a screen capture requested over HTTP.
const imageTimeout = 15 * time.Second

// commandRequest is the body of POST /players/{id}/commands.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// playerResponse combines a player's description with its current state.
type playerResponse struct {
	androidtv.DiscoveredPlayer
	State any `json:"state"`
}

// handleListPlayers returns every player with its state.
func (s *Server) handleListPlayers(w http.ResponseWriter, _ *http.Request) {
	described := s.players.Players()
	states := s.players.States()

	byID := make(map[string]any, len(states))
	for _, st := range states {
		byID[st.EntryID] = st
	}

	players := make([]playerResponse, 0, len(described))
	for _, d := range described {
		players = append(players, playerResponse{DiscoveredPlayer: d, State: byID[d.EntryID]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"players": players,
		"count":   len(players),
	})
}

// handleGetPlayer returns one player with its state.
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.players.Describe(id)
	if err != nil {
		s.writePlayerError(w, err)
		return
	}
	st, err := s.players.State(id)
	if err != nil {
		s.writePlayerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{DiscoveredPlayer: d, State: st})
}

// handleGetPlayerState returns a player's current state.
func (s *Server) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	st, err := s.players.State(chi.URLParam(r, "id"))
	if err != nil {
		s.writePlayerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePlayerCommand runs a media player command.
func (s *Server) handlePlayerCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	s.dispatch(w, r, androidtv.CommandMessage{
		Command:    req.Command,
		Parameters: req.Parameters,
	})
}

// handlePlayerService calls an entity service. The body holds its
// parameters.
func (s *Server) handlePlayerService(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	if err := decodeBody(r, &params); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	s.dispatch(w, r, androidtv.CommandMessage{
		Service:    chi.URLParam(r, "service"),
		Parameters: params,
	})
}

// dispatch runs cmd through the bridge and maps the ack to a response.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd androidtv.CommandMessage) {
	cmd.ID = uuid.NewString()
	cmd.EntryID = chi.URLParam(r, "id")
	cmd.Timestamp = time.Now().UTC()
	cmd.Source = "api"
	if subject, ok := r.Context().Value(ctxKeySubject).(string); ok {
		cmd.UserID = subject
	}

	ack := s.players.Dispatch(cmd)
	writeJSON(w, ackStatus(ack), ack)
}

// ackStatus maps an ack to an HTTP status code.
func ackStatus(ack androidtv.AckMessage) int {
	if ack.Status == androidtv.AckAccepted {
		return http.StatusOK
	}
	switch ack.Error.Code {
	case androidtv.ErrCodeNotConfigured:
		return http.StatusNotFound
	case androidtv.ErrCodeInvalidCommand, androidtv.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case androidtv.ErrCodeNotSupported:
		return http.StatusUnprocessableEntity
	case androidtv.ErrCodeDeviceBusy:
		return http.StatusConflict
	case androidtv.ErrCodeDeviceUnreachable:
		return http.StatusServiceUnavailable
	case androidtv.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// handlePlayerImage returns a screen capture of the device. It answers
// 204 when no capture is available.
func (s *Server) handlePlayerImage(w http.ResponseWriter, r *http.Request) {
	p, err := s.players.Player(chi.URLParam(r, "id"))
	if err != nil {
		s.writePlayerError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), imageTimeout)
	defer cancel()

	data, contentType, err := p.MediaImage(ctx)
	if err != nil {
		s.logger.Warn("screen capture failed", "entry_id", p.EntryID(), "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "screen capture failed")
		return
	}
	if len(data) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}

func (s *Server) writePlayerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, androidtv.ErrPlayerNotFound):
		writeNotFound(w, "player not found")
	case errors.Is(err, androidtv.ErrPlayerNotReady):
		writeServiceUnavailable(w, ErrCodeNotReady, "player has not connected to its device")
	default:
		s.logger.Error("player operation failed", "error", err)
		writeInternalError(w, "player operation failed")
	}
}
