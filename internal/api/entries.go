package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-androidtv/internal/bridges/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
)

// handleListEntries returns every config entry.
func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := s.entries.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry returns one config entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeEntryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntry removes an entry and closes its player.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.entries.Delete(r.Context(), id); err != nil {
		s.writeEntryError(w, err)
		return
	}
	if err := s.players.RemoveEntry(id); err != nil && !errors.Is(err, androidtv.ErrPlayerNotFound) {
		s.logger.Warn("failed to stop player of deleted entry", "entry_id", id, "error", err)
	}

	s.logger.Info("entry deleted via API", "entry_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleReloadEntry closes and reconnects an entry's player.
func (s *Server) handleReloadEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.players.ReloadEntry(id); err != nil {
		if errors.Is(err, androidtv.ErrPlayerNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		writeInternalError(w, "failed to reload entry")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "reloading",
	})
}

func (s *Server) writeEntryError(w http.ResponseWriter, err error) {
	if errors.Is(err, entry.ErrEntryNotFound) {
		writeNotFound(w, "entry not found")
		return
	}
	s.logger.Error("entry operation failed", "error", err)
	writeInternalError(w, "entry operation failed")
}
