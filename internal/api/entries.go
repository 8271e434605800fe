package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth/internal/configentry"
)

// entryResponse is a config entry with its load state, without the
// stored credentials.
type entryResponse struct {
	ID       string                 `json:"id"`
	Domain   string                 `json:"domain"`
	Title    string                 `json:"title"`
	UniqueID string                 `json:"unique_id,omitempty"`
	State    configentry.EntryState `json:"state"`
	Loaded   bool                   `json:"loaded"`
}

func (s *Server) entryResponse(e configentry.ConfigEntry) entryResponse {
	return entryResponse{
		ID:       e.ID,
		Domain:   e.Domain,
		Title:    e.Title,
		UniqueID: e.UniqueID,
		State:    e.State,
		Loaded:   s.manager.IsLoaded(e.ID),
	}
}

// handleListEntries returns all config entries. Entry data is omitted;
// it holds credentials.
func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := s.entries.List()
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.entryResponse(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"count":   len(out),
	})
}

// handleDeleteEntry unloads an entry and removes it together with its
// entities.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.manager.Remove(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
	case errors.Is(err, configentry.ErrNotFound):
		writeNotFound(w, "config entry not found: "+id)
	default:
		s.logger.Error("removing config entry", "entry_id", id, "error", err)
		writeInternalError(w, "removing entry failed")
	}
}

// handleReloadEntry unloads and sets up an entry again.
func (s *Server) handleReloadEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.manager.Reload(r.Context(), id)
	switch {
	case err == nil:
		entry, getErr := s.entries.Get(id)
		if getErr != nil {
			writeInternalError(w, "entry reloaded but lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, s.entryResponse(*entry))
	case errors.Is(err, configentry.ErrNotFound):
		writeNotFound(w, "config entry not found: "+id)
	case errors.Is(err, configentry.ErrNotReady):
		writeConflict(w, "entry is not ready; setup will be retried")
	case errors.Is(err, configentry.ErrAuthFailed):
		writeConflict(w, "entry credentials were rejected; reconfigure it")
	default:
		s.logger.Error("reloading config entry", "entry_id", id, "error", err)
		writeInternalError(w, "reloading entry failed")
	}
}
