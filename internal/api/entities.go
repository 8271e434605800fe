package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/integration"
)

// handleListEntities returns all entities, optionally filtered by
// platform (?platform=sensor).
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")

	var entities []entity.Entity
	if platform != "" {
		p := entity.Platform(platform)
		if err := entity.ValidatePlatform(p); err != nil {
			writeBadRequest(w, "unknown platform: "+platform)
			return
		}
		entities = s.entities.ListByPlatform(p)
	} else {
		entities = s.entities.List()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	})
}

// handleGetEntity returns a single entity by id.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, err := s.entities.Get(id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			writeNotFound(w, "entity not found: "+id)
			return
		}
		writeInternalError(w, "entity lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// handleEntityCommand dispatches a command to the entity's runtime,
// e.g. {"action": "set_position", "position": 50}.
func (s *Server) handleEntityCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var command map[string]any
	if err := json.NewDecoder(r.Body).Decode(&command); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(command) == 0 {
		writeBadRequest(w, "command body is empty")
		return
	}

	err := s.manager.HandleCommand(r.Context(), id, command)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case errors.Is(err, entity.ErrNotFound):
		writeNotFound(w, "entity not found: "+id)
	case errors.Is(err, integration.ErrNotLoaded):
		writeConflict(w, "the entity's config entry is not loaded")
	case errors.Is(err, integration.ErrUnknownCommand):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error("entity command failed", "entity_id", id, "error", err)
		writeInternalError(w, "command failed")
	}
}
