package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/flow"
)

// flowResponse pairs a flow step result with the flow's id so the
// client can submit the next step.
type flowResponse struct {
	FlowID string `json:"flow_id,omitempty"`
	flow.Result
	Entry *entryResponse `json:"entry,omitempty"`
}

// handleFlowHandlers lists the domains a config flow can be started for.
func (s *Server) handleFlowHandlers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"handlers": s.flows.Domains(),
	})
}

// handleStartFlow starts a config flow: {"domain": "airtouch"}.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Domain == "" {
		writeBadRequest(w, "domain is required")
		return
	}

	f, result, err := s.flows.Start(r.Context(), req.Domain)
	if err != nil {
		if errors.Is(err, flow.ErrUnknownHandler) {
			writeNotFound(w, "no config flow for domain: "+req.Domain)
			return
		}
		s.logger.Error("starting config flow", "domain", req.Domain, "error", err)
		writeInternalError(w, "starting flow failed")
		return
	}

	resp := flowResponse{Result: result}
	if f != nil {
		resp.FlowID = f.ID
	}
	s.finishFlowResult(w, r, req.Domain, resp)
}

// handleContinueFlow submits input for a flow step: {"input": {...}}.
func (s *Server) handleContinueFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Input map[string]any `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// The flow is removed on a terminal result, so its domain must be
	// read before continuing.
	f, err := s.flows.Get(id)
	if err != nil {
		writeNotFound(w, "flow not found or expired: "+id)
		return
	}

	result, err := s.flows.Continue(r.Context(), id, req.Input)
	if err != nil {
		if errors.Is(err, flow.ErrUnknownFlow) {
			writeNotFound(w, "flow not found or expired: "+id)
			return
		}
		s.logger.Error("continuing config flow", "flow_id", id, "error", err)
		writeInternalError(w, "continuing flow failed")
		return
	}

	resp := flowResponse{Result: result}
	if result.Type == flow.ResultShowForm {
		resp.FlowID = id
	}
	s.finishFlowResult(w, r, f.Domain, resp)
}

// finishFlowResult persists a create_entry result as a config entry
// and writes the response. Duplicate unique ids become an abort, the
// same way a flow itself aborts discovery of a configured device.
func (s *Server) finishFlowResult(w http.ResponseWriter, r *http.Request, domain string, resp flowResponse) {
	if resp.Result.Type != flow.ResultCreateEntry {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	entry, err := s.manager.CreateFromFlow(r.Context(), domain, resp.Result)
	if err != nil {
		if errors.Is(err, configentry.ErrAlreadyConfigured) {
			writeJSON(w, http.StatusOK, flowResponse{Result: flow.Abort("already_configured")})
			return
		}
		s.logger.Error("creating entry from flow", "domain", domain, "error", err)
		writeInternalError(w, "creating entry failed")
		return
	}

	er := s.entryResponse(*entry)
	resp.Entry = &er

	// Credentials collected by the flow stay out of the response.
	resp.Result.Data = nil
	resp.Result.Options = nil

	writeJSON(w, http.StatusCreated, resp)
}
