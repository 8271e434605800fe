package api

import "net/http"

// integrationResponse describes one registered integration.
type integrationResponse struct {
	Domain  string `json:"domain"`
	Entries int    `json:"entries"`
}

// handleListIntegrations lists the built-in integrations and how many
// config entries each has.
func (s *Server) handleListIntegrations(w http.ResponseWriter, _ *http.Request) {
	domains := s.integrations.Domains()
	out := make([]integrationResponse, 0, len(domains))
	for _, d := range domains {
		out = append(out, integrationResponse{
			Domain:  d,
			Entries: len(s.entries.ListByDomain(d)),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"integrations": out,
	})
}
