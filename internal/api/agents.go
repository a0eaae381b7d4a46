package api

import (
	"log/slog"
	"net/http"
)

// agentInfo is the JSON representation of a registered agent.
type agentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Model       string `json:"model"`
}

// agentsHandler exposes the runtime's agent registry.
type agentsHandler struct {
	agents []ChatAgent
	logger *slog.Logger
}

// list handles GET /api/v1/agents.
func (h *agentsHandler) list(w http.ResponseWriter, _ *http.Request) {
	infos := make([]agentInfo, 0, len(h.agents))
	for _, a := range h.agents {
		infos = append(infos, agentInfo{
			ID:          a.ID(),
			Name:        a.Name(),
			Description: a.Description(),
			Model:       a.ModelName(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"agents": infos}, h.logger)
}
