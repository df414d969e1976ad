package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Policies    []string       `json:"policies"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "cpusim API",
		Version:     "v1",
		Description: "Single-CPU scheduling simulator with multilevel feedback and shortest-job-first policies",
		Policies:    []string{"non-aggressive", "aggressive", "sjf"},
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET", "POST"}, "Run a simulation synchronously, or list stored runs (?limit, ?offset, ?policy)"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run with per-process statistics"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
