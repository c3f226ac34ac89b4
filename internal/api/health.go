package api

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Store string `json:"store"`
	Rows  int    `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := healthServices{Store: "present"}
	if _, err := os.Stat(s.storePath); err != nil {
		services.Store = "missing"
	}

	status := "ok"
	dates, err := s.prices.Dates()
	if err != nil {
		fmt.Printf("[API] health: read store: %v\n", err)
		status = "degraded"
		services.Store = "unreadable"
	}
	services.Rows = len(dates)

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}
