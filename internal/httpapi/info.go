package httpapi

import (
	"net/http"
	"time"
)

type rootInfo struct {
	Service    string `json:"service"`
	Version    string `json:"version"`
	ServerTime string `json:"serverTime"`
}

// Root handles GET / — unauthenticated service metadata.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootInfo{
		Service:    "kafka-gateway",
		Version:    "1.0",
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Broker   string `json:"broker"`
}

// Healthcheck handles GET /healthcheck: a synthetic database ping and a
// broker topic-list round-trip, both of which must succeed for 200, per
// spec.md §5.
func (s *Server) Healthcheck(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok", Database: "ok", Broker: "ok"}
	healthy := true

	if err := s.Tenants.Ping(r.Context()); err != nil {
		status.Database = "unavailable"
		healthy = false
	}
	if err := s.Broker.ListTopics(r.Context()); err != nil {
		status.Broker = "unavailable"
		healthy = false
	}

	if !healthy {
		status.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
