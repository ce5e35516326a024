package httpapi

import (
	"net/http"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
)

type activeStreamsView struct {
	Tenant      string   `json:"tenant"`
	Connections []string `json:"connections"`
}

// AdminActiveStreams handles GET /admin/active-streams, gated by the
// X-Admin-API-Key header (checked in the router's middleware). Returns the
// registry snapshot projected to {tenant, [connection]}, per spec.md §4.10.
func (s *Server) AdminActiveStreams(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Registry.Snapshot()

	out := make([]activeStreamsView, 0, len(snapshot))
	for tenant, descriptors := range snapshot {
		conns := make([]string, 0, len(descriptors))
		for _, d := range descriptors {
			conns = append(conns, d.ConnID)
		}
		out = append(out, activeStreamsView{Tenant: tenant.String(), Connections: conns})
	}
	writeJSON(w, http.StatusOK, out)
}

// AdminAuthMiddleware enforces the shared X-Admin-API-Key secret on admin
// routes.
func (s *Server) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-API-Key") != s.Config.AdminAPIKey || s.Config.AdminAPIKey == "" {
			writeAppErr(w, r, apperr.New(apperr.KindUnauthorized, "invalid admin api key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
