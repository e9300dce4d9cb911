package api

import (
	"net/http"
	"time"

	"betlive/internal/buildinfo"
)

// DebugInfoHandler echoes build metadata and non-secret configuration.
func (s *Server) DebugInfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"httpAddr":      s.Cfg.HTTPAddr,
			"authMode":      s.Cfg.AuthMode,
			"sweepInterval": s.Cfg.SweepInterval.String(),
			"staleTimeout":  s.Cfg.StaleTimeout.String(),
			"hasRedis":      s.Presence != nil,
		},
	})
}
