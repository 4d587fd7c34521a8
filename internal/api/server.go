package api

import (
	"encoding/json"
	"net/http"

	"droply/internal/auth"
	"droply/internal/config"
	"droply/internal/database"
	"droply/internal/mediahost"
	"droply/internal/websocket"
)

type Server struct {
	config   *config.Config
	store    *database.PostgresStore
	media    mediahost.Host
	verifier auth.Verifier
	wsHub    *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.PostgresStore, media mediahost.Host, verifier auth.Verifier, wsHub *websocket.Hub) *Server {
	return &Server{
		config:   cfg,
		store:    store,
		media:    media,
		verifier: verifier,
		wsHub:    wsHub,
	}
}

// @Summary      Health check
// @Description  Reports whether the service and its database are reachable.
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {string}  string "Service Unavailable"
// @Router       /health [get]
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.GetPool().Ping(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
