package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"doc-sync/contract"
	"doc-sync/observability"
	"doc-sync/services"
)

// Server upgrades /ws requests and hands each connection to its handler.
type Server struct {
	log        *slog.Logger
	service    services.ISyncService
	verifier   contract.ITokenVerifier
	monitor    *observability.MonitoringManager
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewServer(log *slog.Logger, service services.ISyncService,
	verifier contract.ITokenVerifier, monitor *observability.MonitoringManager,
	bufferSize int) *Server {
	return &Server{
		log:      log,
		service:  service,
		verifier: verifier,
		monitor:  monitor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", s.serveWS)
	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	return router
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Upgrade failed", "error", err)
		return
	}

	handler := newConnHandler(s.log, ws, s.service, s.bufferSize)

	// A bad token does not close the socket: the connection simply stays
	// unauthenticated and every join attempt is rejected.
	if token != "" {
		userID, err := s.verifier.Verify(token)
		if err == nil {
			handler.authenticate(userID)
		} else {
			s.log.Debug("Token rejected", "error", err)
			if s.monitor != nil {
				s.monitor.IncrAuthFailures()
			}
		}
	}

	handler.run(r.Context())
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	response := map[string]string{"status": "ok"}
	if s.monitor != nil {
		stats := s.monitor.GetLatest()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "ok",
			"sessions":     stats.ActiveSessions,
			"participants": stats.ActiveParticipants,
		})
		return
	}
	_ = json.NewEncoder(w).Encode(response)
}

// bearerToken extracts the credential from the Authorization header, falling
// back to the token query parameter for clients that cannot set headers
// during the upgrade.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
