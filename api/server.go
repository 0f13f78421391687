package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
	"github.com/wricardo/mcp-training/rpslobby/game/service"
	"github.com/wricardo/mcp-training/rpslobby/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service    service.LobbyService
	ws         *websocket.Handler
	router     *mux.Router
	publicHost string
	log        *zap.Logger
}

// NewServer creates a new API server. publicHost is advertised in QR codes;
// when empty the request's Host is used. ws may be nil to disable the
// WebSocket routes.
func NewServer(lobbyService service.LobbyService, ws *websocket.Handler, publicHost string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		service:    lobbyService,
		ws:         ws,
		router:     mux.NewRouter(),
		publicHost: publicHost,
		log:        log.Named("api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("", s.handleIndex).Methods("GET")

	// Lobbies
	api.HandleFunc("/lobbies", s.handleListLobbies).Methods("GET")
	api.HandleFunc("/lobbies/{id}", s.handleGetLobby).Methods("GET")

	// Server
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/rules", s.handleRules).Methods("GET")
	api.HandleFunc("/qr", s.handleQR).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	if s.ws != nil {
		s.router.HandleFunc("/ws/play", s.ws.ServePlay)
		s.router.HandleFunc("/ws/watch", s.ws.ServeWatch)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// logRequests logs every request except WebSocket upgrades, which are
// logged by the transport.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			return
		}
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)))
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name": "rpslobby",
		"endpoints": []string{
			"GET /api/lobbies",
			"GET /api/lobbies/{id}",
			"GET /api/stats",
			"GET /api/rules",
			"GET /api/qr",
			"GET /health",
			"WS /ws/play",
			"WS /ws/watch?lobby={id}",
		},
	})
}

// Lobby Handlers

func (s *Server) handleListLobbies(w http.ResponseWriter, r *http.Request) {
	lobbies, err := s.service.ListLobbies(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := r.URL.Query()
	statusFilter := query.Get("status")
	joinableOnly := query.Get("joinable") == "true"
	limitStr := query.Get("limit")

	if statusFilter != "" {
		var st lobby.Status
		if err := st.UnmarshalText([]byte(statusFilter)); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	filtered := make([]*service.LobbyInfo, 0, len(lobbies))
	for _, l := range lobbies {
		if statusFilter != "" && l.Status.String() != statusFilter {
			continue
		}
		if joinableOnly && !l.Joinable {
			continue
		}
		filtered = append(filtered, l)
	}

	total := len(filtered)
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(filtered) {
			filtered = filtered[:n]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(filtered),
		"total":   total,
		"lobbies": filtered,
	})
}

func (s *Server) handleGetLobby(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid lobby id %q", vars["id"]))
		return
	}

	info, err := s.service.GetLobby(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, lobby.ErrLobbyNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// Server Handlers

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.Rules(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	var path string
	switch target {
	case "", "play":
		path = "/ws/play"
	case "watch":
		path = "/ws/watch"
		if id := r.URL.Query().Get("lobby"); id != "" {
			if _, err := strconv.ParseUint(id, 10, 64); err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid lobby id %q", id))
				return
			}
			path += "?lobby=" + id
		}
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown target %q", target))
		return
	}

	png, err := qrcode.Encode(s.wsURL(r, path), qrcode.Medium, 256)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QR generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// wsURL builds the public WebSocket URL for path.
func (s *Server) wsURL(r *http.Request, path string) string {
	host := s.publicHost
	if host == "" {
		host = r.Host
	}
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, path)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
