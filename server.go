package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/rpslobby/api"
	"github.com/wricardo/mcp-training/rpslobby/game/config"
	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
	"github.com/wricardo/mcp-training/rpslobby/game/service"
	"github.com/wricardo/mcp-training/rpslobby/transport/mcp"
	"github.com/wricardo/mcp-training/rpslobby/transport/tcp"
	"github.com/wricardo/mcp-training/rpslobby/transport/websocket"
)

// serverState is everything one running server owns. It is built once in
// main and handed to the transports.
type serverState struct {
	cfg config.Config
	log *zap.Logger

	hub      *websocket.Hub
	registry *lobby.Registry
	lobbies  service.LobbyService
	tcp      *tcp.Server
	ws       *websocket.Handler
	api      *api.Server
}

// newServerState wires the registry, the lobby service and every transport.
func newServerState(cfg config.Config, log *zap.Logger) *serverState {
	hub := websocket.NewHub(log)
	registry := lobby.NewRegistry(
		lobby.WithLogger(log),
		lobby.WithObserver(hub),
	)
	lobbies := service.NewLobbyService(registry, log)

	ws := websocket.NewHandler(lobbies, hub, websocket.Options{
		MaxMessageSize: int64(cfg.MaxMessageSize),
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout.Std(),
	}, log)

	return &serverState{
		cfg:      cfg,
		log:      log,
		hub:      hub,
		registry: registry,
		lobbies:  lobbies,
		tcp: tcp.NewServer(cfg.TCPAddr, lobbies, tcp.Options{
			MaxMessageSize: cfg.MaxMessageSize,
			SendBuffer:     cfg.SendBuffer,
			WriteTimeout:   cfg.WriteTimeout.Std(),
		}, log),
		ws:  ws,
		api: api.NewServer(lobbies, ws, cfg.PublicHost(), log),
	}
}

// handler combines the REST API, WebSocket routes and the /mcp endpoint.
func (s *serverState) handler(baseURL string) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", s.api)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// run binds both listeners, serves until a signal arrives or a server fails,
// then shuts everything down in order. Only startup failures are returned.
func (s *serverState) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.tcp.Listen(); err != nil {
		return err
	}
	httpListener, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		s.tcp.Shutdown(context.Background())
		return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
	}

	addr := httpListener.Addr().String()
	handler := s.handler("http://" + addr)
	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	tunnelServer := &http.Server{Handler: handler}

	go s.hub.Run()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.tcp.Serve(gctx)
	})

	g.Go(func() error {
		s.log.Info("http server listening",
			zap.String("addr", addr),
			zap.String("rest_api", "http://"+addr+"/api"),
			zap.String("play", "ws://"+s.cfg.PublicHost()+"/ws/play"),
			zap.String("watch", "ws://"+s.cfg.PublicHost()+"/ws/watch?lobby=<id>"),
			zap.String("mcp", "http://"+addr+"/mcp"))
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.cfg.Ngrok.Enabled {
		g.Go(func() error {
			s.serveTunnel(gctx, tunnelServer)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Std())
		defer cancel()
		if err := s.shutdown(shutdownCtx, httpServer, tunnelServer); err != nil {
			s.log.Warn("shutdown incomplete", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	s.log.Info("server stopped", zap.Any("stats", s.registry.Stats()))
	return err
}

// shutdown stops the HTTP servers, closes every lobby, then closes whatever
// connections were never placed in a lobby and waits for their goroutines.
func (s *serverState) shutdown(ctx context.Context, servers ...*http.Server) error {
	var err error
	for _, srv := range servers {
		err = multierr.Append(err, srv.Shutdown(ctx))
	}
	err = multierr.Append(err, s.lobbies.Shutdown(ctx))
	err = multierr.Append(err, s.tcp.Shutdown(ctx))
	err = multierr.Append(err, s.ws.Shutdown(ctx))
	return err
}

// serveTunnel exposes srv through ngrok until ctx is done. Tunnel failures
// are logged and never stop the local servers.
func (s *serverState) serveTunnel(ctx context.Context, srv *http.Server) {
	log := s.log.Named("ngrok")
	if s.cfg.Ngrok.AuthToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if s.cfg.Ngrok.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(s.cfg.Ngrok.Domain))
		log.Info("using custom ngrok domain", zap.String("domain", s.cfg.Ngrok.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(s.cfg.Ngrok.AuthToken))
	if err != nil {
		log.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	url := tun.URL()
	log.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("rest_api", url+"/api"),
		zap.String("qr", url+"/api/qr"),
		zap.String("mcp", url+"/mcp"))

	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("ngrok server error", zap.Error(err))
	}
	log.Info("ngrok tunnel closed")
}

// mcpHandler answers single JSON-RPC messages posted to /mcp.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// serveStdioMCP runs an MCP stdio server. It reuses a running server's API at
// cfg.HTTPAddr when one answers; otherwise it starts an internal HTTP API on
// a random loopback port and targets that.
func serveStdioMCP(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	externalURL := "http://" + cfg.HTTPAddr
	log.Info("checking for external API server", zap.String("url", externalURL))

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api")
	if err == nil {
		resp.Body.Close()
	}

	if err != nil || resp.StatusCode >= 500 {
		log.Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		state := newServerState(cfg, log)
		go state.hub.Run()

		internal := &http.Server{Handler: state.api}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
			defer cancel()
			if err := state.shutdown(shutdownCtx, internal); err != nil {
				log.Warn("internal server shutdown incomplete", zap.Error(err))
			}
		}()
	}

	log.Info("MCP stdio server ready", zap.String("api", baseURL))

	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
