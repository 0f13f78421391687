package websocket

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

// Onboarder places a freshly connected participant in a lobby.
type Onboarder interface {
	Onboard(ctx context.Context, p lobby.Participant) error
}

// Options tunes player connections.
type Options struct {
	MaxMessageSize int64
	SendBuffer     int
	WriteTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = maxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = writeWait
	}
	return o
}

// Handler serves the player and spectator endpoints.
type Handler struct {
	onboard Onboarder
	hub     *Hub
	opts    Options
	log     *zap.Logger

	mu      sync.Mutex
	players map[*Participant]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewHandler creates a handler. A nil logger disables logging.
func NewHandler(onboard Onboarder, hub *Hub, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		onboard: onboard,
		hub:     hub,
		opts:    opts.withDefaults(),
		log:     log.Named("websocket"),
		players: make(map[*Participant]struct{}),
	}
}

// ServePlay upgrades the request and runs the lobby protocol over it: the
// first text frame is the intent, then choices until the player leaves.
func (h *Handler) ServePlay(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	p := newParticipant(conn, h.opts, h.log)
	if !h.track(p) {
		p.Send(lobby.NoticeShutdown)
		p.Close()
		return
	}
	defer h.wg.Done()

	p.log.Debug("player connected")
	if err := h.onboard.Onboard(r.Context(), p); err != nil {
		p.log.Debug("onboarding failed", zap.Error(err))
	}
}

// ServeWatch streams lobby events. ?lobby=<id> selects one lobby; without it
// every lobby is watched.
func (h *Handler) ServeWatch(w http.ResponseWriter, r *http.Request) {
	id := AllLobbies
	if raw := r.URL.Query().Get("lobby"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid lobby id %q", raw), http.StatusBadRequest)
			return
		}
		id = v
	}
	h.hub.ServeWS(w, r, id)
}

// track records p until its writer finishes and reserves a slot for the
// onboarding call. It reports false once the handler is shutting down.
func (h *Handler) track(p *Participant) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return false
	}
	h.players[p] = struct{}{}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		<-p.Done()
		h.mu.Lock()
		delete(h.players, p)
		h.mu.Unlock()
	}()
	return true
}

// Count returns the number of open player connections.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.players)
}

// Shutdown notifies and closes every player connection, stops the hub and
// waits for connection goroutines or ctx.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	players := make([]*Participant, 0, len(h.players))
	for p := range h.players {
		players = append(players, p)
	}
	h.mu.Unlock()

	h.log.Info("shutting down", zap.Int("players", len(players)))

	var err error
	for _, p := range players {
		p.Send(lobby.NoticeShutdown)
		err = multierr.Append(err, p.Close())
	}
	h.hub.Stop()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, fmt.Errorf("waiting for players: %w", ctx.Err()))
	}
	return err
}
