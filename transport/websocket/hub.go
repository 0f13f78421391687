package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Events buffered between lobbies and the hub loop.
	eventBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Players connect from anywhere, including the QR join link.
		return true
	},
}

// AllLobbies subscribes a watcher to every lobby.
const AllLobbies uint64 = 0

// Message is the JSON frame sent to spectators
type Message struct {
	LobbyID uint64          `json:"lobby_id"`
	Event   lobby.EventType `json:"event"`
	Data    lobby.Event     `json:"data"`
}

// Watcher is a spectator connection
type Watcher struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	lobbyID uint64
}

// Hub fans lobby events out to spectators. It implements lobby.Observer.
type Hub struct {
	// Registered watchers by lobby ID
	lobbies map[uint64]map[*Watcher]bool

	// Events published by lobbies
	broadcast chan lobby.Event

	// Register requests from watchers
	register chan *Watcher

	// Unregister requests from watchers
	unregister chan *Watcher

	quit     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
	log      *zap.Logger
}

// NewHub creates a new spectator hub. A nil logger disables logging.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		lobbies:    make(map[uint64]map[*Watcher]bool),
		broadcast:  make(chan lobby.Event, eventBuffer),
		register:   make(chan *Watcher),
		unregister: make(chan *Watcher),
		quit:       make(chan struct{}),
		log:        log.Named("hub"),
	}
}

// Run starts the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case w := <-h.register:
			h.registerWatcher(w)

		case w := <-h.unregister:
			h.unregisterWatcher(w)

		case e := <-h.broadcast:
			h.broadcastEvent(e)

		case <-h.quit:
			for _, watchers := range h.lobbies {
				for w := range watchers {
					h.unregisterWatcher(w)
				}
			}
			return
		}
	}
}

// Stop ends Run and disconnects every watcher.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Publish queues e for spectators. It never blocks: when the queue is full
// the event is dropped.
func (h *Hub) Publish(e lobby.Event) {
	select {
	case h.broadcast <- e:
	case <-h.quit:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the hub was behind.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeWS upgrades the request and streams events for lobbyID, or for every
// lobby when lobbyID is AllLobbies.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, lobbyID uint64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	watcher := &Watcher{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		lobbyID: lobbyID,
	}

	select {
	case h.register <- watcher:
	case <-h.quit:
		conn.Close()
		return
	}

	// Start watcher goroutines
	go watcher.writePump()
	go watcher.readPump()
}

// registerWatcher adds a watcher to a lobby
func (h *Hub) registerWatcher(w *Watcher) {
	if h.lobbies[w.lobbyID] == nil {
		h.lobbies[w.lobbyID] = make(map[*Watcher]bool)
	}
	h.lobbies[w.lobbyID][w] = true

	h.log.Debug("watcher registered",
		zap.Uint64("lobby_id", w.lobbyID),
		zap.Int("watchers", len(h.lobbies[w.lobbyID])))
}

// unregisterWatcher removes a watcher from a lobby
func (h *Hub) unregisterWatcher(w *Watcher) {
	if watchers, ok := h.lobbies[w.lobbyID]; ok {
		if _, ok := watchers[w]; ok {
			delete(watchers, w)
			close(w.send)

			// Clean up empty lobbies
			if len(watchers) == 0 {
				delete(h.lobbies, w.lobbyID)
			}

			h.log.Debug("watcher unregistered",
				zap.Uint64("lobby_id", w.lobbyID),
				zap.Int("watchers", len(watchers)))
		}
	}
}

// broadcastEvent sends an event to the lobby's watchers and to watchers of
// every lobby
func (h *Hub) broadcastEvent(e lobby.Event) {
	data, err := json.Marshal(&Message{LobbyID: e.LobbyID, Event: e.Type, Data: e})
	if err != nil {
		h.log.Warn("failed to marshal event", zap.Error(err))
		return
	}

	targets := []uint64{e.LobbyID}
	if e.LobbyID != AllLobbies {
		targets = append(targets, AllLobbies)
	}
	for _, id := range targets {
		for w := range h.lobbies[id] {
			select {
			case w.send <- data:
			default:
				// Watcher's send channel is full, drop it
				h.unregisterWatcher(w)
			}
		}
	}
}

// readPump discards spectator input and detects disconnects
func (w *Watcher) readPump() {
	defer func() {
		select {
		case w.hub.unregister <- w:
		case <-w.hub.quit:
		}
		w.conn.Close()
	}()

	w.conn.SetReadLimit(maxMessageSize)
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				w.hub.log.Debug("watcher read error", zap.Error(err))
			}
			break
		}
	}
}

// writePump pumps events from the hub to the WebSocket connection
func (w *Watcher) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case message, ok := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				w.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := w.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
