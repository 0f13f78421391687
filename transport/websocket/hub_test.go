package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.lobbies == nil {
		t.Error("Hub lobbies map is nil")
	}
	if hub.broadcast == nil {
		t.Error("Hub broadcast channel is nil")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub register channels are nil")
	}
}

func TestHubRegisterWatcher(t *testing.T) {
	hub := NewHub(nil)
	w := &Watcher{hub: hub, lobbyID: 3, send: make(chan []byte, 256)}

	hub.registerWatcher(w)
	if !hub.lobbies[3][w] {
		t.Fatal("Watcher was not registered")
	}

	hub.unregisterWatcher(w)
	if _, exists := hub.lobbies[3]; exists {
		t.Error("Lobby entry should be removed after last watcher unregistered")
	}
	if _, ok := <-w.send; ok {
		t.Error("Send channel should be closed on unregister")
	}

	// Unregistering twice must not close the channel again.
	hub.unregisterWatcher(w)
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub(nil)
	one := &Watcher{hub: hub, lobbyID: 1, send: make(chan []byte, 256)}
	two := &Watcher{hub: hub, lobbyID: 2, send: make(chan []byte, 256)}
	all := &Watcher{hub: hub, lobbyID: AllLobbies, send: make(chan []byte, 256)}
	hub.registerWatcher(one)
	hub.registerWatcher(two)
	hub.registerWatcher(all)

	hub.broadcastEvent(lobby.Event{
		LobbyID: 1,
		Type:    lobby.EventRoundResult,
		Round:   &lobby.RoundResult{Number: 1, SlotOne: "rock", SlotTwo: "scissors", Winner: 1, Result: "Player 1 wins!"},
		Score:   lobby.Score{SlotOne: 1},
	})

	for _, w := range []*Watcher{one, all} {
		select {
		case data := <-w.send:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("Failed to unmarshal message: %v", err)
			}
			if msg.LobbyID != 1 || msg.Event != lobby.EventRoundResult {
				t.Errorf("Unexpected message: %+v", msg)
			}
			if msg.Data.Round == nil || msg.Data.Round.Result != "Player 1 wins!" {
				t.Errorf("Round not transmitted: %+v", msg.Data)
			}
			if msg.Data.Score.SlotOne != 1 {
				t.Errorf("Score not transmitted: %+v", msg.Data.Score)
			}
		default:
			t.Errorf("Watcher of lobby %d got nothing", w.lobbyID)
		}
	}

	select {
	case <-two.send:
		t.Error("Watcher of another lobby should not receive the event")
	default:
	}
}

func TestHubDropsSlowWatcher(t *testing.T) {
	hub := NewHub(nil)
	slow := &Watcher{hub: hub, lobbyID: 1, send: make(chan []byte)}
	hub.registerWatcher(slow)

	hub.broadcastEvent(lobby.Event{LobbyID: 1, Type: lobby.EventStarted})

	if _, exists := hub.lobbies[1]; exists {
		t.Error("Slow watcher should have been unregistered")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBuffer+10; i++ {
			hub.Publish(lobby.Event{LobbyID: 1, Type: lobby.EventPlayerJoined})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
	if hub.Dropped() != 10 {
		t.Errorf("Expected 10 dropped events, got %d", hub.Dropped())
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub(nil)
	w := &Watcher{hub: hub, lobbyID: 1, send: make(chan []byte, 1)}

	finished := make(chan struct{})
	go func() {
		hub.Run()
		close(finished)
	}()
	hub.register <- w

	hub.Stop()
	hub.Stop()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, ok := <-w.send; ok {
		t.Error("Watcher channel should be closed on stop")
	}

	// Publishing after stop is a no-op.
	hub.Publish(lobby.Event{LobbyID: 1})
}

func TestWebSocketWatch(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 9)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	// Registration happens on the hub goroutine; publish until it lands.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make(chan Message, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if json.Unmarshal(data, &msg) == nil {
			got <- msg
		}
	}()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case msg := <-got:
			if msg.LobbyID != 9 || msg.Event != lobby.EventClosed {
				t.Errorf("Unexpected message: %+v", msg)
			}
			return
		case <-tick.C:
			hub.Publish(lobby.Event{LobbyID: 9, Type: lobby.EventClosed})
		case <-deadline:
			t.Fatal("No event received")
		}
	}
}
