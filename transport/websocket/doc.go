// Package websocket provides WebSocket transport for the lobby server.
//
// Two kinds of connection are served:
//
//   - Players connect to /ws/play. Each text frame is one message, exactly
//     as a line is over TCP. The connection is wrapped in a Participant and
//     handed to the onboarding service, which matches it into a lobby.
//   - Spectators connect to /ws/watch, optionally with ?lobby=ID. They are
//     registered with the Hub and receive lobby events as JSON. Anything a
//     spectator sends is ignored.
//
// Architecture:
//
// The Hub implements lobby.Observer. The registry publishes events without
// blocking; the Hub's Run loop fans each event out to the watchers of that
// lobby and to the watchers of all lobbies. A slow watcher whose buffer is
// full is disconnected rather than stalling the others.
//
// Each connection, player or spectator, has a dedicated write goroutine that
// owns all writes to the socket and sends periodic pings. Reads happen on the
// goroutine that calls Receive (players) or on readPump (spectators).
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run()
//	registry := lobby.NewRegistry(lobby.WithObserver(hub))
//	handler := websocket.NewHandler(svc, hub, websocket.Options{}, log)
//	router.HandleFunc("/ws/play", handler.ServePlay)
//	router.HandleFunc("/ws/watch", handler.ServeWatch)
package websocket
