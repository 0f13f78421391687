// Package api provides the HTTP surface of the lobby server.
//
// The api package implements:
//   - Read-only REST endpoints over live lobbies
//   - Server statistics and game rules
//   - QR codes that point phones at the WebSocket endpoints
//   - Routing for the player and spectator WebSockets
//   - Request logging middleware
//
// Endpoints:
//
// Lobbies:
//   - GET /api/lobbies - List live lobbies (?status=waiting|active, ?joinable=true, ?limit=N)
//   - GET /api/lobbies/{id} - Get one lobby with players, rounds and score
//
// Server:
//   - GET /api - Endpoint index
//   - GET /api/stats - Registry counters and uptime
//   - GET /api/rules - Intents, choices and outcomes
//   - GET /api/qr - PNG QR code of the play URL (?target=watch&lobby=N for spectators)
//   - GET /health - Liveness probe
//
// WebSocket:
//   - /ws/play - Play: first frame is "create" or "join"
//   - /ws/watch?lobby=N - Stream lobby events as JSON
//
// Response Format:
//
// All /api endpoints return JSON. Errors use {"error": "message"} with an
// appropriate status code.
//
// Usage:
//
//	server := api.NewServer(lobbyService, wsHandler, "localhost:8080", log)
//	http.ListenAndServe(":8080", server)
package api
