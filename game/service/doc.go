// Package service is the business layer of the lobby server.
//
// LobbyService owns the lobby Registry for the lifetime of the process and is
// the only value the transports receive. It implements:
//   - Matchmaking: Onboard reads a participant's first message and places it
//     in a lobby ("create" or "join")
//   - Read-only inspection of live lobbies for the REST and MCP surfaces
//   - Server-wide statistics and the game rules
//   - Ordered shutdown of every lobby
//
// Architecture:
//
// The service sits between the transports (TCP, WebSocket, HTTP, MCP) and the
// lobby package. Transports wrap each accepted connection as a
// lobby.Participant and hand it to Onboard on its own goroutine; from then on
// the lobby's reader goroutines own the connection.
//
// Usage:
//
//	registry := lobby.NewRegistry(lobby.WithLogger(log))
//	svc := service.NewLobbyService(registry, log)
//
//	go func() {
//		if err := svc.Onboard(ctx, participant); err != nil {
//			log.Debug("onboarding failed", zap.Error(err))
//		}
//	}()
//
//	// On shutdown
//	err := svc.Shutdown(ctx)
package service
