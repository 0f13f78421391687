// Package lobby provides the two-player lobbies and the registry that tracks them.
//
// The lobby package implements:
//   - The Participant contract transports satisfy for one remote player
//   - Lobby, the per-game state machine with one reader goroutine per slot
//   - Registry, the process-wide table of live lobbies
//   - Lobby events for observers such as spectator feeds
//
// Core Types:
//
// Registry allocates lobbies with monotonically increasing ids, hands out the
// first joinable lobby in creation order, and retires a lobby once its last
// participant is gone. Lobby owns at most two participants, each pinned to
// slot 1 or slot 2 for the lobby's lifetime, and the choices for the current
// round.
//
// Concurrency:
//
// Every mutation of a lobby happens inside one short critical section per
// message, guarded by that lobby's mutex. Reader goroutines block only in
// Participant.Receive, never while holding the lock. The registry has its own
// mutex; the lock order is always registry then lobby, and a lobby invokes its
// retire callback only after releasing its lock.
//
// Usage:
//
//	registry := lobby.NewRegistry(lobby.WithLogger(logger))
//
//	l, err := registry.CreateLobby()
//	if err != nil {
//		return err
//	}
//	if _, err := l.AddParticipant(p); err != nil {
//		return err
//	}
//
//	// later, another participant
//	if l, ok := registry.JoinAny(); ok {
//		if _, err := l.AddParticipant(q); err == nil && l.Occupancy() == 2 {
//			l.Start()
//		}
//	}
//
// Lifecycle:
//
// A lobby is Waiting until a second participant joins, then Active. A slot
// vacated by a leave or disconnect is never refilled; the remaining
// participant stays alone until it leaves too, at which point the lobby is
// Closed and removed from the registry.
package lobby
