package service

import (
	"context"
	"errors"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

// Intents accepted as a participant's first message.
const (
	IntentCreate = "create"
	IntentJoin   = "join"
)

// Rejection notices sent before a participant's handle is closed.
const (
	NoticeUnknownIntent = "Unknown command. Send create or join."
	NoticeNoLobby       = "No lobby available. Try create."
	NoticeLobbyFull     = "Lobby is full."
	NoticeUnavailable   = "Server is shutting down."
)

var (
	ErrUnknownIntent    = errors.New("unknown intent")
	ErrNoLobbyAvailable = errors.New("no lobby available")
)

// LobbyService defines all lobby-related operations
type LobbyService interface {
	// Matchmaking
	Onboard(ctx context.Context, p lobby.Participant) error

	// Inspection
	ListLobbies(ctx context.Context) ([]*LobbyInfo, error)
	GetLobby(ctx context.Context, id uint64) (*LobbyInfo, error)
	Stats(ctx context.Context) (*ServerStats, error)
	Rules(ctx context.Context) (*RulesInfo, error)

	// Lifecycle
	Shutdown(ctx context.Context) error
}
