package service

import (
	"time"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

// LobbyInfo provides information about a live lobby
type LobbyInfo struct {
	lobby.Info
	Age string `json:"age"`
}

// ServerStats contains registry counters and process uptime
type ServerStats struct {
	lobby.Stats
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// RulesInfo describes the protocol a participant follows
type RulesInfo struct {
	Intents      []string          `json:"intents"`
	Choices      []string          `json:"choices"`
	LeaveCommand string            `json:"leave_command"`
	Beats        map[string]string `json:"beats"` // choice -> the choice it defeats
	Results      []string          `json:"results"`
	Players      int               `json:"players"`
}
