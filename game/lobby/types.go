package lobby

import (
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/mcp-training/rpslobby/game/rules"
)

var (
	ErrLobbyFull          = errors.New("lobby is full")
	ErrLobbyNotFound      = errors.New("lobby not found")
	ErrRegistryClosed     = errors.New("registry closed")
	ErrInvariantViolation = errors.New("lobby invariant violated")
)

// MaxParticipants is the number of slots in a lobby.
const MaxParticipants = 2

// Slot is a participant's fixed position within a lobby.
type Slot int

const (
	SlotOne Slot = 1
	SlotTwo Slot = 2
)

func (s Slot) valid() bool { return s == SlotOne || s == SlotTwo }

func (s Slot) index() int { return int(s) - 1 }

func (s Slot) other() Slot {
	if s == SlotOne {
		return SlotTwo
	}
	return SlotOne
}

// Status is the coarse lifecycle state of a lobby.
type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waiting":
		*s = StatusWaiting
	case "active":
		*s = StatusActive
	case "closed":
		*s = StatusClosed
	default:
		return fmt.Errorf("unknown lobby status %q", text)
	}
	return nil
}

// LeaveReason qualifies how a slot was vacated.
type LeaveReason int

const (
	Voluntary LeaveReason = iota
	Disconnected
)

func (r LeaveReason) String() string {
	if r == Voluntary {
		return "left"
	}
	return "disconnected"
}

// Score counts round outcomes in a lobby.
type Score struct {
	SlotOne int `json:"slot_one"`
	SlotTwo int `json:"slot_two"`
	Draws   int `json:"draws"`
}

// RoundResult describes one resolved round.
type RoundResult struct {
	Number  int          `json:"number"`
	SlotOne rules.Choice `json:"slot_one"`
	SlotTwo rules.Choice `json:"slot_two"`
	Winner  int          `json:"winner"`
	Result  string       `json:"result"`
}

// PlayerInfo describes one slot of a lobby.
type PlayerInfo struct {
	Slot     Slot   `json:"slot"`
	ID       string `json:"id,omitempty"`
	Present  bool   `json:"present"`
	Vacated  bool   `json:"vacated"`
	HasMoved bool   `json:"has_moved"`
}

// Info is a point-in-time snapshot of a lobby.
type Info struct {
	ID           uint64       `json:"id"`
	Status       Status       `json:"status"`
	Started      bool         `json:"started"`
	Joinable     bool         `json:"joinable"`
	Participants int          `json:"participants"`
	Players      []PlayerInfo `json:"players"`
	Rounds       int          `json:"rounds"`
	Score        Score        `json:"score"`
	CreatedAt    time.Time    `json:"created_at"`
}
