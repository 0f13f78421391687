package lobby

import "time"

// EventType names a lobby lifecycle event.
type EventType string

const (
	EventPlayerJoined EventType = "player_joined"
	EventStarted      EventType = "lobby_started"
	EventRoundResult  EventType = "round_result"
	EventPlayerLeft   EventType = "player_left"
	EventClosed       EventType = "lobby_closed"
)

// Event is published to the lobby's observer as the lobby changes.
type Event struct {
	LobbyID   uint64       `json:"lobby_id"`
	Type      EventType    `json:"type"`
	Slot      Slot         `json:"slot,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Round     *RoundResult `json:"round,omitempty"`
	Score     Score        `json:"score"`
	Timestamp time.Time    `json:"timestamp"`
}

// Observer receives lobby events. Publish is called while the lobby lock is
// held and must not block.
type Observer interface {
	Publish(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

// Publish calls f(e).
func (f ObserverFunc) Publish(e Event) { f(e) }
