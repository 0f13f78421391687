package lobby

import "errors"

// ErrParticipantClosed is returned by participants after Close.
var ErrParticipantClosed = errors.New("participant closed")

// Participant is the connection to one remote player.
//
// The lobby calls Send from whichever reader goroutine currently holds the
// lobby lock while another goroutine may be blocked in Receive, so
// implementations must be safe for concurrent use. Send must not block on the
// network: queue the message and return. Close must be idempotent, must
// deliver messages already queued by Send, and must make a pending Receive
// return an error.
type Participant interface {
	// ID identifies the connection in logs.
	ID() string

	// Receive blocks until the next message arrives or the connection closes.
	Receive() (string, error)

	// Send queues a message for delivery.
	Send(msg string) error

	// Close releases the connection.
	Close() error
}
