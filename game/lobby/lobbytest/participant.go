// Package lobbytest provides an in-memory lobby.Participant for tests.
package lobbytest

import (
	"sync"
	"time"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

// Participant is a channel-backed lobby.Participant. Tests push inbound
// messages with Deliver and inspect what the server sent with Messages.
type Participant struct {
	id    string
	inbox chan string
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	sent   []string
	closes int
}

// New returns a participant with the given id.
func New(id string) *Participant {
	return &Participant{
		id:    id,
		inbox: make(chan string, 64),
		done:  make(chan struct{}),
	}
}

// ID implements lobby.Participant.
func (p *Participant) ID() string { return p.id }

// Receive implements lobby.Participant.
func (p *Participant) Receive() (string, error) {
	select {
	case msg := <-p.inbox:
		return msg, nil
	case <-p.done:
		return "", lobby.ErrParticipantClosed
	}
}

// Send implements lobby.Participant.
func (p *Participant) Send(msg string) error {
	select {
	case <-p.done:
		return lobby.ErrParticipantClosed
	default:
	}

	p.mu.Lock()
	p.sent = append(p.sent, msg)
	p.mu.Unlock()
	return nil
}

// Close implements lobby.Participant. It counts calls so tests can check
// that the lobby released the handle.
func (p *Participant) Close() error {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()

	p.once.Do(func() { close(p.done) })
	return nil
}

// Deliver queues a message as if the remote player had sent it.
func (p *Participant) Deliver(msg string) {
	select {
	case p.inbox <- msg:
	case <-p.done:
	}
}

// Disconnect simulates the remote side dropping the connection.
func (p *Participant) Disconnect() {
	p.once.Do(func() { close(p.done) })
}

// Closed reports whether the connection has been closed from either side.
func (p *Participant) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// CloseCalls returns how many times Close was called.
func (p *Participant) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Messages returns a copy of everything sent to the participant.
func (p *Participant) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.sent))
	copy(out, p.sent)
	return out
}

// Count returns how many times msg was sent to the participant.
func (p *Participant) Count(msg string) int {
	n := 0
	for _, m := range p.Messages() {
		if m == msg {
			n++
		}
	}
	return n
}

// Last returns the most recent message, or "" if none.
func (p *Participant) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.sent) == 0 {
		return ""
	}
	return p.sent[len(p.sent)-1]
}

// WaitFor polls until msg has been sent at least n times or the timeout
// expires.
func (p *Participant) WaitFor(msg string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.Count(msg) >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return p.Count(msg) >= n
}
