package websocket

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

var ErrSendQueueFull = errors.New("send queue full")

// Participant adapts a player's WebSocket connection to lobby.Participant.
// Each text frame carries one protocol token or notice.
type Participant struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	send   chan string
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

func newParticipant(conn *websocket.Conn, opts Options, log *zap.Logger) *Participant {
	id := uuid.NewString()
	p := &Participant{
		id:        id,
		conn:      conn,
		writeWait: opts.WriteTimeout,
		log:       log.With(zap.String("participant", id), zap.String("remote_addr", conn.RemoteAddr().String())),
		send:      make(chan string, opts.SendBuffer),
		done:      make(chan struct{}),
	}

	conn.SetReadLimit(opts.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go p.writePump()
	return p
}

// ID returns the connection's uuid.
func (p *Participant) ID() string { return p.id }

// Receive blocks until the next non-blank text frame.
func (p *Participant) Receive() (string, error) {
	for {
		if p.isClosed() {
			return "", lobby.ErrParticipantClosed
		}

		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if p.isClosed() {
				return "", lobby.ErrParticipantClosed
			}
			return "", fmt.Errorf("read: %w", err)
		}

		if msg := strings.TrimSpace(string(data)); msg != "" {
			return msg, nil
		}
	}
}

// Send queues msg for the writer goroutine. A peer that lets its queue fill
// up is disconnected.
func (p *Participant) Send(msg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return lobby.ErrParticipantClosed
	}
	select {
	case p.send <- msg:
		return nil
	default:
		p.log.Warn("send queue full, dropping connection")
		go p.Close()
		return ErrSendQueueFull
	}
}

// Close stops accepting sends and unblocks Receive. Queued messages are
// written, followed by a close frame.
func (p *Participant) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.send)
		p.mu.Unlock()

		p.conn.UnderlyingConn().SetReadDeadline(time.Now())
	})
	return nil
}

// Done is closed once the writer has finished and the socket is closed.
func (p *Participant) Done() <-chan struct{} { return p.done }

func (p *Participant) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// writePump pumps queued notices to the WebSocket connection
func (p *Participant) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
		close(p.done)
	}()

	failed := false
	fail := func(err error) {
		p.log.Debug("write failed", zap.Error(err))
		failed = true
		p.conn.UnderlyingConn().SetReadDeadline(time.Now())
	}

	for {
		select {
		case msg, ok := <-p.send:
			if !ok {
				if !failed {
					p.conn.SetWriteDeadline(time.Now().Add(p.writeWait))
					p.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}
			if failed {
				continue
			}
			p.conn.SetWriteDeadline(time.Now().Add(p.writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				fail(err)
			}

		case <-ticker.C:
			if failed {
				continue
			}
			p.conn.SetWriteDeadline(time.Now().Add(p.writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail(err)
			}
		}
	}
}
