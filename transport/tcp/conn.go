package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

var ErrSendQueueFull = errors.New("send queue full")

// Conn adapts a net.Conn to lobby.Participant.
type Conn struct {
	id      string
	conn    net.Conn
	scanner *bufio.Scanner
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	send   chan string
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(c net.Conn, opts Options, log *zap.Logger) *Conn {
	id := uuid.NewString()
	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, min(64, opts.MaxMessageSize)), opts.MaxMessageSize)

	conn := &Conn{
		id:      id,
		conn:    c,
		scanner: scanner,
		timeout: opts.WriteTimeout,
		log:     log.With(zap.String("participant", id), zap.String("remote_addr", c.RemoteAddr().String())),
		send:    make(chan string, opts.SendBuffer),
		done:    make(chan struct{}),
	}
	go conn.writePump()
	return conn
}

// ID returns the connection's uuid.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Receive blocks until the next non-blank line arrives. It returns
// lobby.ErrParticipantClosed once the connection has been closed locally.
func (c *Conn) Receive() (string, error) {
	for c.scanner.Scan() {
		line := strings.TrimRight(c.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line, nil
	}

	if c.isClosed() {
		return "", lobby.ErrParticipantClosed
	}
	if err := c.scanner.Err(); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return "", fmt.Errorf("read: %w", io.EOF)
}

// Send queues msg for the writer goroutine. A peer that lets its queue fill
// up is disconnected.
func (c *Conn) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return lobby.ErrParticipantClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		c.log.Warn("send queue full, dropping connection")
		go c.Close()
		return ErrSendQueueFull
	}
}

// Close stops accepting sends and unblocks Receive. Queued messages are still
// written before the socket closes. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		err = c.conn.SetReadDeadline(time.Now())
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

// Done is closed once the writer has flushed and the socket is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) writePump() {
	defer func() {
		c.conn.Close()
		close(c.done)
	}()

	failed := false
	for msg := range c.send {
		if failed {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
		if _, err := c.conn.Write([]byte(msg + "\n")); err != nil {
			c.log.Debug("write failed", zap.Error(err))
			failed = true
			// Unblock the reader so the lobby sees a disconnect.
			c.conn.SetReadDeadline(time.Now())
		}
	}
}
