package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// ErrGaveUp is returned when every dial attempt failed.
var ErrGaveUp = errors.New("could not connect")

// Client is a line-oriented connection to the game port.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	timeout time.Duration
	log     *zap.Logger
}

// Dial connects to addr, retrying with exponential backoff up to attempts
// times.
func Dial(ctx context.Context, addr string, attempts int, timeout time.Duration, log *zap.Logger) (*Client, error) {
	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	var dialer net.Dialer

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return &Client{
				conn:    conn,
				scanner: bufio.NewScanner(conn),
				timeout: timeout,
				log:     log,
			}, nil
		}
		lastErr = err

		delay := b.Duration()
		log.Debug("dial failed", zap.String("addr", addr), zap.Int("attempt", i+1), zap.Duration("retry_in", delay), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w to %s after %d attempts: %v", ErrGaveUp, addr, attempts, lastErr)
}

// Send writes one message.
func (c *Client) Send(msg string) error {
	c.log.Debug("send", zap.String("msg", msg))
	if c.timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	_, err := io.WriteString(c.conn, msg+"\n")
	return err
}

// Next reads the next non-empty line. It returns io.EOF once the server
// closes the connection.
func (c *Client) Next() (string, error) {
	for {
		if c.timeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.timeout))
		}
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		line := strings.TrimRight(c.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		c.log.Debug("recv", zap.String("msg", line))
		return line, nil
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
