package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
)

var ErrNotListening = errors.New("tcp server is not listening")

// Onboarder places a freshly accepted participant in a lobby.
type Onboarder interface {
	Onboard(ctx context.Context, p lobby.Participant) error
}

// Options tunes every connection the server accepts.
type Options struct {
	MaxMessageSize int
	SendBuffer     int
	WriteTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 512
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Server accepts TCP connections and hands each one to the Onboarder.
type Server struct {
	addr    string
	onboard Onboarder
	opts    Options
	log     *zap.Logger

	listener net.Listener
	closing  atomic.Bool

	mu    sync.Mutex
	conns map[*Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server for addr. A nil logger disables logging.
func NewServer(addr string, onboard Onboarder, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:    addr,
		onboard: onboard,
		opts:    opts.withDefaults(),
		log:     log.Named("tcp"),
		conns:   make(map[*Conn]struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept loop. It returns nil after Shutdown. Transient accept
// errors are retried with exponential backoff.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return ErrNotListening
	}
	s.log.Info("listening", zap.String("addr", s.listener.Addr().String()))

	b := &backoff.Backoff{
		Min:    5 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay := b.Duration()
			s.log.Warn("accept failed, retrying", zap.Error(err), zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		b.Reset()

		c := newConn(nc, s.opts, s.log)
		if !s.track(c) {
			c.Send(lobby.NoticeShutdown)
			c.Close()
			continue
		}

		c.log.Debug("connection accepted")
		go func() {
			defer s.wg.Done()
			if err := s.onboard.Onboard(ctx, c); err != nil {
				c.log.Debug("onboarding failed", zap.Error(err))
			}
		}()
	}
}

// track records c until its writer finishes and reserves a slot for its
// onboarding goroutine. It reports false once the server is shutting down.
func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		<-c.Done()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()
	return true
}

// Count returns the number of open connections.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, tells every open connection the server is going
// away, closes them and waits for their goroutines or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}

	s.log.Info("shutting down", zap.Int("connections", len(conns)))
	for _, c := range conns {
		c.Send(lobby.NoticeShutdown)
		err = multierr.Append(err, c.Close())
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}
	return err
}
