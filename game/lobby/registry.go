package lobby

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry is the process-wide table of live lobbies.
type Registry struct {
	opts options
	log  *zap.Logger

	mu      sync.Mutex
	lobbies map[uint64]*Lobby
	order   []uint64
	nextID  uint64
	closed  bool
	created uint64
	retired uint64

	rounds atomic.Uint64
	tasks  sync.WaitGroup
}

// Stats summarises the registry.
type Stats struct {
	Lobbies      int    `json:"lobbies"`
	Waiting      int    `json:"waiting"`
	Active       int    `json:"active"`
	Participants int    `json:"participants"`
	Created      uint64 `json:"created"`
	Retired      uint64 `json:"retired"`
	RoundsPlayed uint64 `json:"rounds_played"`
	ShuttingDown bool   `json:"shutting_down"`
}

// NewRegistry creates an empty registry. Options are applied to every lobby
// the registry creates, except WithOnEmpty which the registry reserves.
func NewRegistry(opts ...Option) *Registry {
	o := buildOptions(opts)
	return &Registry{
		opts:    o,
		log:     o.log,
		lobbies: make(map[uint64]*Lobby),
	}
}

// CreateLobby allocates a lobby with a fresh id and inserts it.
func (r *Registry) CreateLobby() (*Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	r.nextID++
	id := r.nextID
	l := New(id,
		WithLogger(r.opts.log),
		WithObserver(r),
		WithOnEmpty(r.lobbyEmptied),
		withTasks(&r.tasks),
	)

	r.lobbies[id] = l
	r.order = append(r.order, id)
	r.created++

	r.log.Info("lobby created", zap.Uint64("lobby_id", id), zap.Int("live", len(r.lobbies)))
	return l, nil
}

// JoinAny returns the first-created lobby whose creator is attached and
// still waiting for an opponent. Lobbies that are created but not yet
// occupied are skipped. The boolean is false when none is available.
func (r *Registry) JoinAny() (*Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	for _, id := range r.order {
		if l := r.lobbies[id]; l.awaitingOpponent() {
			return l, true
		}
	}
	return nil, false
}

// Retire removes the lobby if it has no participants at the time of the
// call. It reports whether the lobby was removed.
func (r *Registry) Retire(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[id]
	if !ok {
		return false
	}
	if !l.closeIfEmpty() {
		r.log.Debug("retire skipped, lobby occupied", zap.Uint64("lobby_id", id))
		return false
	}

	delete(r.lobbies, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.retired++

	r.log.Info("lobby retired", zap.Uint64("lobby_id", id), zap.Int("live", len(r.lobbies)))
	return true
}

// Get returns the live lobby with the given id.
func (r *Registry) Get(id uint64) (*Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLobbyNotFound, id)
	}
	return l, nil
}

// List returns the live lobbies in creation order.
func (r *Registry) List() []*Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*Lobby, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.lobbies[id])
	}
	return result
}

// Count returns the number of live lobbies.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lobbies)
}

// Stats returns registry counters and a census of live lobbies.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Lobbies:      len(r.lobbies),
		Created:      r.created,
		Retired:      r.retired,
		RoundsPlayed: r.rounds.Load(),
		ShuttingDown: r.closed,
	}
	for _, l := range r.lobbies {
		info := l.Snapshot()
		s.Participants += info.Participants
		switch info.Status {
		case StatusWaiting:
			s.Waiting++
		case StatusActive:
			s.Active++
		}
	}
	return s
}

// CloseAll stops the registry from creating lobbies and closes every live
// lobby, which unblocks their reader goroutines.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	r.closed = true
	lobbies := make([]*Lobby, 0, len(r.order))
	for _, id := range r.order {
		lobbies = append(lobbies, r.lobbies[id])
	}
	r.mu.Unlock()

	r.log.Info("closing all lobbies", zap.Int("count", len(lobbies)))

	var err error
	for _, l := range lobbies {
		err = multierr.Append(err, l.Close())
	}
	return err
}

// Wait blocks until every reader goroutine of every lobby created by the
// registry has exited.
func (r *Registry) Wait() {
	r.tasks.Wait()
}

// Publish counts resolved rounds and forwards events to the configured
// observer. Lobbies call it while holding their own lock, so it must not
// touch the registry mutex.
func (r *Registry) Publish(e Event) {
	if e.Type == EventRoundResult {
		r.rounds.Add(1)
	}
	if r.opts.observer != nil {
		r.opts.observer.Publish(e)
	}
}

func (r *Registry) lobbyEmptied(id uint64) {
	r.Retire(id)
}
