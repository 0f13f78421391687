package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
	"github.com/wricardo/mcp-training/rpslobby/game/rules"
)

// lobbyServiceImpl implements the LobbyService interface
type lobbyServiceImpl struct {
	registry  *lobby.Registry
	log       *zap.Logger
	startedAt time.Time
}

// NewLobbyService creates the service around registry. A nil logger
// disables logging.
func NewLobbyService(registry *lobby.Registry, log *zap.Logger) LobbyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &lobbyServiceImpl{
		registry:  registry,
		log:       log.Named("matchmaker"),
		startedAt: time.Now(),
	}
}

// Onboard reads exactly one intent from p and places it in a lobby. On any
// failure the participant is told why, its handle is closed and the error is
// returned. On success the lobby owns p.
func (s *lobbyServiceImpl) Onboard(ctx context.Context, p lobby.Participant) error {
	log := s.log.With(zap.String("participant", p.ID()))

	msg, err := p.Receive()
	if err != nil {
		s.closeHandle(log, p)
		return fmt.Errorf("read intent: %w", err)
	}
	if err := ctx.Err(); err != nil {
		s.closeHandle(log, p)
		return err
	}

	intent := strings.TrimSpace(msg)
	var (
		l       *lobby.Lobby
		created bool
	)

	switch intent {
	case IntentCreate:
		l, err = s.registry.CreateLobby()
		if err != nil {
			s.reject(log, p, NoticeUnavailable)
			return fmt.Errorf("create lobby: %w", err)
		}
		created = true

	case IntentJoin:
		var ok bool
		l, ok = s.registry.JoinAny()
		if !ok {
			s.reject(log, p, NoticeNoLobby)
			return ErrNoLobbyAvailable
		}

	default:
		s.reject(log, p, NoticeUnknownIntent)
		return fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}

	slot, err := l.AddParticipant(p)
	if err != nil {
		if created {
			s.registry.Retire(l.ID())
		}
		s.reject(log, p, NoticeLobbyFull)
		return fmt.Errorf("join lobby %d: %w", l.ID(), err)
	}

	log.Info("participant placed",
		zap.String("intent", intent),
		zap.Uint64("lobby_id", l.ID()),
		zap.Int("slot", int(slot)))

	if l.Occupancy() == lobby.MaxParticipants {
		l.Start()
	}
	return nil
}

// ListLobbies returns all live lobbies in creation order
func (s *lobbyServiceImpl) ListLobbies(ctx context.Context) ([]*LobbyInfo, error) {
	lobbies := s.registry.List()
	result := make([]*LobbyInfo, 0, len(lobbies))
	for _, l := range lobbies {
		result = append(result, newLobbyInfo(l.Snapshot()))
	}
	return result, nil
}

// GetLobby retrieves a single lobby
func (s *lobbyServiceImpl) GetLobby(ctx context.Context, id uint64) (*LobbyInfo, error) {
	l, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return newLobbyInfo(l.Snapshot()), nil
}

// Stats returns registry counters
func (s *lobbyServiceImpl) Stats(ctx context.Context) (*ServerStats, error) {
	return &ServerStats{
		Stats:     s.registry.Stats(),
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	}, nil
}

// Rules describes intents, choices and outcomes
func (s *lobbyServiceImpl) Rules(ctx context.Context) (*RulesInfo, error) {
	info := &RulesInfo{
		Intents:      []string{IntentCreate, IntentJoin},
		LeaveCommand: rules.LeaveCommand,
		Beats:        make(map[string]string, len(rules.Choices)),
		Results:      []string{rules.Draw.String(), rules.SlotOneWins.String(), rules.SlotTwoWins.String()},
		Players:      lobby.MaxParticipants,
	}
	for _, c := range rules.Choices {
		info.Choices = append(info.Choices, string(c))
		for _, other := range rules.Choices {
			if outcome, err := rules.Decide(c, other); err == nil && outcome == rules.SlotOneWins {
				info.Beats[string(c)] = string(other)
			}
		}
	}
	return info, nil
}

// Shutdown closes every lobby, which unblocks their reader goroutines, and
// waits for the readers to exit or ctx to expire.
func (s *lobbyServiceImpl) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down lobbies", zap.Int("live", s.registry.Count()))
	err := s.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.registry.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, fmt.Errorf("waiting for lobby readers: %w", ctx.Err()))
	}
	return err
}

func (s *lobbyServiceImpl) reject(log *zap.Logger, p lobby.Participant, notice string) {
	if err := p.Send(notice); err != nil {
		log.Debug("send rejection", zap.Error(err))
	}
	log.Info("participant rejected", zap.String("notice", notice))
	s.closeHandle(log, p)
}

func (s *lobbyServiceImpl) closeHandle(log *zap.Logger, p lobby.Participant) {
	if err := p.Close(); err != nil {
		log.Debug("close participant", zap.Error(err))
	}
}

func newLobbyInfo(info lobby.Info) *LobbyInfo {
	return &LobbyInfo{
		Info: info,
		Age:  time.Since(info.CreatedAt).Round(time.Second).String(),
	}
}
