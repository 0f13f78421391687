package lobby

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/rules"
)

// Lobby is an isolated two-player game session.
type Lobby struct {
	id        uint64
	createdAt time.Time
	log       *zap.Logger
	observer  Observer
	onEmpty   func(id uint64)
	tasks     *sync.WaitGroup

	mu      sync.Mutex
	slots   [MaxParticipants]Participant
	vacated [MaxParticipants]bool
	choices [MaxParticipants]rules.Choice
	status  Status
	started bool
	retired bool
	rounds  int
	score   Score

	readers sync.WaitGroup
}

// New creates a lobby with the given id. Most callers obtain lobbies from a
// Registry instead.
func New(id uint64, opts ...Option) *Lobby {
	o := buildOptions(opts)
	return &Lobby{
		id:        id,
		createdAt: time.Now(),
		log:       o.log.With(zap.Uint64("lobby_id", id)),
		observer:  o.observer,
		onEmpty:   o.onEmpty,
		tasks:     o.tasks,
		status:    StatusWaiting,
	}
}

// ID returns the lobby id.
func (l *Lobby) ID() uint64 { return l.id }

// CreatedAt returns the creation time.
func (l *Lobby) CreatedAt() time.Time { return l.createdAt }

// Status returns the current lifecycle state.
func (l *Lobby) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Occupancy returns the number of attached participants.
func (l *Lobby) Occupancy() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.occupancyLocked()
}

// Joinable reports whether AddParticipant could currently succeed.
func (l *Lobby) Joinable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joinableLocked()
}

// Started reports whether both participants have been told the match began.
func (l *Lobby) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

// Snapshot returns a copy of the lobby state.
func (l *Lobby) Snapshot() Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	info := Info{
		ID:           l.id,
		Status:       l.status,
		Started:      l.started,
		Joinable:     l.joinableLocked(),
		Participants: l.occupancyLocked(),
		Players:      make([]PlayerInfo, 0, MaxParticipants),
		Rounds:       l.rounds,
		Score:        l.score,
		CreatedAt:    l.createdAt,
	}
	for i, p := range l.slots {
		player := PlayerInfo{
			Slot:     Slot(i + 1),
			Present:  p != nil,
			Vacated:  l.vacated[i],
			HasMoved: l.choices[i] != "",
		}
		if p != nil {
			player.ID = p.ID()
		}
		info.Players = append(info.Players, player)
	}
	return info
}

// AddParticipant attaches p to the first free slot and starts reading from
// it. It returns ErrLobbyFull when both slots are taken, when a slot has ever
// been vacated, or when the lobby is closed. A full lobby never overwrites an occupied slot.
func (l *Lobby) AddParticipant(p Participant) (Slot, error) {
	l.mu.Lock()
	defer l.unlock()

	if !l.joinableLocked() {
		return 0, fmt.Errorf("%w: lobby %d (%s, %d/%d)", ErrLobbyFull, l.id, l.status, l.occupancyLocked(), MaxParticipants)
	}

	for i := range l.slots {
		if l.slots[i] != nil {
			continue
		}
		slot := Slot(i + 1)
		l.slots[i] = p
		if l.occupancyLocked() == MaxParticipants {
			l.status = StatusActive
		}

		l.log.Info("participant joined",
			zap.Int("slot", int(slot)),
			zap.String("participant", p.ID()),
			zap.Stringer("status", l.status))

		l.sendLocked(slot, welcomeNotice(l.id, slot))
		l.publishLocked(Event{Type: EventPlayerJoined, Slot: slot})
		l.spawnReaderLocked(slot, p)
		return slot, nil
	}

	return 0, fmt.Errorf("%w: lobby %d", ErrLobbyFull, l.id)
}

// Start announces the match to both participants. It only acts on an Active
// lobby that has not been started yet; any other call is a no-op.
func (l *Lobby) Start() {
	l.mu.Lock()
	defer l.unlock()

	if l.started || l.status != StatusActive || l.occupancyLocked() != MaxParticipants {
		return
	}
	l.started = true

	l.log.Info("lobby started")
	l.broadcastLocked(NoticeBothConnected)
	l.publishLocked(Event{Type: EventStarted})
}

// Wait blocks until the lobby's reader goroutines have exited.
func (l *Lobby) Wait() {
	l.readers.Wait()
}

// ProcessMessage applies one message received from slot. It is the single
// point through which every reader goroutine mutates the lobby.
func (l *Lobby) ProcessMessage(slot Slot, token string) {
	l.mu.Lock()
	defer l.unlock()

	if !slot.valid() || l.slots[slot.index()] == nil {
		return
	}
	token = strings.TrimSpace(token)

	if token == rules.LeaveCommand {
		l.sendLocked(slot, NoticeGoodbye)
		l.leaveLocked(slot, Voluntary)
		return
	}

	choice, err := rules.ParseChoice(token)
	if err != nil {
		l.log.Debug("invalid choice", zap.Int("slot", int(slot)), zap.String("token", token))
		l.sendLocked(slot, NoticeInvalidChoice)
		return
	}

	if l.vacated[0] || l.vacated[1] {
		l.sendLocked(slot, NoticeOpponentGone)
		return
	}

	idx := slot.index()
	if l.choices[idx] != "" {
		l.sendLocked(slot, NoticeAlreadyChose)
		return
	}
	l.choices[idx] = choice

	other := slot.other()
	otherPresent := l.slots[other.index()] != nil
	otherChose := l.choices[other.index()] != ""

	if otherPresent && otherChose {
		if err := l.resolveLocked(); err != nil {
			l.failLocked(err)
		}
		return
	}

	l.sendLocked(slot, NoticeWaitingForOpponent)
	if otherPresent {
		l.sendLocked(other, opponentMovedNotice(slot))
	}
}

// HandleLeave vacates slot. The remaining participant, if any, is notified
// once; the lobby closes and retires when nobody is left. Calling it for an
// empty slot is a no-op.
func (l *Lobby) HandleLeave(slot Slot, reason LeaveReason) {
	l.mu.Lock()
	defer l.unlock()

	if !slot.valid() {
		return
	}
	l.leaveLocked(slot, reason)
}

// Close notifies every participant that the server is shutting down, closes
// their connections and marks the lobby closed.
func (l *Lobby) Close() error {
	l.mu.Lock()
	defer l.unlock()

	return l.closeLocked(NoticeShutdown)
}

// closeIfEmpty marks an empty lobby closed without firing the retire callback.
// It reports whether the lobby was empty.
func (l *Lobby) closeIfEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.occupancyLocked() != 0 {
		return false
	}
	l.status = StatusClosed
	l.retired = true
	return true
}

// spawnReaderLocked starts the reader for a freshly attached slot. The
// WaitGroups are bumped under the lock so Wait never misses a reader.
func (l *Lobby) spawnReaderLocked(slot Slot, p Participant) {
	l.readers.Add(1)
	if l.tasks != nil {
		l.tasks.Add(1)
	}
	go l.readLoop(slot, p)
}

func (l *Lobby) readLoop(slot Slot, p Participant) {
	defer func() {
		l.readers.Done()
		if l.tasks != nil {
			l.tasks.Done()
		}
	}()

	log := l.log.With(zap.Int("slot", int(slot)), zap.String("participant", p.ID()))
	for {
		msg, err := p.Receive()
		if err != nil {
			log.Debug("receive ended", zap.Error(err))
			l.HandleLeave(slot, Disconnected)
			return
		}

		l.ProcessMessage(slot, msg)

		if !l.holds(slot, p) {
			return
		}
	}
}

func (l *Lobby) holds(slot Slot, p Participant) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slots[slot.index()] == p
}

// unlock releases the lock and fires the retire callback once if the
// critical section closed the lobby.
func (l *Lobby) unlock() {
	fire := l.status == StatusClosed && !l.retired
	if fire {
		l.retired = true
	}
	l.mu.Unlock()

	if fire && l.onEmpty != nil {
		l.onEmpty(l.id)
	}
}

func (l *Lobby) resolveLocked() error {
	one, two := l.choices[0], l.choices[1]
	if one == "" || two == "" || l.slots[0] == nil || l.slots[1] == nil {
		return fmt.Errorf("%w: lobby %d resolving with choices %q and %q", ErrInvariantViolation, l.id, one, two)
	}

	outcome, err := rules.Decide(one, two)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	l.rounds++
	switch outcome {
	case rules.SlotOneWins:
		l.score.SlotOne++
	case rules.SlotTwoWins:
		l.score.SlotTwo++
	default:
		l.score.Draws++
	}
	l.choices = [MaxParticipants]rules.Choice{}

	result := &RoundResult{
		Number:  l.rounds,
		SlotOne: one,
		SlotTwo: two,
		Winner:  outcome.Winner(),
		Result:  outcome.String(),
	}

	l.log.Info("round resolved",
		zap.Int("round", l.rounds),
		zap.String("slot_one", string(one)),
		zap.String("slot_two", string(two)),
		zap.Stringer("outcome", outcome))

	l.broadcastLocked(outcome.String())
	l.publishLocked(Event{Type: EventRoundResult, Round: result})
	return nil
}

func (l *Lobby) leaveLocked(slot Slot, reason LeaveReason) {
	idx := slot.index()
	p := l.slots[idx]
	if p == nil {
		return
	}

	l.slots[idx] = nil
	l.vacated[idx] = true
	l.choices[idx] = ""

	if err := p.Close(); err != nil {
		l.log.Debug("close participant", zap.Int("slot", int(slot)), zap.Error(err))
	}

	l.log.Info("participant left",
		zap.Int("slot", int(slot)),
		zap.String("participant", p.ID()),
		zap.Stringer("reason", reason))

	other := slot.other()
	if l.slots[other.index()] != nil {
		l.sendLocked(other, leaveNotice(slot, reason))
	}
	l.publishLocked(Event{Type: EventPlayerLeft, Slot: slot, Reason: reason.String()})

	if l.occupancyLocked() == 0 {
		l.status = StatusClosed
		l.log.Info("lobby closed", zap.Int("rounds", l.rounds))
		l.publishLocked(Event{Type: EventClosed, Reason: reason.String()})
	}
}

func (l *Lobby) closeLocked(notice string) error {
	if l.status == StatusClosed {
		return nil
	}

	var err error
	for i, p := range l.slots {
		if p == nil {
			continue
		}
		l.sendLocked(Slot(i+1), notice)
		err = multierr.Append(err, p.Close())
		l.slots[i] = nil
		l.vacated[i] = true
	}
	l.choices = [MaxParticipants]rules.Choice{}
	l.status = StatusClosed

	l.log.Info("lobby closed", zap.String("notice", notice), zap.Int("rounds", l.rounds))
	l.publishLocked(Event{Type: EventClosed, Reason: notice})

	if err != nil {
		return fmt.Errorf("close lobby %d: %w", l.id, err)
	}
	return nil
}

func (l *Lobby) failLocked(cause error) {
	l.log.Error("closing lobby", zap.Error(cause))
	if err := l.closeLocked(NoticeLobbyFailed); err != nil {
		l.log.Warn("force close", zap.Error(err))
	}
}

func (l *Lobby) sendLocked(slot Slot, msg string) {
	p := l.slots[slot.index()]
	if p == nil {
		return
	}
	if err := p.Send(msg); err != nil {
		l.log.Debug("send failed",
			zap.Int("slot", int(slot)),
			zap.String("participant", p.ID()),
			zap.Error(err))
	}
}

// broadcastLocked sends msg to every occupied slot. The slot array is the
// only list of recipients.
func (l *Lobby) broadcastLocked(msg string) {
	for i := range l.slots {
		l.sendLocked(Slot(i+1), msg)
	}
}

func (l *Lobby) publishLocked(e Event) {
	if l.observer == nil {
		return
	}
	e.LobbyID = l.id
	e.Score = l.score
	e.Timestamp = time.Now()
	l.observer.Publish(e)
}

func (l *Lobby) occupancyLocked() int {
	n := 0
	for _, p := range l.slots {
		if p != nil {
			n++
		}
	}
	return n
}

// awaitingOpponent reports whether exactly one participant is attached and
// the lobby can still take a second.
func (l *Lobby) awaitingOpponent() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joinableLocked() && l.occupancyLocked() == 1
}

func (l *Lobby) joinableLocked() bool {
	if l.status == StatusClosed || l.vacated[0] || l.vacated[1] {
		return false
	}
	return l.occupancyLocked() < MaxParticipants
}
