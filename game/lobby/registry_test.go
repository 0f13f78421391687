package lobby_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
	"github.com/wricardo/mcp-training/rpslobby/game/lobby/lobbytest"
)

func TestRegistry_CreateLobby(t *testing.T) {
	r := lobby.NewRegistry()

	for want := uint64(1); want <= 3; want++ {
		l, err := r.CreateLobby()
		if err != nil {
			t.Fatalf("CreateLobby failed: %v", err)
		}
		if l.ID() != want {
			t.Errorf("Expected id %d, got %d", want, l.ID())
		}
		if l.Status() != lobby.StatusWaiting {
			t.Errorf("Expected waiting lobby, got %s", l.Status())
		}
	}

	if r.Count() != 3 {
		t.Errorf("Expected 3 lobbies, got %d", r.Count())
	}

	got, err := r.Get(2)
	if err != nil || got.ID() != 2 {
		t.Errorf("Get(2) = %v, %v", got, err)
	}
	if _, err := r.Get(42); !errors.Is(err, lobby.ErrLobbyNotFound) {
		t.Errorf("Expected ErrLobbyNotFound, got %v", err)
	}

	ids := []uint64{}
	for _, l := range r.List() {
		ids = append(ids, l.ID())
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("List should be in creation order, got %v", ids)
	}
}

func TestRegistry_JoinAny(t *testing.T) {
	r := lobby.NewRegistry()

	t.Run("none available", func(t *testing.T) {
		if l, ok := r.JoinAny(); ok || l != nil {
			t.Errorf("Expected no lobby, got %v", l)
		}
	})

	first, _ := r.CreateLobby()
	second, _ := r.CreateLobby()

	t.Run("lobby without its creator is skipped", func(t *testing.T) {
		if l, ok := r.JoinAny(); ok {
			t.Errorf("Expected no lobby before the creator attached, got %d", l.ID())
		}
	})

	first.AddParticipant(lobbytest.New("a"))
	second.AddParticipant(lobbytest.New("b"))

	t.Run("first created wins", func(t *testing.T) {
		l, ok := r.JoinAny()
		if !ok || l.ID() != first.ID() {
			t.Fatalf("Expected lobby %d, got %v", first.ID(), l)
		}
	})

	first.AddParticipant(lobbytest.New("c"))

	t.Run("full lobbies are skipped", func(t *testing.T) {
		l, ok := r.JoinAny()
		if !ok || l.ID() != second.ID() {
			t.Fatalf("Expected lobby %d, got %v", second.ID(), l)
		}
	})

	second.AddParticipant(lobbytest.New("d"))

	t.Run("all full", func(t *testing.T) {
		if _, ok := r.JoinAny(); ok {
			t.Error("Expected no lobby when all are full")
		}
	})

	t.Run("lobby with a vacated slot is skipped", func(t *testing.T) {
		third, _ := r.CreateLobby()
		p := lobbytest.New("e")
		third.AddParticipant(p)
		third.AddParticipant(lobbytest.New("f"))
		third.HandleLeave(lobby.SlotOne, lobby.Voluntary)

		if l, ok := r.JoinAny(); ok {
			t.Errorf("Expected no joinable lobby, got %d", l.ID())
		}
	})
}

func TestRegistry_Retire(t *testing.T) {
	r := lobby.NewRegistry()
	l, _ := r.CreateLobby()
	p := lobbytest.New("a")
	l.AddParticipant(p)

	if r.Retire(l.ID()) {
		t.Fatal("Retire must not remove an occupied lobby")
	}
	if r.Count() != 1 {
		t.Errorf("Expected lobby to remain, got %d", r.Count())
	}

	l.HandleLeave(lobby.SlotOne, lobby.Voluntary)

	if r.Count() != 0 {
		t.Errorf("Lobby should be retired when the last participant leaves, got %d", r.Count())
	}
	if _, err := r.Get(l.ID()); !errors.Is(err, lobby.ErrLobbyNotFound) {
		t.Errorf("Retired lobby still reachable: %v", err)
	}
	if r.Retire(l.ID()) {
		t.Error("Retiring twice should report false")
	}

	next, _ := r.CreateLobby()
	if next.ID() == l.ID() {
		t.Errorf("Lobby id %d was reused", l.ID())
	}

	if s := r.Stats(); s.Retired != 1 || s.Created != 2 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

func TestRegistry_RetireEmptyLobbyClosesIt(t *testing.T) {
	r := lobby.NewRegistry()
	l, _ := r.CreateLobby()

	if !r.Retire(l.ID()) {
		t.Fatal("Expected empty lobby to be retired")
	}
	if l.Status() != lobby.StatusClosed {
		t.Errorf("Retired lobby should be closed, got %s", l.Status())
	}
	if _, err := l.AddParticipant(lobbytest.New("late")); !errors.Is(err, lobby.ErrLobbyFull) {
		t.Errorf("Retired lobby accepted a participant: %v", err)
	}
}

func TestRegistry_LastDisconnectRetiresOnce(t *testing.T) {
	r := lobby.NewRegistry()
	l, _ := r.CreateLobby()
	a := lobbytest.New("a")
	b := lobbytest.New("b")
	l.AddParticipant(a)
	l.AddParticipant(b)
	l.Start()

	a.Deliver("done")
	if !b.WaitFor("Player 1 left the lobby.", 1, waitTimeout) {
		t.Fatalf("Player 2 was not notified: %v", b.Messages())
	}
	if r.Count() != 1 {
		t.Fatalf("Lobby with one participant must stay registered, got %d", r.Count())
	}

	b.Disconnect()
	waitUntil(t, "lobby retired", func() bool { return r.Count() == 0 })
	r.Wait()

	l.HandleLeave(lobby.SlotTwo, lobby.Disconnected)
	if s := r.Stats(); s.Retired != 1 {
		t.Errorf("Expected exactly one retirement, got %d", s.Retired)
	}
}

func TestRegistry_WaitingCreatorDisconnectRetires(t *testing.T) {
	r := lobby.NewRegistry()
	l, _ := r.CreateLobby()
	a := lobbytest.New("a")
	l.AddParticipant(a)

	a.Disconnect()
	waitUntil(t, "lobby retired", func() bool { return r.Count() == 0 })
	r.Wait()

	if _, ok := r.JoinAny(); ok {
		t.Error("JoinAny returned a lobby whose creator is gone")
	}
	if s := r.Stats(); s.Retired != 1 {
		t.Errorf("Expected one retirement, got %d", s.Retired)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := lobby.NewRegistry()

	active, _ := r.CreateLobby()
	a := lobbytest.New("a")
	b := lobbytest.New("b")
	active.AddParticipant(a)
	active.AddParticipant(b)
	active.Start()

	waiting, _ := r.CreateLobby()
	c := lobbytest.New("c")
	waiting.AddParticipant(c)

	if err := r.CloseAll(); err != nil {
		t.Fatalf("CloseAll returned error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Reader goroutines did not exit")
	}

	for _, p := range []*lobbytest.Participant{a, b, c} {
		if !p.Closed() {
			t.Errorf("Participant %s not closed", p.ID())
		}
		if p.Count(lobby.NoticeShutdown) != 1 {
			t.Errorf("Participant %s should get one shutdown notice, got %v", p.ID(), p.Messages())
		}
	}

	if r.Count() != 0 {
		t.Errorf("Expected all lobbies retired, got %d", r.Count())
	}
	if _, err := r.CreateLobby(); !errors.Is(err, lobby.ErrRegistryClosed) {
		t.Errorf("Expected ErrRegistryClosed, got %v", err)
	}
	if _, ok := r.JoinAny(); ok {
		t.Error("JoinAny should find nothing after CloseAll")
	}
	if !r.Stats().ShuttingDown {
		t.Error("Stats should report shutdown")
	}
}

func TestRegistry_ConcurrentMatchmaking(t *testing.T) {
	r := lobby.NewRegistry()
	const players = 100

	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := lobbytest.New("p")
			if i%2 == 0 {
				l, err := r.CreateLobby()
				if err != nil {
					t.Errorf("CreateLobby: %v", err)
					return
				}
				l.AddParticipant(p)
				return
			}
			if l, ok := r.JoinAny(); ok {
				l.AddParticipant(p)
			}
		}(i)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, l := range r.List() {
		if seen[l.ID()] {
			t.Errorf("Duplicate lobby id %d", l.ID())
		}
		seen[l.ID()] = true
		if n := l.Occupancy(); n > lobby.MaxParticipants {
			t.Errorf("Lobby %d has %d participants", l.ID(), n)
		}
		if l.Occupancy() == lobby.MaxParticipants && l.Status() != lobby.StatusActive {
			t.Errorf("Full lobby %d should be active, got %s", l.ID(), l.Status())
		}
	}
	if r.Count() != players/2 {
		t.Errorf("Expected %d lobbies, got %d", players/2, r.Count())
	}
}

func TestRegistry_CountsRounds(t *testing.T) {
	var mu sync.Mutex
	forwarded := 0
	r := lobby.NewRegistry(lobby.WithObserver(lobby.ObserverFunc(func(e lobby.Event) {
		mu.Lock()
		forwarded++
		mu.Unlock()
	})))

	l, _ := r.CreateLobby()
	l.AddParticipant(lobbytest.New("a"))
	l.AddParticipant(lobbytest.New("b"))

	for i := 0; i < 3; i++ {
		l.ProcessMessage(lobby.SlotOne, "rock")
		l.ProcessMessage(lobby.SlotTwo, "paper")
	}

	s := r.Stats()
	if s.RoundsPlayed != 3 {
		t.Errorf("Expected 3 rounds, got %d", s.RoundsPlayed)
	}
	if s.Active != 1 || s.Participants != 2 {
		t.Errorf("Unexpected census: %+v", s)
	}

	mu.Lock()
	defer mu.Unlock()
	if forwarded != 5 {
		t.Errorf("Expected 5 events forwarded (2 joins, 3 rounds), got %d", forwarded)
	}
}
