package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
	"github.com/wricardo/mcp-training/rpslobby/game/rules"
	"github.com/wricardo/mcp-training/rpslobby/game/service"
	"github.com/wricardo/mcp-training/rpslobby/transport/tcp"
)

type testServer struct {
	addr     string
	registry *lobby.Registry
	service  service.LobbyService
	tcp      *tcp.Server
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	registry := lobby.NewRegistry()
	svc := service.NewLobbyService(registry, nil)
	srv := tcp.NewServer("127.0.0.1:0", svc, tcp.Options{}, nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		svc.Shutdown(shutdownCtx)
		srv.Shutdown(shutdownCtx)
		cancel()
		<-done
	})

	return &testServer{addr: srv.Addr().String(), registry: registry, service: svc, tcp: srv}
}

func (s *testServer) waitForLobbies(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.registry.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d lobbies, have %d", n, s.registry.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func settingsFor(addr, intent string, rounds int) Settings {
	return Settings{
		Addr:         addr,
		Intent:       intent,
		Rounds:       rounds,
		DialAttempts: 3,
		Timeout:      5 * time.Second,
	}
}

type outcome struct {
	result *Result
	err    error
}

func playAsync(bot *Bot) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		r, err := bot.Play(context.Background())
		ch <- outcome{r, err}
	}()
	return ch
}

func TestBot_FullMatch(t *testing.T) {
	s := startServer(t)

	creator := playAsync(NewBot(settingsFor(s.addr, service.IntentCreate, 5), fixedStrategy{rules.Rock}, nil))
	s.waitForLobbies(t, 1)
	joiner := playAsync(NewBot(settingsFor(s.addr, service.IntentJoin, 5), fixedStrategy{rules.Scissors}, nil))

	a, b := <-creator, <-joiner
	if a.err != nil || b.err != nil {
		t.Fatalf("Unexpected errors: creator=%v joiner=%v", a.err, b.err)
	}

	if a.result.Slot != 1 || b.result.Slot != 2 {
		t.Errorf("Expected slots 1 and 2, got %d and %d", a.result.Slot, b.result.Slot)
	}
	if a.result.Lobby != b.result.Lobby {
		t.Errorf("Expected same lobby, got %d and %d", a.result.Lobby, b.result.Lobby)
	}
	if a.result.Wins != 5 || a.result.Rounds != 5 {
		t.Errorf("Expected creator to win 5 of 5, got %s", a.result)
	}
	if b.result.Losses != 5 {
		t.Errorf("Expected joiner to lose 5, got %s", b.result)
	}

	s.waitForLobbies(t, 0)
	if got := s.registry.Stats().RoundsPlayed; got != 5 {
		t.Errorf("Expected 5 rounds played, got %d", got)
	}
}

func TestBot_AutoJoinsWaitingLobby(t *testing.T) {
	s := startServer(t)

	creator := playAsync(NewBot(settingsFor(s.addr, IntentAuto, 3), fixedStrategy{rules.Paper}, nil))
	s.waitForLobbies(t, 1)
	joiner := playAsync(NewBot(settingsFor(s.addr, IntentAuto, 3), fixedStrategy{rules.Paper}, nil))

	a, b := <-creator, <-joiner
	if a.err != nil || b.err != nil {
		t.Fatalf("Unexpected errors: %v %v", a.err, b.err)
	}
	if a.result.Draws != 3 || b.result.Draws != 3 {
		t.Errorf("Expected 3 draws each, got %s / %s", a.result, b.result)
	}
	if got := s.registry.Stats().Created; got != 1 {
		t.Errorf("Expected one lobby created, got %d", got)
	}
}

func TestBot_OpponentLeavesEarly(t *testing.T) {
	s := startServer(t)

	creator := playAsync(NewBot(settingsFor(s.addr, service.IntentCreate, 10), fixedStrategy{rules.Rock}, nil))
	s.waitForLobbies(t, 1)
	joiner := playAsync(NewBot(settingsFor(s.addr, service.IntentJoin, 2), fixedStrategy{rules.Paper}, nil))

	b := <-joiner
	if b.err != nil {
		t.Fatalf("Unexpected joiner error: %v", b.err)
	}
	if b.result.Wins != 2 {
		t.Errorf("Expected joiner to win 2, got %s", b.result)
	}

	a := <-creator
	if a.err != nil {
		t.Fatalf("Unexpected creator error: %v", a.err)
	}
	if !a.result.OpponentLeft {
		t.Error("Expected creator to see the opponent leave")
	}
	if a.result.Rounds != 2 {
		t.Errorf("Expected 2 rounds, got %d", a.result.Rounds)
	}
}

func TestBot_JoinWithoutLobby(t *testing.T) {
	s := startServer(t)

	_, err := NewBot(settingsFor(s.addr, service.IntentJoin, 1), fixedStrategy{rules.Rock}, nil).Play(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected ErrRejected, got %v", err)
	}
}

func TestBot_ServerShutdownWhileWaiting(t *testing.T) {
	s := startServer(t)

	creator := playAsync(NewBot(settingsFor(s.addr, service.IntentCreate, 3), fixedStrategy{rules.Rock}, nil))
	s.waitForLobbies(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.service.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	a := <-creator
	if a.err != nil {
		t.Fatalf("Unexpected error: %v", a.err)
	}
	if !a.result.ServerClosed || a.result.Rounds != 0 {
		t.Errorf("Expected server closed before any round, got %+v", a.result)
	}
}

func TestDial_GivesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), addr, 2, time.Second, zapNop())
	if !errors.Is(err, ErrGaveUp) {
		t.Fatalf("Expected ErrGaveUp, got %v", err)
	}
}
