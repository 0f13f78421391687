package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/lobby"
	"github.com/wricardo/mcp-training/rpslobby/game/rules"
	"github.com/wricardo/mcp-training/rpslobby/game/service"
)

// Intents accepted by the bot. IntentAuto joins when a lobby is waiting and
// creates one otherwise.
const IntentAuto = "auto"

var (
	ErrRejected    = errors.New("rejected by server")
	ErrUnexpected  = errors.New("unexpected message")
	ErrServerGone  = errors.New("server closed the connection")
	welcomePattern = regexp.MustCompile(`^Welcome Player (\d)! .*lobby (\d+)`)
	leftPattern    = regexp.MustCompile(`^Player \d (left the lobby|disconnected)\.$`)
)

// Settings control one bot run.
type Settings struct {
	Addr         string
	Intent       string
	Rounds       int
	Delay        time.Duration
	DialAttempts int
	Timeout      time.Duration
}

// Result summarizes a finished match from the bot's point of view.
type Result struct {
	Lobby        uint64
	Slot         int
	Rounds       int
	Wins         int
	Losses       int
	Draws        int
	OpponentLeft bool
	ServerClosed bool
}

func (r Result) String() string {
	return fmt.Sprintf("lobby %d as player %d: %d rounds, %d wins, %d losses, %d draws",
		r.Lobby, r.Slot, r.Rounds, r.Wins, r.Losses, r.Draws)
}

// Bot plays one match.
type Bot struct {
	settings Settings
	strategy Strategy
	log      *zap.Logger
}

// NewBot creates a bot. A nil logger disables logging.
func NewBot(settings Settings, strategy Strategy, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	if settings.DialAttempts <= 0 {
		settings.DialAttempts = 1
	}
	return &Bot{settings: settings, strategy: strategy, log: log}
}

// Play connects, enters a lobby, plays until the round budget is spent or
// the opponent leaves, then sends the leave command.
func (b *Bot) Play(ctx context.Context) (*Result, error) {
	intent := b.settings.Intent
	if intent == IntentAuto {
		intent = service.IntentJoin
	}

	c, result, err := b.enter(ctx, intent)
	if errors.Is(err, ErrRejected) && b.settings.Intent == IntentAuto {
		b.log.Info("no lobby waiting, creating one")
		c, result, err = b.enter(ctx, service.IntentCreate)
	}
	if err != nil {
		return nil, err
	}
	defer c.Close()

	log := b.log.With(zap.Uint64("lobby_id", result.Lobby), zap.Int("slot", result.Slot))
	log.Info("entered lobby")

	if err := b.awaitStart(c, result); err != nil || result.ServerClosed {
		return result, err
	}

	var previous rules.Choice
	for round := 0; round < b.settings.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if b.settings.Delay > 0 {
			time.Sleep(b.settings.Delay)
		}

		choice := b.strategy.Next(round, previous)
		if err := c.Send(string(choice)); err != nil {
			return result, fmt.Errorf("send choice: %w", err)
		}

		outcome, err := b.awaitResult(c, result)
		if err != nil || outcome == "" {
			return result, err
		}
		b.record(result, outcome)
		previous = inferOpponent(choice, outcome, result.Slot)
		log.Debug("round played",
			zap.Int("round", result.Rounds),
			zap.String("choice", string(choice)),
			zap.String("opponent", string(previous)),
			zap.String("outcome", outcome))
	}

	return result, b.leave(c)
}

// enter dials and sends intent, returning the client positioned after the
// welcome line.
func (b *Bot) enter(ctx context.Context, intent string) (*Client, *Result, error) {
	c, err := Dial(ctx, b.settings.Addr, b.settings.DialAttempts, b.settings.Timeout, b.log)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Send(intent); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("send intent: %w", err)
	}

	line, err := c.Next()
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("read welcome: %w", err)
	}

	m := welcomePattern.FindStringSubmatch(line)
	if m == nil {
		c.Close()
		switch line {
		case service.NoticeNoLobby, service.NoticeLobbyFull, service.NoticeUnknownIntent, service.NoticeUnavailable:
			return nil, nil, fmt.Errorf("%w: %s", ErrRejected, line)
		}
		return nil, nil, fmt.Errorf("%w: %q", ErrUnexpected, line)
	}

	slot, _ := strconv.Atoi(m[1])
	id, _ := strconv.ParseUint(m[2], 10, 64)
	return c, &Result{Lobby: id, Slot: slot}, nil
}

// awaitStart reads until both players are present.
func (b *Bot) awaitStart(c *Client, result *Result) error {
	for {
		line, err := c.Next()
		if err != nil {
			return readError(err, result)
		}
		switch {
		case line == lobby.NoticeBothConnected:
			return nil
		case line == lobby.NoticeShutdown:
			result.ServerClosed = true
			return nil
		}
	}
}

// awaitResult reads until the round resolves. It returns an empty outcome
// when the match ended first.
func (b *Bot) awaitResult(c *Client, result *Result) (string, error) {
	for {
		line, err := c.Next()
		if err != nil {
			return "", readError(err, result)
		}
		switch {
		case line == rules.DrawText || line == rules.SlotOneWinsText || line == rules.SlotTwoWinsText:
			return line, nil
		case line == lobby.NoticeOpponentGone || leftPattern.MatchString(line):
			result.OpponentLeft = true
			return "", b.leave(c)
		case line == lobby.NoticeShutdown || line == lobby.NoticeLobbyFailed:
			result.ServerClosed = true
			return "", nil
		case line == lobby.NoticeInvalidChoice:
			return "", fmt.Errorf("%w: %s", ErrUnexpected, line)
		}
	}
}

func (b *Bot) record(result *Result, outcome string) {
	result.Rounds++
	switch {
	case outcome == rules.DrawText:
		result.Draws++
	case strings.HasPrefix(outcome, fmt.Sprintf("Player %d ", result.Slot)):
		result.Wins++
	default:
		result.Losses++
	}
}

// leave sends the leave command and drains until the server closes.
func (b *Bot) leave(c *Client) error {
	if err := c.Send(rules.LeaveCommand); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	for {
		line, err := c.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if line == lobby.NoticeGoodbye {
			return nil
		}
	}
}

func readError(err error, result *Result) error {
	if errors.Is(err, io.EOF) {
		result.ServerClosed = true
		return ErrServerGone
	}
	return err
}
