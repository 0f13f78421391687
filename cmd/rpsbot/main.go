// Command rpsbot plays automated rock/paper/scissors matches against a lobby
// server over its TCP game port. Run two bots, or one bot and a human, to
// exercise the server end to end.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/service"
	"github.com/wricardo/mcp-training/rpslobby/logging"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rpsbot: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "rpsbot",
		Usage: "play automated matches against a lobby server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:3001", Usage: "game server TCP address", Sources: cli.EnvVars("RPS_TCP_ADDR")},
			&cli.StringFlag{Name: "intent", Value: IntentAuto, Usage: "create, join or auto"},
			&cli.StringFlag{Name: "strategy", Value: StrategyRandom, Usage: "random, cycle, counter, rock, paper or scissors"},
			&cli.IntFlag{Name: "rounds", Value: 10, Usage: "rounds to play before leaving"},
			&cli.IntFlag{Name: "bots", Value: 1, Usage: "bots to run concurrently"},
			&cli.DurationFlag{Name: "delay", Usage: "pause before each choice"},
			&cli.DurationFlag{Name: "timeout", Value: 0, Usage: "per-message read timeout (0 waits forever)"},
			&cli.IntFlag{Name: "dial-attempts", Value: 5, Usage: "connection attempts before giving up"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := "info"
	if cmd.Bool("v") {
		level = "debug"
	}
	log, err := logging.New(logging.Options{Level: level, Format: logging.FormatConsole, Development: true, Output: "stderr"})
	if err != nil {
		return err
	}
	defer log.Sync()

	intent := cmd.String("intent")
	switch intent {
	case IntentAuto, service.IntentCreate, service.IntentJoin:
	default:
		return fmt.Errorf("unknown intent %q", intent)
	}

	settings := Settings{
		Addr:         cmd.String("addr"),
		Intent:       intent,
		Rounds:       int(cmd.Int("rounds")),
		Delay:        cmd.Duration("delay"),
		DialAttempts: int(cmd.Int("dial-attempts")),
		Timeout:      cmd.Duration("timeout"),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bots := int(cmd.Int("bots"))
	if bots < 1 {
		bots = 1
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for i := 0; i < bots; i++ {
		strategy, err := NewStrategy(cmd.String("strategy"), rand.New(rand.NewPCG(rand.Uint64(), uint64(i))))
		if err != nil {
			return err
		}
		botLog := log.With(zap.Int("bot", i+1))

		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := NewBot(settings, strategy, botLog).Play(ctx)
			if result != nil {
				botLog.Info("match finished",
					zap.Stringer("result", result),
					zap.Bool("opponent_left", result.OpponentLeft),
					zap.Bool("server_closed", result.ServerClosed))
			}
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("bot %d: %w", i+1, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}
