package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/wricardo/mcp-training/rpslobby/game/rules"
)

// Strategy picks the bot's choice for each round. previous is the
// opponent's last choice as inferred from the round result, or empty.
type Strategy interface {
	Next(round int, previous rules.Choice) rules.Choice
}

// Strategy names accepted on the command line.
const (
	StrategyRandom  = "random"
	StrategyCycle   = "cycle"
	StrategyCounter = "counter"
)

// NewStrategy resolves name. A choice name yields a bot that always plays it.
func NewStrategy(name string, rng *rand.Rand) (Strategy, error) {
	switch name {
	case StrategyRandom, "":
		return randomStrategy{rng: rng}, nil
	case StrategyCycle:
		return cycleStrategy{}, nil
	case StrategyCounter:
		return counterStrategy{fallback: randomStrategy{rng: rng}}, nil
	}
	if c, err := rules.ParseChoice(name); err == nil {
		return fixedStrategy{choice: c}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

type randomStrategy struct{ rng *rand.Rand }

func (s randomStrategy) Next(int, rules.Choice) rules.Choice {
	return rules.Choices[s.rng.IntN(len(rules.Choices))]
}

type fixedStrategy struct{ choice rules.Choice }

func (s fixedStrategy) Next(int, rules.Choice) rules.Choice { return s.choice }

// cycleStrategy plays rock, paper, scissors in turn.
type cycleStrategy struct{}

func (cycleStrategy) Next(round int, _ rules.Choice) rules.Choice {
	return rules.Choices[round%len(rules.Choices)]
}

// counterStrategy plays whatever beats the opponent's previous choice.
type counterStrategy struct{ fallback Strategy }

func (s counterStrategy) Next(round int, previous rules.Choice) rules.Choice {
	if !previous.Valid() {
		return s.fallback.Next(round, previous)
	}
	for _, c := range rules.Choices {
		if o, err := rules.Decide(c, previous); err == nil && o == rules.SlotOneWins {
			return c
		}
	}
	return s.fallback.Next(round, previous)
}

// inferOpponent works out the opponent's choice from ours and the outcome
// seen from our slot. It returns empty when the outcome text is unknown.
func inferOpponent(mine rules.Choice, outcome string, slot int) rules.Choice {
	for _, c := range rules.Choices {
		a, b := mine, c
		if slot == 2 {
			a, b = c, mine
		}
		if o, err := rules.Decide(a, b); err == nil && o.String() == outcome {
			return c
		}
	}
	return ""
}
