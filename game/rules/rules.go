package rules

import (
	"errors"
	"fmt"
)

// Choice is a move a participant submits for a round.
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"

	// LeaveCommand asks the server to remove the sender from its lobby.
	LeaveCommand = "done"
)

// ErrInvalidChoice is returned for any token that is not a choice.
var ErrInvalidChoice = errors.New("invalid choice")

// Choices lists the valid choices in protocol order.
var Choices = []Choice{Rock, Paper, Scissors}

// ParseChoice converts a protocol token into a Choice. Tokens are case-sensitive.
func ParseChoice(token string) (Choice, error) {
	switch c := Choice(token); c {
	case Rock, Paper, Scissors:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, token)
	}
}

// Valid reports whether c is one of the three choices.
func (c Choice) Valid() bool {
	switch c {
	case Rock, Paper, Scissors:
		return true
	}
	return false
}

// Outcome is the result of one round from the lobby's point of view.
type Outcome int

const (
	Draw Outcome = iota
	SlotOneWins
	SlotTwoWins
)

// Result texts broadcast to both participants.
const (
	DrawText        = "Draw"
	SlotOneWinsText = "Player 1 wins!"
	SlotTwoWinsText = "Player 2 wins!"
)

func (o Outcome) String() string {
	switch o {
	case Draw:
		return DrawText
	case SlotOneWins:
		return SlotOneWinsText
	case SlotTwoWins:
		return SlotTwoWinsText
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Winner returns the winning slot number, or 0 for a draw.
func (o Outcome) Winner() int {
	switch o {
	case SlotOneWins:
		return 1
	case SlotTwoWins:
		return 2
	}
	return 0
}

type pairing struct {
	one, two Choice
}

// outcomes is indexed by (slot 1 choice, slot 2 choice).
var outcomes = map[pairing]Outcome{
	{Rock, Rock}:         Draw,
	{Paper, Paper}:       Draw,
	{Scissors, Scissors}: Draw,

	{Rock, Scissors}:  SlotOneWins,
	{Scissors, Paper}: SlotOneWins,
	{Paper, Rock}:     SlotOneWins,

	{Scissors, Rock}:  SlotTwoWins,
	{Paper, Scissors}: SlotTwoWins,
	{Rock, Paper}:     SlotTwoWins,
}

// Decide applies the outcome table to slot 1's and slot 2's choices.
func Decide(one, two Choice) (Outcome, error) {
	o, ok := outcomes[pairing{one, two}]
	if !ok {
		return Draw, fmt.Errorf("%w: %q vs %q", ErrInvalidChoice, one, two)
	}
	return o, nil
}
