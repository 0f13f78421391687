package rules

import (
	"errors"
	"testing"
)

func TestChoiceConstants(t *testing.T) {
	tests := []struct {
		choice   Choice
		expected string
	}{
		{Rock, "rock"},
		{Paper, "paper"},
		{Scissors, "scissors"},
	}

	for _, test := range tests {
		if string(test.choice) != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, string(test.choice))
		}
	}

	if LeaveCommand != "done" {
		t.Errorf("Expected leave command 'done', got %q", LeaveCommand)
	}
}

func TestParseChoice(t *testing.T) {
	for _, c := range Choices {
		got, err := ParseChoice(string(c))
		if err != nil {
			t.Errorf("ParseChoice(%q) returned error: %v", c, err)
		}
		if got != c {
			t.Errorf("ParseChoice(%q) = %q", c, got)
		}
	}

	invalid := []string{"", "banana", "Rock", "PAPER", " scissors", "done", "create"}
	for _, token := range invalid {
		_, err := ParseChoice(token)
		if !errors.Is(err, ErrInvalidChoice) {
			t.Errorf("ParseChoice(%q): expected ErrInvalidChoice, got %v", token, err)
		}
	}
}

func TestDecide_AllCombinations(t *testing.T) {
	tests := []struct {
		one, two Choice
		expected Outcome
		text     string
	}{
		{Rock, Rock, Draw, "Draw"},
		{Paper, Paper, Draw, "Draw"},
		{Scissors, Scissors, Draw, "Draw"},

		{Rock, Scissors, SlotOneWins, "Player 1 wins!"},
		{Scissors, Paper, SlotOneWins, "Player 1 wins!"},
		{Paper, Rock, SlotOneWins, "Player 1 wins!"},

		{Scissors, Rock, SlotTwoWins, "Player 2 wins!"},
		{Paper, Scissors, SlotTwoWins, "Player 2 wins!"},
		{Rock, Paper, SlotTwoWins, "Player 2 wins!"},
	}

	if len(tests) != len(Choices)*len(Choices) {
		t.Fatalf("table covers %d pairings, want %d", len(tests), len(Choices)*len(Choices))
	}

	for _, test := range tests {
		t.Run(string(test.one)+"_vs_"+string(test.two), func(t *testing.T) {
			got, err := Decide(test.one, test.two)
			if err != nil {
				t.Fatalf("Decide returned error: %v", err)
			}
			if got != test.expected {
				t.Errorf("Expected outcome %v, got %v", test.expected, got)
			}
			if got.String() != test.text {
				t.Errorf("Expected text %q, got %q", test.text, got.String())
			}
		})
	}
}

func TestDecide_Symmetry(t *testing.T) {
	for _, a := range Choices {
		for _, b := range Choices {
			ab, _ := Decide(a, b)
			ba, _ := Decide(b, a)
			switch ab {
			case Draw:
				if ba != Draw {
					t.Errorf("%s/%s is a draw but %s/%s is %v", a, b, b, a, ba)
				}
			case SlotOneWins:
				if ba != SlotTwoWins {
					t.Errorf("%s beats %s but mirrored outcome is %v", a, b, ba)
				}
			case SlotTwoWins:
				if ba != SlotOneWins {
					t.Errorf("%s beats %s but mirrored outcome is %v", b, a, ba)
				}
			}
		}
	}
}

func TestDecide_InvalidChoice(t *testing.T) {
	if _, err := Decide(Rock, Choice("lizard")); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("Expected ErrInvalidChoice, got %v", err)
	}
	if _, err := Decide("", Paper); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("Expected ErrInvalidChoice, got %v", err)
	}
}

func TestOutcomeWinner(t *testing.T) {
	if Draw.Winner() != 0 {
		t.Errorf("Draw winner should be 0, got %d", Draw.Winner())
	}
	if SlotOneWins.Winner() != 1 {
		t.Errorf("SlotOneWins winner should be 1, got %d", SlotOneWins.Winner())
	}
	if SlotTwoWins.Winner() != 2 {
		t.Errorf("SlotTwoWins winner should be 2, got %d", SlotTwoWins.Winner())
	}
}

func TestChoiceValid(t *testing.T) {
	if !Rock.Valid() || !Paper.Valid() || !Scissors.Valid() {
		t.Error("Expected all three choices to be valid")
	}
	if Choice("spock").Valid() {
		t.Error("Expected 'spock' to be invalid")
	}
}
