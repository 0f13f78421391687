// Package rules provides the rock/paper/scissors round arbiter.
//
// The rules package implements:
//   - Parsing of the case-sensitive choice tokens (rock, paper, scissors)
//   - The leave command recognised inside a lobby ("done")
//   - The fixed 3x3 outcome table between slot 1 and slot 2
//   - The textual round results broadcast to participants
//
// Usage:
//
//	a, err := rules.ParseChoice("rock")
//	if err != nil {
//		// tell the sender the choice was invalid
//	}
//	b, _ := rules.ParseChoice("scissors")
//
//	outcome, _ := rules.Decide(a, b)
//	fmt.Println(outcome) // Player 1 wins!
//
// The table is exhaustive: every one of the nine combinations is listed
// explicitly, three draws, three wins for slot 1 and three wins for slot 2.
package rules
