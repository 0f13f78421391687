package lobby

import "fmt"

// Notices sent to participants inside a lobby.
const (
	NoticeBothConnected      = "Both players connected. Enter rock, paper, scissors to play or done to exit."
	NoticeWaitingForOpponent = "Waiting for the other player..."
	NoticeAlreadyChose       = "You already chose this round. Waiting for the other player..."
	NoticeInvalidChoice      = "Invalid choice. Enter rock, paper, scissors, or done."
	NoticeOpponentGone       = "Your opponent has left the lobby. Send done to exit."
	NoticeGoodbye            = "Goodbye!"
	NoticeShutdown           = "Server is shutting down."
	NoticeLobbyFailed        = "Lobby closed after an internal error."
)

func welcomeNotice(id uint64, slot Slot) string {
	if slot == SlotOne {
		return fmt.Sprintf("Welcome Player 1! You are in lobby %d. Waiting for another player to join...", id)
	}
	return fmt.Sprintf("Welcome Player %d! You joined lobby %d.", slot, id)
}

func opponentMovedNotice(slot Slot) string {
	return fmt.Sprintf("Player %d has made a choice. Waiting for you...", slot)
}

func leaveNotice(slot Slot, reason LeaveReason) string {
	if reason == Voluntary {
		return fmt.Sprintf("Player %d left the lobby.", slot)
	}
	return fmt.Sprintf("Player %d disconnected.", slot)
}
