package history

import "strings"

// DefaultCapacity is the number of turns a conversation window remembers.
const DefaultCapacity = 5

// Turn is one user message paired with the assistant's reply.
type Turn struct {
	UserInput   string `json:"user_input"`
	BotResponse string `json:"bot_response"`
}

// Window is a fixed-capacity FIFO of turns. The zero value is not usable;
// call NewWindow. A Window is not safe for concurrent use on its own.
type Window struct {
	capacity int
	turns    []Turn
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{capacity: capacity, turns: make([]Turn, 0, capacity)}
}

// Append adds a turn, dropping the oldest ones once capacity is exceeded.
func (w *Window) Append(turn Turn) {
	w.turns = append(w.turns, turn)
	if overflow := len(w.turns) - w.capacity; overflow > 0 {
		w.turns = append(w.turns[:0], w.turns[overflow:]...)
	}
}

func (w *Window) Len() int {
	return len(w.turns)
}

func (w *Window) Capacity() int {
	return w.capacity
}

func (w *Window) Turns() []Turn {
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Render returns the transcript oldest first, one "User:"/"Bot:" pair per turn.
func (w *Window) Render() string {
	lines := make([]string, 0, len(w.turns))
	for _, turn := range w.turns {
		lines = append(lines, "User: "+turn.UserInput+"\nBot: "+turn.BotResponse)
	}
	return strings.Join(lines, "\n")
}
