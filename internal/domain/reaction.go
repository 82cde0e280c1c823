package domain

// EmojiThrow is one ephemeral reaction event from one participant to
// another. Append-only; only the newest window of events is ever read,
// so older entries fall out of view on their own.
type EmojiThrow struct {
	ID        string `json:"id"`
	FromID    string `json:"fromId"`
	ToID      string `json:"toId"`
	Emoji     string `json:"emoji"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}
