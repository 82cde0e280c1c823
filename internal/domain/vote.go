package domain

// Vote is one participant's hidden estimate for the current round,
// keyed by participant id so re-submission overwrites.
type Vote struct {
	ParticipantID string `json:"participantId"`
	Value         string `json:"value"`
	SubmittedAt   int64  `json:"submittedAt"` // unix milliseconds
}

// Non-numeric escape values on the voting deck.
const (
	VoteValueUnknown = "?"
	VoteValueBreak   = "☕"
)

// VoteValues is the fixed voting deck: a Fibonacci-ish ordinal scale
// plus the two escape values.
var VoteValues = []string{"0", "1", "2", "3", "5", "8", "13", "21", "34", VoteValueUnknown, VoteValueBreak}

// IsValidVoteValue reports whether v is on the deck
func IsValidVoteValue(v string) bool {
	for _, value := range VoteValues {
		if value == v {
			return true
		}
	}
	return false
}
