package domain

import (
	"strings"
	"unicode"
)

// Participant is one human actor in a session. Exactly one participant
// carries IsHost, assigned at session creation and never transferred.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Color       string `json:"color"`
	JoinedAt    int64  `json:"joinedAt"` // unix milliseconds
	IsHost      bool   `json:"isHost"`
	IsSpectator bool   `json:"isSpectator,omitempty"`
}

// ParticipantColors is the avatar palette, assigned by join order.
// Colors repeat once a game outgrows the palette.
var ParticipantColors = []string{
	"#ef4444", // red
	"#f59e0b", // amber
	"#10b981", // emerald
	"#3b82f6", // blue
	"#8b5cf6", // violet
	"#ec4899", // pink
	"#14b8a6", // teal
	"#f97316", // orange
}

// AvatarColor returns the palette color for the participant joining at
// the given index
func AvatarColor(index int) string {
	if index < 0 {
		index = 0
	}
	return ParticipantColors[index%len(ParticipantColors)]
}

// AvatarSeed returns the single-character avatar seed for a name
func AvatarSeed(name string) string {
	for _, r := range name {
		return string(unicode.ToUpper(r))
	}
	return ""
}

// Initials returns up to two upper-cased word initials for a name
func Initials(name string) string {
	var b strings.Builder
	count := 0
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteRune(unicode.ToUpper(r))
			count++
			break
		}
		if count >= 2 {
			break
		}
	}
	return b.String()
}
