package store

import "fmt"

// Collection names, one change channel per collection per game.
const (
	CollectionSession      = "session"
	CollectionParticipants = "participants"
	CollectionVotes        = "votes"
	CollectionIssues       = "issues"
	CollectionReactions    = "reactions"
)

// KeyBuilder provides environment-aware key building for per-game
// collections
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// SessionKey is the hash holding the game session document
func (kb *KeyBuilder) SessionKey(gameID string) string {
	return kb.BuildKey(fmt.Sprintf("poker:game:%s:session", gameID))
}

// ParticipantsKey is the hash of participant documents keyed by participant id
func (kb *KeyBuilder) ParticipantsKey(gameID string) string {
	return kb.BuildKey(fmt.Sprintf("poker:game:%s:participants", gameID))
}

// VotesKey is the hash of live votes keyed by participant id
func (kb *KeyBuilder) VotesKey(gameID string) string {
	return kb.BuildKey(fmt.Sprintf("poker:game:%s:votes", gameID))
}

// IssuesKey is the hash of issue documents keyed by issue id
func (kb *KeyBuilder) IssuesKey(gameID string) string {
	return kb.BuildKey(fmt.Sprintf("poker:game:%s:issues", gameID))
}

// ReactionsKey is the capped list of reaction events, newest first
func (kb *KeyBuilder) ReactionsKey(gameID string) string {
	return kb.BuildKey(fmt.Sprintf("poker:game:%s:reactions", gameID))
}

// EventChannel is the pub/sub channel carrying change notifications
// for one collection of one game
func (kb *KeyBuilder) EventChannel(gameID, collection string) string {
	return kb.BuildKey(fmt.Sprintf("poker:game:%s:events:%s", gameID, collection))
}
