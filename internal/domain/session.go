package domain

import "strconv"

// GameSession is the root document of one planning poker game. A game
// is never deleted in-band; abandoned games are left for out-of-band
// cleanup.
type GameSession struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CreatedAt     int64  `json:"createdAt"` // unix milliseconds
	CreatedBy     string `json:"createdBy"`
	CurrentIssue  string `json:"currentIssue"` // empty = no issue selected
	VotesRevealed bool   `json:"votesRevealed"`
	HostID        string `json:"hostId"`
}

// Session document hash fields. The session is stored field-per-field
// so partial updates touch only what changed.
const (
	SessionFieldID            = "id"
	SessionFieldName          = "name"
	SessionFieldCreatedAt     = "created_at"
	SessionFieldCreatedBy     = "created_by"
	SessionFieldCurrentIssue  = "current_issue"
	SessionFieldVotesRevealed = "votes_revealed"
	SessionFieldHostID        = "host_id"
)

// Fields encodes the session for a full document write
func (s *GameSession) Fields() map[string]interface{} {
	return map[string]interface{}{
		SessionFieldID:            s.ID,
		SessionFieldName:          s.Name,
		SessionFieldCreatedAt:     strconv.FormatInt(s.CreatedAt, 10),
		SessionFieldCreatedBy:     s.CreatedBy,
		SessionFieldCurrentIssue:  s.CurrentIssue,
		SessionFieldVotesRevealed: strconv.FormatBool(s.VotesRevealed),
		SessionFieldHostID:        s.HostID,
	}
}

// SessionFromFields decodes a session document hash. Returns nil for an
// empty hash (document absent).
func SessionFromFields(fields map[string]string) *GameSession {
	if len(fields) == 0 {
		return nil
	}
	createdAt, _ := strconv.ParseInt(fields[SessionFieldCreatedAt], 10, 64)
	revealed, _ := strconv.ParseBool(fields[SessionFieldVotesRevealed])
	return &GameSession{
		ID:            fields[SessionFieldID],
		Name:          fields[SessionFieldName],
		CreatedAt:     createdAt,
		CreatedBy:     fields[SessionFieldCreatedBy],
		CurrentIssue:  fields[SessionFieldCurrentIssue],
		VotesRevealed: revealed,
		HostID:        fields[SessionFieldHostID],
	}
}
