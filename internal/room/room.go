// Package room is the client composition root: it subscribes to every
// data stream of one game, keeps the client's local view, reconciles
// the locally held identity against live membership, and drives the
// UI-facing callbacks. Local state is a cache of store snapshots,
// never authoritative.
package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
	"github.com/Sajid-al-islam/plannig-poker/internal/game"
	"github.com/Sajid-al-islam/plannig-poker/internal/identity"
	"github.com/Sajid-al-islam/plannig-poker/internal/issues"
	"github.com/Sajid-al-islam/plannig-poker/internal/reactions"
	"github.com/Sajid-al-islam/plannig-poker/internal/voting"
	"github.com/Sajid-al-islam/plannig-poker/pkg/store"
)

const writeTimeout = 5 * time.Second

// Callbacks are the UI-facing hooks. Any of them may be nil. They are
// invoked from listener goroutines and may interleave; implementations
// should hand off to their own event loop.
type Callbacks struct {
	OnSession      func(*domain.GameSession)
	OnParticipants func([]domain.Participant)
	OnVotes        func([]domain.Vote)
	OnIssues       func([]domain.Issue)
	OnReactions    func([]domain.EmojiThrow) // deduplicated, fresh events only
	OnEvicted      func()                    // local identity no longer in live membership
}

// Room synchronizes one client with one game
type Room struct {
	gameID        string
	participantID string

	games     *game.Service
	votes     *voting.Coordinator
	issues    *issues.Service
	reactions *reactions.Service
	identity  *identity.Store
	callbacks Callbacks
	log       *zap.Logger

	mu           sync.Mutex
	session      *domain.GameSession
	participants []domain.Participant
	voteSet      []domain.Vote
	backlog      []domain.Issue
	selection    string // locally selected card, cleared on round reset
	evicted      bool
	dedupe       *reactions.Deduper
	disposers    []store.Disposer
	closed       bool
}

// New creates a room for an already joined participant
func New(gameID, participantID string, games *game.Service, votes *voting.Coordinator, issueSvc *issues.Service, reactionSvc *reactions.Service, identityStore *identity.Store, callbacks Callbacks, log *zap.Logger) *Room {
	return &Room{
		gameID:        gameID,
		participantID: participantID,
		games:         games,
		votes:         votes,
		issues:        issueSvc,
		reactions:     reactionSvc,
		identity:      identityStore,
		callbacks:     callbacks,
		log:           log,
		dedupe:        reactions.NewDeduper(),
	}
}

// Open subscribes to all five streams. Each listener delivers an
// initial snapshot immediately, so the local view converges without
// waiting for the first change.
func (r *Room) Open(ctx context.Context) {
	r.mu.Lock()
	r.disposers = []store.Disposer{
		r.games.ListenSession(ctx, r.gameID, r.onSession),
		r.games.ListenParticipants(ctx, r.gameID, r.onParticipants),
		r.votes.ListenVotes(ctx, r.gameID, r.onVotes),
		r.issues.ListenIssues(ctx, r.gameID, r.onIssues),
		r.reactions.ListenReactions(ctx, r.gameID, r.onReactions),
	}
	r.mu.Unlock()

	r.log.Info("room opened",
		zap.String("game_id", r.gameID),
		zap.String("participant_id", r.participantID))
}

// Close tears down every outstanding subscription and pending debounce
// timer. Safe to call more than once.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	disposers := r.disposers
	r.disposers = nil
	r.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
	r.votes.Close()

	r.log.Info("room closed", zap.String("game_id", r.gameID))
}

// Session returns the latest session snapshot, which may be nil
func (r *Room) Session() *domain.GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Participants returns the latest membership snapshot
func (r *Room) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participants
}

// Votes returns the latest vote snapshot
func (r *Room) Votes() []domain.Vote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.voteSet
}

// Issues returns the latest backlog snapshot
func (r *Room) Issues() []domain.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backlog
}

// Selection returns the locally selected card, if any
func (r *Room) Selection() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection, r.selection != ""
}

// IsHost reports whether this client's participant holds the host role
func (r *Room) IsHost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isHostLocked()
}

// SelectCard records the local card choice and submits it through the
// debounced vote path
func (r *Room) SelectCard(value string) {
	r.mu.Lock()
	r.selection = value
	r.mu.Unlock()
	r.votes.SubmitVote(r.gameID, r.participantID, value)
}

// Throw sends an emoji to another participant. Rate-limit rejections
// are expected behavior; callers log and move on.
func (r *Room) Throw(ctx context.Context, toID, emoji string) error {
	return r.reactions.Throw(ctx, r.gameID, r.participantID, toID, emoji)
}

// Leave removes this client's membership, clears the held identity and
// tears the room down
func (r *Room) Leave(ctx context.Context) error {
	if err := r.games.LeaveSession(ctx, r.gameID, r.participantID); err != nil {
		return err
	}
	if err := r.identity.Clear(); err != nil {
		r.log.Warn("failed to clear identity on leave", zap.Error(err))
	}
	r.Close()
	return nil
}

// onSession folds a session snapshot into the local view
func (r *Room) onSession(session *domain.GameSession) {
	r.mu.Lock()
	r.session = session
	r.clearStaleSelectionLocked()
	r.mu.Unlock()

	r.reconcileIssueSelection()

	if r.callbacks.OnSession != nil {
		r.callbacks.OnSession(session)
	}
}

// onParticipants folds a membership snapshot into the local view and
// reconciles the held identity: present locally but absent from a
// non-empty live set is terminal, so the identity is cleared and the
// client is told to re-join. Removal by host and stale cache look the
// same from here.
func (r *Room) onParticipants(participants []domain.Participant) {
	r.mu.Lock()
	r.participants = participants
	evictNow := false
	if len(participants) > 0 && !r.evicted && !containsParticipant(participants, r.participantID) {
		r.evicted = true
		evictNow = true
	}
	r.mu.Unlock()

	if evictNow {
		r.log.Warn("participant no longer in session, forcing re-join",
			zap.String("game_id", r.gameID),
			zap.String("participant_id", r.participantID))
		if err := r.identity.Clear(); err != nil {
			r.log.Warn("failed to clear stale identity", zap.Error(err))
		}
		if r.callbacks.OnEvicted != nil {
			r.callbacks.OnEvicted()
		}
	}

	if r.callbacks.OnParticipants != nil {
		r.callbacks.OnParticipants(participants)
	}
}

// onVotes folds a vote snapshot into the local view
func (r *Room) onVotes(votes []domain.Vote) {
	r.mu.Lock()
	r.voteSet = votes
	r.clearStaleSelectionLocked()
	r.mu.Unlock()

	if r.callbacks.OnVotes != nil {
		r.callbacks.OnVotes(votes)
	}
}

// onIssues folds a backlog snapshot into the local view
func (r *Room) onIssues(backlog []domain.Issue) {
	r.mu.Lock()
	r.backlog = backlog
	r.mu.Unlock()

	r.reconcileIssueSelection()

	if r.callbacks.OnIssues != nil {
		r.callbacks.OnIssues(backlog)
	}
}

// onReactions delivers only the reactions this client has not yet seen
func (r *Room) onReactions(snapshot []domain.EmojiThrow) {
	r.mu.Lock()
	fresh := r.dedupe.Fresh(snapshot)
	r.mu.Unlock()

	if len(fresh) > 0 && r.callbacks.OnReactions != nil {
		r.callbacks.OnReactions(fresh)
	}
}

// reconcileIssueSelection is the host-only reactive policy over the
// (session, issues) pair. It repairs a current issue that is already
// estimated or deleted, then auto-selects the next unestimated issue
// when none is active. Both writes are idempotent, and restricting
// them to the host avoids every client racing on the same assignment.
func (r *Room) reconcileIssueSelection() {
	r.mu.Lock()
	if r.closed || r.evicted || !r.isHostLocked() || r.session == nil {
		r.mu.Unlock()
		return
	}
	session := *r.session
	backlog := make([]domain.Issue, len(r.backlog))
	copy(backlog, r.backlog)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if session.CurrentIssue != "" {
		current, found := findIssue(backlog, session.CurrentIssue)
		if len(backlog) > 0 && (!found || current.IsEstimated) {
			if err := r.games.SetCurrentIssue(ctx, r.gameID, ""); err != nil {
				r.log.Warn("failed to clear stale current issue", zap.Error(err))
			}
		}
		return
	}

	if next := issues.NextIssue(backlog); next != nil {
		if err := r.games.SetCurrentIssue(ctx, r.gameID, next.ID); err != nil {
			r.log.Warn("failed to auto-select next issue", zap.Error(err))
		}
	}
}

// clearStaleSelectionLocked drops the local card choice once a round
// reset is observed: reveal flag down and an empty vote set.
func (r *Room) clearStaleSelectionLocked() {
	if r.session != nil && !r.session.VotesRevealed && len(r.voteSet) == 0 {
		r.selection = ""
	}
}

func (r *Room) isHostLocked() bool {
	for _, p := range r.participants {
		if p.ID == r.participantID {
			return p.IsHost
		}
	}
	return false
}

func containsParticipant(participants []domain.Participant, id string) bool {
	for _, p := range participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

func findIssue(backlog []domain.Issue, id string) (domain.Issue, bool) {
	for _, issue := range backlog {
		if issue.ID == id {
			return issue, true
		}
	}
	return domain.Issue{}, false
}
