// Package voting owns per-round vote submission, the client-side write
// debounce, reveal-readiness derivation, and estimate finalization.
package voting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
	"github.com/Sajid-al-islam/plannig-poker/internal/game"
	"github.com/Sajid-al-islam/plannig-poker/internal/issues"
	"github.com/Sajid-al-islam/plannig-poker/internal/stats"
	"github.com/Sajid-al-islam/plannig-poker/pkg/apperrors"
	"github.com/Sajid-al-islam/plannig-poker/pkg/store"
)

const flushTimeout = 5 * time.Second

// Coordinator is the voting coordinator. Debounce timers are keyed per
// (game, participant) so a client voting in two capacities never
// shares a timer.
type Coordinator struct {
	store    *store.Client
	games    *game.Service
	issues   *issues.Service
	log      *zap.Logger
	clock    clockwork.Clock
	debounce time.Duration

	mu      sync.Mutex
	timers  map[string]clockwork.Timer
	pending map[string]string // latest value per debounce key
}

// NewCoordinator creates a new voting coordinator
func NewCoordinator(storeClient *store.Client, games *game.Service, issueSvc *issues.Service, debounce time.Duration, clock clockwork.Clock, log *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    storeClient,
		games:    games,
		issues:   issueSvc,
		log:      log,
		clock:    clock,
		debounce: debounce,
		timers:   make(map[string]clockwork.Timer),
		pending:  make(map[string]string),
	}
}

// SubmitVote records a vote after the debounce window: rapid repeated
// calls for the same participant collapse to a single write of the
// latest value. The eventual write's failure is logged, not returned.
func (c *Coordinator) SubmitVote(gameID, participantID, value string) {
	key := gameID + "/" + participantID

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[key] = value
	if timer, ok := c.timers[key]; ok {
		timer.Reset(c.debounce)
		return
	}
	c.timers[key] = c.clock.AfterFunc(c.debounce, func() {
		c.flush(gameID, participantID, key)
	})
}

// SubmitVoteNow writes a vote immediately, bypassing the debounce
func (c *Coordinator) SubmitVoteNow(ctx context.Context, gameID, participantID, value string) error {
	if !domain.IsValidVoteValue(value) {
		return apperrors.NewValidationError(fmt.Sprintf("%q is not on the voting deck", value))
	}

	vote := &domain.Vote{
		ParticipantID: participantID,
		Value:         value,
		SubmittedAt:   time.Now().UnixMilli(),
	}
	doc, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("failed to encode vote: %w", err)
	}

	if err := c.store.SetField(ctx, c.store.Keys.VotesKey(gameID), participantID, string(doc)); err != nil {
		return apperrors.NewStoreError("failed to submit vote", err)
	}
	c.notify(ctx, gameID)
	return nil
}

// DeleteVote retracts one participant's vote for the current round
func (c *Coordinator) DeleteVote(ctx context.Context, gameID, participantID string) error {
	if err := c.store.DeleteFields(ctx, c.store.Keys.VotesKey(gameID), participantID); err != nil {
		return apperrors.NewStoreError("failed to delete vote", err)
	}
	c.notify(ctx, gameID)
	return nil
}

// Votes reads the current round's tally
func (c *Coordinator) Votes(ctx context.Context, gameID string) ([]domain.Vote, error) {
	raw, err := c.store.GetAll(ctx, c.store.Keys.VotesKey(gameID))
	if err != nil {
		return nil, apperrors.NewStoreError("failed to read votes", err)
	}

	votes := make([]domain.Vote, 0, len(raw))
	for id, doc := range raw {
		var vote domain.Vote
		if err := json.Unmarshal([]byte(doc), &vote); err != nil {
			c.log.Warn("skipping malformed vote document",
				zap.String("game_id", gameID),
				zap.String("participant_id", id),
				zap.Error(err))
			continue
		}
		votes = append(votes, vote)
	}

	sort.Slice(votes, func(i, j int) bool {
		if votes[i].SubmittedAt != votes[j].SubmittedAt {
			return votes[i].SubmittedAt < votes[j].SubmittedAt
		}
		return votes[i].ParticipantID < votes[j].ParticipantID
	})

	return votes, nil
}

// ListenVotes delivers the vote snapshot now and after every vote
// change. Degraded reads deliver an empty list.
func (c *Coordinator) ListenVotes(ctx context.Context, gameID string, callback func([]domain.Vote)) store.Disposer {
	deliver := func() {
		votes, err := c.Votes(ctx, gameID)
		if err != nil {
			c.log.Warn("votes listener degraded",
				zap.String("game_id", gameID),
				zap.Error(err))
			votes = []domain.Vote{}
		}
		callback(votes)
	}
	deliver()
	return c.store.Subscribe(ctx, c.store.Keys.EventChannel(gameID, store.CollectionVotes), func(string) {
		deliver()
	})
}

// HasVoted reports whether a participant has a live vote. Existence
// only; the value stays hidden until the reveal.
func HasVoted(votes []domain.Vote, participantID string) bool {
	for _, vote := range votes {
		if vote.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// ParticipantVote returns a participant's vote value, if any
func ParticipantVote(votes []domain.Vote, participantID string) (string, bool) {
	for _, vote := range votes {
		if vote.ParticipantID == participantID {
			return vote.Value, true
		}
	}
	return "", false
}

// ReadyToReveal reports whether every non-spectator has voted. The UI
// gates the reveal button on this; RevealVotes itself never checks.
func ReadyToReveal(votes []domain.Vote, participants []domain.Participant) bool {
	voters := 0
	for _, p := range participants {
		if !p.IsSpectator {
			voters++
		}
	}
	return voters > 0 && len(votes) >= voters
}

// FinalizeEstimate turns the revealed round into a final estimate on
// the current issue: the consensus value when the round is unanimous,
// otherwise the median. It then clears the current issue and resets
// the round, in that order. The three effects are not atomic; a crash
// partway leaves the issue estimated with the round pending, which the
// next repair or auto-advance pass heals.
func (c *Coordinator) FinalizeEstimate(ctx context.Context, gameID string) (string, error) {
	session, err := c.games.GetSession(ctx, gameID)
	if err != nil {
		return "", err
	}
	if session.CurrentIssue == "" {
		return "", apperrors.NewValidationError("no issue is being voted on")
	}

	votes, err := c.Votes(ctx, gameID)
	if err != nil {
		return "", err
	}
	voteStats := stats.Calculate(votes)
	if voteStats == nil {
		return "", apperrors.NewValidationError("no votes to finalize")
	}

	estimate := stats.FormatEstimate(voteStats.Median)
	if voteStats.Consensus {
		estimate = voteStats.Mode[0]
	}

	if err := c.issues.MarkIssueEstimated(ctx, gameID, session.CurrentIssue, estimate); err != nil {
		return "", err
	}
	if err := c.games.SetCurrentIssue(ctx, gameID, ""); err != nil {
		return "", err
	}
	if err := c.games.ResetVotingRound(ctx, gameID); err != nil {
		return "", err
	}

	c.log.Info("estimate finalized",
		zap.String("game_id", gameID),
		zap.String("issue_id", session.CurrentIssue),
		zap.String("estimate", estimate),
		zap.Bool("consensus", voteStats.Consensus))

	return estimate, nil
}

// Close cancels every pending debounce timer without flushing
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, timer := range c.timers {
		timer.Stop()
		delete(c.timers, key)
		delete(c.pending, key)
	}
}

// flush writes the latest debounced value for one key
func (c *Coordinator) flush(gameID, participantID, key string) {
	c.mu.Lock()
	value, ok := c.pending[key]
	delete(c.pending, key)
	delete(c.timers, key)
	c.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := c.SubmitVoteNow(ctx, gameID, participantID, value); err != nil {
		c.log.Warn("debounced vote write failed",
			zap.String("game_id", gameID),
			zap.String("participant_id", participantID),
			zap.Error(err))
	}
}

func (c *Coordinator) notify(ctx context.Context, gameID string) {
	if err := c.store.Publish(ctx, c.store.Keys.EventChannel(gameID, store.CollectionVotes), store.CollectionVotes); err != nil {
		c.log.Warn("vote change notification failed",
			zap.String("game_id", gameID),
			zap.Error(err))
	}
}
