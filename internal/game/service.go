// Package game owns the session lifecycle and participant membership:
// creation, join/leave/remove, issue selection, and the reveal/reset
// cycle. All state lives in the shared store; every mutation publishes
// a change notification so other clients converge.
package game

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
	"github.com/Sajid-al-islam/plannig-poker/pkg/apperrors"
	"github.com/Sajid-al-islam/plannig-poker/pkg/store"
)

// Service is the session state machine
type Service struct {
	store *store.Client
	log   *zap.Logger
}

// NewService creates a new game service
func NewService(storeClient *store.Client, log *zap.Logger) *Service {
	return &Service{
		store: storeClient,
		log:   log,
	}
}

// CreateSession allocates a fresh game with its host participant and
// returns both ids. The host write is attempted even when the session
// write fails so a retry never leaves a silent partial orphan; either
// failure is surfaced.
func (s *Service) CreateSession(ctx context.Context, hostName string, isSpectator bool) (gameID, participantID string, err error) {
	gameID = newGameID()
	participantID = newParticipantID()
	now := nowMillis()

	session := &domain.GameSession{
		ID:            gameID,
		Name:          fmt.Sprintf("%s's Planning Poker", hostName),
		CreatedAt:     now,
		CreatedBy:     participantID,
		CurrentIssue:  "",
		VotesRevealed: false,
		HostID:        participantID,
	}

	host := &domain.Participant{
		ID:          participantID,
		Name:        hostName,
		Avatar:      domain.AvatarSeed(hostName),
		Color:       domain.AvatarColor(0),
		JoinedAt:    now,
		IsHost:      true,
		IsSpectator: isSpectator,
	}

	sessionErr := s.store.SetFields(ctx, s.store.Keys.SessionKey(gameID), session.Fields())
	hostErr := s.writeParticipant(ctx, gameID, host)

	if sessionErr != nil || hostErr != nil {
		return "", "", apperrors.NewStoreError("failed to create game session", errors.Join(sessionErr, hostErr))
	}

	s.notify(ctx, gameID, store.CollectionSession)
	s.notify(ctx, gameID, store.CollectionParticipants)

	s.log.Info("game session created",
		zap.String("game_id", gameID),
		zap.String("host_id", participantID),
		zap.Bool("spectator", isSpectator))

	return gameID, participantID, nil
}

// JoinSession adds a participant to an existing game and returns the
// new participant id. The avatar color follows the participant count at
// join time; concurrent joins may collide on a color, which is
// cosmetic only.
func (s *Service) JoinSession(ctx context.Context, gameID, name string, isSpectator bool) (string, error) {
	fields, err := s.store.GetAll(ctx, s.store.Keys.SessionKey(gameID))
	if err != nil {
		return "", apperrors.NewStoreError("failed to look up game", err)
	}
	if domain.SessionFromFields(fields) == nil {
		return "", apperrors.NewNotFoundError("game not found")
	}

	existing, err := s.store.Fields(ctx, s.store.Keys.ParticipantsKey(gameID))
	if err != nil {
		return "", apperrors.NewStoreError("failed to count participants", err)
	}

	participant := &domain.Participant{
		ID:          newParticipantID(),
		Name:        name,
		Avatar:      domain.AvatarSeed(name),
		Color:       domain.AvatarColor(len(existing)),
		JoinedAt:    nowMillis(),
		IsHost:      false,
		IsSpectator: isSpectator,
	}

	if err := s.writeParticipant(ctx, gameID, participant); err != nil {
		return "", apperrors.NewStoreError("failed to join game", err)
	}
	s.notify(ctx, gameID, store.CollectionParticipants)

	s.log.Info("participant joined",
		zap.String("game_id", gameID),
		zap.String("participant_id", participant.ID),
		zap.Bool("spectator", isSpectator))

	return participant.ID, nil
}

// GetSession reads the session document
func (s *Service) GetSession(ctx context.Context, gameID string) (*domain.GameSession, error) {
	fields, err := s.store.GetAll(ctx, s.store.Keys.SessionKey(gameID))
	if err != nil {
		return nil, apperrors.NewStoreError("failed to read game session", err)
	}
	session := domain.SessionFromFields(fields)
	if session == nil {
		return nil, apperrors.NewNotFoundError("game not found")
	}
	return session, nil
}

// Participants reads the live membership, ordered by join time
func (s *Service) Participants(ctx context.Context, gameID string) ([]domain.Participant, error) {
	raw, err := s.store.GetAll(ctx, s.store.Keys.ParticipantsKey(gameID))
	if err != nil {
		return nil, apperrors.NewStoreError("failed to read participants", err)
	}

	participants := make([]domain.Participant, 0, len(raw))
	for id, doc := range raw {
		var p domain.Participant
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			s.log.Warn("skipping malformed participant document",
				zap.String("game_id", gameID),
				zap.String("participant_id", id),
				zap.Error(err))
			continue
		}
		participants = append(participants, p)
	}

	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt != participants[j].JoinedAt {
			return participants[i].JoinedAt < participants[j].JoinedAt
		}
		return participants[i].ID < participants[j].ID
	})

	return participants, nil
}

// SetCurrentIssue overwrites the active issue unconditionally; an empty
// issueID clears the selection. Callers pick valid targets.
func (s *Service) SetCurrentIssue(ctx context.Context, gameID, issueID string) error {
	if err := s.store.SetField(ctx, s.store.Keys.SessionKey(gameID), domain.SessionFieldCurrentIssue, issueID); err != nil {
		return apperrors.NewStoreError("failed to set current issue", err)
	}
	s.notify(ctx, gameID, store.CollectionSession)
	return nil
}

// RevealVotes flips the reveal flag. Host-only by convention; the store
// does not enforce the role.
func (s *Service) RevealVotes(ctx context.Context, gameID string) error {
	if err := s.store.SetField(ctx, s.store.Keys.SessionKey(gameID), domain.SessionFieldVotesRevealed, "true"); err != nil {
		return apperrors.NewStoreError("failed to reveal votes", err)
	}
	s.notify(ctx, gameID, store.CollectionSession)
	return nil
}

// ResetVotingRound hides votes again and wipes the round's vote set.
// The flag flips first; when the delete phase fails partway the round
// is inconsistent and the caller should retry the delete by calling
// ResetVotingRound again, which is idempotent.
func (s *Service) ResetVotingRound(ctx context.Context, gameID string) error {
	if err := s.store.SetField(ctx, s.store.Keys.SessionKey(gameID), domain.SessionFieldVotesRevealed, "false"); err != nil {
		return apperrors.NewStoreError("failed to reset reveal flag", err)
	}
	s.notify(ctx, gameID, store.CollectionSession)

	votesKey := s.store.Keys.VotesKey(gameID)
	participantIDs, err := s.store.Fields(ctx, votesKey)
	if err != nil {
		return apperrors.NewStoreError("failed to list votes for reset", err)
	}
	for _, participantID := range participantIDs {
		if err := s.store.DeleteFields(ctx, votesKey, participantID); err != nil {
			return apperrors.NewStoreError("failed to delete vote during reset", err)
		}
	}
	s.notify(ctx, gameID, store.CollectionVotes)

	s.log.Debug("voting round reset",
		zap.String("game_id", gameID),
		zap.Int("votes_cleared", len(participantIDs)))
	return nil
}

// LeaveSession removes a participant's own membership
func (s *Service) LeaveSession(ctx context.Context, gameID, participantID string) error {
	return s.deleteParticipant(ctx, gameID, participantID)
}

// RemoveParticipant is the host-initiated removal. Same effect as
// LeaveSession; the membership change propagates through the
// participants stream and the removed client reconciles itself out.
func (s *Service) RemoveParticipant(ctx context.Context, gameID, participantID string) error {
	s.log.Info("participant removed by host",
		zap.String("game_id", gameID),
		zap.String("participant_id", participantID))
	return s.deleteParticipant(ctx, gameID, participantID)
}

// ListenSession delivers the session snapshot now and after every
// session change. A missing game or degraded read delivers nil.
func (s *Service) ListenSession(ctx context.Context, gameID string, callback func(*domain.GameSession)) store.Disposer {
	deliver := func() {
		session, err := s.GetSession(ctx, gameID)
		if err != nil && !apperrors.IsNotFound(err) {
			s.log.Warn("session listener degraded",
				zap.String("game_id", gameID),
				zap.Error(err))
		}
		callback(session)
	}
	deliver()
	return s.store.Subscribe(ctx, s.store.Keys.EventChannel(gameID, store.CollectionSession), func(string) {
		deliver()
	})
}

// ListenParticipants delivers the membership snapshot now and after
// every membership change. Degraded reads deliver an empty list.
func (s *Service) ListenParticipants(ctx context.Context, gameID string, callback func([]domain.Participant)) store.Disposer {
	deliver := func() {
		participants, err := s.Participants(ctx, gameID)
		if err != nil {
			s.log.Warn("participants listener degraded",
				zap.String("game_id", gameID),
				zap.Error(err))
			participants = []domain.Participant{}
		}
		callback(participants)
	}
	deliver()
	return s.store.Subscribe(ctx, s.store.Keys.EventChannel(gameID, store.CollectionParticipants), func(string) {
		deliver()
	})
}

func (s *Service) writeParticipant(ctx context.Context, gameID string, p *domain.Participant) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode participant: %w", err)
	}
	return s.store.SetField(ctx, s.store.Keys.ParticipantsKey(gameID), p.ID, string(doc))
}

func (s *Service) deleteParticipant(ctx context.Context, gameID, participantID string) error {
	if err := s.store.DeleteFields(ctx, s.store.Keys.ParticipantsKey(gameID), participantID); err != nil {
		return apperrors.NewStoreError("failed to remove participant", err)
	}
	s.notify(ctx, gameID, store.CollectionParticipants)
	return nil
}

// notify publishes a change notification. Delivery is best effort: a
// failed publish only delays convergence until the next snapshot read.
func (s *Service) notify(ctx context.Context, gameID, collection string) {
	if err := s.store.Publish(ctx, s.store.Keys.EventChannel(gameID, collection), collection); err != nil {
		s.log.Warn("change notification failed",
			zap.String("game_id", gameID),
			zap.String("collection", collection),
			zap.Error(err))
	}
}

// newGameID returns a short URL-safe token for sharing in links
func newGameID() string {
	raw := make([]byte, 8)
	rand.Read(raw)
	return base64.RawURLEncoding.EncodeToString(raw)[:10]
}

func newParticipantID() string {
	return uuid.NewString()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
