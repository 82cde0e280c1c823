// Package reactions owns the ephemeral emoji-throw channel: rate-limited
// appends to a capped per-game event log and bounded-window delivery.
package reactions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
	"github.com/Sajid-al-islam/plannig-poker/internal/ratelimit"
	"github.com/Sajid-al-islam/plannig-poker/pkg/apperrors"
	"github.com/Sajid-al-islam/plannig-poker/pkg/store"
)

// Service is the reaction channel
type Service struct {
	store        *store.Client
	limiter      *ratelimit.Limiter
	cooldown     time.Duration
	maxPerMinute int
	window       int
	log          *zap.Logger
}

// NewService creates a new reaction service. The limiter instance is
// owned by the caller so its lifecycle matches the client session.
func NewService(storeClient *store.Client, limiter *ratelimit.Limiter, cooldown time.Duration, maxPerMinute, window int, log *zap.Logger) *Service {
	return &Service{
		store:        storeClient,
		limiter:      limiter,
		cooldown:     cooldown,
		maxPerMinute: maxPerMinute,
		window:       window,
		log:          log,
	}
}

// Throw sends an emoji from one participant to another. The cooldown
// gate runs first and never consumes a per-minute slot; only a throw
// that clears the cooldown reaches the sliding-window check, which
// does. Rejections come back as rate_limit errors, the cooldown case
// carrying the remaining wait.
func (s *Service) Throw(ctx context.Context, gameID, fromID, toID, emoji string) error {
	key := limiterKey(gameID, fromID)

	if remaining := s.limiter.CooldownRemaining(key, s.cooldown); remaining > 0 {
		return apperrors.NewRateLimitError("please wait before sending another emoji", remaining)
	}

	if !s.limiter.Allow(key, s.maxPerMinute) {
		return apperrors.NewRateLimitError(
			fmt.Sprintf("you can only send %d emojis per minute", s.maxPerMinute), 0)
	}

	throw := &domain.EmojiThrow{
		ID:        uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		Emoji:     emoji,
		Timestamp: time.Now().UnixMilli(),
	}
	doc, err := json.Marshal(throw)
	if err != nil {
		return fmt.Errorf("failed to encode reaction: %w", err)
	}

	if err := s.store.AppendCapped(ctx, s.store.Keys.ReactionsKey(gameID), string(doc), int64(s.window)); err != nil {
		return apperrors.NewStoreError("failed to send emoji", err)
	}
	s.notify(ctx, gameID)
	return nil
}

// Cooldown returns the remaining throw cooldown for a participant
func (s *Service) Cooldown(gameID, participantID string) time.Duration {
	return s.limiter.CooldownRemaining(limiterKey(gameID, participantID), s.cooldown)
}

// Reactions reads the newest window of reaction events, newest first
func (s *Service) Reactions(ctx context.Context, gameID string) ([]domain.EmojiThrow, error) {
	entries, err := s.store.RangeNewest(ctx, s.store.Keys.ReactionsKey(gameID), int64(s.window))
	if err != nil {
		return nil, apperrors.NewStoreError("failed to read reactions", err)
	}

	throws := make([]domain.EmojiThrow, 0, len(entries))
	for _, entry := range entries {
		var throw domain.EmojiThrow
		if err := json.Unmarshal([]byte(entry), &throw); err != nil {
			s.log.Warn("skipping malformed reaction entry",
				zap.String("game_id", gameID),
				zap.Error(err))
			continue
		}
		throws = append(throws, throw)
	}

	return throws, nil
}

// ListenReactions delivers the newest-window snapshot now and after
// every new reaction. A reaction can reappear across snapshots until
// newer events push it out; consumers deduplicate with a Deduper.
func (s *Service) ListenReactions(ctx context.Context, gameID string, callback func([]domain.EmojiThrow)) store.Disposer {
	deliver := func() {
		throws, err := s.Reactions(ctx, gameID)
		if err != nil {
			s.log.Warn("reactions listener degraded",
				zap.String("game_id", gameID),
				zap.Error(err))
			throws = []domain.EmojiThrow{}
		}
		callback(throws)
	}
	deliver()
	return s.store.Subscribe(ctx, s.store.Keys.EventChannel(gameID, store.CollectionReactions), func(string) {
		deliver()
	})
}

func (s *Service) notify(ctx context.Context, gameID string) {
	if err := s.store.Publish(ctx, s.store.Keys.EventChannel(gameID, store.CollectionReactions), store.CollectionReactions); err != nil {
		s.log.Warn("reaction change notification failed",
			zap.String("game_id", gameID),
			zap.Error(err))
	}
}

func limiterKey(gameID, participantID string) string {
	return fmt.Sprintf("emoji-%s-%s", gameID, participantID)
}
