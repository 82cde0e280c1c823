// Package issues owns the backlog of estimable items: ordering,
// estimation state, the auto-advance selection policy, and CSV
// import/export.
package issues

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
	"github.com/Sajid-al-islam/plannig-poker/pkg/apperrors"
	"github.com/Sajid-al-islam/plannig-poker/pkg/store"
)

// Service is the issue queue
type Service struct {
	store *store.Client
	log   *zap.Logger
}

// NewService creates a new issue service
func NewService(storeClient *store.Client, log *zap.Logger) *Service {
	return &Service{
		store: storeClient,
		log:   log,
	}
}

// AddIssue appends a new issue and returns its id. The order index is
// the issue count at write time; concurrent adds can produce duplicate
// order values, which the sort tolerates.
func (s *Service) AddIssue(ctx context.Context, gameID, title, description string) (string, error) {
	existing, err := s.store.Fields(ctx, s.store.Keys.IssuesKey(gameID))
	if err != nil {
		return "", apperrors.NewStoreError("failed to count issues", err)
	}

	issue := &domain.Issue{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UnixMilli(),
		IsEstimated: false,
		Order:       len(existing),
	}

	if err := s.writeIssue(ctx, gameID, issue); err != nil {
		return "", apperrors.NewStoreError("failed to add issue", err)
	}
	s.notify(ctx, gameID)

	return issue.ID, nil
}

// UpdateIssue applies a read-modify-write mutation to one issue
func (s *Service) UpdateIssue(ctx context.Context, gameID, issueID string, mutate func(*domain.Issue)) error {
	doc, err := s.store.GetField(ctx, s.store.Keys.IssuesKey(gameID), issueID)
	if err != nil {
		if store.IsNotFound(err) {
			return apperrors.NewNotFoundError("issue not found")
		}
		return apperrors.NewStoreError("failed to read issue", err)
	}

	var issue domain.Issue
	if err := json.Unmarshal([]byte(doc), &issue); err != nil {
		return apperrors.NewStoreError("failed to decode issue", err)
	}

	mutate(&issue)

	if err := s.writeIssue(ctx, gameID, &issue); err != nil {
		return apperrors.NewStoreError("failed to update issue", err)
	}
	s.notify(ctx, gameID)
	return nil
}

// MarkIssueEstimated records the final estimate and retires the issue
// from the voting rotation. There is no way back to unestimated.
func (s *Service) MarkIssueEstimated(ctx context.Context, gameID, issueID, estimate string) error {
	err := s.UpdateIssue(ctx, gameID, issueID, func(issue *domain.Issue) {
		issue.Estimate = estimate
		issue.IsEstimated = true
	})
	if err != nil {
		return err
	}

	s.log.Info("issue estimated",
		zap.String("game_id", gameID),
		zap.String("issue_id", issueID),
		zap.String("estimate", estimate))
	return nil
}

// DeleteIssue removes an issue unconditionally. Deleting the active
// issue leaves the session's current issue dangling until the repair
// pass clears it.
func (s *Service) DeleteIssue(ctx context.Context, gameID, issueID string) error {
	if err := s.store.DeleteFields(ctx, s.store.Keys.IssuesKey(gameID), issueID); err != nil {
		return apperrors.NewStoreError("failed to delete issue", err)
	}
	s.notify(ctx, gameID)
	return nil
}

// Issues reads the backlog ordered by insertion index
func (s *Service) Issues(ctx context.Context, gameID string) ([]domain.Issue, error) {
	raw, err := s.store.GetAll(ctx, s.store.Keys.IssuesKey(gameID))
	if err != nil {
		return nil, apperrors.NewStoreError("failed to read issues", err)
	}

	issues := make([]domain.Issue, 0, len(raw))
	for id, doc := range raw {
		var issue domain.Issue
		if err := json.Unmarshal([]byte(doc), &issue); err != nil {
			s.log.Warn("skipping malformed issue document",
				zap.String("game_id", gameID),
				zap.String("issue_id", id),
				zap.Error(err))
			continue
		}
		issues = append(issues, issue)
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Order != issues[j].Order {
			return issues[i].Order < issues[j].Order
		}
		if issues[i].CreatedAt != issues[j].CreatedAt {
			return issues[i].CreatedAt < issues[j].CreatedAt
		}
		return issues[i].ID < issues[j].ID
	})

	return issues, nil
}

// ListenIssues delivers the backlog snapshot now and after every issue
// change. Degraded reads deliver an empty list.
func (s *Service) ListenIssues(ctx context.Context, gameID string, callback func([]domain.Issue)) store.Disposer {
	deliver := func() {
		issues, err := s.Issues(ctx, gameID)
		if err != nil {
			s.log.Warn("issues listener degraded",
				zap.String("game_id", gameID),
				zap.Error(err))
			issues = []domain.Issue{}
		}
		callback(issues)
	}
	deliver()
	return s.store.Subscribe(ctx, s.store.Keys.EventChannel(gameID, store.CollectionIssues), func(string) {
		deliver()
	})
}

// NextIssue picks the issue the host should put up for voting next:
// the single remaining unestimated issue when exactly one is left,
// otherwise the most recently added unestimated one. Returns nil when
// nothing is left to estimate.
func NextIssue(issues []domain.Issue) *domain.Issue {
	var unestimated []domain.Issue
	for _, issue := range issues {
		if !issue.IsEstimated {
			unestimated = append(unestimated, issue)
		}
	}

	switch {
	case len(unestimated) == 0:
		return nil
	case len(unestimated) == 1:
		return &unestimated[0]
	default:
		return &unestimated[len(unestimated)-1]
	}
}

func (s *Service) writeIssue(ctx context.Context, gameID string, issue *domain.Issue) error {
	doc, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("failed to encode issue: %w", err)
	}
	return s.store.SetField(ctx, s.store.Keys.IssuesKey(gameID), issue.ID, string(doc))
}

func (s *Service) notify(ctx context.Context, gameID string) {
	if err := s.store.Publish(ctx, s.store.Keys.EventChannel(gameID, store.CollectionIssues), store.CollectionIssues); err != nil {
		s.log.Warn("issue change notification failed",
			zap.String("game_id", gameID),
			zap.Error(err))
	}
}
