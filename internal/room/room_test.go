package room

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
	"github.com/Sajid-al-islam/plannig-poker/internal/game"
	"github.com/Sajid-al-islam/plannig-poker/internal/identity"
	"github.com/Sajid-al-islam/plannig-poker/internal/issues"
	"github.com/Sajid-al-islam/plannig-poker/internal/ratelimit"
	"github.com/Sajid-al-islam/plannig-poker/internal/reactions"
	"github.com/Sajid-al-islam/plannig-poker/internal/voting"
	"github.com/Sajid-al-islam/plannig-poker/pkg/store"
)

const (
	testDebounce = 500 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 20 * time.Millisecond
)

type testEnv struct {
	store     *store.Client
	games     *game.Service
	issues    *issues.Service
	reactions *reactions.Service
	clock     *clockwork.FakeClock
}

func setupTestEnv(t *testing.T) *testEnv {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := store.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	clock := clockwork.NewFakeClock()
	games := game.NewService(client, zap.NewNop())
	issueSvc := issues.NewService(client, zap.NewNop())
	limiter := ratelimit.NewWithClock(clock)
	reactionSvc := reactions.NewService(client, limiter, 500*time.Millisecond, 10, 10, zap.NewNop())

	return &testEnv{
		store:     client,
		games:     games,
		issues:    issueSvc,
		reactions: reactionSvc,
		clock:     clock,
	}
}

// openRoom joins the env's wiring into a running room for one
// participant. Each room gets its own vote coordinator and identity
// file, mirroring one client process.
func (env *testEnv) openRoom(t *testing.T, gameID, participantID string, callbacks Callbacks) (*Room, *identity.Store) {
	votes := voting.NewCoordinator(env.store, env.games, env.issues, testDebounce, env.clock, zap.NewNop())

	identityStore, err := identity.NewStore(filepath.Join(t.TempDir(), "identity.json"))
	require.NoError(t, err)
	require.NoError(t, identityStore.Save(identity.Identity{GameID: gameID, ParticipantID: participantID}))

	r := New(gameID, participantID, env.games, votes, env.issues, env.reactions, identityStore, callbacks, zap.NewNop())
	r.Open(context.Background())
	t.Cleanup(r.Close)

	return r, identityStore
}

func TestOpen_DeliversInitialSnapshots(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	r, _ := env.openRoom(t, gameID, hostID, Callbacks{})

	session := r.Session()
	require.NotNil(t, session)
	assert.Equal(t, gameID, session.ID)

	participants := r.Participants()
	require.Len(t, participants, 1)
	assert.Equal(t, hostID, participants[0].ID)
	assert.True(t, r.IsHost())

	assert.Empty(t, r.Votes())
	assert.Empty(t, r.Issues())
	_, selected := r.Selection()
	assert.False(t, selected)
}

func TestSelectCard_DebouncedSubmission(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	r, _ := env.openRoom(t, gameID, hostID, Callbacks{})

	r.SelectCard("8")
	value, selected := r.Selection()
	assert.True(t, selected)
	assert.Equal(t, "8", value)

	// The write lands only after the debounce window.
	assert.False(t, voting.HasVoted(r.Votes(), hostID))
	env.clock.Advance(testDebounce)

	require.Eventually(t, func() bool {
		votes := r.Votes()
		got, ok := voting.ParticipantVote(votes, hostID)
		return ok && got == "8"
	}, waitFor, tick)
}

func TestSelectionClearedOnRoundReset(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	r, _ := env.openRoom(t, gameID, hostID, Callbacks{})

	r.SelectCard("8")
	env.clock.Advance(testDebounce)
	require.Eventually(t, func() bool {
		return voting.HasVoted(r.Votes(), hostID)
	}, waitFor, tick)

	require.NoError(t, env.games.RevealVotes(ctx, gameID))
	require.NoError(t, env.games.ResetVotingRound(ctx, gameID))

	require.Eventually(t, func() bool {
		_, selected := r.Selection()
		return !selected && len(r.Votes()) == 0
	}, waitFor, tick)
}

func TestEvictionClearsIdentity(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, _, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)
	bobID, err := env.games.JoinSession(ctx, gameID, "Bob", false)
	require.NoError(t, err)

	var mu sync.Mutex
	evicted := false
	r, identityStore := env.openRoom(t, gameID, bobID, Callbacks{
		OnEvicted: func() {
			mu.Lock()
			evicted = true
			mu.Unlock()
		},
	})

	require.NoError(t, env.games.RemoveParticipant(ctx, gameID, bobID))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return evicted
	}, waitFor, tick)

	id, err := identityStore.Load()
	require.NoError(t, err)
	assert.True(t, id.IsZero())

	// The membership snapshot still converges after eviction.
	require.Eventually(t, func() bool {
		return len(r.Participants()) == 1
	}, waitFor, tick)
}

func TestNoEvictionOnEmptyMembershipSnapshot(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	var mu sync.Mutex
	evicted := false
	_, identityStore := env.openRoom(t, gameID, hostID, Callbacks{
		OnEvicted: func() {
			mu.Lock()
			evicted = true
			mu.Unlock()
		},
	})

	// Degraded or empty reads must not count as removal.
	require.NoError(t, env.games.LeaveSession(ctx, gameID, hostID))

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	assert.False(t, evicted)
	mu.Unlock()

	id, err := identityStore.Load()
	require.NoError(t, err)
	assert.False(t, id.IsZero())
}

func TestHostAutoSelectsNextIssue(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	r, _ := env.openRoom(t, gameID, hostID, Callbacks{})

	issueID, err := env.issues.AddIssue(ctx, gameID, "Login page", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		session := r.Session()
		return session != nil && session.CurrentIssue == issueID
	}, waitFor, tick)
}

func TestNonHostNeverAutoSelects(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, _, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)
	bobID, err := env.games.JoinSession(ctx, gameID, "Bob", false)
	require.NoError(t, err)

	r, _ := env.openRoom(t, gameID, bobID, Callbacks{})

	_, err = env.issues.AddIssue(ctx, gameID, "Login page", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(r.Issues()) == 1
	}, waitFor, tick)

	time.Sleep(200 * time.Millisecond)
	session := r.Session()
	require.NotNil(t, session)
	assert.Empty(t, session.CurrentIssue)
}

func TestHostRepairsEstimatedCurrentIssue(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	firstID, err := env.issues.AddIssue(ctx, gameID, "Login page", "")
	require.NoError(t, err)
	secondID, err := env.issues.AddIssue(ctx, gameID, "Search", "")
	require.NoError(t, err)
	require.NoError(t, env.games.SetCurrentIssue(ctx, gameID, firstID))

	r, _ := env.openRoom(t, gameID, hostID, Callbacks{})

	// Estimating the active issue elsewhere leaves a dangling selection;
	// the repair pass clears it and auto-advance picks the next one.
	require.NoError(t, env.issues.MarkIssueEstimated(ctx, gameID, firstID, "8"))

	require.Eventually(t, func() bool {
		session := r.Session()
		return session != nil && session.CurrentIssue == secondID
	}, waitFor, tick)
}

func TestHostRepairsDeletedCurrentIssue(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	firstID, err := env.issues.AddIssue(ctx, gameID, "Login page", "")
	require.NoError(t, err)
	secondID, err := env.issues.AddIssue(ctx, gameID, "Search", "")
	require.NoError(t, err)
	require.NoError(t, env.issues.MarkIssueEstimated(ctx, gameID, secondID, "5"))
	require.NoError(t, env.games.SetCurrentIssue(ctx, gameID, firstID))

	r, _ := env.openRoom(t, gameID, hostID, Callbacks{})

	require.NoError(t, env.issues.DeleteIssue(ctx, gameID, firstID))

	// The surviving issue is estimated, so the selection just clears.
	require.Eventually(t, func() bool {
		session := r.Session()
		return session != nil && session.CurrentIssue == ""
	}, waitFor, tick)
}

func TestReactionsDeliveredOnce(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)
	bobID, err := env.games.JoinSession(ctx, gameID, "Bob", false)
	require.NoError(t, err)

	var mu sync.Mutex
	var delivered []domain.EmojiThrow
	r, _ := env.openRoom(t, gameID, hostID, Callbacks{
		OnReactions: func(throws []domain.EmojiThrow) {
			mu.Lock()
			delivered = append(delivered, throws...)
			mu.Unlock()
		},
	})

	require.NoError(t, r.Throw(ctx, bobID, "🎉"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, waitFor, tick)

	// A vote change republishes nothing on the reactions channel and the
	// same throw never comes through twice.
	env.clock.Advance(time.Second)
	require.NoError(t, r.Throw(ctx, bobID, "🔥"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 2
	}, waitFor, tick)

	mu.Lock()
	assert.Equal(t, "🎉", delivered[0].Emoji)
	assert.Equal(t, "🔥", delivered[1].Emoji)
	mu.Unlock()
}

func TestLeave(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)
	bobID, err := env.games.JoinSession(ctx, gameID, "Bob", false)
	require.NoError(t, err)

	r, identityStore := env.openRoom(t, gameID, bobID, Callbacks{})

	require.NoError(t, r.Leave(ctx))

	id, err := identityStore.Load()
	require.NoError(t, err)
	assert.True(t, id.IsZero())

	participants, err := env.games.Participants(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, hostID, participants[0].ID)
}

func TestClose_Idempotent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	gameID, hostID, err := env.games.CreateSession(ctx, "Alice", false)
	require.NoError(t, err)

	r, _ := env.openRoom(t, gameID, hostID, Callbacks{})
	r.Close()
	r.Close()
}
