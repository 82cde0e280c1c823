// Package container wires the application dependencies together.
package container

import (
	"github.com/jonboulle/clockwork"

	"github.com/Sajid-al-islam/plannig-poker/internal/config"
	"github.com/Sajid-al-islam/plannig-poker/internal/game"
	"github.com/Sajid-al-islam/plannig-poker/internal/identity"
	"github.com/Sajid-al-islam/plannig-poker/internal/issues"
	"github.com/Sajid-al-islam/plannig-poker/internal/ratelimit"
	"github.com/Sajid-al-islam/plannig-poker/internal/reactions"
	"github.com/Sajid-al-islam/plannig-poker/internal/room"
	"github.com/Sajid-al-islam/plannig-poker/internal/voting"
	"github.com/Sajid-al-islam/plannig-poker/pkg/logger"
	"github.com/Sajid-al-islam/plannig-poker/pkg/store"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *logger.Logger
	Store     *store.Client
	Limiter   *ratelimit.Limiter
	Games     *game.Service
	Votes     *voting.Coordinator
	Issues    *issues.Service
	Reactions *reactions.Service
	Identity  *identity.Store
}

// New creates a new dependency injection container. The rate limiter
// is constructed here, once per client session, and handed to the
// reaction service rather than living as a hidden singleton.
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	storeClient, err := store.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
	if err != nil {
		return nil, err
	}

	identityStore, err := identity.NewStore(cfg.IdentityPath)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	limiter := ratelimit.NewWithClock(clock)

	games := game.NewService(storeClient, log.Logger)
	issueSvc := issues.NewService(storeClient, log.Logger)
	votes := voting.NewCoordinator(storeClient, games, issueSvc, cfg.VoteUpdateDebounce, clock, log.Logger)
	reactionSvc := reactions.NewService(storeClient, limiter,
		cfg.EmojiThrowCooldown, cfg.MaxEmojisPerMinute, cfg.ReactionWindow, log.Logger)

	return &Container{
		Config:    cfg,
		Logger:    log,
		Store:     storeClient,
		Limiter:   limiter,
		Games:     games,
		Votes:     votes,
		Issues:    issueSvc,
		Reactions: reactionSvc,
		Identity:  identityStore,
	}, nil
}

// NewRoom creates the synchronization shell for one joined game
func (c *Container) NewRoom(gameID, participantID string, callbacks room.Callbacks) *room.Room {
	return room.New(gameID, participantID, c.Games, c.Votes, c.Issues, c.Reactions, c.Identity, callbacks, c.Logger.Logger)
}

// Close releases the container's resources
func (c *Container) Close() error {
	c.Votes.Close()
	return c.Store.Close()
}
