package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sajid-al-islam/plannig-poker/internal/config"
	"github.com/Sajid-al-islam/plannig-poker/internal/container"
	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
	"github.com/Sajid-al-islam/plannig-poker/internal/identity"
	"github.com/Sajid-al-islam/plannig-poker/internal/issues"
	"github.com/Sajid-al-islam/plannig-poker/internal/room"
	"github.com/Sajid-al-islam/plannig-poker/pkg/logger"
)

const opTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	app, err := container.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}
	defer app.Close()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cmdErr error
	switch os.Args[1] {
	case "create":
		cmdErr = cmdCreate(app, os.Args[2:])
	case "join":
		cmdErr = cmdJoin(app, os.Args[2:])
	case "watch":
		cmdErr = cmdWatch(app)
	case "export":
		cmdErr = cmdExport(app, os.Args[2:])
	case "import":
		cmdErr = cmdImport(app, os.Args[2:])
	case "leave":
		cmdErr = cmdLeave(app)
	default:
		usage()
		os.Exit(2)
	}

	if cmdErr != nil {
		fmt.Fprintln(os.Stderr, "error:", cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: poker <command> [flags]

commands:
  create  -name <host name> [-spectator]     create a game and host it
  join    -game <id> -name <name> [-spectator]  join an existing game
  watch                                      re-attach with the stored identity
  export  -game <id>                         print the issue backlog as CSV
  import  -game <id>                         add issues from CSV on stdin
  leave                                      leave the current game`)
}

func cmdCreate(app *container.Container, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "host name")
	spectator := fs.Bool("spectator", false, "join as spectator")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	gameID, participantID, err := app.Games.CreateSession(ctx, *name, *spectator)
	if err != nil {
		return err
	}
	if err := app.Identity.Save(identity.Identity{GameID: gameID, ParticipantID: participantID}); err != nil {
		return err
	}

	fmt.Printf("game created: %s\nshare link: /game/%s\n", gameID, gameID)
	return watch(app, gameID, participantID)
}

func cmdJoin(app *container.Container, args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	gameID := fs.String("game", "", "game id")
	name := fs.String("name", "", "participant name")
	spectator := fs.Bool("spectator", false, "join as spectator")
	fs.Parse(args)
	if *gameID == "" || *name == "" {
		return fmt.Errorf("-game and -name are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	participantID, err := app.Games.JoinSession(ctx, *gameID, *name, *spectator)
	if err != nil {
		return err
	}
	if err := app.Identity.Save(identity.Identity{GameID: *gameID, ParticipantID: participantID}); err != nil {
		return err
	}

	fmt.Printf("joined game %s\n", *gameID)
	return watch(app, *gameID, participantID)
}

func cmdWatch(app *container.Container) error {
	id, err := app.Identity.Load()
	if err != nil {
		return err
	}
	if id.IsZero() {
		return fmt.Errorf("no stored identity; create or join a game first")
	}
	return watch(app, id.GameID, id.ParticipantID)
}

func cmdLeave(app *container.Container) error {
	id, err := app.Identity.Load()
	if err != nil {
		return err
	}
	if id.IsZero() {
		return fmt.Errorf("no stored identity")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := app.Games.LeaveSession(ctx, id.GameID, id.ParticipantID); err != nil {
		return err
	}
	if err := app.Identity.Clear(); err != nil {
		return err
	}
	fmt.Println("left game", id.GameID)
	return nil
}

func cmdExport(app *container.Container, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	gameID := fs.String("game", "", "game id")
	fs.Parse(args)
	if *gameID == "" {
		return fmt.Errorf("-game is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	backlog, err := app.Issues.Issues(ctx, *gameID)
	if err != nil {
		return err
	}
	fmt.Println(issues.ExportCSV(backlog))
	return nil
}

func cmdImport(app *container.Container, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	gameID := fs.String("game", "", "game id")
	fs.Parse(args)
	if *gameID == "" {
		return fmt.Errorf("-game is required")
	}

	csvText, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	count, err := app.Issues.ImportCSV(ctx, *gameID, string(csvText))
	fmt.Printf("imported %d issues\n", count)
	return err
}

// watch attaches the synchronization shell and prints the game as it
// changes until interrupted. Interrupting detaches without leaving.
func watch(app *container.Container, gameID, participantID string) error {
	evicted := make(chan struct{}, 1)

	r := app.NewRoom(gameID, participantID, room.Callbacks{
		OnSession: func(session *domain.GameSession) {
			if session == nil {
				fmt.Println("session unavailable")
				return
			}
			state := "voting"
			if session.VotesRevealed {
				state = "revealed"
			}
			fmt.Printf("[session] %s (%s)\n", session.Name, state)
		},
		OnParticipants: func(participants []domain.Participant) {
			fmt.Printf("[participants] %d in game\n", len(participants))
		},
		OnVotes: func(votes []domain.Vote) {
			fmt.Printf("[votes] %d submitted\n", len(votes))
		},
		OnIssues: func(backlog []domain.Issue) {
			remaining := 0
			for _, issue := range backlog {
				if !issue.IsEstimated {
					remaining++
				}
			}
			fmt.Printf("[issues] %d total, %d to estimate\n", len(backlog), remaining)
		},
		OnReactions: func(throws []domain.EmojiThrow) {
			for _, throw := range throws {
				fmt.Printf("[emoji] %s thrown\n", throw.Emoji)
			}
		},
		OnEvicted: func() {
			evicted <- struct{}{}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Open(ctx)
	defer r.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		fmt.Println("\ndetaching")
		return nil
	case <-evicted:
		return fmt.Errorf("removed from game; join again to continue")
	}
}
