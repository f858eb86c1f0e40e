package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/mrlokans/libris/internal/session"
)

type ProgressCommand struct {
	env      *Env
	BookID   string
	Progress int
	Position string
}

func NewProgressCommand(env *Env) *ProgressCommand {
	return &ProgressCommand{env: env}
}

func (cmd *ProgressCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	fs.StringVar(&cmd.BookID, "book", "", "Book id (required)")
	fs.IntVar(&cmd.Progress, "progress", -1, "Progress in percent, 0-100 (required)")
	fs.StringVar(&cmd.Position, "position", "", "Last read position (default: the chapter at that progress)")
	fs.Usage = usage(fs, "progress -book ID -progress N [-position TEXT]", "Record how far you have read.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.BookID == "" || cmd.Progress < 0 {
		fs.Usage()
		return fmt.Errorf("book and progress are required")
	}
	return nil
}

func (cmd *ProgressCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.ReadBook(ctx, cmd.BookID, cmd.Progress, cmd.Position); err != nil {
		return err
	}

	r := lib.Session.Snapshot().Identity.CurrentlyReading
	if r != nil && r.Sync == session.SyncFailed {
		cmd.env.printf("Progress saved locally, but the service did not accept it. Try again later.\n")
		return nil
	}
	cmd.env.printf("Progress saved: %d%%", cmd.Progress)
	if r != nil && r.BookID == cmd.BookID && r.Position != "" {
		cmd.env.printf(" (%s)", r.Position)
	}
	cmd.env.printf("\n")
	return nil
}

// NotificationsCommand lists notifications or marks one read:
//
//	notifications [list] [-unread]
//	notifications read ID
type NotificationsCommand struct {
	env        *Env
	Action     string
	ID         string
	UnreadOnly bool
}

func NewNotificationsCommand(env *Env) *NotificationsCommand {
	return &NotificationsCommand{env: env}
}

func (cmd *NotificationsCommand) ParseFlags(args []string) error {
	cmd.Action, args = firstArg(args)
	if cmd.Action == "" {
		cmd.Action = "list"
	}

	fs := flag.NewFlagSet("notifications "+cmd.Action, flag.ExitOnError)
	switch cmd.Action {
	case "list":
		fs.BoolVar(&cmd.UnreadOnly, "unread", false, "Only unread notifications")
		return fs.Parse(args)
	case "read":
		cmd.ID, args = firstArg(args)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if cmd.ID == "" {
			return fmt.Errorf("notification id is required")
		}
		return nil
	}
	return fmt.Errorf("unknown notifications action %q (want list or read)", cmd.Action)
}

func (cmd *NotificationsCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	snap := lib.Session.Snapshot()
	if !snap.SignedIn() {
		return session.ErrNotSignedIn
	}

	if cmd.Action == "read" {
		if err := lib.Session.MarkNotificationRead(ctx, cmd.ID); err != nil {
			return err
		}
		for _, n := range lib.Session.Snapshot().Notifications {
			if n.ID == cmd.ID && n.Sync == session.SyncFailed {
				cmd.env.printf("Marked read locally, but the service did not accept it. Try again later.\n")
				return nil
			}
		}
		cmd.env.printf("Marked read.\n")
		return nil
	}

	shown := 0
	for _, n := range snap.Notifications {
		if cmd.UnreadOnly && n.IsRead {
			continue
		}
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		cmd.env.printf("%s %s  %s  [%s] %s\n", marker, n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Type, n.Title)
		if n.Message != "" {
			cmd.env.printf("    %s\n", n.Message)
		}
		shown++
	}
	cmd.env.printf("%d notification(s), %d unread\n", shown, snap.Unread())
	return nil
}
