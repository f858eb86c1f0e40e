package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/libris/internal/authflow"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/library"
	"github.com/mrlokans/libris/internal/session"
)

func usage(fs *flag.FlagSet, synopsis, description string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s\n\n%s\n\nOptions:\n", os.Args[0], synopsis, description)
		fs.PrintDefaults()
	}
}

type SignUpCommand struct {
	env      *Env
	Name     string
	Email    string
	NoVerify bool
}

func NewSignUpCommand(env *Env) *SignUpCommand {
	return &SignUpCommand{env: env}
}

func (cmd *SignUpCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	fs.StringVar(&cmd.Name, "name", "", "Display name (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.BoolVar(&cmd.NoVerify, "no-verify", false, "Skip entering the verification code now")
	fs.Usage = usage(fs, "signup -name NAME -email EMAIL", "Create an account and verify its email address.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Name == "" || cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("name and email are required")
	}
	return nil
}

func (cmd *SignUpCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	password, confirm, err := cmd.env.newPassword()
	if err != nil {
		return err
	}
	if password != confirm {
		return authflow.ErrPasswordMismatch
	}

	flow, err := lib.SignUp(ctx, cmd.Name, cmd.Email, password)
	if flow == nil {
		return err
	}
	printIdentity(cmd.env, lib.Session.Snapshot())
	if err != nil {
		cmd.env.printf("The verification code could not be sent: %v\nRun 'verify' to try again.\n", err)
		return nil
	}
	if cmd.NoVerify {
		cmd.env.printf("A verification code was sent to %s. Run 'verify' to enter it.\n", flow.Email())
		return nil
	}

	if err := cmd.env.enterCode(ctx, flow, flow.Email(), entities.PasscodeVerification); err != nil {
		return err
	}
	cmd.env.printf("Email address confirmed.\n")
	return nil
}

type VerifyCommand struct {
	env   *Env
	Email string
}

func NewVerifyCommand(env *Env) *VerifyCommand {
	return &VerifyCommand{env: env}
}

func (cmd *VerifyCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fs.StringVar(&cmd.Email, "email", "", "Email address (default: the signed-in account)")
	fs.Usage = usage(fs, "verify [-email EMAIL]", "Send a verification code and confirm the email address.")
	return fs.Parse(args)
}

func (cmd *VerifyCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	email := cmd.Email
	if email == "" {
		snap := lib.Session.Snapshot()
		if !snap.SignedIn() {
			return fmt.Errorf("-email is required when not signed in")
		}
		if snap.Identity.EmailConfirmed {
			cmd.env.printf("%s is already confirmed.\n", snap.Identity.Email)
			return nil
		}
		email = snap.Identity.Email
	}

	flow, err := lib.BeginVerification(ctx, email)
	if err != nil {
		return err
	}
	if err := cmd.env.enterCode(ctx, flow, flow.Email(), entities.PasscodeVerification); err != nil {
		return err
	}
	cmd.env.printf("Email address confirmed.\n")
	return nil
}

type SignInCommand struct {
	env   *Env
	Email string
}

func NewSignInCommand(env *Env) *SignInCommand {
	return &SignInCommand{env: env}
}

func (cmd *SignInCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("signin", flag.ExitOnError)
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.Usage = usage(fs, "signin -email EMAIL", "Sign in. The session is kept for later commands.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("email is required")
	}
	return nil
}

func (cmd *SignInCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	password, err := cmd.env.Password("Password: ")
	if err != nil {
		return err
	}
	if err := lib.Session.SignIn(ctx, cmd.Email, password); err != nil {
		return err
	}
	printIdentity(cmd.env, lib.Session.Snapshot())
	return nil
}

type SignOutCommand struct {
	env *Env
}

func NewSignOutCommand(env *Env) *SignOutCommand {
	return &SignOutCommand{env: env}
}

func (cmd *SignOutCommand) ParseFlags(args []string) error {
	return flag.NewFlagSet("signout", flag.ExitOnError).Parse(args)
}

func (cmd *SignOutCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	lib.Session.SignOut(ctx)
	cmd.env.printf("Signed out.\n")
	return nil
}

type WhoAmICommand struct {
	env *Env
}

func NewWhoAmICommand(env *Env) *WhoAmICommand {
	return &WhoAmICommand{env: env}
}

func (cmd *WhoAmICommand) ParseFlags(args []string) error {
	return flag.NewFlagSet("whoami", flag.ExitOnError).Parse(args)
}

func (cmd *WhoAmICommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	snap := lib.Session.Snapshot()
	if !snap.SignedIn() {
		cmd.env.printf("Not signed in.\n")
		return nil
	}
	printIdentity(cmd.env, snap)
	printReading(cmd.env, lib, snap.Identity)
	return nil
}

type ResetPasswordCommand struct {
	env   *Env
	Email string
}

func NewResetPasswordCommand(env *Env) *ResetPasswordCommand {
	return &ResetPasswordCommand{env: env}
}

func (cmd *ResetPasswordCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	fs.StringVar(&cmd.Email, "email", "", "Email address of the account (required)")
	fs.Usage = usage(fs, "reset-password -email EMAIL", "Reset a forgotten password with a code sent by email.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("email is required")
	}
	return nil
}

func (cmd *ResetPasswordCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	flow, err := lib.BeginPasswordReset(ctx, cmd.Email)
	if err != nil {
		return err
	}
	if err := cmd.env.enterCode(ctx, flow, flow.Email(), entities.PasscodeReset); err != nil {
		return err
	}

	password, confirm, err := cmd.env.newPassword()
	if err != nil {
		return err
	}
	if err := flow.SetNewPassword(ctx, flow.Email(), password, confirm); err != nil {
		return err
	}
	cmd.env.printf("Password updated. Sign in with your new password.\n")
	return nil
}

func printIdentity(env *Env, snap session.Snapshot) {
	id := snap.Identity
	if id == nil {
		return
	}
	confirmed := "not confirmed"
	if id.EmailConfirmed {
		confirmed = "confirmed"
	}
	env.printf("Signed in as %s <%s> (%s)\n", id.Name, id.Email, id.Role)
	env.printf("Email %s, member since %s\n", confirmed, id.JoinedDate.Format("2006-01-02"))
	if unread := snap.Unread(); unread > 0 {
		env.printf("%d unread notification(s)\n", unread)
	}
}

func printReading(env *Env, lib *library.Library, id *session.Identity) {
	env.printf("Borrowed: %d, purchased: %d, wishlist: %d\n",
		len(id.BorrowedBooks), len(id.PurchasedBooks), len(id.Wishlist))

	r := id.CurrentlyReading
	if r == nil {
		return
	}
	title := r.BookID
	if book, ok := lib.Catalog.Get(r.BookID); ok {
		title = book.Title
	}
	line := fmt.Sprintf("Reading: %s, %d%%", title, r.Progress)
	if r.Position != "" {
		line += " (" + r.Position + ")"
	}
	env.printf("%s\n", line)
}
