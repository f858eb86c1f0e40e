// Package cli implements the libris commands. Client commands talk to the
// data service through the library core; create-admin writes to the
// database directly.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/mrlokans/libris/internal/authflow"
	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/library"
	"github.com/mrlokans/libris/internal/remote"
	"github.com/mrlokans/libris/internal/remote/rest"
	"github.com/mrlokans/libris/internal/tokenstore"
)

// maxCodeAttempts is how many codes a command accepts before giving up.
const maxCodeAttempts = 3

// Command is implemented by every subcommand.
type Command interface {
	ParseFlags(args []string) error
	Run(ctx context.Context) error
}

// Env carries the terminal and the service connection for client commands.
type Env struct {
	Out      io.Writer
	Prompt   func(label string) (string, error)
	Password func(label string) (string, error)
	Connect  func() (remote.Service, error)
	Library  library.Config
}

// NewEnv connects to the configured service and reads from the terminal.
func NewEnv(cfg *config.Config) *Env {
	in := bufio.NewReader(os.Stdin)
	return &Env{
		Out: os.Stdout,
		Prompt: func(label string) (string, error) {
			fmt.Print(label)
			line, err := in.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return "", err
			}
			return strings.TrimSpace(line), nil
		},
		Password: readPassword,
		Connect:  func() (remote.Service, error) { return connect(cfg) },
		Library:  library.ConfigFrom(cfg),
	}
}

func connect(cfg *config.Config) (remote.Service, error) {
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	sessions, err := tokenstore.New(tokenstore.Config{
		Path:          cfg.Remote.SessionFile,
		EncryptionKey: cfg.Remote.SessionKey,
	})
	if err != nil {
		return nil, err
	}
	return rest.New(rest.Config{
		BaseURL:  cfg.Remote.URL,
		APIKey:   cfg.Remote.APIKey,
		Timeout:  cfg.Remote.RequestTimeout,
		Sessions: sessions,
	})
}

var readTerminal = func() ([]byte, error) {
	return term.ReadPassword(int(syscall.Stdin))
}

// readPassword reads a password without echoing it. The input is returned
// as typed, surrounding spaces included.
func readPassword(label string) (string, error) {
	fmt.Print(label)
	b, err := readTerminal()
	if err != nil {
		return "", err
	}
	fmt.Println()
	return string(b), nil
}

// open starts the library. Only an unreachable service is fatal; anything
// else surfaces when the command uses the affected part.
func (e *Env) open(ctx context.Context) (*library.Library, error) {
	svc, err := e.Connect()
	if err != nil {
		return nil, err
	}
	lib := library.New(svc, e.Library)
	if err := lib.Start(ctx); err != nil && errors.Is(err, remote.ErrTransport) {
		lib.Close()
		return nil, err
	}
	return lib, nil
}

func (e *Env) printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format, args...)
}

// newPassword asks for a password twice.
func (e *Env) newPassword() (string, string, error) {
	password, err := e.Password("New password: ")
	if err != nil {
		return "", "", err
	}
	confirm, err := e.Password("Confirm password: ")
	if err != nil {
		return "", "", err
	}
	return password, confirm, nil
}

// enterCode prompts for codes until one verifies or the attempts run out.
func (e *Env) enterCode(ctx context.Context, flow *authflow.Controller, email string, purpose entities.PasscodePurpose) error {
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		var code string
		code, err = e.Prompt(fmt.Sprintf("Enter the %d-digit code sent to %s: ", authflow.CodeLength, email))
		if err != nil {
			return err
		}
		err = flow.VerifyCode(ctx, email, code, purpose)
		if err == nil {
			return nil
		}
		if !errors.Is(err, authflow.ErrInvalidCode) && !errors.Is(err, authflow.ErrIncompleteCode) {
			return err
		}
		e.printf("%v\n", err)
	}
	return err
}

func firstArg(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}
