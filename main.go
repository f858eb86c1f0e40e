package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrlokans/libris/internal/cli"
	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cfg := config.NewConfig()

	// No arguments or "serve" runs the data service.
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		entrypoint.Run(cfg, Version)
		return
	}

	command := os.Args[1]
	args := os.Args[2:]
	env := cli.NewEnv(cfg)

	var cmd cli.Command
	switch command {
	case "create-admin":
		cmd = cli.NewCreateAdminCommand(cfg, env)
	case "signup":
		cmd = cli.NewSignUpCommand(env)
	case "verify":
		cmd = cli.NewVerifyCommand(env)
	case "signin":
		cmd = cli.NewSignInCommand(env)
	case "signout":
		cmd = cli.NewSignOutCommand(env)
	case "whoami":
		cmd = cli.NewWhoAmICommand(env)
	case "reset-password":
		cmd = cli.NewResetPasswordCommand(env)
	case "books":
		cmd = cli.NewBooksCommand(env)
	case "progress":
		cmd = cli.NewProgressCommand(env)
	case "notifications":
		cmd = cli.NewNotificationsCommand(env)
	case "version":
		fmt.Printf("libris %s (%s)\n", Version, Commit)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Service:\n")
	fmt.Fprintf(os.Stderr, "  serve            Run the data service (default)\n")
	fmt.Fprintf(os.Stderr, "  create-admin     Create an administrator account\n\n")
	fmt.Fprintf(os.Stderr, "Account:\n")
	fmt.Fprintf(os.Stderr, "  signup           Create an account\n")
	fmt.Fprintf(os.Stderr, "  verify           Confirm your email address\n")
	fmt.Fprintf(os.Stderr, "  signin           Sign in\n")
	fmt.Fprintf(os.Stderr, "  signout          Sign out\n")
	fmt.Fprintf(os.Stderr, "  whoami           Show the signed-in account\n")
	fmt.Fprintf(os.Stderr, "  reset-password   Reset a forgotten password\n\n")
	fmt.Fprintf(os.Stderr, "Library:\n")
	fmt.Fprintf(os.Stderr, "  books            List, show, add, update or delete books\n")
	fmt.Fprintf(os.Stderr, "  progress         Record reading progress\n")
	fmt.Fprintf(os.Stderr, "  notifications    List notifications or mark one read\n\n")
	fmt.Fprintf(os.Stderr, "Run '%s <command> -h' for command options.\n", os.Args[0])
}
