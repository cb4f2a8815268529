// Package main provides the srpctl CLI tool for srpgate accounts.
//
// srpctl registers SRP verifiers, logs in with SRP-6a and manages the
// account's email MFA setting. Passwords never leave the machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fzdarsky/srpgate/internal/cli/commands"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	g := commands.DefaultGlobals()

	// Parse global flags and extract command
	args, command := parseGlobalFlags(g, os.Args[1:])

	switch command {
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("srpctl version %s\n", version)
		os.Exit(0)
	}

	var cmd commands.Command
	switch command {
	case "register":
		cmd = commands.NewRegisterCommand(g)
	case "login":
		cmd = commands.NewLoginCommand(g)
	case "attributes":
		cmd = commands.NewAttributesCommand(g)
	case "mfa":
		cmd = commands.NewMFACommand(g)
	case "logout":
		cmd = commands.NewLogoutCommand(g)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.Execute(ctx, cmd, args)
}

// parseGlobalFlags processes global flags and returns remaining args and the command.
// Global flags like --assumeyes can appear anywhere in the argument list.
// Examples:
//
//	srpctl -y login --host localhost        (before command)
//	srpctl login -y --host localhost        (after command)
//	srpctl login --host localhost -y        (at the end)
func parseGlobalFlags(g *commands.Globals, args []string) ([]string, string) {
	remainingArgs := make([]string, 0, len(args))
	var command string

	for _, arg := range args {
		if arg == "--assumeyes" || arg == "-y" {
			g.AssumeYes = true
			continue
		}

		// First non-flag argument is the command
		if command == "" && !isFlag(arg) {
			command = arg
			continue
		}

		remainingArgs = append(remainingArgs, arg)
	}

	return remainingArgs, command
}

// isFlag returns true if the argument looks like a flag (starts with -).
func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `srpctl - CLI tool for srpgate SRP accounts

Usage:
  srpctl <command> [flags]

Available Commands:
  register     Register a new account, or change the password with --rotate
  login        Authenticate with SRP-6a and save the session token
  attributes   Show the public SRP attributes of an account
  mfa          Enable or disable email MFA
  logout       Revoke and delete the saved session token

Global Flags:
  --help, -h        Show help information
  --version, -v     Show version information
  --assumeyes, -y   Automatically answer 'yes' to prompts (non-interactive mode)

Examples:
  # Create an account
  srpctl register --host auth.example.com --user alice

  # Log in, trusting the server certificate without asking
  srpctl login -y --host auth.example.com --user alice

  # Turn on email codes
  srpctl mfa enable

For detailed help on a specific command, run:
  srpctl <command> --help

`)
}
