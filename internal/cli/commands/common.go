// Package commands provides CLI command implementations for srpctl.
package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/fzdarsky/srpgate/internal/cli/client"
	"github.com/fzdarsky/srpgate/internal/cli/config"
	"github.com/fzdarsky/srpgate/internal/cli/session"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

// Globals carries process-wide flags and streams into every command.
type Globals struct {
	AssumeYes bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	lines *bufio.Reader
}

// DefaultGlobals uses the process streams.
func DefaultGlobals() *Globals {
	return &Globals{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Command is one srpctl sub-command.
type Command interface {
	Run(ctx context.Context, args []string) error
}

// Execute runs cmd and exits the process on failure.
func Execute(ctx context.Context, cmd Command, args []string) {
	if err := cmd.Run(ctx, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		exitWithError("%v", err)
	}
}

// connFlags are the server connection flags shared by all commands.
type connFlags struct {
	host   *string
	port   *int
	caCert *string
}

func addConnFlags(fs *flag.FlagSet) connFlags {
	return connFlags{
		host:   fs.String("host", "", "srpgate server hostname or IP"),
		port:   fs.Int("port", 0, "srpgate server port"),
		caCert: fs.String("ca-cert", "", "Path to custom CA certificate bundle"),
	}
}

// env bundles what a command needs to talk to one server.
type env struct {
	cfg    *config.Config
	client *client.Client
	group  *srp.Group
	store  *session.Store
}

func (g *Globals) connect(cf connFlags) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyFlags(*cf.host, *cf.port, *cf.caCert)
	cfg.AssumeYes = g.AssumeYes

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RequireHost(); err != nil {
		return nil, err
	}

	group, err := srp.LookupGroup(cfg.Group, cfg.Hash)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	store, err := session.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to access session store: %w", err)
	}

	return &env{cfg: cfg, client: apiClient, group: group, store: store}, nil
}

// resume loads the saved session for the server into the client.
func (e *env) resume() (*session.Session, error) {
	sess, err := e.store.Load(e.cfg.Address())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New("not logged in. Run 'srpctl login' first")
	}
	e.client.SetSessionToken(sess.Token)
	return sess, nil
}

func (g *Globals) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	fs.Usage = func() {
		fmt.Fprint(g.Stderr, usage)
		fmt.Fprintf(g.Stderr, "\nFlags:\n")
		fs.PrintDefaults()
	}
	return fs
}

func (g *Globals) promptLine(label string) (string, error) {
	fmt.Fprintf(g.Stderr, "%s: ", label)
	// One buffered reader for all prompts, or read-ahead would be lost.
	if g.lines == nil {
		g.lines = bufio.NewReader(g.Stdin)
	}
	line, err := g.lines.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal.
func (g *Globals) promptPassword(label string) ([]byte, error) {
	if f, ok := g.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(g.Stderr, "%s: ", label)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(g.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		return pw, nil
	}

	line, err := g.promptLine(label)
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// password returns the flag value or prompts; confirm asks twice.
func (g *Globals) password(flagValue string, confirm bool) ([]byte, error) {
	if flagValue != "" {
		return []byte(flagValue), nil
	}

	pw, err := g.promptPassword("Password")
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, errors.New("password must not be empty")
	}
	if confirm {
		again, err := g.promptPassword("Confirm password")
		if err != nil {
			return nil, err
		}
		if string(again) != string(pw) {
			return nil, errors.New("passwords do not match")
		}
	}
	return pw, nil
}

// exitWithError prints an error message to stderr and exits with status 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
