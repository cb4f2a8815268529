package commands

import (
	"context"
	"errors"
	"fmt"
)

// LoginCommand authenticates with SRP and stores the session token.
type LoginCommand struct {
	g *Globals
}

// NewLoginCommand creates a new login command instance.
func NewLoginCommand(g *Globals) *LoginCommand {
	return &LoginCommand{g: g}
}

const loginUsage = `Usage: srpctl login [flags]

Authenticate with the srpgate server using SRP-6a. The session token is
stored for subsequent commands. Accounts with email MFA enabled are asked
for the emailed code.

Examples:
  srpctl login --host auth.example.com --user alice

  # Non-interactive (for CI/CD)
  srpctl login -y --host auth.example.com --user alice --password secret
`

// Run implements Command.
func (c *LoginCommand) Run(ctx context.Context, args []string) error {
	fs := c.g.newFlagSet("login", loginUsage)
	cf := addConnFlags(fs)
	user := fs.String("user", "", "srpUserID to log in as")
	password := fs.String("password", "", "Password (prompts if not provided)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := c.g.connect(cf)
	if err != nil {
		return err
	}

	identity := *user
	if identity == "" {
		if identity, err = c.g.promptLine("srpUserID"); err != nil {
			return err
		}
	}
	if identity == "" {
		return errors.New("srpUserID must not be empty")
	}

	pw, err := c.g.password(*password, false)
	if err != nil {
		return err
	}
	defer wipe(pw)

	fmt.Fprintf(c.g.Stderr, "Authenticating with %s...\n", e.cfg.Address())
	res, err := e.client.Login(ctx, e.group, identity, pw, func(context.Context) (string, error) {
		fmt.Fprintf(c.g.Stderr, "A one-time code was sent to the account's email address.\n")
		return c.g.promptLine("Code")
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := e.store.Save(e.cfg.Address(), res.Identity, res.Token); err != nil {
		return err
	}
	if err := e.cfg.Save(); err != nil {
		fmt.Fprintf(c.g.Stderr, "Warning: failed to save connection config: %v\n", err)
	}

	fmt.Fprintf(c.g.Stderr, "Authentication successful. Session token saved.\n")
	return nil
}
