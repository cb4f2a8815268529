package commands

import (
	"context"
	"fmt"

	"github.com/fzdarsky/srpgate/internal/cli/client"
)

// LogoutCommand revokes and forgets the saved session.
type LogoutCommand struct {
	g *Globals
}

// NewLogoutCommand creates a new logout command instance.
func NewLogoutCommand(g *Globals) *LogoutCommand {
	return &LogoutCommand{g: g}
}

const logoutUsage = `Usage: srpctl logout [flags]

Revoke the saved session token on the server and delete it locally.
`

// Run implements Command.
func (c *LogoutCommand) Run(ctx context.Context, args []string) error {
	fs := c.g.newFlagSet("logout", logoutUsage)
	cf := addConnFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := c.g.connect(cf)
	if err != nil {
		return err
	}
	if _, err := e.resume(); err != nil {
		return err
	}

	// An already invalid token only needs the local cleanup.
	if err := e.client.Logout(ctx); err != nil && !client.IsAuthError(err) {
		return err
	}
	if err := e.store.Delete(e.cfg.Address()); err != nil {
		return err
	}

	fmt.Fprintf(c.g.Stderr, "Logged out.\n")
	return nil
}
