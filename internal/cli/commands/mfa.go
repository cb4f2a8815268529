package commands

import (
	"context"
	"fmt"
)

// MFACommand enables or disables email MFA for the logged-in account.
type MFACommand struct {
	g *Globals
}

// NewMFACommand creates a new mfa command instance.
func NewMFACommand(g *Globals) *MFACommand {
	return &MFACommand{g: g}
}

const mfaUsage = `Usage: srpctl mfa <enable|disable> [flags]

Turn email one-time codes on or off for the logged-in account.
`

// Run implements Command.
func (c *MFACommand) Run(ctx context.Context, args []string) error {
	fs := c.g.newFlagSet("mfa", mfaUsage)
	cf := addConnFlags(fs)
	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("missing action: enable or disable")
	}

	var enabled bool
	switch args[0] {
	case "enable":
		enabled = true
	case "disable":
	default:
		return fmt.Errorf("unknown action %q: must be enable or disable", args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	e, err := c.g.connect(cf)
	if err != nil {
		return err
	}
	if _, err := e.resume(); err != nil {
		return err
	}

	if err := e.client.SetEmailMFA(ctx, enabled); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(c.g.Stderr, "Email MFA %s.\n", state)
	return nil
}
