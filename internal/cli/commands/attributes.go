package commands

import (
	"context"
	"errors"

	"github.com/fzdarsky/srpgate/internal/cli/output"
)

// AttributesCommand prints the public SRP attributes of an account.
type AttributesCommand struct {
	g *Globals
}

// NewAttributesCommand creates a new attributes command instance.
func NewAttributesCommand(g *Globals) *AttributesCommand {
	return &AttributesCommand{g: g}
}

const attributesUsage = `Usage: srpctl attributes [flags]

Print the public SRP attributes (salts, KDF costs, MFA flag) of an account.
Defaults to the logged-in account.
`

// Run implements Command.
func (c *AttributesCommand) Run(ctx context.Context, args []string) error {
	fs := c.g.newFlagSet("attributes", attributesUsage)
	cf := addConnFlags(fs)
	user := fs.String("user", "", "srpUserID to query (default: logged-in account)")
	outputFormat := fs.String("output", "yaml", "Output format (yaml or json)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format, err := output.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}

	e, err := c.g.connect(cf)
	if err != nil {
		return err
	}

	identity := *user
	if identity == "" {
		sess, err := e.resume()
		if err != nil {
			return errors.New("no --user given and not logged in")
		}
		identity = sess.Identity
	}

	attrs, err := e.client.GetAttributes(ctx, identity)
	if err != nil {
		return err
	}
	return output.Print(c.g.Stdout, attrs, format)
}
