package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fzdarsky/srpgate/pkg/kdf"
)

// RegisterCommand creates a new account, or rotates the password of the
// logged-in account with --rotate.
type RegisterCommand struct {
	g *Globals
}

// NewRegisterCommand creates a new register command instance.
func NewRegisterCommand(g *Globals) *RegisterCommand {
	return &RegisterCommand{g: g}
}

const registerUsage = `Usage: srpctl register [flags]

Register an SRP verifier with the srpgate server. The password never leaves
this machine: it is stretched with argon2id and only the derived verifier
is uploaded.

With --rotate the verifier of the logged-in account is replaced.

Examples:
  # New account with a generated srpUserID
  srpctl register --host auth.example.com

  # New account with a chosen srpUserID
  srpctl register --host auth.example.com --user alice

  # Change the password of the current account
  srpctl register --rotate
`

// Run implements Command.
func (c *RegisterCommand) Run(ctx context.Context, args []string) error {
	fs := c.g.newFlagSet("register", registerUsage)
	cf := addConnFlags(fs)
	user := fs.String("user", "", "srpUserID to register (default: a new UUID)")
	password := fs.String("password", "", "Password (prompts if not provided)")
	rotate := fs.Bool("rotate", false, "Replace the verifier of the logged-in account")
	strength := fs.String("kdf", "moderate", "Key derivation cost: interactive, moderate or sensitive")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params, err := parseKDF(*strength)
	if err != nil {
		return err
	}

	e, err := c.g.connect(cf)
	if err != nil {
		return err
	}

	identity := *user
	if *rotate {
		sess, err := e.resume()
		if err != nil {
			return err
		}
		if identity != "" && identity != sess.Identity {
			return fmt.Errorf("logged in as %s, cannot rotate %s", sess.Identity, identity)
		}
		identity = sess.Identity
	} else if identity == "" {
		identity = uuid.NewString()
	}

	pw, err := c.g.password(*password, true)
	if err != nil {
		return err
	}
	defer wipe(pw)

	fmt.Fprintf(c.g.Stderr, "Deriving keys and registering %s with %s...\n", identity, e.cfg.Address())
	if err := e.client.SetupVerifier(ctx, e.group, identity, pw, params); err != nil {
		return err
	}

	if *rotate {
		fmt.Fprintf(c.g.Stderr, "Password changed. Existing sessions stay valid until they expire.\n")
	} else {
		fmt.Fprintf(c.g.Stderr, "Registered.\n")
		if err := e.cfg.Save(); err != nil {
			fmt.Fprintf(c.g.Stderr, "Warning: failed to save connection config: %v\n", err)
		}
	}
	fmt.Fprintln(c.g.Stdout, identity)
	return nil
}

var kdfPresets = map[string]kdf.Params{
	"interactive": kdf.Interactive,
	"moderate":    kdf.Moderate,
	"sensitive":   kdf.Sensitive,
}

func parseKDF(name string) (kdf.Params, error) {
	p, ok := kdfPresets[name]
	if !ok {
		return kdf.Params{}, fmt.Errorf("unknown kdf strength %q", name)
	}
	return p, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
