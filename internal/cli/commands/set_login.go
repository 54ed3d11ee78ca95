package commands

import (
	"context"
	"fmt"

	"KeeBridge/internal/config"
)

type setLoginCmd struct{}

func (setLoginCmd) Name() string { return "set-login" }
func (setLoginCmd) Description() string {
	return "Create or update a login for a URL (- prompts for the password)"
}
func (setLoginCmd) Usage() string          { return "set-login <url> <login> <password|-> [uuid]" }
func (setLoginCmd) NeedsAssociation() bool { return true }

func (setLoginCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return ErrUsage
	}
	password := args[2]
	if password == "-" {
		p, err := readPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = p
	}
	var uuid string
	if len(args) == 4 {
		uuid = args[3]
	}
	if err := newSession(cfg).SetLogin(ctx, args[0], args[1], password, uuid); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Login saved")
	return nil
}

func init() { RegisterCmd(setLoginCmd{}) }
