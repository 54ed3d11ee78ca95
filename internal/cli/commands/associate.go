package commands

import (
	"context"
	"fmt"

	"KeeBridge/internal/config"
)

type associateCmd struct{}

func (associateCmd) Name() string           { return "associate" }
func (associateCmd) Description() string    { return "Register a new key with the server and store it" }
func (associateCmd) Usage() string          { return "associate [id]" }
func (associateCmd) NeedsAssociation() bool { return false }

func (associateCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return ErrUsage
	}
	var id string
	if len(args) == 1 {
		id = args[0]
	}
	a, err := newSession(cfg).Associate(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Associated as %s\n", a.ID)
	return nil
}

type testAssociateCmd struct{}

func (testAssociateCmd) Name() string { return "test-associate" }
func (testAssociateCmd) Description() string {
	return "Check that the stored association is still accepted"
}
func (testAssociateCmd) Usage() string          { return "test-associate" }
func (testAssociateCmd) NeedsAssociation() bool { return true }

func (testAssociateCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	if err := newSession(cfg).TestAssociate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Association OK")
	return nil
}

func init() {
	RegisterCmd(associateCmd{})
	RegisterCmd(testAssociateCmd{})
}
