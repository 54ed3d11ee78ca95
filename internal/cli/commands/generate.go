package commands

import (
	"context"
	"fmt"

	"KeeBridge/internal/config"
)

type generateCmd struct{}

func (generateCmd) Name() string           { return "generate" }
func (generateCmd) Description() string    { return "Generate a password on the server" }
func (generateCmd) Usage() string          { return "generate" }
func (generateCmd) NeedsAssociation() bool { return true }

func (generateCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	password, bits, err := newSession(cfg).Generate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "%s\n(%d bits)\n", password, bits)
	return nil
}

func init() { RegisterCmd(generateCmd{}) }
