package commands

import (
	"context"
	"fmt"
	"sort"

	"KeeBridge/internal/cli/service"
	"KeeBridge/internal/config"
)

type loginsCmd struct{}

func (loginsCmd) Name() string           { return "logins" }
func (loginsCmd) Description() string    { return "Show logins matching a URL" }
func (loginsCmd) Usage() string          { return "logins <url> [submitUrl] [realm]" }
func (loginsCmd) NeedsAssociation() bool { return true }

func (loginsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return ErrUsage
	}
	args = append(args, "", "")
	logins, err := newSession(cfg).GetLogins(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if len(logins) == 0 {
		fmt.Fprintln(Out, "No logins found")
		return nil
	}
	printLogins(logins, true)
	return nil
}

type countCmd struct{}

func (countCmd) Name() string           { return "count" }
func (countCmd) Description() string    { return "Count logins matching a URL" }
func (countCmd) Usage() string          { return "count <url> [submitUrl]" }
func (countCmd) NeedsAssociation() bool { return true }

func (countCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}
	args = append(args, "")
	n, err := newSession(cfg).Count(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, n)
	return nil
}

type allLoginsCmd struct{}

func (allLoginsCmd) Name() string           { return "all-logins" }
func (allLoginsCmd) Description() string    { return "List all entries without passwords" }
func (allLoginsCmd) Usage() string          { return "all-logins" }
func (allLoginsCmd) NeedsAssociation() bool { return true }

func (allLoginsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	logins, err := newSession(cfg).AllLogins(ctx)
	if err != nil {
		return err
	}
	printLogins(logins, false)
	return nil
}

func printLogins(logins []service.Login, withPassword bool) {
	for _, l := range logins {
		if withPassword {
			fmt.Fprintf(Out, "%s\t%s\t%s\t%s\n", l.UUID, l.Name, l.Login, l.Password)
		} else {
			fmt.Fprintf(Out, "%s\t%s\t%s\n", l.UUID, l.Name, l.Login)
		}
		keys := make([]string, 0, len(l.StringFields))
		for k := range l.StringFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(Out, "  %s: %s\n", k, l.StringFields[k])
		}
	}
}

func init() {
	RegisterCmd(loginsCmd{})
	RegisterCmd(countCmd{})
	RegisterCmd(allLoginsCmd{})
}
