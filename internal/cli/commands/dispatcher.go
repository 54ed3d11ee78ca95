package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"KeeBridge/internal/cli/api"
	"KeeBridge/internal/cli/repo/fs"
	"KeeBridge/internal/cli/service"
	"KeeBridge/internal/config"
)

// Dispatch выполняет команду CLI и возвращает код завершения процесса.
// Команды, которым нужна ассоциация, не обращаются к серверу без файла ассоциации.
func Dispatch(ctx context.Context, cfg *config.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(Out, FormatGlobalUsage(cfg))
		return ExitUsage
	}

	name := strings.ToLower(args[0])
	if name == "help" || name == "-h" || name == "--help" {
		return help(cfg, args[1:])
	}

	c, ok := Get(name)
	if !ok {
		fmt.Fprintf(Out, "Unknown command: %s\n\n", name)
		fmt.Fprint(Out, FormatGlobalUsage(cfg))
		return ExitUsage
	}

	if c.NeedsAssociation() {
		if _, err := (fs.AssociationFSStore{Dir: cfg.ClientStateDir}).Load(); err != nil {
			return report(name, cfg, err)
		}
	}

	err := c.Run(ctx, cfg, args[1:])
	if errors.Is(err, ErrUsage) {
		fmt.Fprintf(Out, "Usage: %s\n", c.Usage())
		return ExitUsage
	}
	return report(name, cfg, err)
}

func help(cfg *config.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(Out, FormatGlobalUsage(cfg))
		return ExitOK
	}
	if c, ok := Get(strings.ToLower(args[0])); ok {
		fmt.Fprintf(Out, "Usage: %s\n%s\n", c.Usage(), c.Description())
		return ExitOK
	}
	fmt.Fprintf(Out, "Unknown command: %s\n\n", args[0])
	fmt.Fprint(Out, FormatGlobalUsage(cfg))
	return ExitUsage
}

// report печатает ошибку команды с подсказкой и выбирает код завершения.
func report(name string, cfg *config.Config, err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, api.ErrVaultLocked):
		fmt.Fprintf(Out, "%s: the vault on %s is locked; unlock it in KeeBridge and retry\n", name, cfg.ServerURL)
		return ExitVaultLocked
	case errors.Is(err, service.ErrBadVerifier):
		fmt.Fprintf(Out, "%s: the server could not prove it holds the association key (%v)\n", name, err)
		fmt.Fprintf(Out, "If the vault was re-created, remove %s and run associate again\n", AssociationPath(cfg))
		return ExitBadVerifier
	case errors.Is(err, fs.ErrNotAssociated):
		fmt.Fprintf(Out, "%s: no association in %s; run associate first\n", name, AssociationPath(cfg))
		return ExitNotAssociated
	case errors.Is(err, api.ErrRejected):
		fmt.Fprintf(Out, "%s rejected: %v\n", name, err)
		return ExitServerRejected
	default:
		fmt.Fprintf(Out, "%s error: %v\n", name, err)
		return ExitError
	}
}
