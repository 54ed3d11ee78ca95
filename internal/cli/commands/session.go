package commands

import (
	"fmt"
	"os"

	"KeeBridge/internal/cli/api"
	"KeeBridge/internal/cli/repo/fs"
	"KeeBridge/internal/cli/service"
	"KeeBridge/internal/config"

	"golang.org/x/term"
)

// newSession собирает сессию из конфигурации; в тестах переназначается.
var newSession = func(cfg *config.Config) *service.Session {
	return service.NewSession(api.NewClient(cfg.ServerURL), fs.AssociationFSStore{Dir: cfg.ClientStateDir})
}

// readPassword читает пароль с терминала без эха; в тестах переназначается.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(Out, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(Out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
