package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"KeeBridge/internal/cli/repo/fs"
	"KeeBridge/internal/config"
)

// ErrUsage — неверные аргументы команды; диспетчер печатает её Usage.
var ErrUsage = errors.New("usage")

// Коды завершения CLI.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitUsage          = 2
	ExitVaultLocked    = 3
	ExitBadVerifier    = 4
	ExitNotAssociated  = 5
	ExitServerRejected = 6
)

// Command — подкоманда CLI протокола KeeBridge.
type Command interface {
	// Name — имя команды, например "logins".
	Name() string
	Description() string
	// Usage — строка вызова, например "logins <url> [submitUrl] [realm]".
	Usage() string
	// NeedsAssociation — команде нужен сохранённый ключ ассоциации.
	NeedsAssociation() bool
	Run(ctx context.Context, cfg *config.Config, args []string) error
}

var registry = map[string]Command{}

// Out — writer для вывода CLI; в тестах переназначается.
var Out io.Writer = os.Stdout

// RegisterCmd регистрирует команду; вызывается из init() файла команды.
func RegisterCmd(cmd Command) {
	registry[cmd.Name()] = cmd
}

// Get возвращает команду по имени.
func Get(name string) (Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// List возвращает команды, отсортированные по имени.
func List() []Command {
	list := make([]Command, 0, len(registry))
	for _, c := range registry {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// AssociationPath — путь к файлу ассоциации клиента.
func AssociationPath(cfg *config.Config) string {
	return filepath.Join(cfg.ClientStateDir, fs.FileName)
}

// FormatGlobalUsage печатает справку с адресом сервера и файлом ассоциации.
// Команды, требующие ассоциации, помечены звёздочкой.
func FormatGlobalUsage(cfg *config.Config) string {
	var b strings.Builder
	b.WriteString("KeeBridge CLI\n\n")
	b.WriteString("Usage:\n  kbcli [-server URL] [-state-dir DIR] <command> [args]\n\n")
	fmt.Fprintf(&b, "Server:      %s\n", orUnset(cfg.ServerURL))
	fmt.Fprintf(&b, "Association: %s\n\n", orUnset(cfg.ClientStateDir, AssociationPath(cfg)))
	b.WriteString("Commands (* requires associate):\n")
	for _, c := range List() {
		mark := " "
		if c.NeedsAssociation() {
			mark = "*"
		}
		fmt.Fprintf(&b, " %s %-40s %s\n", mark, c.Usage(), c.Description())
	}
	b.WriteString("\nExit codes: 0 ok, 1 error, 2 usage, 3 vault locked, 4 server verifier mismatch,\n")
	b.WriteString("            5 not associated, 6 request rejected by server\n")
	return b.String()
}

// orUnset возвращает последнее значение или "(unset)", если первое пусто.
func orUnset(vals ...string) string {
	if vals[0] == "" {
		return "(unset)"
	}
	return vals[len(vals)-1]
}
