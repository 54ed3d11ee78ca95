package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"KeeBridge/internal/cli/commands"
	"KeeBridge/internal/cli/repo/fs"
	"KeeBridge/internal/config"
	"KeeBridge/internal/protocol"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg := config.NewConfig()

	if cfg.Version {
		printVersion(cfg)
		return
	}

	// ключ ассоциации хранится только в каталоге с правами владельца
	if err := os.MkdirAll(cfg.ClientStateDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "state dir %s: %v\n", cfg.ClientStateDir, err)
		os.Exit(commands.ExitError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	exitCode := commands.Dispatch(ctx, cfg, flag.Args())
	if exitCode == commands.ExitOK {
		return
	}
	os.Exit(exitCode)
}

func printVersion(cfg *config.Config) {
	assoc := "not associated"
	if a, err := (fs.AssociationFSStore{Dir: cfg.ClientStateDir}).Load(); err == nil {
		assoc = "associated as " + a.ID
	}
	fmt.Printf("KeeBridge CLI\nVersion: %s\nBuild date: %s\nProtocol: %s\nServer: %s\nState: %s (%s)\n",
		version, buildDate, protocol.Version, cfg.ServerURL, commands.AssociationPath(cfg), assoc)
}
