package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// resetFlagSet создаёт новый FlagSet перед каждым вызовом NewConfig,
// чтобы избежать повторной регистрации одних и тех же флагов между тестами.
func resetFlagSet(t *testing.T) {
	t.Helper()
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	// подавляем вывод парсера флагов в тестах
	flag.CommandLine.SetOutput(os.Stderr)
}

// isolateConfigDir направляет os.UserConfigDir во временный каталог.
func isolateConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("APPDATA", dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestNewConfig_DefaultsWhenEnvEmpty(t *testing.T) {
	dir := isolateConfigDir(t)
	for _, k := range []string{"LISTEN_ADDR", "DATABASE_URI", "UNLOCK_TIMEOUT", "PASSWORD_LENGTH", "SERVER_URL", "CLIENT_STATE_DIR"} {
		t.Setenv(k, "")
	}

	resetFlagSet(t)
	cfg := NewConfig()

	if cfg.ListenAddr != "localhost:19455" {
		t.Fatalf("ListenAddr default expected 'localhost:19455', got %q", cfg.ListenAddr)
	}
	if cfg.ServerURL != "http://localhost:19455" {
		t.Fatalf("ServerURL default expected 'http://localhost:19455', got %q", cfg.ServerURL)
	}
	if cfg.UnlockTimeout != time.Second {
		t.Fatalf("UnlockTimeout default expected 1s, got %v", cfg.UnlockTimeout)
	}
	if cfg.PasswordLength != 20 || !cfg.PasswordLetters || !cfg.PasswordDigits || !cfg.PasswordSymbols {
		t.Fatalf("unexpected password profile defaults: %+v", cfg)
	}
	if cfg.AssociateRate != 10 {
		t.Fatalf("AssociateRate default expected 10, got %d", cfg.AssociateRate)
	}
	if cfg.DatabaseDSN == "" || cfg.ClientStateDir == "" {
		t.Fatalf("path defaults must be non-empty: DatabaseDSN=%q, ClientStateDir=%q", cfg.DatabaseDSN, cfg.ClientStateDir)
	}
	if filepath.Base(cfg.DatabaseDSN) != "vault.sqlite" || filepath.Base(cfg.ClientStateDir) != AppDir {
		t.Fatalf("unexpected default paths under %q: %q, %q", dir, cfg.DatabaseDSN, cfg.ClientStateDir)
	}
}

func TestNewConfig_FromEnv(t *testing.T) {
	isolateConfigDir(t)
	t.Setenv("LISTEN_ADDR", "127.0.0.1:20000")
	t.Setenv("DATABASE_URI", "postgres://u:p@localhost/vault")
	t.Setenv("UNLOCK_TIMEOUT", "250ms")
	t.Setenv("SPECIFIC_MATCHING_ONLY", "true")
	t.Setenv("PASSWORD_SYMBOLS", "false")
	t.Setenv("PASSWORD_LENGTH", "32")
	t.Setenv("ASSOCIATE_RATE", "0")

	resetFlagSet(t)
	cfg := NewConfig()

	if cfg.ListenAddr != "127.0.0.1:20000" || cfg.ServerURL != "http://127.0.0.1:20000" {
		t.Fatalf("unexpected addresses: %q %q", cfg.ListenAddr, cfg.ServerURL)
	}
	if cfg.DatabaseDSN != "postgres://u:p@localhost/vault" {
		t.Fatalf("DatabaseDSN expected from env, got %q", cfg.DatabaseDSN)
	}
	if cfg.UnlockTimeout != 250*time.Millisecond {
		t.Fatalf("UnlockTimeout expected 250ms, got %v", cfg.UnlockTimeout)
	}
	if !cfg.SpecificMatchingOnly || cfg.PasswordSymbols || cfg.PasswordLength != 32 {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if cfg.AssociateRate != 0 {
		t.Fatalf("AssociateRate expected 0, got %d", cfg.AssociateRate)
	}
}

func TestNewConfig_InvalidListenAddrFallback(t *testing.T) {
	isolateConfigDir(t)
	// адрес со схемой невалиден и откатывается на значение по умолчанию
	t.Setenv("LISTEN_ADDR", "http://bad:8080")
	t.Setenv("SERVER_URL", "")

	resetFlagSet(t)
	cfg := NewConfig()

	if cfg.ListenAddr != "localhost:19455" {
		t.Fatalf("invalid LISTEN_ADDR must fallback to 'localhost:19455', got %q", cfg.ListenAddr)
	}
	if cfg.ServerURL != "http://localhost:19455" {
		t.Fatalf("ServerURL must reflect fallback address, got %q", cfg.ServerURL)
	}
}
