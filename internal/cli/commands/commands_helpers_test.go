package commands

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"KeeBridge/internal/association"
	"KeeBridge/internal/config"
	"KeeBridge/internal/handlers"
	"KeeBridge/internal/repo"
	"KeeBridge/internal/service"
	"KeeBridge/internal/vault"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// withTestServer поднимает сервер на temp‑хранилище и возвращает конфиг клиента,
// у которого каталог состояния тоже во временном каталоге.
func withTestServer(t *testing.T) (*config.Config, *vault.GormVault) {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop().Sugar()
	dsn := filepath.Join(dir, "vault.sqlite")
	v := vault.NewGormVault(func(context.Context) (*gorm.DB, error) { return repo.InitDB(dsn) }, "master", logger)
	require.NoError(t, v.Unlock(context.Background()))
	t.Cleanup(v.Lock)

	store := association.NewStore(vault.AnchorRecords{Vault: v}, nil)
	svc := service.NewService(v, store, nil, nil, logger, service.Options{})
	ts := httptest.NewServer(handlers.NewHandler(svc, nil, nil, logger).Router)
	t.Cleanup(ts.Close)

	return &config.Config{ServerURL: ts.URL, ClientStateDir: filepath.Join(dir, "state")}, v
}
