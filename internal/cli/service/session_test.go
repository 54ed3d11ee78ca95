package service

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"KeeBridge/internal/association"
	"KeeBridge/internal/cli/api"
	"KeeBridge/internal/cli/repo/fs"
	"KeeBridge/internal/crypto"
	"KeeBridge/internal/handlers"
	"KeeBridge/internal/model"
	"KeeBridge/internal/protocol"
	"KeeBridge/internal/repo"
	srv "KeeBridge/internal/service"
	"KeeBridge/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// newSession поднимает настоящий сервер на temp‑хранилище и сессию клиента к нему.
func newSession(t *testing.T) (*Session, *vault.GormVault) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "vault.sqlite")
	logger := zap.NewNop().Sugar()
	v := vault.NewGormVault(func(context.Context) (*gorm.DB, error) { return repo.InitDB(dsn) }, "master", logger)
	require.NoError(t, v.Unlock(context.Background()))
	t.Cleanup(v.Lock)

	store := association.NewStore(vault.AnchorRecords{Vault: v}, nil)
	svc := srv.NewService(v, store, nil, nil, logger, srv.Options{})
	ts := httptest.NewServer(handlers.NewHandler(svc, nil, nil, logger).Router)
	t.Cleanup(ts.Close)

	return NewSession(api.NewClient(ts.URL), fs.AssociationFSStore{Dir: t.TempDir()}), v
}

func TestSession_RequiresAssociation(t *testing.T) {
	s, _ := newSession(t)
	assert.ErrorIs(t, s.TestAssociate(context.Background()), fs.ErrNotAssociated)
}

func TestSession_AssociateAndTest(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	a, err := s.Associate(ctx, "cli")
	require.NoError(t, err)
	assert.Equal(t, "cli", a.ID)
	assert.Len(t, a.Hash, 40)

	saved, err := s.Store.Load()
	require.NoError(t, err)
	assert.Equal(t, a, saved)

	require.NoError(t, s.TestAssociate(ctx))
}

func TestSession_StaleHashRejected(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	a, err := s.Associate(ctx, "cli")
	require.NoError(t, err)

	a.Hash = "0000000000000000000000000000000000000000"
	require.NoError(t, s.Store.Save(a))
	assert.Error(t, s.TestAssociate(ctx))
}

func TestSession_LoginsRoundTrip(t *testing.T) {
	s, v := newSession(t)
	ctx := context.Background()
	_, err := s.Associate(ctx, "cli")
	require.NoError(t, err)

	root, err := v.RootGroup(ctx)
	require.NoError(t, err)
	require.NoError(t, v.CreateEntry(ctx, root.UUID, &model.Entry{
		Title: "Example", URL: "https://www.example.com/login", UserName: "alice", Password: "s3cret",
	}))

	logins, err := s.GetLogins(ctx, "https://www.example.com/login", "", "")
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, "alice", logins[0].Login)
	assert.Equal(t, "s3cret", logins[0].Password)
	assert.Equal(t, "Example", logins[0].Name)

	n, err := s.Count(ctx, "https://www.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.SetLogin(ctx, "https://new.example.org/", "bob", "pw", ""))
	all, err := s.AllLogins(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, l := range all {
		assert.Empty(t, l.Password)
	}

	// обновление по uuid
	require.NoError(t, s.SetLogin(ctx, "https://www.example.com/login", "alice2", "pw2", logins[0].UUID))
	logins, err = s.GetLogins(ctx, "https://www.example.com/login", "", "")
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, "alice2", logins[0].Login)

	err = s.SetLogin(ctx, "https://x.example/", "a", "b", vault.NewUUID())
	assert.Error(t, err)
}

func TestSession_Generate(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	_, err := s.Associate(ctx, "cli")
	require.NoError(t, err)

	pw, bits, err := s.Generate(ctx)
	require.NoError(t, err)
	assert.Len(t, pw, srv.DefaultPasswordProfile.Length)
	assert.Greater(t, bits, 0)
}

func TestCheckVerifier(t *testing.T) {
	key, err := crypto.NewKey()
	require.NoError(t, err)
	nonce, err := crypto.NewNonce()
	require.NoError(t, err)
	sign := func(hash, claimed string) *protocol.Response {
		resp := protocol.NewResponse(protocol.TestAssociate, claimed)
		v, err := crypto.EncryptField([]byte(hash), key, nonce)
		require.NoError(t, err)
		resp.Nonce, resp.Verifier = nonce, v
		return resp
	}

	assert.NoError(t, checkVerifier(sign("stored", "stored"), key, "stored"))
	// неподписанный ответ
	assert.ErrorIs(t, checkVerifier(protocol.NewResponse(protocol.TestAssociate, "stored"), key, "stored"), ErrBadVerifier)
	// сервер подписал свой собственный Hash, а не сохранённый отпечаток
	assert.ErrorIs(t, checkVerifier(sign("forged", "forged"), key, "stored"), ErrBadVerifier)
	// Hash совпадает, но verifier зашифрован не тем значением
	assert.ErrorIs(t, checkVerifier(sign("forged", "stored"), key, "stored"), ErrBadVerifier)
	// чужой ключ
	otherKey, _ := crypto.NewKey()
	assert.ErrorIs(t, checkVerifier(sign("stored", "stored"), otherKey, "stored"), ErrBadVerifier)
}
