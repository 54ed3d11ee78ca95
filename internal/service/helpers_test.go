package service

import (
	"KeeBridge/internal/association"
	"KeeBridge/internal/crypto"
	"KeeBridge/internal/model"
	"KeeBridge/internal/protocol"
	"KeeBridge/internal/repo"
	"KeeBridge/internal/vault"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type testEnv struct {
	svc   *Service
	vault *vault.GormVault
	notes *recordingNotifier
}

// newEnv поднимает открытое хранилище в temp‑файле SQLite и сервис поверх него.
func newEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "vault.sqlite")
	v := vault.NewGormVault(func(context.Context) (*gorm.DB, error) { return repo.InitDB(dsn) }, "master", zap.NewNop().Sugar())
	require.NoError(t, v.Unlock(context.Background()))
	t.Cleanup(v.Lock)

	notes := &recordingNotifier{}
	store := association.NewStore(vault.AnchorRecords{Vault: v}, notes)
	return &testEnv{
		svc:   NewService(v, store, notes, nil, zap.NewNop().Sugar(), opts),
		vault: v,
		notes: notes,
	}
}

type client struct {
	id  string
	key []byte
}

func newClient(t *testing.T, id string) client {
	t.Helper()
	key, err := crypto.NewKey()
	require.NoError(t, err)
	return client{id: id, key: key}
}

// associate регистрирует клиента через команду associate.
func (e *testEnv) associate(t *testing.T, c client) {
	t.Helper()
	nonce, _ := crypto.NewNonce()
	resp, err := e.svc.Handle(context.Background(), &protocol.Request{
		RequestType: protocol.Associate, ID: c.id, Key: c.key, Nonce: nonce,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
}

// request строит аутентифицированный запрос клиента c.
func (e *testEnv) request(t *testing.T, c client, command string) *protocol.Request {
	t.Helper()
	fp, err := e.svc.Fingerprint(context.Background())
	require.NoError(t, err)
	return requestWithFingerprint(t, c, command, fp)
}

func requestWithFingerprint(t *testing.T, c client, command, fingerprint string) *protocol.Request {
	t.Helper()
	nonce, err := crypto.NewNonce()
	require.NoError(t, err)
	verifier, err := crypto.EncryptField([]byte(fingerprint), c.key, nonce)
	require.NoError(t, err)
	return &protocol.Request{RequestType: command, ID: c.id, Nonce: nonce, Verifier: verifier}
}

func seal(t *testing.T, c client, req *protocol.Request, s string) []byte {
	t.Helper()
	b, err := crypto.EncryptField([]byte(s), c.key, req.Nonce)
	require.NoError(t, err)
	return b
}

func unseal(t *testing.T, c client, resp *protocol.Response, b []byte) string {
	t.Helper()
	out, err := crypto.DecryptField(b, c.key, resp.Nonce)
	require.NoError(t, err)
	return string(out)
}

func (e *testEnv) addEntry(t *testing.T, entry *model.Entry) *model.Entry {
	t.Helper()
	ctx := context.Background()
	root, err := e.vault.RootGroup(ctx)
	require.NoError(t, err)
	require.NoError(t, e.vault.CreateEntry(ctx, root.UUID, entry))
	return entry
}
