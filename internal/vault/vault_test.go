package vault

import (
	"KeeBridge/internal/model"
	"KeeBridge/internal/repo"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func fileOpener(t *testing.T) Opener {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "vault.sqlite")
	return func(context.Context) (*gorm.DB, error) {
		return repo.InitDB(dsn)
	}
}

func newOpenVault(t *testing.T) *GormVault {
	t.Helper()
	v := NewGormVault(fileOpener(t), "master", zap.NewNop().Sugar())
	require.NoError(t, v.Unlock(context.Background()))
	t.Cleanup(v.Lock)
	return v
}

func TestGormVault_LockUnlock(t *testing.T) {
	ctx := context.Background()
	open := fileOpener(t)
	v := NewGormVault(open, "master", zap.NewNop().Sugar())

	assert.False(t, v.IsOpen())
	_, _, err := v.Identity(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, v.Unlock(ctx))
	assert.True(t, v.IsOpen())
	root, bin, err := v.Identity(ctx)
	require.NoError(t, err)
	assert.Len(t, root, 32)
	assert.Len(t, bin, 32)

	v.Lock()
	assert.False(t, v.IsOpen())

	// повторное открытие видит ту же идентичность
	require.NoError(t, v.Unlock(ctx))
	root2, bin2, err := v.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, root2)
	assert.Equal(t, bin, bin2)
	v.Lock()

	// другой мастер‑пароль не открывает существующее хранилище
	wrong := NewGormVault(open, "other", zap.NewNop().Sugar())
	assert.ErrorIs(t, wrong.Unlock(ctx), ErrBadCredentials)
	assert.False(t, wrong.IsOpen())
}

func TestGormVault_EntriesAndSearch(t *testing.T) {
	ctx := context.Background()
	v := newOpenVault(t)
	root, err := v.RootGroup(ctx)
	require.NoError(t, err)
	_, binUUID, err := v.Identity(ctx)
	require.NoError(t, err)

	require.NoError(t, v.CreateEntry(ctx, root.UUID, &model.Entry{Title: "Example", URL: "https://www.example.com/login"}))
	require.NoError(t, v.CreateEntry(ctx, root.UUID, &model.Entry{Title: "example.org"}))
	require.NoError(t, v.CreateEntry(ctx, root.UUID, &model.Entry{Title: "Other", URL: "https://other.net"}))
	require.NoError(t, v.CreateEntry(ctx, binUUID, &model.Entry{Title: "Deleted", URL: "https://www.example.com"}))

	all, err := v.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := v.Search(ctx, SearchParams{Pattern: "example", InURLs: true, TitleFallback: true})
	require.NoError(t, err)
	titles := make([]string, 0, len(got))
	for _, e := range got {
		titles = append(titles, e.Title)
	}
	assert.ElementsMatch(t, []string{"Example", "example.org"}, titles)

	// поиск чувствителен к регистру
	got, err = v.Search(ctx, SearchParams{Pattern: "EXAMPLE", InURLs: true, TitleFallback: true})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = v.Search(ctx, SearchParams{Pattern: "a(b", InURLs: true})
	assert.ErrorIs(t, err, ErrBadPattern)
}

func TestGormVault_UpdateAndGroups(t *testing.T) {
	ctx := context.Background()
	v := newOpenVault(t)

	g, err := v.EnsureGroup(ctx, "KeeBridge Passwords")
	require.NoError(t, err)
	again, err := v.EnsureGroup(ctx, "KeeBridge Passwords")
	require.NoError(t, err)
	assert.Equal(t, g.UUID, again.UUID)

	e := &model.Entry{Title: "host", UserName: "alice", Password: "p1"}
	require.NoError(t, v.CreateEntry(ctx, g.UUID, e))
	e.Password = "p2"
	e.Set("KPH: otp", "123")
	require.NoError(t, v.UpdateEntry(ctx, e))

	// поиск по uuid не зависит от регистра
	got, err := v.FindEntry(ctx, strings.ToLower(e.UUID))
	require.NoError(t, err)
	assert.Equal(t, "p2", got.Password)
	assert.Equal(t, "123", got.Get("KPH: otp"))

	_, err = v.FindEntry(ctx, NewUUID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, v.UpdateEntry(ctx, &model.Entry{UUID: NewUUID()}), ErrNotFound)
}

func TestAnchorRecords(t *testing.T) {
	ctx := context.Background()
	v := newOpenVault(t)
	rec := AnchorRecords{Vault: v}

	_, ok, err := rec.GetRecord(ctx, "AES Key: a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, DefaultPromptTimeout, PromptTimeout(ctx, v))

	require.NoError(t, rec.PutRecord(ctx, "AES Key: a", "k1"))
	require.NoError(t, rec.PutRecord(ctx, "AES Key: a", "k2"))
	val, ok, err := rec.GetRecord(ctx, "AES Key: a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "k2", val)

	anchor, err := AnchorEntry(ctx, v, false)
	require.NoError(t, err)
	assert.Equal(t, AnchorTitle, anchor.Title)

	// служебная запись не видна в обычном перечислении
	all, err := v.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, rec.PutRecord(ctx, PromptTimeoutField, "12"))
	assert.Equal(t, 12*time.Second, PromptTimeout(ctx, v))
	require.NoError(t, rec.PutRecord(ctx, PromptTimeoutField, "soon"))
	assert.Equal(t, DefaultPromptTimeout, PromptTimeout(ctx, v))
}
