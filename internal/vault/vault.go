package vault

import (
	"KeeBridge/internal/model"
	"KeeBridge/internal/repo"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrClosed — хранилище заблокировано.
	ErrClosed = errors.New("vault is closed")
	// ErrNotFound — запись или группа не найдена.
	ErrNotFound = errors.New("vault: not found")
	// ErrBadCredentials — сохранённый мастер‑пароль не подошёл.
	ErrBadCredentials = errors.New("vault: invalid master credentials")
	// ErrBadPattern — шаблон поиска не компилируется как регулярное выражение.
	ErrBadPattern = errors.New("vault: invalid search pattern")
)

const (
	rootGroupName  = "Root"
	recycleBinName = "Recycle Bin"
)

// SearchParams — параметры поиска по регулярному выражению.
type SearchParams struct {
	Pattern string
	// InURLs — сопоставлять с полем URL.
	InURLs bool
	// TitleFallback — для записей без URL сопоставлять заголовок.
	TitleFallback bool
	// InTitles — всегда сопоставлять и заголовок.
	InTitles bool
}

// Vault — контракт хранилища, которым пользуется ядро протокола.
type Vault interface {
	IsOpen() bool
	// Unlock открывает хранилище с уже известными учётными данными.
	Unlock(ctx context.Context) error
	Lock()

	// Identity возвращает hex‑идентификаторы корневой группы и корзины.
	Identity(ctx context.Context) (root, recycleBin string, err error)
	RootGroup(ctx context.Context) (*model.Group, error)
	EnsureGroup(ctx context.Context, name string) (*model.Group, error)

	FindEntry(ctx context.Context, uuidHex string) (*model.Entry, error)
	// CreateEntry создаёт запись в группе; пустой UUID заполняется случайным.
	CreateEntry(ctx context.Context, groupUUID string, e *model.Entry) error
	UpdateEntry(ctx context.Context, e *model.Entry) error

	// Search ищет записи по регулярному выражению (с учётом регистра), корзина исключается.
	Search(ctx context.Context, p SearchParams) ([]model.Entry, error)
	// Entries возвращает все записи вне корзины, кроме служебной записи настроек.
	Entries(ctx context.Context) ([]model.Entry, error)
}

// Opener открывает соединение с БД хранилища.
type Opener func(ctx context.Context) (*gorm.DB, error)

// GormVault — хранилище поверх gorm. Закрытое состояние означает отсутствие соединения.
type GormVault struct {
	open           Opener
	masterPassword string
	logger         *zap.SugaredLogger

	mu   sync.RWMutex
	db   *gorm.DB
	repo repo.VaultRepository
	meta *model.Meta
}

var _ Vault = (*GormVault)(nil)

// NewGormVault создаёт закрытое хранилище. Открывается вызовом Unlock.
func NewGormVault(open Opener, masterPassword string, logger *zap.SugaredLogger) *GormVault {
	return &GormVault{open: open, masterPassword: masterPassword, logger: logger}
}

// NewUUID возвращает новый 16‑байтовый идентификатор в hex (верхний регистр).
func NewUUID() string {
	u := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", u[:]))
}

func (v *GormVault) IsOpen() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.repo != nil
}

func (v *GormVault) Unlock(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.repo != nil {
		return nil
	}

	db, err := v.open(ctx)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	r := repo.NewVaultRepository(db)
	meta, err := r.LoadMeta(ctx)
	switch {
	case repo.IsNotFound(err):
		meta, err = v.create(ctx, r)
		if err != nil {
			closeDB(db)
			return fmt.Errorf("create vault: %w", err)
		}
		v.logger.Infow("Vault created", "root", meta.RootGroupUUID)
	case err != nil:
		closeDB(db)
		return fmt.Errorf("load vault meta: %w", err)
	case len(meta.MasterHash) > 0:
		if bcrypt.CompareHashAndPassword(meta.MasterHash, []byte(v.masterPassword)) != nil {
			closeDB(db)
			return ErrBadCredentials
		}
	}

	v.db, v.repo, v.meta = db, r, meta
	v.logger.Infow("Vault unlocked")
	return nil
}

func (v *GormVault) create(ctx context.Context, r repo.VaultRepository) (*model.Meta, error) {
	root := &model.Group{UUID: NewUUID(), Name: rootGroupName}
	parent := root.UUID
	bin := &model.Group{UUID: NewUUID(), ParentUUID: &parent, Name: recycleBinName}
	meta := &model.Meta{RootGroupUUID: root.UUID, RecycleBinUUID: bin.UUID}
	if v.masterPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(v.masterPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		meta.MasterHash = hash
	}
	if err := r.CreateVault(ctx, meta, root, bin); err != nil {
		return nil, err
	}
	return meta, nil
}

func (v *GormVault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.repo == nil {
		return
	}
	closeDB(v.db)
	v.db, v.repo, v.meta = nil, nil, nil
	v.logger.Infow("Vault locked")
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// state возвращает репозиторий и мету открытого хранилища.
func (v *GormVault) state() (repo.VaultRepository, *model.Meta, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.repo == nil {
		return nil, nil, ErrClosed
	}
	return v.repo, v.meta, nil
}

func (v *GormVault) Identity(ctx context.Context) (string, string, error) {
	r, _, err := v.state()
	if err != nil {
		return "", "", err
	}
	// мету перечитываем на каждом запросе: хранилище могли пересоздать
	meta, err := r.LoadMeta(ctx)
	if err != nil {
		return "", "", fmt.Errorf("load vault meta: %w", err)
	}
	return meta.RootGroupUUID, meta.RecycleBinUUID, nil
}

func (v *GormVault) RootGroup(ctx context.Context) (*model.Group, error) {
	r, meta, err := v.state()
	if err != nil {
		return nil, err
	}
	return mapNotFound(r.GetGroup(ctx, meta.RootGroupUUID))
}

func (v *GormVault) EnsureGroup(ctx context.Context, name string) (*model.Group, error) {
	r, meta, err := v.state()
	if err != nil {
		return nil, err
	}
	g, err := r.FindGroupByName(ctx, meta.RootGroupUUID, name)
	if err == nil {
		return g, nil
	}
	if !repo.IsNotFound(err) {
		return nil, err
	}
	parent := meta.RootGroupUUID
	g = &model.Group{UUID: NewUUID(), ParentUUID: &parent, Name: name}
	if err := r.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (v *GormVault) FindEntry(ctx context.Context, uuidHex string) (*model.Entry, error) {
	r, _, err := v.state()
	if err != nil {
		return nil, err
	}
	return mapNotFound(r.GetEntry(ctx, strings.ToUpper(uuidHex)))
}

func (v *GormVault) CreateEntry(ctx context.Context, groupUUID string, e *model.Entry) error {
	r, _, err := v.state()
	if err != nil {
		return err
	}
	if e.UUID == "" {
		e.UUID = NewUUID()
	}
	e.GroupUUID = groupUUID
	return r.CreateEntry(ctx, e)
}

func (v *GormVault) UpdateEntry(ctx context.Context, e *model.Entry) error {
	r, _, err := v.state()
	if err != nil {
		return err
	}
	if err := r.SaveEntry(ctx, e); err != nil {
		if repo.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (v *GormVault) Search(ctx context.Context, p SearchParams) ([]model.Entry, error) {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	all, err := v.Entries(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Entry
	for _, e := range all {
		switch {
		case p.InURLs && e.URL != "" && re.MatchString(e.URL):
		case p.TitleFallback && e.URL == "" && re.MatchString(e.Title):
		case p.InTitles && re.MatchString(e.Title):
		default:
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (v *GormVault) Entries(ctx context.Context) ([]model.Entry, error) {
	r, meta, err := v.state()
	if err != nil {
		return nil, err
	}
	list, err := r.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, e := range list {
		if e.GroupUUID == meta.RecycleBinUUID || e.UUID == AnchorUUID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func mapNotFound[T any](v *T, err error) (*T, error) {
	if repo.IsNotFound(err) {
		return nil, ErrNotFound
	}
	return v, err
}
